package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sideline/sideline/internal/health"
	"github.com/sideline/sideline/internal/scheduler"
	"github.com/sideline/sideline/internal/store"
)

const RootFolderHealthTaskID = "root-folder-health"

// RootFolderHealthTask verifies that every configured root folder is still
// an accessible, writable directory.
type RootFolderHealthTask struct {
	queries *store.Queries
	health  *health.Service
	checker *health.FolderChecker
	logger  zerolog.Logger
}

// NewRootFolderHealthTask creates a new root folder health check.
func NewRootFolderHealthTask(queries *store.Queries, healthSvc *health.Service, logger zerolog.Logger) *RootFolderHealthTask {
	return &RootFolderHealthTask{
		queries: queries,
		health:  healthSvc,
		checker: health.NewFolderChecker(),
		logger:  logger.With().Str("task", "root-folder-health").Logger(),
	}
}

// Run checks all root folders.
func (t *RootFolderHealthTask) Run(ctx context.Context) error {
	folders, err := t.queries.ListRootFolders(ctx)
	if err != nil {
		return err
	}

	current := make(map[string]string, len(folders))
	for _, folder := range folders {
		name := folder.Name
		if name == "" {
			name = folder.Path
		}
		current[fmt.Sprintf("%d", folder.ID)] = name
	}
	t.health.SyncItems(health.CategoryRootFolders, current)

	for _, folder := range folders {
		id := fmt.Sprintf("%d", folder.ID)
		ok, message := t.checker.CheckFolderHealth(folder.Path)
		if ok {
			t.health.ClearStatus(health.CategoryRootFolders, id)
		} else {
			t.health.SetError(health.CategoryRootFolders, id, message)
			t.logger.Warn().Str("path", folder.Path).Str("message", message).Msg("Root folder check failed")
		}
	}

	t.logger.Debug().Int("folders", len(folders)).Msg("Root folder health refreshed")
	return nil
}

// RegisterRootFolderHealthTask registers the root folder health check with the scheduler.
func RegisterRootFolderHealthTask(sched *scheduler.Scheduler, queries *store.Queries, healthSvc *health.Service, intervalMin int, logger zerolog.Logger) error {
	task := NewRootFolderHealthTask(queries, healthSvc, logger)

	if intervalMin <= 0 {
		intervalMin = 15
	}

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          RootFolderHealthTaskID,
		Name:        "Root Folder Health",
		Description: "Verifies that configured root folders are accessible and writable",
		Every:       time.Duration(intervalMin) * time.Minute,
		RunOnStart:  true,
		Func:        task.Run,
	})
}
