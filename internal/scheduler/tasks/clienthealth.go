package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sideline/sideline/internal/downloader"
	"github.com/sideline/sideline/internal/health"
	"github.com/sideline/sideline/internal/scheduler"
)

const ClientHealthTaskID = "download-client-health"

// ClientHealthTask tests connectivity to every enabled download client and
// records the outcome in the health registry.
type ClientHealthTask struct {
	clients *downloader.Service
	health  *health.Service
	logger  zerolog.Logger
}

// NewClientHealthTask creates a new download client health check.
func NewClientHealthTask(clients *downloader.Service, healthSvc *health.Service, logger zerolog.Logger) *ClientHealthTask {
	return &ClientHealthTask{
		clients: clients,
		health:  healthSvc,
		logger:  logger.With().Str("task", "client-health").Logger(),
	}
}

// Run tests all enabled download clients.
func (t *ClientHealthTask) Run(ctx context.Context) error {
	clients, err := t.clients.List(ctx)
	if err != nil {
		return err
	}

	current := make(map[string]string)
	for _, client := range clients {
		if client.Enabled {
			current[fmt.Sprintf("%d", client.ID)] = client.Name
		}
	}
	t.health.SyncItems(health.CategoryDownloadClients, current)

	checked := 0
	for _, client := range clients {
		if !client.Enabled {
			continue
		}
		id := fmt.Sprintf("%d", client.ID)

		result, err := t.clients.Test(ctx, client.ID)
		if err != nil {
			t.health.SetError(health.CategoryDownloadClients, id, err.Error())
			t.logger.Warn().Err(err).Int64("clientId", client.ID).Str("name", client.Name).Msg("Download client check failed")
			continue
		}

		if result.Success {
			t.health.ClearStatus(health.CategoryDownloadClients, id)
		} else {
			t.health.SetError(health.CategoryDownloadClients, id, result.Message)
			t.logger.Warn().Int64("clientId", client.ID).Str("name", client.Name).Str("message", result.Message).Msg("Download client check failed")
		}
		checked++
	}

	t.logger.Debug().Int("checked", checked).Msg("Download client health refreshed")
	return nil
}

// RegisterClientHealthTask registers the download client health check with the scheduler.
func RegisterClientHealthTask(sched *scheduler.Scheduler, clients *downloader.Service, healthSvc *health.Service, intervalMin int, logger zerolog.Logger) error {
	task := NewClientHealthTask(clients, healthSvc, logger)

	if intervalMin <= 0 {
		intervalMin = 15
	}

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          ClientHealthTaskID,
		Name:        "Download Client Health",
		Description: "Tests connectivity to all enabled download clients",
		Every:       time.Duration(intervalMin) * time.Minute,
		RunOnStart:  true,
		Func:        task.Run,
	})
}
