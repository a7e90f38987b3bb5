package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sideline/sideline/internal/dvr"
	"github.com/sideline/sideline/internal/health"
	"github.com/sideline/sideline/internal/scheduler"
)

const DVRHealthTaskID = "dvr-health"

// dvrHealthItemID is the single registry entry for the recorder; the DVR is
// one capability, not a list of configured items.
const dvrHealthItemID = "recorder"

// DVRHealthTask verifies the recorder binary and the recording output
// directory while the DVR is enabled.
type DVRHealthTask struct {
	dvr     *dvr.Service
	health  *health.Service
	checker *health.FolderChecker
	logger  zerolog.Logger
}

// NewDVRHealthTask creates a new DVR health check.
func NewDVRHealthTask(dvrSvc *dvr.Service, healthSvc *health.Service, logger zerolog.Logger) *DVRHealthTask {
	return &DVRHealthTask{
		dvr:     dvrSvc,
		health:  healthSvc,
		checker: health.NewFolderChecker(),
		logger:  logger.With().Str("task", "dvr-health").Logger(),
	}
}

// Run checks recorder readiness.
func (t *DVRHealthTask) Run(ctx context.Context) error {
	status := t.dvr.GetStatus()

	if !status.Enabled {
		t.health.SyncItems(health.CategoryDVR, nil)
		return nil
	}

	t.health.SyncItems(health.CategoryDVR, map[string]string{dvrHealthItemID: "Recorder"})

	if !status.RecorderFound {
		t.health.SetError(health.CategoryDVR, dvrHealthItemID, "ffmpeg not found on PATH; captures cannot start")
		return nil
	}

	if ok, message := t.checker.CheckFolderHealth(status.OutputDir); !ok {
		t.health.SetWarning(health.CategoryDVR, dvrHealthItemID, fmt.Sprintf("output directory: %s", message))
		return nil
	}

	t.health.ClearStatus(health.CategoryDVR, dvrHealthItemID)
	return nil
}

// RegisterDVRHealthTask registers the DVR health check with the scheduler.
func RegisterDVRHealthTask(sched *scheduler.Scheduler, dvrSvc *dvr.Service, healthSvc *health.Service, intervalMin int, logger zerolog.Logger) error {
	task := NewDVRHealthTask(dvrSvc, healthSvc, logger)

	if intervalMin <= 0 {
		intervalMin = 15
	}

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          DVRHealthTaskID,
		Name:        "DVR Health",
		Description: "Verifies the recorder binary and recording output directory",
		Every:       time.Duration(intervalMin) * time.Minute,
		RunOnStart:  true,
		Func:        task.Run,
	})
}
