package tasks

import (
	"context"
	"time"

	"github.com/sideline/sideline/internal/epg"
	"github.com/sideline/sideline/internal/scheduler"
)

const EPGRefreshTaskID = "epg-refresh"

// RegisterEPGRefreshTask registers the XMLTV guide refresh. Skipped entirely
// when no guide URL is configured; a refresh can still be triggered over the
// API after one is set.
func RegisterEPGRefreshTask(sched *scheduler.Scheduler, service *epg.Service, refreshHours int, guideURL string) error {
	if guideURL == "" {
		return nil
	}
	if refreshHours <= 0 {
		refreshHours = 6
	}

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          EPGRefreshTaskID,
		Name:        "EPG Refresh",
		Description: "Downloads the XMLTV guide and refreshes program data",
		Every:       time.Duration(refreshHours) * time.Hour,
		RunOnStart:  true,
		Func: func(ctx context.Context) error {
			_, err := service.Refresh(ctx)
			return err
		},
	})
}
