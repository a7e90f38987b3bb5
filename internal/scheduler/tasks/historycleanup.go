package tasks

import (
	"time"

	"github.com/sideline/sideline/internal/history"
	"github.com/sideline/sideline/internal/scheduler"
)

const HistoryCleanupTaskID = "history-cleanup"

// RegisterHistoryCleanupTask registers the daily cleanup of history
// entries older than the configured retention period.
func RegisterHistoryCleanupTask(sched *scheduler.Scheduler, historyService *history.Service) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          HistoryCleanupTaskID,
		Name:        "History Cleanup",
		Description: "Deletes history entries older than the configured retention period",
		Every:       24 * time.Hour,
		RunOnStart:  false,
		Func:        historyService.CleanupOldEntries,
	})
}
