package tasks

import (
	"time"

	"github.com/sideline/sideline/internal/queue"
	"github.com/sideline/sideline/internal/scheduler"
)

const QueueMonitorTaskID = "queue-monitor"

// RegisterQueueMonitorTask registers the download queue sweep. The cadence
// is short; the sweep no-ops when a previous run is still in flight.
func RegisterQueueMonitorTask(sched *scheduler.Scheduler, monitor *queue.Monitor, intervalSecs int) error {
	if intervalSecs <= 0 {
		intervalSecs = 30
	}

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          QueueMonitorTaskID,
		Name:        "Queue Monitor",
		Description: "Polls download clients for progress, completions and failures",
		Every:       time.Duration(intervalSecs) * time.Second,
		RunOnStart:  true,
		Func:        monitor.Sweep,
	})
}
