package tasks

import (
	"time"

	"github.com/sideline/sideline/internal/rsssync"
	"github.com/sideline/sideline/internal/scheduler"
)

const RSSSyncTaskID = "rss-sync"

// RegisterRSSSyncTask registers the RSS sync task with the scheduler.
func RegisterRSSSyncTask(sched *scheduler.Scheduler, service *rsssync.Service, intervalMin int) error {
	if intervalMin <= 0 {
		intervalMin = 15
	}

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          RSSSyncTaskID,
		Name:        "RSS Sync",
		Description: "Fetches recent releases from all enabled indexers into the release cache",
		Every:       time.Duration(intervalMin) * time.Minute,
		RunOnStart:  true,
		Func:        service.Sync,
	})
}
