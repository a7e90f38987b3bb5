package tasks

import (
	"context"
	"time"

	"github.com/sideline/sideline/internal/releasecache"
	"github.com/sideline/sideline/internal/scheduler"
)

const CacheSweepTaskID = "release-cache-sweep"

// RegisterCacheSweepTask registers the release cache TTL sweep.
func RegisterCacheSweepTask(sched *scheduler.Scheduler, cache *releasecache.Service, intervalMin int) error {
	if intervalMin <= 0 {
		intervalMin = 60
	}

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          CacheSweepTaskID,
		Name:        "Release Cache Sweep",
		Description: "Removes cached releases past their TTL",
		Every:       time.Duration(intervalMin) * time.Minute,
		RunOnStart:  false,
		Func: func(ctx context.Context) error {
			_, err := cache.Sweep(ctx)
			return err
		},
	})
}
