package tasks

import (
	"time"

	"github.com/sideline/sideline/internal/scheduler"
	"github.com/sideline/sideline/internal/search"
)

const SearchSweepTaskID = "search-sweep"

// RegisterSearchSweepTask registers the periodic search planner sweep.
// The sweep itself decides which events are in their broadcast window and
// which are overdue backfills, so a fixed cadence is enough here.
func RegisterSearchSweepTask(sched *scheduler.Scheduler, service *search.Service, intervalMin int) error {
	if intervalMin <= 0 {
		intervalMin = 10
	}

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          SearchSweepTaskID,
		Name:        "Search Sweep",
		Description: "Searches for monitored events that are missing files or below cutoff",
		Every:       time.Duration(intervalMin) * time.Minute,
		RunOnStart:  false,
		Func:        service.SearchAll,
	})
}
