package tasks

import (
	"context"
	"time"

	"github.com/sideline/sideline/internal/dvr"
	"github.com/sideline/sideline/internal/scheduler"
)

const (
	DVRScheduleTaskID = "dvr-schedule"
	DVRDispatchTaskID = "dvr-dispatch"

	// Dispatch starts and stops captures, so it runs on a short fixed
	// cadence independent of the scheduling interval.
	dvrDispatchInterval = 30 * time.Second
)

// RegisterDVRTasks registers the recording scheduler and the capture
// dispatcher. Both are skipped when the DVR is disabled.
func RegisterDVRTasks(sched *scheduler.Scheduler, service *dvr.Service, enabled bool, intervalMin int) error {
	if !enabled {
		return nil
	}
	if intervalMin <= 0 {
		intervalMin = 15
	}

	err := sched.RegisterTask(scheduler.TaskConfig{
		ID:          DVRScheduleTaskID,
		Name:        "DVR Schedule",
		Description: "Plans recordings for monitored events on mapped channels",
		Every:       time.Duration(intervalMin) * time.Minute,
		RunOnStart:  true,
		Func: func(ctx context.Context) error {
			_, err := service.Schedule(ctx)
			return err
		},
	})
	if err != nil {
		return err
	}

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          DVRDispatchTaskID,
		Name:        "DVR Dispatch",
		Description: "Starts due captures and stops overrunning ones",
		Every:       dvrDispatchInterval,
		RunOnStart:  false,
		Func:        service.Dispatch,
	})
}
