package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sideline/sideline/internal/health"
	"github.com/sideline/sideline/internal/indexer"
	"github.com/sideline/sideline/internal/scheduler"
)

const IndexerHealthTaskID = "indexer-health"

// IndexerHealthTask mirrors indexer availability into the health registry.
// Availability comes from recorded search outcomes (failures, backoff, rate
// limits), so the sweep never issues network calls itself.
type IndexerHealthTask struct {
	indexers *indexer.Service
	health   *health.Service
	logger   zerolog.Logger
}

// NewIndexerHealthTask creates a new indexer health sweep.
func NewIndexerHealthTask(indexers *indexer.Service, healthSvc *health.Service, logger zerolog.Logger) *IndexerHealthTask {
	return &IndexerHealthTask{
		indexers: indexers,
		health:   healthSvc,
		logger:   logger.With().Str("task", "indexer-health").Logger(),
	}
}

// Run refreshes the indexers health category.
func (t *IndexerHealthTask) Run(ctx context.Context) error {
	infos, err := t.indexers.HealthAll(ctx)
	if err != nil {
		return err
	}

	current := make(map[string]string, len(infos))
	for _, info := range infos {
		current[fmt.Sprintf("%d", info.IndexerID)] = info.IndexerName
	}
	t.health.SyncItems(health.CategoryIndexers, current)

	for _, info := range infos {
		id := fmt.Sprintf("%d", info.IndexerID)
		switch {
		case info.Available:
			t.health.ClearStatus(health.CategoryIndexers, id)
		case info.RateLimitedUntil != nil:
			t.health.SetWarning(health.CategoryIndexers, id, info.Reason)
		default:
			t.health.SetError(health.CategoryIndexers, id, info.Reason)
		}
	}

	t.logger.Debug().Int("indexers", len(infos)).Msg("Indexer health refreshed")
	return nil
}

// RegisterIndexerHealthTask registers the indexer health sweep with the scheduler.
func RegisterIndexerHealthTask(sched *scheduler.Scheduler, indexers *indexer.Service, healthSvc *health.Service, intervalMin int, logger zerolog.Logger) error {
	task := NewIndexerHealthTask(indexers, healthSvc, logger)

	if intervalMin <= 0 {
		intervalMin = 15
	}

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          IndexerHealthTaskID,
		Name:        "Indexer Health",
		Description: "Reflects indexer availability and backoff state in the health registry",
		Every:       time.Duration(intervalMin) * time.Minute,
		RunOnStart:  true,
		Func:        task.Run,
	})
}
