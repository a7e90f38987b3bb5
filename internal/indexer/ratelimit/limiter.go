// Package ratelimit paces outbound requests to indexers.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Pacer enforces a minimum interval between consecutive requests to the
// same indexer. Hourly query and grab budgets are persisted by the status
// service; the pacer only keeps bursts of back-to-back requests apart.
type Pacer struct {
	logger zerolog.Logger

	mu       sync.Mutex
	limiters map[int64]*pacerEntry
}

type pacerEntry struct {
	limiter *rate.Limiter
	delayMs int64
}

// NewPacer creates a pacer with no per-indexer state.
func NewPacer(logger zerolog.Logger) *Pacer {
	return &Pacer{
		logger:   logger.With().Str("component", "pacer").Logger(),
		limiters: make(map[int64]*pacerEntry),
	}
}

// Wait blocks until the indexer's minimum request interval has elapsed,
// or the context is done. A delay of zero or less admits immediately.
// Changing an indexer's delay replaces its limiter on the next call.
func (p *Pacer) Wait(ctx context.Context, indexerID, delayMs int64) error {
	if delayMs <= 0 {
		return nil
	}

	p.mu.Lock()
	entry, ok := p.limiters[indexerID]
	if !ok || entry.delayMs != delayMs {
		entry = &pacerEntry{
			limiter: rate.NewLimiter(rate.Every(time.Duration(delayMs)*time.Millisecond), 1),
			delayMs: delayMs,
		}
		p.limiters[indexerID] = entry
	}
	p.mu.Unlock()

	start := time.Now()
	if err := entry.limiter.Wait(ctx); err != nil {
		return err
	}
	if waited := time.Since(start); waited > time.Second {
		p.logger.Debug().
			Int64("indexerId", indexerID).
			Dur("waited", waited).
			Msg("Paced indexer request")
	}
	return nil
}

// Forget drops pacing state for an indexer, typically after deletion.
func (p *Pacer) Forget(indexerID int64) {
	p.mu.Lock()
	delete(p.limiters, indexerID)
	p.mu.Unlock()
}
