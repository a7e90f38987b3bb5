package search

import (
	"context"
	"errors"
	"time"

	"github.com/sideline/sideline/internal/store"
)

const (
	// Cooldown between automatic searches for the same event.
	recentCooldown = time.Hour
	// Events past this age get the long cooldown; if nothing surfaced in
	// a week of hourly searches, hourly retries are waste.
	staleAge      = 7 * 24 * time.Hour
	staleCooldown = 24 * time.Hour
	// Events further out than this are not searched at all; a release
	// cannot exist before the event happens.
	searchHorizon = 24 * time.Hour
)

// SearchAll runs one planner pass: every monitored event that is due gets
// a cache-first search, with indexer queries once its broadcast window has
// opened. Manual searches bypass all timing rules.
func (s *Service) SearchAll(ctx context.Context) error {
	events, err := s.queries.ListMonitoredEvents(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	searched, grabbed := 0, 0
	for _, ev := range events {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		eligible, allowExternal := s.eligibility(ev, now)
		if !eligible {
			continue
		}

		evCtx, cancel := context.WithCancel(ctx)
		if !s.register(ev.ID, cancel) {
			cancel()
			continue
		}
		result, err := s.searchEvent(evCtx, ev, allowExternal)
		s.unregister(ev.ID)
		cancel()

		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			s.logger.Warn().Err(err).Int64("eventId", ev.ID).Str("title", ev.Title).Msg("planner search failed")
			continue
		}
		searched++
		grabbed += len(result.Grabbed)
	}

	if searched > 0 || grabbed > 0 {
		s.logger.Info().
			Int("monitored", len(events)).
			Int("searched", searched).
			Int("grabbed", grabbed).
			Msg("planner pass complete")
	}
	return nil
}

// eligibility applies the planner's timing rules to one event. The first
// return is whether to search at all, the second whether indexer queries
// are allowed yet.
func (s *Service) eligibility(ev store.Event, now time.Time) (bool, bool) {
	if ev.EventDate.After(now.Add(searchHorizon)) {
		return false, false
	}

	if ev.LastSearchAt.Valid {
		cooldown := recentCooldown
		if now.Sub(ev.EventDate) > staleAge {
			cooldown = staleCooldown
		}
		if now.Sub(ev.LastSearchAt.Time) < cooldown {
			return false, false
		}
	}

	// Scene releases land shortly after broadcast. Until the window
	// opens only the cache is consulted.
	gate := ev.EventDate
	if ev.BroadcastAt.Valid {
		gate = ev.BroadcastAt.Time
	}
	allowExternal := now.After(gate.Add(-s.cfg.BroadcastWindow))
	return true, allowExternal
}
