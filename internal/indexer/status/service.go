// Package status tracks per-indexer health: consecutive-failure backoff,
// HTTP-429 cooldowns, and hourly query/grab budgets.
package status

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sideline/sideline/internal/indexer/types"
	"github.com/sideline/sideline/internal/store"
)

// backoffSchedule is indexed by min(consecutiveFailures-1, len-1).
var backoffSchedule = []time.Duration{
	5 * time.Minute,
	10 * time.Minute,
	20 * time.Minute,
	40 * time.Minute,
	time.Hour,
	2 * time.Hour,
	4 * time.Hour,
	8 * time.Hour,
	16 * time.Hour,
	24 * time.Hour,
}

const (
	defaultRateLimitCooldown = 5 * time.Minute
	maxRateLimitCooldown     = time.Hour
)

func backoffFor(consecutiveFailures int64) time.Duration {
	if consecutiveFailures < 1 {
		consecutiveFailures = 1
	}
	idx := int(consecutiveFailures - 1)
	if idx >= len(backoffSchedule) {
		idx = len(backoffSchedule) - 1
	}
	return backoffSchedule[idx]
}

// Availability says whether an indexer may be queried right now, and why
// not when it may not.
type Availability struct {
	OK               bool       `json:"ok"`
	Reason           string     `json:"reason,omitempty"`
	DisabledUntil    *time.Time `json:"disabledUntil,omitempty"`
	RateLimitedUntil *time.Time `json:"rateLimitedUntil,omitempty"`
	QueriesThisHour  int64      `json:"queriesThisHour"`
	GrabsThisHour    int64      `json:"grabsThisHour"`
}

// Service persists indexer health state. Counter updates run inside a
// transaction so the hourly rollover and the increment commit together.
type Service struct {
	db      *sql.DB
	queries *store.Queries
	logger  zerolog.Logger
}

// NewService creates a new status service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:      db,
		queries: store.New(db),
		logger:  logger.With().Str("component", "indexer-status").Logger(),
	}
}

// Get returns the persisted status row, zeroed when none exists yet.
func (s *Service) Get(ctx context.Context, indexerID int64) (store.IndexerStatus, error) {
	st, err := s.queries.GetIndexerStatus(ctx, indexerID)
	if err != nil {
		return store.IndexerStatus{}, fmt.Errorf("failed to get indexer status: %w", err)
	}
	return st, nil
}

// Check evaluates whether the indexer may be queried: it must be enabled,
// past any failure backoff and 429 cooldown, and under its hourly query
// budget.
func (s *Service) Check(ctx context.Context, ix store.Indexer) (Availability, error) {
	st, err := s.queries.GetIndexerStatus(ctx, ix.ID)
	if err != nil {
		return Availability{}, fmt.Errorf("failed to get indexer status: %w", err)
	}
	now := time.Now().UTC()

	avail := Availability{
		QueriesThisHour: effectiveCount(st.QueriesThisHour, st.HourResetAt, now),
		GrabsThisHour:   effectiveCount(st.GrabsThisHour, st.HourResetAt, now),
	}
	if st.DisabledUntil.Valid {
		avail.DisabledUntil = &st.DisabledUntil.Time
	}
	if st.RateLimitedUntil.Valid {
		avail.RateLimitedUntil = &st.RateLimitedUntil.Time
	}

	switch {
	case ix.Enabled == 0:
		avail.Reason = "indexer disabled"
	case st.DisabledUntil.Valid && now.Before(st.DisabledUntil.Time):
		avail.Reason = fmt.Sprintf("backing off until %s", st.DisabledUntil.Time.Format(time.RFC3339))
	case st.RateLimitedUntil.Valid && now.Before(st.RateLimitedUntil.Time):
		avail.Reason = fmt.Sprintf("rate limited until %s", st.RateLimitedUntil.Time.Format(time.RFC3339))
	case ix.QueryLimit > 0 && avail.QueriesThisHour >= ix.QueryLimit:
		avail.Reason = fmt.Sprintf("hourly query limit %d reached", ix.QueryLimit)
	default:
		avail.OK = true
	}
	return avail, nil
}

// effectiveCount is the counter value after an overdue rollover.
func effectiveCount(count int64, resetAt sql.NullTime, now time.Time) int64 {
	if !resetAt.Valid || !now.Before(resetAt.Time) {
		return 0
	}
	return count
}

// rolloverIfDue zeroes both counters once the hour window has lapsed and
// starts the next one.
func rolloverIfDue(st *store.IndexerStatus, now time.Time) {
	if st.HourResetAt.Valid && now.Before(st.HourResetAt.Time) {
		return
	}
	st.QueriesThisHour = 0
	st.GrabsThisHour = 0
	st.HourResetAt = sql.NullTime{Time: now.Add(time.Hour), Valid: true}
}

// OnSuccess clears failure state, stamps the success, and counts the query
// against the current hour window.
func (s *Service) OnSuccess(ctx context.Context, indexerID int64) error {
	now := time.Now().UTC()
	err := store.ExecTx(ctx, s.db, s.queries, func(q *store.Queries) error {
		st, err := q.GetIndexerStatus(ctx, indexerID)
		if err != nil {
			return err
		}
		rolloverIfDue(&st, now)
		return q.UpsertIndexerStatus(ctx, store.UpsertIndexerStatusParams{
			IndexerID:           indexerID,
			ConsecutiveFailures: 0,
			LastSuccessAt:       sql.NullTime{Time: now, Valid: true},
			RateLimitedUntil:    st.RateLimitedUntil,
			QueriesThisHour:     st.QueriesThisHour + 1,
			GrabsThisHour:       st.GrabsThisHour,
			HourResetAt:         st.HourResetAt,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to record indexer success: %w", err)
	}
	return nil
}

// OnFailure bumps the consecutive-failure count and disables the indexer
// for the scheduled backoff.
func (s *Service) OnFailure(ctx context.Context, indexerID int64, opErr error) error {
	now := time.Now().UTC()
	var failures int64
	var backoff time.Duration
	err := store.ExecTx(ctx, s.db, s.queries, func(q *store.Queries) error {
		st, err := q.GetIndexerStatus(ctx, indexerID)
		if err != nil {
			return err
		}
		rolloverIfDue(&st, now)
		failures = st.ConsecutiveFailures + 1
		backoff = backoffFor(failures)
		reason := ""
		if opErr != nil {
			reason = opErr.Error()
		}
		return q.UpsertIndexerStatus(ctx, store.UpsertIndexerStatusParams{
			IndexerID:           indexerID,
			ConsecutiveFailures: failures,
			LastFailureAt:       sql.NullTime{Time: now, Valid: true},
			LastFailureReason:   reason,
			LastSuccessAt:       st.LastSuccessAt,
			DisabledUntil:       sql.NullTime{Time: now.Add(backoff), Valid: true},
			RateLimitedUntil:    st.RateLimitedUntil,
			QueriesThisHour:     st.QueriesThisHour,
			GrabsThisHour:       st.GrabsThisHour,
			HourResetAt:         st.HourResetAt,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to record indexer failure: %w", err)
	}
	s.logger.Warn().
		Int64("indexerId", indexerID).
		Int64("consecutiveFailures", failures).
		Dur("backoff", backoff).
		Err(opErr).
		Msg("Indexer failure, backing off")
	return nil
}

// OnRateLimited applies a 429 cooldown without touching the failure count.
// A missing Retry-After falls back to five minutes; anything the server
// asks beyond an hour is capped.
func (s *Service) OnRateLimited(ctx context.Context, indexerID int64, retryAfter time.Duration) error {
	if retryAfter <= 0 {
		retryAfter = defaultRateLimitCooldown
	}
	if retryAfter > maxRateLimitCooldown {
		retryAfter = maxRateLimitCooldown
	}
	now := time.Now().UTC()
	err := store.ExecTx(ctx, s.db, s.queries, func(q *store.Queries) error {
		st, err := q.GetIndexerStatus(ctx, indexerID)
		if err != nil {
			return err
		}
		rolloverIfDue(&st, now)
		return q.UpsertIndexerStatus(ctx, store.UpsertIndexerStatusParams{
			IndexerID:           indexerID,
			ConsecutiveFailures: st.ConsecutiveFailures,
			LastFailureAt:       st.LastFailureAt,
			LastFailureReason:   st.LastFailureReason,
			LastSuccessAt:       st.LastSuccessAt,
			DisabledUntil:       st.DisabledUntil,
			RateLimitedUntil:    sql.NullTime{Time: now.Add(retryAfter), Valid: true},
			QueriesThisHour:     st.QueriesThisHour,
			GrabsThisHour:       st.GrabsThisHour,
			HourResetAt:         st.HourResetAt,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to record rate limit: %w", err)
	}
	s.logger.Warn().
		Int64("indexerId", indexerID).
		Dur("cooldown", retryAfter).
		Msg("Indexer rate limited")
	return nil
}

// OnGrab counts a grab against the current hour window. Grabs are budgeted
// separately from queries.
func (s *Service) OnGrab(ctx context.Context, indexerID int64) error {
	now := time.Now().UTC()
	err := store.ExecTx(ctx, s.db, s.queries, func(q *store.Queries) error {
		st, err := q.GetIndexerStatus(ctx, indexerID)
		if err != nil {
			return err
		}
		rolloverIfDue(&st, now)
		return q.UpsertIndexerStatus(ctx, store.UpsertIndexerStatusParams{
			IndexerID:           indexerID,
			ConsecutiveFailures: st.ConsecutiveFailures,
			LastFailureAt:       st.LastFailureAt,
			LastFailureReason:   st.LastFailureReason,
			LastSuccessAt:       st.LastSuccessAt,
			DisabledUntil:       st.DisabledUntil,
			RateLimitedUntil:    st.RateLimitedUntil,
			QueriesThisHour:     st.QueriesThisHour,
			GrabsThisHour:       st.GrabsThisHour + 1,
			HourResetAt:         st.HourResetAt,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to record grab: %w", err)
	}
	return nil
}

// Observe records the outcome of one indexer call. Rate-limit errors get
// the cooldown treatment and deliberately skip the failure ladder.
func (s *Service) Observe(ctx context.Context, indexerID int64, opErr error) error {
	if opErr == nil {
		return s.OnSuccess(ctx, indexerID)
	}
	var rl *types.RateLimitedError
	if errors.As(opErr, &rl) {
		return s.OnRateLimited(ctx, indexerID, rl.RetryAfter)
	}
	return s.OnFailure(ctx, indexerID, opErr)
}

// Reset clears failure state, cooldowns, and counters for an indexer.
func (s *Service) Reset(ctx context.Context, indexerID int64) error {
	if err := s.queries.DeleteIndexerStatus(ctx, indexerID); err != nil {
		return fmt.Errorf("failed to reset indexer status: %w", err)
	}
	s.logger.Info().Int64("indexerId", indexerID).Msg("Indexer status reset")
	return nil
}
