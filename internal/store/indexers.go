package store

import (
	"context"
	"database/sql"
	"time"
)

const indexerColumns = `id, name, implementation, base_url, api_path, api_key, categories,
	protocol, enabled, rss_enabled, priority, query_limit, grab_limit, request_delay_ms,
	seed_ratio, created_at, updated_at`

func scanIndexer(row interface{ Scan(...any) error }) (Indexer, error) {
	var ix Indexer
	err := row.Scan(
		&ix.ID, &ix.Name, &ix.Implementation, &ix.BaseURL, &ix.APIPath, &ix.APIKey, &ix.Categories,
		&ix.Protocol, &ix.Enabled, &ix.RSSEnabled, &ix.Priority, &ix.QueryLimit, &ix.GrabLimit,
		&ix.RequestDelayMs, &ix.SeedRatio, &ix.CreatedAt, &ix.UpdatedAt,
	)
	return ix, err
}

// CreateIndexerParams holds the writable fields of an indexer.
type CreateIndexerParams struct {
	Name           string
	Implementation string
	BaseURL        string
	APIPath        string
	APIKey         string
	Categories     string
	Protocol       string
	Enabled        int64
	RSSEnabled     int64
	Priority       int64
	QueryLimit     int64
	GrabLimit      int64
	RequestDelayMs int64
	SeedRatio      float64
}

func (q *Queries) CreateIndexer(ctx context.Context, p CreateIndexerParams) (Indexer, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO indexers (name, implementation, base_url, api_path, api_key, categories,
			protocol, enabled, rss_enabled, priority, query_limit, grab_limit, request_delay_ms, seed_ratio)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Implementation, p.BaseURL, p.APIPath, p.APIKey, p.Categories,
		p.Protocol, p.Enabled, p.RSSEnabled, p.Priority, p.QueryLimit, p.GrabLimit,
		p.RequestDelayMs, p.SeedRatio,
	)
	if err != nil {
		return Indexer{}, err
	}
	id, err := lastInsertID(res)
	if err != nil {
		return Indexer{}, err
	}
	return q.GetIndexer(ctx, id)
}

func (q *Queries) GetIndexer(ctx context.Context, id int64) (Indexer, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+indexerColumns+` FROM indexers WHERE id = ?`, id)
	return scanIndexer(row)
}

func (q *Queries) ListIndexers(ctx context.Context) ([]Indexer, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+indexerColumns+` FROM indexers ORDER BY priority, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIndexers(rows)
}

func (q *Queries) ListEnabledIndexers(ctx context.Context) ([]Indexer, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+indexerColumns+` FROM indexers WHERE enabled = 1 ORDER BY priority, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIndexers(rows)
}

func collectIndexers(rows *sql.Rows) ([]Indexer, error) {
	var indexers []Indexer
	for rows.Next() {
		ix, err := scanIndexer(rows)
		if err != nil {
			return nil, err
		}
		indexers = append(indexers, ix)
	}
	return indexers, rows.Err()
}

// UpdateIndexerParams holds the mutable fields of an indexer.
type UpdateIndexerParams struct {
	ID             int64
	Name           string
	Implementation string
	BaseURL        string
	APIPath        string
	APIKey         string
	Categories     string
	Protocol       string
	Enabled        int64
	RSSEnabled     int64
	Priority       int64
	QueryLimit     int64
	GrabLimit      int64
	RequestDelayMs int64
	SeedRatio      float64
}

func (q *Queries) UpdateIndexer(ctx context.Context, p UpdateIndexerParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE indexers SET name = ?, implementation = ?, base_url = ?, api_path = ?, api_key = ?,
			categories = ?, protocol = ?, enabled = ?, rss_enabled = ?, priority = ?,
			query_limit = ?, grab_limit = ?, request_delay_ms = ?, seed_ratio = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		p.Name, p.Implementation, p.BaseURL, p.APIPath, p.APIKey,
		p.Categories, p.Protocol, p.Enabled, p.RSSEnabled, p.Priority,
		p.QueryLimit, p.GrabLimit, p.RequestDelayMs, p.SeedRatio, p.ID,
	)
	return err
}

func (q *Queries) DeleteIndexer(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM indexers WHERE id = ?`, id)
	return err
}

// Indexer status.

const indexerStatusColumns = `indexer_id, consecutive_failures, last_failure_at, last_failure_reason,
	last_success_at, disabled_until, rate_limited_until, queries_this_hour, grabs_this_hour,
	hour_reset_at, updated_at`

// GetIndexerStatus returns the status row for an indexer, or a zeroed row
// when none has been written yet.
func (q *Queries) GetIndexerStatus(ctx context.Context, indexerID int64) (IndexerStatus, error) {
	var s IndexerStatus
	err := q.db.QueryRowContext(ctx,
		`SELECT `+indexerStatusColumns+` FROM indexer_status WHERE indexer_id = ?`, indexerID).
		Scan(&s.IndexerID, &s.ConsecutiveFailures, &s.LastFailureAt, &s.LastFailureReason,
			&s.LastSuccessAt, &s.DisabledUntil, &s.RateLimitedUntil, &s.QueriesThisHour,
			&s.GrabsThisHour, &s.HourResetAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return IndexerStatus{IndexerID: indexerID, UpdatedAt: time.Now().UTC()}, nil
	}
	return s, err
}

// UpsertIndexerStatusParams is a full status row write.
type UpsertIndexerStatusParams struct {
	IndexerID           int64
	ConsecutiveFailures int64
	LastFailureAt       sql.NullTime
	LastFailureReason   string
	LastSuccessAt       sql.NullTime
	DisabledUntil       sql.NullTime
	RateLimitedUntil    sql.NullTime
	QueriesThisHour     int64
	GrabsThisHour       int64
	HourResetAt         sql.NullTime
}

func (q *Queries) UpsertIndexerStatus(ctx context.Context, p UpsertIndexerStatusParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO indexer_status (indexer_id, consecutive_failures, last_failure_at, last_failure_reason,
			last_success_at, disabled_until, rate_limited_until, queries_this_hour, grabs_this_hour, hour_reset_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (indexer_id) DO UPDATE SET
			consecutive_failures = excluded.consecutive_failures,
			last_failure_at = excluded.last_failure_at,
			last_failure_reason = excluded.last_failure_reason,
			last_success_at = excluded.last_success_at,
			disabled_until = excluded.disabled_until,
			rate_limited_until = excluded.rate_limited_until,
			queries_this_hour = excluded.queries_this_hour,
			grabs_this_hour = excluded.grabs_this_hour,
			hour_reset_at = excluded.hour_reset_at,
			updated_at = CURRENT_TIMESTAMP`,
		p.IndexerID, p.ConsecutiveFailures, p.LastFailureAt, p.LastFailureReason,
		p.LastSuccessAt, p.DisabledUntil, p.RateLimitedUntil, p.QueriesThisHour,
		p.GrabsThisHour, p.HourResetAt,
	)
	return err
}

func (q *Queries) DeleteIndexerStatus(ctx context.Context, indexerID int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM indexer_status WHERE indexer_id = ?`, indexerID)
	return err
}
