package store

import (
	"context"
	"database/sql"
	"time"
)

const historyColumns = `id, event_id, event_type, source_title, data, created_at`

func scanHistoryEntry(row interface{ Scan(...any) error }) (HistoryEntry, error) {
	var h HistoryEntry
	err := row.Scan(&h.ID, &h.EventID, &h.EventType, &h.SourceTitle, &h.Data, &h.CreatedAt)
	return h, err
}

// CreateHistoryEntryParams holds one history record. Data is a JSON payload.
type CreateHistoryEntryParams struct {
	EventID     sql.NullInt64
	EventType   string
	SourceTitle string
	Data        string
}

func (q *Queries) CreateHistoryEntry(ctx context.Context, p CreateHistoryEntryParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO history (event_id, event_type, source_title, data)
		VALUES (?, ?, ?, ?)`,
		p.EventID, p.EventType, p.SourceTitle, p.Data)
	return err
}

func (q *Queries) ListHistory(ctx context.Context, limit, offset int64) ([]HistoryEntry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+historyColumns+` FROM history
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectHistory(rows)
}

func (q *Queries) ListHistoryByType(ctx context.Context, eventType string, limit, offset int64) ([]HistoryEntry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+historyColumns+` FROM history
		WHERE event_type = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, eventType, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectHistory(rows)
}

func (q *Queries) ListHistoryForEvent(ctx context.Context, eventID int64) ([]HistoryEntry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+historyColumns+` FROM history
		WHERE event_id = ?
		ORDER BY created_at DESC, id DESC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectHistory(rows)
}

func collectHistory(rows *sql.Rows) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	for rows.Next() {
		h, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, h)
	}
	return entries, rows.Err()
}

func (q *Queries) CountHistory(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history`).Scan(&n)
	return n, err
}

func (q *Queries) CountHistoryByType(ctx context.Context, eventType string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM history WHERE event_type = ?`, eventType).Scan(&n)
	return n, err
}

func (q *Queries) DeleteAllHistory(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM history`)
	return err
}

// DeleteOldHistory removes entries created before the cutoff and reports
// how many rows went away. created_at is written by CURRENT_TIMESTAMP, so
// the cutoff is compared in the same UTC text form.
func (q *Queries) DeleteOldHistory(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM history WHERE created_at < ?`,
		cutoff.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
