package store

import "context"

const blocklistColumns = `id, event_id, title, info_hash, indexer_name, protocol, reason, added_at`

func scanBlocklistEntry(row interface{ Scan(...any) error }) (BlocklistEntry, error) {
	var b BlocklistEntry
	err := row.Scan(&b.ID, &b.EventID, &b.Title, &b.InfoHash, &b.IndexerName, &b.Protocol, &b.Reason, &b.AddedAt)
	return b, err
}

// CreateBlocklistEntryParams holds the writable fields of a blocklist entry.
type CreateBlocklistEntryParams struct {
	EventID     int64
	Title       string
	InfoHash    string
	IndexerName string
	Protocol    string
	Reason      string
}

func (q *Queries) CreateBlocklistEntry(ctx context.Context, p CreateBlocklistEntryParams) (BlocklistEntry, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO blocklist (event_id, title, info_hash, indexer_name, protocol, reason)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.EventID, p.Title, p.InfoHash, p.IndexerName, p.Protocol, p.Reason)
	if err != nil {
		return BlocklistEntry{}, err
	}
	id, err := lastInsertID(res)
	if err != nil {
		return BlocklistEntry{}, err
	}
	row := q.db.QueryRowContext(ctx, `SELECT `+blocklistColumns+` FROM blocklist WHERE id = ?`, id)
	return scanBlocklistEntry(row)
}

// CountBlocklistByHash reports whether an infohash is already blocked for an event.
func (q *Queries) CountBlocklistByHash(ctx context.Context, eventID int64, infoHash string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blocklist WHERE event_id = ? AND info_hash = ? AND info_hash != ''`,
		eventID, infoHash).Scan(&n)
	return n, err
}

// CountBlocklistByTitle reports whether a release title from an indexer is
// already blocked for an event. Used when no infohash is known.
func (q *Queries) CountBlocklistByTitle(ctx context.Context, eventID int64, indexerName, title string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blocklist WHERE event_id = ? AND indexer_name = ? AND title = ?`,
		eventID, indexerName, title).Scan(&n)
	return n, err
}

func (q *Queries) ListBlocklist(ctx context.Context, limit int64) ([]BlocklistEntry, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+blocklistColumns+` FROM blocklist ORDER BY added_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []BlocklistEntry
	for rows.Next() {
		b, err := scanBlocklistEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, b)
	}
	return entries, rows.Err()
}

func (q *Queries) ListBlocklistForEvent(ctx context.Context, eventID int64) ([]BlocklistEntry, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+blocklistColumns+` FROM blocklist WHERE event_id = ? ORDER BY added_at DESC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []BlocklistEntry
	for rows.Next() {
		b, err := scanBlocklistEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, b)
	}
	return entries, rows.Err()
}

func (q *Queries) DeleteBlocklistEntry(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM blocklist WHERE id = ?`, id)
	return err
}

func (q *Queries) DeleteBlocklistForEvent(ctx context.Context, eventID int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM blocklist WHERE event_id = ?`, eventID)
	return err
}
