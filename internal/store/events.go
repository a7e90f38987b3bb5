package store

import (
	"context"
	"database/sql"
	"time"
)

const eventColumns = `id, title, sort_title, sport, league, season, event_number,
	home_team, away_team, venue, event_date, broadcast_at, external_id, overview,
	monitored, quality_profile_id, root_folder_id, last_search_at, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (Event, error) {
	var e Event
	err := row.Scan(
		&e.ID, &e.Title, &e.SortTitle, &e.Sport, &e.League, &e.Season, &e.EventNumber,
		&e.HomeTeam, &e.AwayTeam, &e.Venue, &e.EventDate, &e.BroadcastAt, &e.ExternalID, &e.Overview,
		&e.Monitored, &e.QualityProfileID, &e.RootFolderID, &e.LastSearchAt, &e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

// CreateEventParams holds the writable fields of an event.
type CreateEventParams struct {
	Title            string
	SortTitle        string
	Sport            string
	League           string
	Season           string
	EventNumber      sql.NullInt64
	HomeTeam         string
	AwayTeam         string
	Venue            string
	EventDate        time.Time
	BroadcastAt      sql.NullTime
	ExternalID       string
	Overview         string
	Monitored        int64
	QualityProfileID sql.NullInt64
	RootFolderID     sql.NullInt64
}

func (q *Queries) CreateEvent(ctx context.Context, p CreateEventParams) (Event, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO events (title, sort_title, sport, league, season, event_number,
			home_team, away_team, venue, event_date, broadcast_at, external_id, overview,
			monitored, quality_profile_id, root_folder_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Title, p.SortTitle, p.Sport, p.League, p.Season, p.EventNumber,
		p.HomeTeam, p.AwayTeam, p.Venue, p.EventDate, p.BroadcastAt, p.ExternalID, p.Overview,
		p.Monitored, p.QualityProfileID, p.RootFolderID,
	)
	if err != nil {
		return Event{}, err
	}
	id, err := lastInsertID(res)
	if err != nil {
		return Event{}, err
	}
	return q.GetEvent(ctx, id)
}

func (q *Queries) GetEvent(ctx context.Context, id int64) (Event, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	return scanEvent(row)
}

func (q *Queries) GetEventByExternalID(ctx context.Context, externalID string) (Event, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE external_id = ?`, externalID)
	return scanEvent(row)
}

func (q *Queries) ListEvents(ctx context.Context) ([]Event, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY event_date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (q *Queries) ListMonitoredEvents(ctx context.Context) ([]Event, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events WHERE monitored = 1 ORDER BY event_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ListEventsBetween returns events whose date falls in [start, end).
func (q *Queries) ListEventsBetween(ctx context.Context, start, end time.Time) ([]Event, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE event_date >= ? AND event_date < ?
		ORDER BY event_date`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// UpdateEventParams holds the mutable fields of an event.
type UpdateEventParams struct {
	ID               int64
	Title            string
	SortTitle        string
	Sport            string
	League           string
	Season           string
	EventNumber      sql.NullInt64
	HomeTeam         string
	AwayTeam         string
	Venue            string
	EventDate        time.Time
	BroadcastAt      sql.NullTime
	Overview         string
	Monitored        int64
	QualityProfileID sql.NullInt64
	RootFolderID     sql.NullInt64
}

func (q *Queries) UpdateEvent(ctx context.Context, p UpdateEventParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE events SET title = ?, sort_title = ?, sport = ?, league = ?, season = ?,
			event_number = ?, home_team = ?, away_team = ?, venue = ?, event_date = ?,
			broadcast_at = ?, overview = ?, monitored = ?, quality_profile_id = ?,
			root_folder_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		p.Title, p.SortTitle, p.Sport, p.League, p.Season,
		p.EventNumber, p.HomeTeam, p.AwayTeam, p.Venue, p.EventDate,
		p.BroadcastAt, p.Overview, p.Monitored, p.QualityProfileID,
		p.RootFolderID, p.ID,
	)
	return err
}

func (q *Queries) UpdateEventMonitored(ctx context.Context, id int64, monitored int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE events SET monitored = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, monitored, id)
	return err
}

func (q *Queries) UpdateEventLastSearch(ctx context.Context, id int64, at time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE events SET last_search_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, at, id)
	return err
}

func (q *Queries) DeleteEvent(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	return err
}

func (q *Queries) CountEvents(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}

// Event parts.

func (q *Queries) CreateEventPart(ctx context.Context, eventID int64, name string, position int64) (EventPart, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO event_parts (event_id, name, position) VALUES (?, ?, ?)`, eventID, name, position)
	if err != nil {
		return EventPart{}, err
	}
	id, err := lastInsertID(res)
	if err != nil {
		return EventPart{}, err
	}
	return q.GetEventPart(ctx, id)
}

func (q *Queries) GetEventPart(ctx context.Context, id int64) (EventPart, error) {
	var p EventPart
	err := q.db.QueryRowContext(ctx,
		`SELECT id, event_id, name, position, monitored FROM event_parts WHERE id = ?`, id).
		Scan(&p.ID, &p.EventID, &p.Name, &p.Position, &p.Monitored)
	return p, err
}

func (q *Queries) ListEventParts(ctx context.Context, eventID int64) ([]EventPart, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, event_id, name, position, monitored FROM event_parts WHERE event_id = ? ORDER BY position`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parts []EventPart
	for rows.Next() {
		var p EventPart
		if err := rows.Scan(&p.ID, &p.EventID, &p.Name, &p.Position, &p.Monitored); err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}

func (q *Queries) UpdateEventPartMonitored(ctx context.Context, id int64, monitored int64) error {
	_, err := q.db.ExecContext(ctx, `UPDATE event_parts SET monitored = ? WHERE id = ?`, monitored, id)
	return err
}

func (q *Queries) DeleteEventPart(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM event_parts WHERE id = ?`, id)
	return err
}

// Event files.

const eventFileColumns = `id, event_id, part_id, path, size, quality, quality_score,
	format_score, source, release_title, video_codec, audio_codec, resolution,
	runtime_seconds, added_at`

func scanEventFile(row interface{ Scan(...any) error }) (EventFile, error) {
	var f EventFile
	err := row.Scan(
		&f.ID, &f.EventID, &f.PartID, &f.Path, &f.Size, &f.Quality, &f.QualityScore,
		&f.FormatScore, &f.Source, &f.ReleaseTitle, &f.VideoCodec, &f.AudioCodec, &f.Resolution,
		&f.RuntimeSeconds, &f.AddedAt,
	)
	return f, err
}

// CreateEventFileParams holds the writable fields of an event file.
type CreateEventFileParams struct {
	EventID        int64
	PartID         sql.NullInt64
	Path           string
	Size           int64
	Quality        string
	QualityScore   int64
	FormatScore    int64
	Source         string
	ReleaseTitle   string
	VideoCodec     string
	AudioCodec     string
	Resolution     string
	RuntimeSeconds int64
}

func (q *Queries) CreateEventFile(ctx context.Context, p CreateEventFileParams) (EventFile, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO event_files (event_id, part_id, path, size, quality, quality_score,
			format_score, source, release_title, video_codec, audio_codec, resolution, runtime_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.EventID, p.PartID, p.Path, p.Size, p.Quality, p.QualityScore,
		p.FormatScore, p.Source, p.ReleaseTitle, p.VideoCodec, p.AudioCodec, p.Resolution, p.RuntimeSeconds,
	)
	if err != nil {
		return EventFile{}, err
	}
	id, err := lastInsertID(res)
	if err != nil {
		return EventFile{}, err
	}
	row := q.db.QueryRowContext(ctx, `SELECT `+eventFileColumns+` FROM event_files WHERE id = ?`, id)
	return scanEventFile(row)
}

func (q *Queries) ListEventFiles(ctx context.Context, eventID int64) ([]EventFile, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+eventFileColumns+` FROM event_files WHERE event_id = ? ORDER BY added_at`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []EventFile
	for rows.Next() {
		f, err := scanEventFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (q *Queries) GetEventFileByPath(ctx context.Context, path string) (EventFile, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+eventFileColumns+` FROM event_files WHERE path = ?`, path)
	return scanEventFile(row)
}

func (q *Queries) DeleteEventFile(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM event_files WHERE id = ?`, id)
	return err
}

func (q *Queries) DeleteEventFilesForEvent(ctx context.Context, eventID int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM event_files WHERE event_id = ?`, eventID)
	return err
}
