package store

import (
	"context"
	"database/sql"
	"time"
)

// Channels.

const channelColumns = `id, name, tvg_id, stream_url, group_name, logo_url, quality_score,
	enabled, created_at, updated_at`

func scanChannel(row interface{ Scan(...any) error }) (Channel, error) {
	var c Channel
	err := row.Scan(&c.ID, &c.Name, &c.TvgID, &c.StreamURL, &c.GroupName, &c.LogoURL,
		&c.QualityScore, &c.Enabled, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// CreateChannelParams holds the writable fields of a channel.
type CreateChannelParams struct {
	Name         string
	TvgID        string
	StreamURL    string
	GroupName    string
	LogoURL      string
	QualityScore int64
	Enabled      int64
}

func (q *Queries) CreateChannel(ctx context.Context, p CreateChannelParams) (Channel, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO channels (name, tvg_id, stream_url, group_name, logo_url, quality_score, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.TvgID, p.StreamURL, p.GroupName, p.LogoURL, p.QualityScore, p.Enabled)
	if err != nil {
		return Channel{}, err
	}
	id, err := lastInsertID(res)
	if err != nil {
		return Channel{}, err
	}
	return q.GetChannel(ctx, id)
}

func (q *Queries) GetChannel(ctx context.Context, id int64) (Channel, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+channelColumns+` FROM channels WHERE id = ?`, id)
	return scanChannel(row)
}

func (q *Queries) GetChannelByStreamURL(ctx context.Context, streamURL string) (Channel, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+channelColumns+` FROM channels WHERE stream_url = ?`, streamURL)
	return scanChannel(row)
}

func (q *Queries) ListChannels(ctx context.Context) ([]Channel, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+channelColumns+` FROM channels ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectChannels(rows)
}

func (q *Queries) ListEnabledChannels(ctx context.Context) ([]Channel, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+channelColumns+` FROM channels WHERE enabled = 1 ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectChannels(rows)
}

func collectChannels(rows *sql.Rows) ([]Channel, error) {
	var channels []Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, c)
	}
	return channels, rows.Err()
}

// UpdateChannelParams holds the mutable fields of a channel.
type UpdateChannelParams struct {
	ID           int64
	Name         string
	TvgID        string
	StreamURL    string
	GroupName    string
	LogoURL      string
	QualityScore int64
	Enabled      int64
}

func (q *Queries) UpdateChannel(ctx context.Context, p UpdateChannelParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE channels SET name = ?, tvg_id = ?, stream_url = ?, group_name = ?, logo_url = ?,
			quality_score = ?, enabled = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		p.Name, p.TvgID, p.StreamURL, p.GroupName, p.LogoURL, p.QualityScore, p.Enabled, p.ID)
	return err
}

func (q *Queries) DeleteChannel(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM channels WHERE id = ?`, id)
	return err
}

// League to channel mappings.

func (q *Queries) CreateLeagueChannel(ctx context.Context, league string, channelID, priority int64) (LeagueChannel, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO league_channels (league, channel_id, priority) VALUES (?, ?, ?)`,
		league, channelID, priority)
	if err != nil {
		return LeagueChannel{}, err
	}
	id, err := lastInsertID(res)
	if err != nil {
		return LeagueChannel{}, err
	}

	var lc LeagueChannel
	err = q.db.QueryRowContext(ctx,
		`SELECT id, league, channel_id, priority, created_at FROM league_channels WHERE id = ?`, id).
		Scan(&lc.ID, &lc.League, &lc.ChannelID, &lc.Priority, &lc.CreatedAt)
	return lc, err
}

func (q *Queries) ListLeagueChannels(ctx context.Context, league string) ([]LeagueChannel, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, league, channel_id, priority, created_at FROM league_channels
		WHERE league = ?
		ORDER BY priority DESC, id`, league)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLeagueChannels(rows)
}

func (q *Queries) ListAllLeagueChannels(ctx context.Context) ([]LeagueChannel, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, league, channel_id, priority, created_at FROM league_channels
		ORDER BY league, priority DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLeagueChannels(rows)
}

func collectLeagueChannels(rows *sql.Rows) ([]LeagueChannel, error) {
	var mappings []LeagueChannel
	for rows.Next() {
		var lc LeagueChannel
		if err := rows.Scan(&lc.ID, &lc.League, &lc.ChannelID, &lc.Priority, &lc.CreatedAt); err != nil {
			return nil, err
		}
		mappings = append(mappings, lc)
	}
	return mappings, rows.Err()
}

func (q *Queries) DeleteLeagueChannel(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM league_channels WHERE id = ?`, id)
	return err
}

// EPG programs.

const programColumns = `id, channel_tvg_id, title, subtitle, description, category, is_sports,
	start_time, end_time, created_at`

func scanProgram(row interface{ Scan(...any) error }) (EPGProgram, error) {
	var p EPGProgram
	err := row.Scan(&p.ID, &p.ChannelTvgID, &p.Title, &p.Subtitle, &p.Description, &p.Category,
		&p.IsSports, &p.StartTime, &p.EndTime, &p.CreatedAt)
	return p, err
}

// UpsertEPGProgramParams holds one guide entry.
type UpsertEPGProgramParams struct {
	ChannelTvgID string
	Title        string
	Subtitle     string
	Description  string
	Category     string
	IsSports     int64
	StartTime    time.Time
	EndTime      time.Time
}

func (q *Queries) UpsertEPGProgram(ctx context.Context, p UpsertEPGProgramParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO epg_programs (channel_tvg_id, title, subtitle, description, category, is_sports, start_time, end_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (channel_tvg_id, start_time, title) DO UPDATE SET
			subtitle = excluded.subtitle,
			description = excluded.description,
			category = excluded.category,
			is_sports = excluded.is_sports,
			end_time = excluded.end_time`,
		p.ChannelTvgID, p.Title, p.Subtitle, p.Description, p.Category, p.IsSports, p.StartTime, p.EndTime)
	return err
}

func (q *Queries) GetEPGProgram(ctx context.Context, id int64) (EPGProgram, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+programColumns+` FROM epg_programs WHERE id = ?`, id)
	return scanProgram(row)
}

// ListEPGProgramsForChannel returns programs on a channel overlapping [start, end).
func (q *Queries) ListEPGProgramsForChannel(ctx context.Context, tvgID string, start, end time.Time) ([]EPGProgram, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+programColumns+` FROM epg_programs
		WHERE channel_tvg_id = ? AND end_time > ? AND start_time < ?
		ORDER BY start_time`, tvgID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var programs []EPGProgram
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		programs = append(programs, p)
	}
	return programs, rows.Err()
}

func (q *Queries) CountEPGPrograms(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM epg_programs`).Scan(&n)
	return n, err
}

// DeleteEPGProgramsBefore removes guide entries that ended before the cutoff.
func (q *Queries) DeleteEPGProgramsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM epg_programs WHERE end_time < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Recordings.

const recordingColumns = `id, event_id, part_id, channel_id, program_id, title, job_id,
	scheduled_start, scheduled_end, actual_start, actual_end, output_path, file_size,
	match_score, status, error_message, created_at, updated_at`

func scanRecording(row interface{ Scan(...any) error }) (Recording, error) {
	var r Recording
	err := row.Scan(
		&r.ID, &r.EventID, &r.PartID, &r.ChannelID, &r.ProgramID, &r.Title, &r.JobID,
		&r.ScheduledStart, &r.ScheduledEnd, &r.ActualStart, &r.ActualEnd, &r.OutputPath,
		&r.FileSize, &r.MatchScore, &r.Status, &r.ErrorMessage, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

// CreateRecordingParams holds the writable fields of a recording.
type CreateRecordingParams struct {
	EventID        int64
	PartID         sql.NullInt64
	ChannelID      int64
	ProgramID      sql.NullInt64
	Title          string
	JobID          string
	ScheduledStart time.Time
	ScheduledEnd   time.Time
	MatchScore     int64
	Status         string
}

func (q *Queries) CreateRecording(ctx context.Context, p CreateRecordingParams) (Recording, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO dvr_recordings (event_id, part_id, channel_id, program_id, title, job_id,
			scheduled_start, scheduled_end, match_score, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.EventID, p.PartID, p.ChannelID, p.ProgramID, p.Title, p.JobID,
		p.ScheduledStart, p.ScheduledEnd, p.MatchScore, p.Status)
	if err != nil {
		return Recording{}, err
	}
	id, err := lastInsertID(res)
	if err != nil {
		return Recording{}, err
	}
	return q.GetRecording(ctx, id)
}

func (q *Queries) GetRecording(ctx context.Context, id int64) (Recording, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+recordingColumns+` FROM dvr_recordings WHERE id = ?`, id)
	return scanRecording(row)
}

// GetRecordingByOutputPath resolves a capture file back to its recording.
// Newest row wins when a path was reused.
func (q *Queries) GetRecordingByOutputPath(ctx context.Context, path string) (Recording, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+recordingColumns+` FROM dvr_recordings
		WHERE output_path = ?
		ORDER BY id DESC
		LIMIT 1`, path)
	return scanRecording(row)
}

func (q *Queries) ListRecordings(ctx context.Context) ([]Recording, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+recordingColumns+` FROM dvr_recordings ORDER BY scheduled_start DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecordings(rows)
}

// ListRecordingsBetween returns recordings whose window overlaps [start, end).
func (q *Queries) ListRecordingsBetween(ctx context.Context, start, end time.Time) ([]Recording, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+recordingColumns+` FROM dvr_recordings
		WHERE scheduled_start < ? AND scheduled_end > ?
		ORDER BY scheduled_start`, end, start)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecordings(rows)
}

func (q *Queries) ListRecordingsByStatus(ctx context.Context, status string) ([]Recording, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+recordingColumns+` FROM dvr_recordings
		WHERE status = ?
		ORDER BY scheduled_start`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecordings(rows)
}

// ListActiveRecordingsForEvent returns recordings for an event that are
// scheduled, recording, or completed but not yet imported.
func (q *Queries) ListActiveRecordingsForEvent(ctx context.Context, eventID int64) ([]Recording, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+recordingColumns+` FROM dvr_recordings
		WHERE event_id = ? AND status IN ('scheduled', 'recording', 'completed')
		ORDER BY scheduled_start`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecordings(rows)
}

// CountRecordingsForProgram reports whether a guide program already has a
// recording attached, in any non-failed state.
func (q *Queries) CountRecordingsForProgram(ctx context.Context, programID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM dvr_recordings
		WHERE program_id = ? AND status IN ('scheduled', 'recording', 'completed', 'imported')`,
		programID).Scan(&n)
	return n, err
}

func collectRecordings(rows *sql.Rows) ([]Recording, error) {
	var recordings []Recording
	for rows.Next() {
		r, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recordings = append(recordings, r)
	}
	return recordings, rows.Err()
}

func (q *Queries) UpdateRecordingStatus(ctx context.Context, id int64, status, errorMessage string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE dvr_recordings SET status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, status, errorMessage, id)
	return err
}

func (q *Queries) UpdateRecordingStarted(ctx context.Context, id int64, startedAt time.Time, outputPath string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE dvr_recordings SET status = 'recording', actual_start = ?, output_path = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, startedAt, outputPath, id)
	return err
}

func (q *Queries) UpdateRecordingFinished(ctx context.Context, id int64, endedAt time.Time, fileSize int64, status string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE dvr_recordings SET status = ?, actual_end = ?, file_size = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, status, endedAt, fileSize, id)
	return err
}

func (q *Queries) DeleteRecording(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM dvr_recordings WHERE id = ?`, id)
	return err
}
