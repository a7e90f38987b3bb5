package store

import (
	"context"
	"database/sql"
	"time"
)

const clientColumns = `id, name, type, host, port, use_ssl, url_base, username, password,
	api_key, category, priority, enabled, remove_completed, remove_failed, created_at, updated_at`

func scanClient(row interface{ Scan(...any) error }) (DownloadClient, error) {
	var c DownloadClient
	err := row.Scan(
		&c.ID, &c.Name, &c.Type, &c.Host, &c.Port, &c.UseSSL, &c.URLBase, &c.Username, &c.Password,
		&c.APIKey, &c.Category, &c.Priority, &c.Enabled, &c.RemoveCompleted, &c.RemoveFailed,
		&c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

// CreateDownloadClientParams holds the writable fields of a download client.
type CreateDownloadClientParams struct {
	Name            string
	Type            string
	Host            string
	Port            int64
	UseSSL          int64
	URLBase         string
	Username        string
	Password        string
	APIKey          string
	Category        string
	Priority        int64
	Enabled         int64
	RemoveCompleted int64
	RemoveFailed    int64
}

func (q *Queries) CreateDownloadClient(ctx context.Context, p CreateDownloadClientParams) (DownloadClient, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO download_clients (name, type, host, port, use_ssl, url_base, username, password,
			api_key, category, priority, enabled, remove_completed, remove_failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Type, p.Host, p.Port, p.UseSSL, p.URLBase, p.Username, p.Password,
		p.APIKey, p.Category, p.Priority, p.Enabled, p.RemoveCompleted, p.RemoveFailed,
	)
	if err != nil {
		return DownloadClient{}, err
	}
	id, err := lastInsertID(res)
	if err != nil {
		return DownloadClient{}, err
	}
	return q.GetDownloadClient(ctx, id)
}

func (q *Queries) GetDownloadClient(ctx context.Context, id int64) (DownloadClient, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM download_clients WHERE id = ?`, id)
	return scanClient(row)
}

func (q *Queries) ListDownloadClients(ctx context.Context) ([]DownloadClient, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+clientColumns+` FROM download_clients ORDER BY priority, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectClients(rows)
}

func (q *Queries) ListEnabledDownloadClients(ctx context.Context) ([]DownloadClient, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM download_clients WHERE enabled = 1 ORDER BY priority, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectClients(rows)
}

func collectClients(rows *sql.Rows) ([]DownloadClient, error) {
	var clients []DownloadClient
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// UpdateDownloadClientParams holds the mutable fields of a download client.
type UpdateDownloadClientParams struct {
	ID              int64
	Name            string
	Type            string
	Host            string
	Port            int64
	UseSSL          int64
	URLBase         string
	Username        string
	Password        string
	APIKey          string
	Category        string
	Priority        int64
	Enabled         int64
	RemoveCompleted int64
	RemoveFailed    int64
}

func (q *Queries) UpdateDownloadClient(ctx context.Context, p UpdateDownloadClientParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE download_clients SET name = ?, type = ?, host = ?, port = ?, use_ssl = ?, url_base = ?,
			username = ?, password = ?, api_key = ?, category = ?, priority = ?, enabled = ?,
			remove_completed = ?, remove_failed = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		p.Name, p.Type, p.Host, p.Port, p.UseSSL, p.URLBase,
		p.Username, p.Password, p.APIKey, p.Category, p.Priority, p.Enabled,
		p.RemoveCompleted, p.RemoveFailed, p.ID,
	)
	return err
}

func (q *Queries) DeleteDownloadClient(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM download_clients WHERE id = ?`, id)
	return err
}

// Download queue.

const queueColumns = `id, event_id, part_id, client_id, download_id, title, guid, info_hash,
	indexer_id, indexer_name, protocol, download_url, category, size, downloaded, progress,
	time_remaining_secs, status, status_message, missing_count, retry_count, quality,
	quality_score, format_score, output_path, last_progress_at, grabbed_at, imported_at,
	created_at, updated_at`

func scanQueueItem(row interface{ Scan(...any) error }) (QueueItem, error) {
	var it QueueItem
	err := row.Scan(
		&it.ID, &it.EventID, &it.PartID, &it.ClientID, &it.DownloadID, &it.Title, &it.GUID, &it.InfoHash,
		&it.IndexerID, &it.IndexerName, &it.Protocol, &it.DownloadURL, &it.Category, &it.Size,
		&it.Downloaded, &it.Progress, &it.TimeRemainingSecs, &it.Status, &it.StatusMessage,
		&it.MissingCount, &it.RetryCount, &it.Quality, &it.QualityScore, &it.FormatScore,
		&it.OutputPath, &it.LastProgressAt, &it.GrabbedAt, &it.ImportedAt, &it.CreatedAt, &it.UpdatedAt,
	)
	return it, err
}

// CreateQueueItemParams holds the writable fields of a queue item.
type CreateQueueItemParams struct {
	EventID      int64
	PartID       sql.NullInt64
	ClientID     int64
	DownloadID   string
	Title        string
	GUID         string
	InfoHash     string
	IndexerID    int64
	IndexerName  string
	Protocol     string
	DownloadURL  string
	Category     string
	Size         int64
	Status       string
	RetryCount   int64
	Quality      string
	QualityScore int64
	FormatScore  int64
}

func (q *Queries) CreateQueueItem(ctx context.Context, p CreateQueueItemParams) (QueueItem, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO download_queue (event_id, part_id, client_id, download_id, title, guid, info_hash,
			indexer_id, indexer_name, protocol, download_url, category, size, status, retry_count,
			quality, quality_score, format_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.EventID, p.PartID, p.ClientID, p.DownloadID, p.Title, p.GUID, p.InfoHash,
		p.IndexerID, p.IndexerName, p.Protocol, p.DownloadURL, p.Category, p.Size, p.Status,
		p.RetryCount, p.Quality, p.QualityScore, p.FormatScore,
	)
	if err != nil {
		return QueueItem{}, err
	}
	id, err := lastInsertID(res)
	if err != nil {
		return QueueItem{}, err
	}
	return q.GetQueueItem(ctx, id)
}

func (q *Queries) GetQueueItem(ctx context.Context, id int64) (QueueItem, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+queueColumns+` FROM download_queue WHERE id = ?`, id)
	return scanQueueItem(row)
}

func (q *Queries) ListQueueItems(ctx context.Context) ([]QueueItem, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+queueColumns+` FROM download_queue ORDER BY grabbed_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectQueueItems(rows)
}

// ListUnimportedQueueItems returns items still being tracked by the monitor.
func (q *Queries) ListUnimportedQueueItems(ctx context.Context) ([]QueueItem, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+queueColumns+` FROM download_queue
		WHERE imported_at IS NULL
		ORDER BY grabbed_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectQueueItems(rows)
}

func (q *Queries) ListQueueItemsForEvent(ctx context.Context, eventID int64) ([]QueueItem, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+queueColumns+` FROM download_queue
		WHERE event_id = ?
		ORDER BY grabbed_at DESC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectQueueItems(rows)
}

func collectQueueItems(rows *sql.Rows) ([]QueueItem, error) {
	var items []QueueItem
	for rows.Next() {
		it, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateQueueProgressParams carries one poll cycle's worth of client state.
type UpdateQueueProgressParams struct {
	ID                int64
	DownloadID        string
	Size              int64
	Downloaded        int64
	Progress          float64
	TimeRemainingSecs int64
	Status            string
	StatusMessage     string
	OutputPath        string
	LastProgressAt    sql.NullTime
}

func (q *Queries) UpdateQueueItemProgress(ctx context.Context, p UpdateQueueProgressParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE download_queue SET download_id = ?, size = ?, downloaded = ?, progress = ?,
			time_remaining_secs = ?, status = ?, status_message = ?, output_path = ?,
			last_progress_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		p.DownloadID, p.Size, p.Downloaded, p.Progress,
		p.TimeRemainingSecs, p.Status, p.StatusMessage, p.OutputPath,
		p.LastProgressAt, p.ID,
	)
	return err
}

func (q *Queries) UpdateQueueItemStatus(ctx context.Context, id int64, status, message string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE download_queue SET status = ?, status_message = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, status, message, id)
	return err
}

func (q *Queries) UpdateQueueItemMissingCount(ctx context.Context, id, count int64) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE download_queue SET missing_count = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, count, id)
	return err
}

func (q *Queries) MarkQueueItemImported(ctx context.Context, id int64, importedAt time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE download_queue SET imported_at = ?, status = 'imported', updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, importedAt, id)
	return err
}

func (q *Queries) UpdateQueueItemRetryCount(ctx context.Context, id, count int64) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE download_queue SET retry_count = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, count, id)
	return err
}

func (q *Queries) DeleteQueueItem(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM download_queue WHERE id = ?`, id)
	return err
}
