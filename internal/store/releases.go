package store

import (
	"context"
	"database/sql"
	"time"
)

const releaseColumns = `id, guid, title, search_terms, download_url, info_url, indexer_id,
	indexer_name, protocol, info_hash, size, seeders, leechers, quality, resolution, source,
	video_codec, audio_codec, release_group, sport_prefix, year, is_pack, from_rss,
	publish_date, cached_at, expires_at`

func scanRelease(row interface{ Scan(...any) error }) (CachedRelease, error) {
	var r CachedRelease
	err := row.Scan(
		&r.ID, &r.GUID, &r.Title, &r.SearchTerms, &r.DownloadURL, &r.InfoURL, &r.IndexerID,
		&r.IndexerName, &r.Protocol, &r.InfoHash, &r.Size, &r.Seeders, &r.Leechers, &r.Quality,
		&r.Resolution, &r.Source, &r.VideoCodec, &r.AudioCodec, &r.ReleaseGroup, &r.SportPrefix,
		&r.Year, &r.IsPack, &r.FromRSS, &r.PublishDate, &r.CachedAt, &r.ExpiresAt,
	)
	return r, err
}

// UpsertReleaseParams holds a full cache row. An existing guid is refreshed
// in place, which also extends its expiry.
type UpsertReleaseParams struct {
	GUID         string
	Title        string
	SearchTerms  string
	DownloadURL  string
	InfoURL      string
	IndexerID    int64
	IndexerName  string
	Protocol     string
	InfoHash     string
	Size         int64
	Seeders      int64
	Leechers     int64
	Quality      string
	Resolution   string
	Source       string
	VideoCodec   string
	AudioCodec   string
	ReleaseGroup string
	SportPrefix  string
	Year         int64
	IsPack       int64
	FromRSS      int64
	PublishDate  sql.NullTime
	CachedAt     time.Time
	ExpiresAt    time.Time
}

func (q *Queries) UpsertRelease(ctx context.Context, p UpsertReleaseParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO release_cache (guid, title, search_terms, download_url, info_url, indexer_id,
			indexer_name, protocol, info_hash, size, seeders, leechers, quality, resolution, source,
			video_codec, audio_codec, release_group, sport_prefix, year, is_pack, from_rss,
			publish_date, cached_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (guid) DO UPDATE SET
			title = excluded.title,
			search_terms = excluded.search_terms,
			download_url = excluded.download_url,
			info_url = excluded.info_url,
			indexer_id = excluded.indexer_id,
			indexer_name = excluded.indexer_name,
			protocol = excluded.protocol,
			info_hash = excluded.info_hash,
			size = excluded.size,
			seeders = excluded.seeders,
			leechers = excluded.leechers,
			quality = excluded.quality,
			resolution = excluded.resolution,
			source = excluded.source,
			video_codec = excluded.video_codec,
			audio_codec = excluded.audio_codec,
			release_group = excluded.release_group,
			sport_prefix = excluded.sport_prefix,
			year = excluded.year,
			is_pack = excluded.is_pack,
			from_rss = excluded.from_rss,
			publish_date = excluded.publish_date,
			cached_at = excluded.cached_at,
			expires_at = excluded.expires_at`,
		p.GUID, p.Title, p.SearchTerms, p.DownloadURL, p.InfoURL, p.IndexerID,
		p.IndexerName, p.Protocol, p.InfoHash, p.Size, p.Seeders, p.Leechers, p.Quality,
		p.Resolution, p.Source, p.VideoCodec, p.AudioCodec, p.ReleaseGroup, p.SportPrefix,
		p.Year, p.IsPack, p.FromRSS, p.PublishDate, p.CachedAt, p.ExpiresAt,
	)
	return err
}

func (q *Queries) GetReleaseByGUID(ctx context.Context, guid string) (CachedRelease, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+releaseColumns+` FROM release_cache WHERE guid = ?`, guid)
	return scanRelease(row)
}

// ListReleaseCandidates returns unexpired cache rows that could belong to an
// event in the given year. Rows without a parsed year always qualify; the
// sport prefix must agree when both sides carry one. Term matching happens in
// the caller.
func (q *Queries) ListReleaseCandidates(ctx context.Context, year int64, sportPrefix string, now time.Time) ([]CachedRelease, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+releaseColumns+` FROM release_cache
		WHERE expires_at > ?
		  AND (year = ? OR year = 0)
		  AND (? = '' OR sport_prefix = '' OR sport_prefix = ?)
		ORDER BY cached_at DESC`, now, year, sportPrefix, sportPrefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReleases(rows)
}

func (q *Queries) ListReleases(ctx context.Context, now time.Time, limit int64) ([]CachedRelease, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+releaseColumns+` FROM release_cache
		WHERE expires_at > ?
		ORDER BY cached_at DESC
		LIMIT ?`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReleases(rows)
}

func collectReleases(rows *sql.Rows) ([]CachedRelease, error) {
	var releases []CachedRelease
	for rows.Next() {
		r, err := scanRelease(rows)
		if err != nil {
			return nil, err
		}
		releases = append(releases, r)
	}
	return releases, rows.Err()
}

func (q *Queries) CountReleases(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM release_cache`).Scan(&n)
	return n, err
}

// DeleteExpiredReleases removes rows whose TTL has lapsed and reports how
// many were swept.
func (q *Queries) DeleteExpiredReleases(ctx context.Context, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM release_cache WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) DeleteReleasesForIndexer(ctx context.Context, indexerID int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM release_cache WHERE indexer_id = ?`, indexerID)
	return err
}
