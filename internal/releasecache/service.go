package releasecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/sideline/sideline/internal/indexer/types"
	"github.com/sideline/sideline/internal/parser"
	"github.com/sideline/sideline/internal/store"
)

// ErrReleaseNotFound is returned when a GUID has no cached entry.
var ErrReleaseNotFound = errors.New("release not found in cache")

// DefaultTTLDays is how long an entry stays queryable after it was last
// seen on an indexer.
const DefaultTTLDays = 7

// Service owns the shared release cache.
type Service struct {
	queries *store.Queries
	logger  zerolog.Logger
	ttl     time.Duration
}

// NewService creates a release cache service. ttlDays <= 0 selects the
// default TTL.
func NewService(db *sql.DB, logger zerolog.Logger, ttlDays int) *Service {
	if ttlDays <= 0 {
		ttlDays = DefaultTTLDays
	}
	return &Service{
		queries: store.New(db),
		logger:  logger.With().Str("component", "releasecache").Logger(),
		ttl:     time.Duration(ttlDays) * 24 * time.Hour,
	}
}

// CacheReleases upserts releases by GUID. An entry already present gets its
// seeders, leechers, and expiry refreshed. Returns the number of rows
// written.
func (s *Service) CacheReleases(ctx context.Context, releases []types.ReleaseInfo, fromRSS bool) (int, error) {
	now := time.Now().UTC()
	written := 0
	for _, rel := range releases {
		if rel.GUID == "" || rel.Title == "" {
			continue
		}
		parsed := parser.Parse(rel.Title)
		params := store.UpsertReleaseParams{
			GUID:         rel.GUID,
			Title:        rel.Title,
			SearchTerms:  TermBag(parsed),
			DownloadURL:  rel.DownloadURL,
			InfoURL:      rel.InfoURL,
			IndexerID:    rel.IndexerID,
			IndexerName:  rel.IndexerName,
			Protocol:     string(rel.Protocol),
			InfoHash:     rel.InfoHash,
			Size:         rel.Size,
			Seeders:      int64(rel.Seeders),
			Leechers:     int64(rel.Leechers),
			Quality:      parsed.Quality.Name(),
			Resolution:   resolutionLabel(parsed.Quality.Resolution),
			Source:       parsed.Quality.Source,
			VideoCodec:   parsed.Quality.Codec,
			AudioCodec:   parsed.AudioCodec,
			ReleaseGroup: parsed.ReleaseGroup,
			SportPrefix:  parsed.SportPrefix,
			Year:         int64(parsed.Year),
			IsPack:       boolToInt(parsed.IsPack),
			FromRSS:      boolToInt(fromRSS),
			CachedAt:     now,
			ExpiresAt:    now.Add(s.ttl),
		}
		if !rel.PublishDate.IsZero() {
			params.PublishDate = sql.NullTime{Time: rel.PublishDate.UTC(), Valid: true}
		}
		if err := s.queries.UpsertRelease(ctx, params); err != nil {
			return written, fmt.Errorf("failed to cache release %s: %w", rel.GUID, err)
		}
		written++
	}
	if written > 0 {
		s.logger.Debug().Int("count", written).Bool("fromRss", fromRSS).Msg("Cached releases")
	}
	return written, nil
}

// ReleasesForEvent returns unexpired entries that plausibly belong to the
// event, coarse-filtered in SQL by year and sport prefix and refined in
// memory by IsReleaseMatch.
func (s *Service) ReleasesForEvent(ctx context.Context, ev store.Event) ([]store.CachedRelease, error) {
	terms := TermsForEvent(ev)
	candidates, err := s.queries.ListReleaseCandidates(ctx, int64(terms.Year), terms.SportPrefix, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to load release candidates: %w", err)
	}

	var matches []store.CachedRelease
	for _, entry := range candidates {
		if IsReleaseMatch(entry, terms) {
			matches = append(matches, entry)
		}
	}
	s.logger.Debug().
		Int64("eventId", ev.ID).
		Int("candidates", len(candidates)).
		Int("matches", len(matches)).
		Msg("Filtered cached releases for event")
	return matches, nil
}

// Search returns unexpired entries whose titles contain every token of the
// query, newest first.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]store.CachedRelease, error) {
	if limit <= 0 {
		limit = 100
	}
	// Token filtering happens here, so scan a generous window.
	entries, err := s.queries.ListReleases(ctx, time.Now().UTC(), 5000)
	if err != nil {
		return nil, fmt.Errorf("failed to search release cache: %w", err)
	}
	var matches []store.CachedRelease
	for _, entry := range entries {
		if MatchesQuery(entry, query) {
			matches = append(matches, entry)
			if len(matches) >= limit {
				break
			}
		}
	}
	return matches, nil
}

// Recent returns the newest unexpired entries.
func (s *Service) Recent(ctx context.Context, limit int) ([]store.CachedRelease, error) {
	if limit <= 0 {
		limit = 100
	}
	entries, err := s.queries.ListReleases(ctx, time.Now().UTC(), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list cached releases: %w", err)
	}
	return entries, nil
}

// GetByGUID resolves a cached entry, expired or not. Grab requests reference
// cache rows by GUID.
func (s *Service) GetByGUID(ctx context.Context, guid string) (store.CachedRelease, error) {
	entry, err := s.queries.GetReleaseByGUID(ctx, guid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.CachedRelease{}, ErrReleaseNotFound
		}
		return store.CachedRelease{}, fmt.Errorf("failed to get cached release: %w", err)
	}
	return entry, nil
}

// Count returns the total number of cache rows, expired included.
func (s *Service) Count(ctx context.Context) (int64, error) {
	n, err := s.queries.CountReleases(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count cached releases: %w", err)
	}
	return n, nil
}

// Sweep removes entries past their TTL and reports how many were deleted.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	deleted, err := s.queries.DeleteExpiredReleases(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep release cache: %w", err)
	}
	if deleted > 0 {
		s.logger.Info().Int64("deleted", deleted).Msg("Swept expired releases")
	}
	return deleted, nil
}

// PurgeIndexer drops every entry cached from one indexer. Called when an
// indexer is deleted.
func (s *Service) PurgeIndexer(ctx context.Context, indexerID int64) error {
	if err := s.queries.DeleteReleasesForIndexer(ctx, indexerID); err != nil {
		return fmt.Errorf("failed to purge releases for indexer %d: %w", indexerID, err)
	}
	return nil
}

func resolutionLabel(res int) string {
	if res <= 0 {
		return ""
	}
	return strconv.Itoa(res) + "p"
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
