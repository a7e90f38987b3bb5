// Package rsssync runs the periodic RSS discovery pass: it pulls the
// latest releases from every healthy RSS-enabled indexer and folds them
// into the release cache so the search planner can satisfy most events
// without spending search-query budget.
package rsssync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sideline/sideline/internal/indexer"
	"github.com/sideline/sideline/internal/indexer/newznab"
	"github.com/sideline/sideline/internal/indexer/status"
	"github.com/sideline/sideline/internal/indexer/types"
	"github.com/sideline/sideline/internal/releasecache"
)

// Broadcaster pushes sync progress to connected UIs.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// SyncStatus holds the result of the last RSS sync run.
type SyncStatus struct {
	Running      bool      `json:"running"`
	LastRun      time.Time `json:"lastRun"`
	IndexersOK   int       `json:"indexersOk"`
	IndexersSkip int       `json:"indexersSkipped"`
	IndexersErr  int       `json:"indexersFailed"`
	Fetched      int       `json:"fetched"`
	Cached       int       `json:"cached"`
	ElapsedMs    int64     `json:"elapsedMs"`
	Error        string    `json:"error,omitempty"`
}

// Service fetches RSS feeds and writes releases into the cache.
type Service struct {
	indexers   *indexer.Service
	client     *newznab.Client
	health     *status.Service
	cache      *releasecache.Service
	hub        Broadcaster
	logger     zerolog.Logger
	maxResults int

	running atomic.Bool
	mu      sync.Mutex
	last    SyncStatus
}

// NewService creates the RSS discovery worker. maxResults caps the items
// requested per feed fetch.
func NewService(indexers *indexer.Service, client *newznab.Client, health *status.Service, cache *releasecache.Service, hub Broadcaster, maxResults int, logger zerolog.Logger) *Service {
	if maxResults <= 0 {
		maxResults = 100
	}
	return &Service{
		indexers:   indexers,
		client:     client,
		health:     health,
		cache:      cache,
		hub:        hub,
		logger:     logger.With().Str("component", "rsssync").Logger(),
		maxResults: maxResults,
	}
}

// Status returns the outcome of the most recent sync.
func (s *Service) Status() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.last
	st.Running = s.running.Load()
	return st
}

// Sync runs one discovery pass. Only one pass runs at a time; a second
// call while a pass is active returns immediately.
func (s *Service) Sync(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug().Msg("rss sync already running, skipping")
		return nil
	}
	defer s.running.Store(false)

	start := time.Now()
	result := SyncStatus{LastRun: start}

	rows, err := s.indexers.ListSearchable(ctx)
	if err != nil {
		result.Error = err.Error()
		result.ElapsedMs = time.Since(start).Milliseconds()
		s.setStatus(result)
		return err
	}

	var all []types.ReleaseInfo
	for _, ix := range rows {
		if ix.RSSEnabled != 1 {
			continue
		}
		avail, err := s.health.Check(ctx, ix)
		if err != nil {
			s.logger.Warn().Err(err).Str("indexer", ix.Name).Msg("health check failed")
			result.IndexersErr++
			continue
		}
		if !avail.OK {
			s.logger.Debug().Str("indexer", ix.Name).Str("reason", avail.Reason).Msg("skipping indexer")
			result.IndexersSkip++
			continue
		}

		releases, err := s.client.FetchRSS(ctx, ix, s.maxResults)
		if obsErr := s.health.Observe(ctx, ix.ID, err); obsErr != nil {
			s.logger.Warn().Err(obsErr).Str("indexer", ix.Name).Msg("failed to record indexer outcome")
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("indexer", ix.Name).Msg("rss fetch failed")
			result.IndexersErr++
			continue
		}

		s.logger.Debug().Str("indexer", ix.Name).Int("releases", len(releases)).Msg("fetched rss feed")
		result.IndexersOK++
		result.Fetched += len(releases)
		all = append(all, releases...)

		if ctx.Err() != nil {
			break
		}
	}

	if len(all) > 0 {
		cached, err := s.cache.CacheReleases(ctx, all, true)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to cache releases")
			result.Error = err.Error()
		}
		result.Cached = cached
	}

	result.ElapsedMs = time.Since(start).Milliseconds()
	s.setStatus(result)

	s.logger.Info().
		Int("indexers", result.IndexersOK).
		Int("skipped", result.IndexersSkip).
		Int("failed", result.IndexersErr).
		Int("fetched", result.Fetched).
		Int("cached", result.Cached).
		Int64("elapsed_ms", result.ElapsedMs).
		Msg("rss sync complete")

	s.broadcast("rsssync:completed", result)
	return nil
}

func (s *Service) setStatus(st SyncStatus) {
	s.mu.Lock()
	s.last = st
	s.mu.Unlock()
}

func (s *Service) broadcast(msgType string, payload interface{}) {
	if s.hub == nil {
		return
	}
	if err := s.hub.Broadcast(msgType, payload); err != nil {
		s.logger.Warn().Err(err).Str("type", msgType).Msg("failed to broadcast")
	}
}
