// Package search decides when and where to look for releases of monitored
// events, ranks what it finds, and hands winners to a download client. The
// release cache is always consulted before any indexer is queried; external
// searches are deferred until shortly before broadcast because scene
// releases appear after the event airs, not before.
package search

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sideline/sideline/internal/blocklist"
	"github.com/sideline/sideline/internal/downloader"
	dltypes "github.com/sideline/sideline/internal/downloader/types"
	"github.com/sideline/sideline/internal/history"
	"github.com/sideline/sideline/internal/indexer"
	"github.com/sideline/sideline/internal/indexer/newznab"
	"github.com/sideline/sideline/internal/indexer/ratelimit"
	"github.com/sideline/sideline/internal/indexer/scrape"
	"github.com/sideline/sideline/internal/indexer/status"
	"github.com/sideline/sideline/internal/indexer/types"
	"github.com/sideline/sideline/internal/quality"
	"github.com/sideline/sideline/internal/releasecache"
	"github.com/sideline/sideline/internal/store"
)

var (
	ErrEventNotFound   = errors.New("event not found")
	ErrSearchRunning   = errors.New("search already running for event")
	ErrNoCandidates    = errors.New("no matching releases found")
	ErrAllBlocked      = errors.New("all matching releases are blocklisted")
	ErrNoDownloadGrant = errors.New("no download client accepts the release")
)

// Broadcaster pushes search progress to connected UIs.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// Config tunes planner behavior.
type Config struct {
	// BroadcastWindow is how long before an event's broadcast time external
	// searches become eligible.
	BroadcastWindow time.Duration
	// MaxResults caps items requested per indexer query.
	MaxResults int
}

// DefaultConfig returns planner defaults.
func DefaultConfig() Config {
	return Config{
		BroadcastWindow: 30 * time.Minute,
		MaxResults:      100,
	}
}

// GrabNotifier is poked after a successful grab so queue polling can pick
// up the new download without waiting for the next scheduled sweep.
type GrabNotifier interface {
	Trigger()
}

// Service plans event searches and grabs the winning release.
type Service struct {
	queries   *store.Queries
	indexers  *indexer.Service
	client    *newznab.Client
	health    *status.Service
	pacer     *ratelimit.Pacer
	cache     *releasecache.Service
	profiles  *quality.Service
	downloads *downloader.Service
	blocked   *blocklist.Service
	history   *history.Service
	scraper   *scrape.Scraper
	hub       Broadcaster
	notifier  GrabNotifier
	cfg       Config
	logger    zerolog.Logger

	mu     sync.Mutex
	active map[int64]context.CancelFunc
}

// NewService creates the search planner.
func NewService(
	db *sql.DB,
	indexers *indexer.Service,
	client *newznab.Client,
	health *status.Service,
	pacer *ratelimit.Pacer,
	cache *releasecache.Service,
	profiles *quality.Service,
	downloads *downloader.Service,
	blocked *blocklist.Service,
	hist *history.Service,
	hub Broadcaster,
	cfg Config,
	logger zerolog.Logger,
) *Service {
	if cfg.BroadcastWindow <= 0 {
		cfg.BroadcastWindow = 30 * time.Minute
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 100
	}
	return &Service{
		queries:   store.New(db),
		indexers:  indexers,
		client:    client,
		health:    health,
		pacer:     pacer,
		cache:     cache,
		profiles:  profiles,
		downloads: downloads,
		blocked:   blocked,
		history:   hist,
		scraper:   scrape.NewScraper(logger),
		hub:       hub,
		cfg:       cfg,
		logger:    logger.With().Str("component", "search").Logger(),
		active:    map[int64]context.CancelFunc{},
	}
}

// SetGrabNotifier wires the queue monitor in after construction. Search and
// the monitor are built independently, so the hookup happens at assembly time.
func (s *Service) SetGrabNotifier(n GrabNotifier) {
	s.notifier = n
}

// Grabbed describes one release sent to a download client.
type Grabbed struct {
	Part         string `json:"part,omitempty"`
	Title        string `json:"title"`
	Indexer      string `json:"indexer"`
	Protocol     string `json:"protocol"`
	Quality      string `json:"quality"`
	Confidence   int    `json:"confidence"`
	QualityScore int    `json:"qualityScore"`
	FormatScore  int    `json:"formatScore"`
	DownloadID   string `json:"downloadId"`
	ClientName   string `json:"clientName"`
}

// Result summarizes one event search.
type Result struct {
	EventID    int64     `json:"eventId"`
	EventTitle string    `json:"eventTitle"`
	Candidates int       `json:"candidates"`
	Grabbed    []Grabbed `json:"grabbed"`
	Skipped    []string  `json:"skipped,omitempty"`
	ElapsedMs  int64     `json:"elapsedMs"`
}

// IsSearching reports whether a search for the event is in flight.
func (s *Service) IsSearching(eventID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[eventID]
	return ok
}

// CancelSearch aborts an in-flight search for the event.
func (s *Service) CancelSearch(eventID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancel, ok := s.active[eventID]
	if ok {
		cancel()
		delete(s.active, eventID)
	}
	return ok
}

func (s *Service) register(eventID int64, cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[eventID]; ok {
		return false
	}
	s.active[eventID] = cancel
	return true
}

func (s *Service) unregister(eventID int64) {
	s.mu.Lock()
	delete(s.active, eventID)
	s.mu.Unlock()
}

// SearchEvent runs a full search for one event immediately, ignoring the
// planner's timing rules. Used by the search-now API action.
func (s *Service) SearchEvent(ctx context.Context, eventID int64) (interface{}, error) {
	ev, err := s.queries.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to load event: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !s.register(ev.ID, cancel) {
		return nil, ErrSearchRunning
	}
	defer s.unregister(ev.ID)

	s.broadcast("search:started", map[string]interface{}{
		"eventId": ev.ID,
		"title":   ev.Title,
	})

	result, err := s.searchEvent(ctx, ev, true)
	if err != nil {
		s.broadcast("search:failed", map[string]interface{}{
			"eventId": ev.ID,
			"error":   err.Error(),
		})
		return nil, err
	}

	s.broadcast("search:completed", result)
	return result, nil
}

// searchEvent searches every outstanding part of one event. allowExternal
// permits indexer queries; the planner withholds them before the broadcast
// window opens, manual searches always pass true.
func (s *Service) searchEvent(ctx context.Context, ev store.Event, allowExternal bool) (*Result, error) {
	start := time.Now()
	result := &Result{EventID: ev.ID, EventTitle: ev.Title}

	profile, formats, err := s.loadProfile(ctx, ev)
	if err != nil {
		return nil, err
	}

	parts, err := s.queries.ListEventParts(ctx, ev.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load event parts: %w", err)
	}
	files, err := s.queries.ListEventFiles(ctx, ev.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load event files: %w", err)
	}
	queued, err := s.queries.ListQueueItemsForEvent(ctx, ev.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue items: %w", err)
	}

	targets := searchTargets(parts)
	for _, target := range targets {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		current := currentFile(files, target.partID)
		if skip, reason := skipReason(profile, current, queued, target.partID); skip {
			result.Skipped = append(result.Skipped, target.label(reason))
			continue
		}

		grabbed, candidates, err := s.searchPart(ctx, ev, parts, target, profile, formats, current, allowExternal)
		result.Candidates += candidates
		if err != nil {
			if errors.Is(err, ErrNoCandidates) || errors.Is(err, ErrAllBlocked) {
				result.Skipped = append(result.Skipped, target.label(err.Error()))
				continue
			}
			return nil, err
		}
		result.Grabbed = append(result.Grabbed, *grabbed)
	}

	if err := s.queries.UpdateEventLastSearch(ctx, ev.ID, time.Now().UTC()); err != nil {
		s.logger.Warn().Err(err).Int64("eventId", ev.ID).Msg("failed to stamp last search")
	}

	result.ElapsedMs = time.Since(start).Milliseconds()
	s.logger.Info().
		Int64("eventId", ev.ID).
		Str("title", ev.Title).
		Int("candidates", result.Candidates).
		Int("grabbed", len(result.Grabbed)).
		Int64("elapsed_ms", result.ElapsedMs).
		Msg("event search finished")
	return result, nil
}

// target identifies one acquisition unit: a specific part, or the whole
// event when it has no parts.
type target struct {
	partID   int64 // 0 for the whole event
	partName string
}

func (t target) label(reason string) string {
	if t.partName == "" {
		return reason
	}
	return t.partName + ": " + reason
}

// searchTargets returns the monitored parts as targets, or the single
// whole-event target when no parts are defined.
func searchTargets(parts []store.EventPart) []target {
	var targets []target
	for _, p := range parts {
		if p.Monitored == 1 {
			targets = append(targets, target{partID: p.ID, partName: p.Name})
		}
	}
	if len(targets) == 0 && len(parts) == 0 {
		targets = []target{{}}
	}
	return targets
}

// currentFile returns the library file for a target, nil when missing.
func currentFile(files []store.EventFile, partID int64) *store.EventFile {
	for i := range files {
		filePart := int64(0)
		if files[i].PartID.Valid {
			filePart = files[i].PartID.Int64
		}
		if filePart == partID {
			return &files[i]
		}
	}
	return nil
}

// skipReason decides whether a target needs no search: an active download
// is already running, or the existing file meets the profile cutoff.
func skipReason(profile *quality.Profile, current *store.EventFile, queued []store.QueueItem, partID int64) (bool, string) {
	for _, item := range queued {
		itemPart := int64(0)
		if item.PartID.Valid {
			itemPart = item.PartID.Int64
		}
		if itemPart != partID || item.ImportedAt.Valid {
			continue
		}
		if item.Status != string(dltypes.StatusFailed) {
			return true, "download already in progress"
		}
	}

	if current == nil {
		return false, ""
	}
	if profile == nil || !profile.UpgradesAllowed {
		return true, "already downloaded"
	}
	if profile.MeetsCutoff(current.Quality) {
		return true, "file meets quality cutoff"
	}
	return false, ""
}

func (s *Service) loadProfile(ctx context.Context, ev store.Event) (*quality.Profile, []quality.CustomFormat, error) {
	var profile *quality.Profile
	if ev.QualityProfileID.Valid {
		p, err := s.profiles.GetProfile(ctx, ev.QualityProfileID.Int64)
		if err != nil && !errors.Is(err, quality.ErrProfileNotFound) {
			return nil, nil, fmt.Errorf("failed to load quality profile: %w", err)
		}
		profile = p
	}
	if profile == nil {
		def := quality.DefaultProfile()
		profile = &def
	}

	formats, err := s.profiles.ListFormats(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load custom formats: %w", err)
	}
	return profile, formats, nil
}

// grab sends the winning candidate to a download client and records the
// queue item. Torrent payloads are fetched through the indexer first so
// private-tracker auth is honored; magnets and failures fall back to
// handing the client the URL.
func (s *Service) grab(ctx context.Context, ev store.Event, tgt target, cand candidate) (*Grabbed, error) {
	client, err := s.downloads.PickClient(ctx, dltypes.Protocol(cand.Protocol))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDownloadGrant, err)
	}
	impl, err := s.downloads.ClientFor(ctx, client.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to build download client: %w", err)
	}

	// Blocklisting a failed torrent needs its infohash. Recover it from
	// the magnet URL or the release info page when the feed omitted it.
	if cand.Protocol == types.ProtocolTorrent && cand.InfoHash == "" {
		if strings.HasPrefix(cand.DownloadURL, "magnet:") {
			cand.InfoHash = scrape.InfoHashFromMagnet(cand.DownloadURL)
		} else if cand.InfoURL != "" {
			if res, err := s.scraper.FetchInfoHash(ctx, cand.InfoURL); err == nil {
				cand.InfoHash = res.InfoHash
			} else {
				s.logger.Debug().Err(err).Str("title", cand.Title).Msg("infohash scrape failed")
			}
		}
	}

	opts := dltypes.AddOptions{
		Name:     cand.Title,
		Category: client.Category,
	}
	if cand.Protocol == types.ProtocolTorrent && !strings.HasPrefix(cand.DownloadURL, "magnet:") {
		if ix, err := s.indexers.Searchable(ctx, cand.IndexerID); err == nil {
			if payload, err := s.client.Download(ctx, ix, cand.DownloadURL); err == nil {
				opts.FileContent = payload
			} else {
				s.logger.Warn().Err(err).Str("title", cand.Title).Msg("payload fetch failed, passing url to client")
			}
		}
	}
	if opts.FileContent == nil {
		opts.URL = cand.DownloadURL
	}

	downloadID, err := impl.Add(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to add download: %w", err)
	}

	if err := s.health.OnGrab(ctx, cand.IndexerID); err != nil {
		s.logger.Warn().Err(err).Int64("indexerId", cand.IndexerID).Msg("failed to count grab")
	}

	_, err = s.queries.CreateQueueItem(ctx, store.CreateQueueItemParams{
		EventID:      ev.ID,
		PartID:       nullInt64(tgt.partID),
		ClientID:     client.ID,
		DownloadID:   downloadID,
		Title:        cand.Title,
		GUID:         cand.GUID,
		InfoHash:     cand.InfoHash,
		IndexerID:    cand.IndexerID,
		IndexerName:  cand.IndexerName,
		Protocol:     string(cand.Protocol),
		DownloadURL:  cand.DownloadURL,
		Category:     client.Category,
		Size:         cand.Size,
		Status:       string(dltypes.StatusQueued),
		Quality:      cand.Parsed.Quality.Name(),
		QualityScore: int64(cand.Score.Quality),
		FormatScore:  int64(cand.Score.Format),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record queue item: %w", err)
	}

	s.history.RecordGrab(ctx, ev.ID, cand.Title, history.GrabData{
		Indexer:        cand.IndexerName,
		Protocol:       string(cand.Protocol),
		DownloadClient: client.Name,
		DownloadID:     downloadID,
		Quality:        cand.Parsed.Quality.Name(),
		QualityScore:   int64(cand.Score.Quality),
		FormatScore:    int64(cand.Score.Format),
		Size:           cand.Size,
	})

	grabbed := &Grabbed{
		Part:         tgt.partName,
		Title:        cand.Title,
		Indexer:      cand.IndexerName,
		Protocol:     string(cand.Protocol),
		Quality:      cand.Parsed.Quality.Name(),
		Confidence:   cand.Match.Confidence,
		QualityScore: cand.Score.Quality,
		FormatScore:  cand.Score.Format,
		DownloadID:   downloadID,
		ClientName:   client.Name,
	}

	s.logger.Info().
		Int64("eventId", ev.ID).
		Str("part", tgt.partName).
		Str("release", cand.Title).
		Str("indexer", cand.IndexerName).
		Int("confidence", cand.Match.Confidence).
		Int("score", cand.Score.Total()).
		Msg("grabbed release")

	s.broadcast("search:grabbed", map[string]interface{}{
		"eventId": ev.ID,
		"grab":    grabbed,
	})
	if s.notifier != nil {
		s.notifier.Trigger()
	}
	return grabbed, nil
}

func (s *Service) broadcast(msgType string, payload interface{}) {
	if s.hub == nil {
		return
	}
	if err := s.hub.Broadcast(msgType, payload); err != nil {
		s.logger.Warn().Err(err).Str("type", msgType).Msg("failed to broadcast")
	}
}

func nullInt64(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}
