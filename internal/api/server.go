package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/sideline/sideline/internal/blocklist"
	"github.com/sideline/sideline/internal/calendar"
	"github.com/sideline/sideline/internal/config"
	"github.com/sideline/sideline/internal/crypto"
	"github.com/sideline/sideline/internal/downloader"
	"github.com/sideline/sideline/internal/dvr"
	"github.com/sideline/sideline/internal/epg"
	"github.com/sideline/sideline/internal/event"
	"github.com/sideline/sideline/internal/health"
	"github.com/sideline/sideline/internal/history"
	"github.com/sideline/sideline/internal/importer"
	"github.com/sideline/sideline/internal/indexer"
	"github.com/sideline/sideline/internal/indexer/newznab"
	"github.com/sideline/sideline/internal/indexer/status"
	"github.com/sideline/sideline/internal/logger"
	"github.com/sideline/sideline/internal/mediainfo"
	"github.com/sideline/sideline/internal/quality"
	"github.com/sideline/sideline/internal/queue"
	"github.com/sideline/sideline/internal/releasecache"
	"github.com/sideline/sideline/internal/rootfolder"
	"github.com/sideline/sideline/internal/rsssync"
	"github.com/sideline/sideline/internal/scheduler"
	"github.com/sideline/sideline/internal/search"
	"github.com/sideline/sideline/internal/store"
	"github.com/sideline/sideline/internal/websocket"
)

// Server handles HTTP requests for the Sideline API.
type Server struct {
	echo      *echo.Echo
	db        *sql.DB
	queries   *store.Queries
	hub       *websocket.Hub
	scheduler *scheduler.Scheduler
	logs      *logger.Logger
	logger    zerolog.Logger
	cfg       *config.Config
	startTime time.Time

	apiKeyMu sync.RWMutex
	apiKey   string

	// Services
	secrets           *crypto.SecretStore
	historyService    *history.Service
	blocklistService  *blocklist.Service
	downloaderService *downloader.Service
	statusService     *status.Service
	newznabClient     *newznab.Client
	indexerService    *indexer.Service
	cacheService      *releasecache.Service
	qualityService    *quality.Service
	probeService      *mediainfo.Service
	importerService   *importer.Service
	queueService      *queue.Service
	queueMonitor      *queue.Monitor
	searchService     *search.Service
	eventService      *event.Service
	rssSyncService    *rsssync.Service
	epgService        *epg.Service
	calendarService   *calendar.Service
	dvrService        *dvr.Service
	healthService     *health.Service
	rootFolderService *rootfolder.Service
}

// NewServer creates a new API server instance. All services are wired
// here in dependency order; the scheduler receives its task set so
// intervals follow the loaded configuration.
func NewServer(db *sql.DB, hub *websocket.Hub, sched *scheduler.Scheduler, cfg *config.Config, log *logger.Logger) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		db:        db,
		queries:   store.New(db),
		hub:       hub,
		scheduler: sched,
		logs:      log,
		logger:    log.With().Str("component", "api").Logger(),
		cfg:       cfg,
		startTime: time.Now(),
	}

	// Credentials for indexers and download clients are encrypted at
	// rest; the key file lives next to the database.
	secrets, err := crypto.LoadOrCreateSecretStore(filepath.Join(filepath.Dir(cfg.Database.Path), "sideline.secret"))
	if err != nil {
		return nil, fmt.Errorf("failed to load secret store: %w", err)
	}
	s.secrets = secrets

	s.historyService = history.NewService(db, log.Logger)
	s.blocklistService = blocklist.NewService(db, s.historyService, log.Logger)

	s.downloaderService = downloader.NewService(db, secrets, log.Logger)
	s.downloaderService.SetRemovalDefaults(cfg.Downloads.RemoveCompleted, cfg.Downloads.RemoveFailed)

	s.statusService = status.NewService(db, log.Logger)

	s.newznabClient = newznab.NewClient(log.Logger)
	s.newznabClient.SetTimeout(time.Duration(cfg.Indexers.RequestTimeoutSecs) * time.Second)

	s.indexerService = indexer.NewService(db, secrets, s.newznabClient, s.statusService, log.Logger)
	s.cacheService = releasecache.NewService(db, log.Logger, cfg.Indexers.CacheTTLDays)
	s.qualityService = quality.NewService(db, log.Logger)

	s.probeService = mediainfo.NewService(mediainfo.Config{
		FFprobePath: cfg.DVR.FFprobePath,
		CacheTTL:    time.Hour,
	}, log.Logger)

	s.importerService = importer.NewService(db, s.probeService, s.historyService, importer.Config{
		UseHardlinks: cfg.Import.UseHardlinks,
	}, log.Logger)

	s.queueService = queue.NewService(db, s.downloaderService, s.blocklistService, hub, log.Logger)
	s.queueMonitor = queue.NewMonitor(s.queueService, s.importerService, s.historyService, queue.Config{
		StallThreshold:   time.Duration(cfg.Downloads.StallThresholdMinutes) * time.Minute,
		RedownloadFailed: cfg.Downloads.RedownloadFailed,
	}, log.Logger)

	// The search planner shares the newznab client's pacer so grabs and
	// planned searches observe one per-indexer schedule.
	s.searchService = search.NewService(
		db,
		s.indexerService,
		s.newznabClient,
		s.statusService,
		s.newznabClient.Pacer(),
		s.cacheService,
		s.qualityService,
		s.downloaderService,
		s.blocklistService,
		s.historyService,
		hub,
		search.Config{
			BroadcastWindow: time.Duration(cfg.Search.BroadcastWindowMinutes) * time.Minute,
			MaxResults:      cfg.Indexers.MaxResults,
		},
		log.Logger,
	)
	s.searchService.SetGrabNotifier(s.queueMonitor)

	s.eventService = event.NewService(db, hub, s.historyService, log.Logger)
	s.rssSyncService = rsssync.NewService(s.indexerService, s.newznabClient, s.statusService, s.cacheService, hub, cfg.Indexers.MaxResults, log.Logger)
	s.epgService = epg.NewService(db, cfg.EPG.URL, log.Logger)
	s.calendarService = calendar.NewService(db, log.Logger)

	recorder := dvr.NewRecorder(cfg.DVR.FFmpegPath, log.Logger)
	watcher, err := dvr.NewOutputWatcher(cfg.DVR.OutputDir, time.Duration(cfg.DVR.StableSeconds)*time.Second, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create DVR output watcher: %w", err)
	}
	s.dvrService = dvr.NewService(db, recorder, watcher, s.importerService, s.qualityService, s.probeService, s.historyService, hub, dvr.Config{
		Enabled:         cfg.DVR.Enabled,
		Window:          time.Duration(cfg.DVR.WindowDays) * 24 * time.Hour,
		PrePad:          time.Duration(cfg.DVR.PrePadMinutes) * time.Minute,
		PostPad:         time.Duration(cfg.DVR.PostPadMinutes) * time.Minute,
		OutputDir:       cfg.DVR.OutputDir,
		EncodingProfile: cfg.DVR.EncodingProfile,
	}, log.Logger)

	s.healthService = health.NewService(log.Logger)
	s.healthService.SetBroadcaster(hub)

	s.rootFolderService = rootfolder.NewService(db, log.Logger)

	if err := s.resolveAPIKey(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to resolve API key: %w", err)
	}

	s.setupMiddleware()
	s.setupRoutes()

	if err := s.registerTasks(); err != nil {
		return nil, fmt.Errorf("failed to register scheduled tasks: %w", err)
	}

	return s, nil
}

// Start begins listening for HTTP requests.
func (s *Server) Start(address string) error {
	if s.cfg.DVR.Enabled {
		if err := s.dvrService.Start(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to start DVR service")
		}
	}

	s.logger.Info().Str("address", address).Msg("starting HTTP server")
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")

	if s.cfg.DVR.Enabled {
		s.dvrService.Stop()
	}

	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// EnsureDefaults creates default data like quality profiles.
func (s *Server) EnsureDefaults(ctx context.Context) error {
	return s.qualityService.EnsureDefaults(ctx)
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getStatus(c echo.Context) error {
	ctx := c.Request().Context()

	eventCount, _ := s.queries.CountEvents(ctx)
	cachedReleases, _ := s.cacheService.Count(ctx)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"version":          config.Version,
		"startTime":        s.startTime.Format(time.RFC3339),
		"port":             s.cfg.Server.Port,
		"eventCount":       eventCount,
		"cachedReleases":   cachedReleases,
		"dvr":              s.dvrService.GetStatus(),
		"epgConfigured":    s.cfg.EPG.URL != "",
		"ffprobeAvailable": s.probeService.IsAvailable(),
	})
}
