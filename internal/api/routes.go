package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	apimw "github.com/sideline/sideline/internal/api/middleware"
	"github.com/sideline/sideline/internal/blocklist"
	"github.com/sideline/sideline/internal/calendar"
	"github.com/sideline/sideline/internal/downloader"
	"github.com/sideline/sideline/internal/dvr"
	"github.com/sideline/sideline/internal/epg"
	"github.com/sideline/sideline/internal/event"
	"github.com/sideline/sideline/internal/health"
	"github.com/sideline/sideline/internal/history"
	"github.com/sideline/sideline/internal/indexer"
	"github.com/sideline/sideline/internal/quality"
	"github.com/sideline/sideline/internal/queue"
	"github.com/sideline/sideline/internal/releasecache"
	"github.com/sideline/sideline/internal/rootfolder"
	"github.com/sideline/sideline/internal/rsssync"
	"github.com/sideline/sideline/internal/scheduler"
)

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Request ID
	s.echo.Use(middleware.RequestID())

	// Security headers
	s.echo.Use(apimw.SecurityHeaders())

	// Request body size limit (2MB)
	s.echo.Use(middleware.BodyLimit("2M"))

	// CORS - authentication is an explicit header, so any origin may call
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, "X-Api-Key"},
	}))

	// Request logging
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Info().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	// Gzip compression
	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			// Skip compression for WebSocket
			return c.Request().Header.Get("Upgrade") == "websocket"
		},
	}))
}

// setupRoutes configures API routes. Everything under /api/v1 requires
// the API key; only the root health probe is open.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	api := s.echo.Group("/api/v1")
	api.Use(apimw.APIKeyAuth(s.currentAPIKey))

	api.GET("/status", s.getStatus)
	api.GET("/ws", s.hub.HandleWebSocket)

	settings := api.Group("/settings")
	settings.GET("", s.getSettings)
	settings.POST("/apikey", s.regenerateAPIKey)

	s.setupSystemRoutes(api)
	s.setupEventRoutes(api)
	s.setupAcquisitionRoutes(api)
	s.setupDownloadRoutes(api)
	s.setupLibraryRoutes(api)
}

func (s *Server) setupSystemRoutes(api *echo.Group) {
	healthHandlers := health.NewHandlers(s.healthService, s.db, &health.TestFunctions{
		TestDownloadClient: func(ctx context.Context, id int64) (bool, string) {
			result, err := s.downloaderService.Test(ctx, id)
			if err != nil {
				return false, err.Error()
			}
			return result.Success, result.Message
		},
		TestIndexer: func(ctx context.Context, id int64) (bool, string) {
			result, err := s.indexerService.Test(ctx, id)
			if err != nil {
				return false, err.Error()
			}
			return result.Success, result.Message
		},
		GetRootFolderPath: func(ctx context.Context, id int64) (string, error) {
			folder, err := s.rootFolderService.Get(ctx, id)
			if err != nil {
				return "", err
			}
			return folder.Path, nil
		},
		TestDVR: func(ctx context.Context) (bool, string) {
			st := s.dvrService.GetStatus()
			if !st.Enabled {
				return false, "DVR is disabled"
			}
			if !st.RecorderFound {
				return false, "ffmpeg not found"
			}
			return true, "ffmpeg available"
		},
	})
	healthHandlers.RegisterRoutes(api.Group("/system/health"))

	if s.scheduler != nil {
		schedulerHandlers := scheduler.NewHandlers(s.scheduler)
		schedulerHandlers.RegisterRoutes(api.Group("/system/tasks"))
	}

	logsHandlers := NewLogsHandlers(s.logs)
	logsHandlers.RegisterRoutes(api.Group("/logs"))
}

func (s *Server) setupEventRoutes(api *echo.Group) {
	eventHandlers := event.NewHandlers(s.eventService, s.searchService)
	eventHandlers.RegisterRoutes(api.Group("/events"))

	calendarHandlers := calendar.NewHandlers(s.calendarService)
	calendarHandlers.RegisterRoutes(api.Group("/calendar"))

	epgHandlers := epg.NewHandlers(s.epgService)
	epgHandlers.RegisterRoutes(api.Group("/epg"))

	dvrHandlers := dvr.NewHandlers(s.dvrService)
	dvrHandlers.RegisterRoutes(api.Group("/dvr"))
}

func (s *Server) setupAcquisitionRoutes(api *echo.Group) {
	indexerHandlers := indexer.NewHandlers(s.indexerService)
	indexerHandlers.RegisterRoutes(api.Group("/indexers"))

	cacheHandlers := releasecache.NewHandlers(s.cacheService)
	cacheHandlers.RegisterRoutes(api.Group("/releases/cache"))

	rssSyncHandlers := rsssync.NewHandlers(s.rssSyncService)
	rssSyncHandlers.RegisterRoutes(api.Group("/rsssync"))
}

func (s *Server) setupDownloadRoutes(api *echo.Group) {
	downloaderHandlers := downloader.NewHandlers(s.downloaderService)
	downloaderHandlers.RegisterRoutes(api.Group("/downloadclients"))

	queueHandlers := queue.NewHandlers(s.queueService)
	queueHandlers.RegisterRoutes(api.Group("/queue"))

	historyHandlers := history.NewHandlers(s.historyService)
	historyHandlers.RegisterRoutes(api.Group("/history"))

	blocklistHandlers := blocklist.NewHandlers(s.blocklistService)
	blocklistHandlers.RegisterRoutes(api.Group("/blocklist"))
}

func (s *Server) setupLibraryRoutes(api *echo.Group) {
	qualityHandlers := quality.NewHandlers(s.qualityService)
	qualityHandlers.RegisterRoutes(api.Group("/qualityprofiles"), api.Group("/customformats"))

	rootFolderHandlers := rootfolder.NewHandlers(s.rootFolderService)
	rootFolderHandlers.RegisterRoutes(api.Group("/rootfolders"), api.Group("/remotepathmappings"))
}
