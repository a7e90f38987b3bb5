package health

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// TestFunctions holds the on-demand connectivity tests per category.
type TestFunctions struct {
	TestDownloadClient func(ctx context.Context, id int64) (success bool, message string)
	TestIndexer        func(ctx context.Context, id int64) (success bool, message string)
	GetRootFolderPath  func(ctx context.Context, id int64) (string, error)
	TestDVR            func(ctx context.Context) (success bool, message string)
}

// TestResult is the outcome of testing one tracked item.
type TestResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Handlers provides HTTP handlers for health endpoints.
type Handlers struct {
	health  *Service
	db      *sql.DB
	tests   *TestFunctions
	folders *FolderChecker
}

// NewHandlers creates new health handlers with test functions.
func NewHandlers(health *Service, db *sql.DB, tests *TestFunctions) *Handlers {
	return &Handlers{
		health:  health,
		db:      db,
		tests:   tests,
		folders: NewFolderChecker(),
	}
}

// RegisterRoutes registers health routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetAll)
	g.GET("/summary", h.GetSummary)
	g.GET("/ping", h.Ping)
	g.GET("/:category", h.GetByCategory)
	g.POST("/:category/test", h.TestCategory)
	g.POST("/:category/:id/test", h.TestItem)
}

// GetAll returns all health items grouped by category.
// GET /api/v1/system/health
func (h *Handlers) GetAll(c echo.Context) error {
	return c.JSON(http.StatusOK, h.health.GetAll())
}

// GetSummary returns per-category status counts.
// GET /api/v1/system/health/summary
func (h *Handlers) GetSummary(c echo.Context) error {
	return c.JSON(http.StatusOK, h.health.GetSummary())
}

// Ping verifies database connectivity.
// GET /api/v1/system/health/ping
func (h *Handlers) Ping(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// GetByCategory returns the items of one category.
// GET /api/v1/system/health/:category
func (h *Handlers) GetByCategory(c echo.Context) error {
	category := Category(c.Param("category"))
	if !validCategory(category) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid health category")
	}
	return c.JSON(http.StatusOK, h.health.GetByCategory(category))
}

// TestCategory runs the connectivity test for every item in a category.
// Items are tested sequentially so a category full of dead endpoints
// does not fan out into a burst of parallel probes.
// POST /api/v1/system/health/:category/test
func (h *Handlers) TestCategory(c echo.Context) error {
	category := Category(c.Param("category"))
	if !validCategory(category) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid health category")
	}

	items := h.health.GetByCategory(category)
	results := make([]TestResult, 0, len(items))
	for _, item := range items {
		results = append(results, h.runTest(c.Request().Context(), category, item.ID))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"category": category,
		"results":  results,
	})
}

// TestItem runs the connectivity test for one item.
// POST /api/v1/system/health/:category/:id/test
func (h *Handlers) TestItem(c echo.Context) error {
	category := Category(c.Param("category"))
	if !validCategory(category) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid health category")
	}
	id := c.Param("id")

	tracked := false
	for _, item := range h.health.GetByCategory(category) {
		if item.ID == id {
			tracked = true
			break
		}
	}
	if !tracked {
		return echo.NewHTTPError(http.StatusNotFound, "health item not found")
	}

	return c.JSON(http.StatusOK, h.runTest(c.Request().Context(), category, id))
}

// runTest executes the category's test and folds the outcome back into
// the tracked status.
func (h *Handlers) runTest(ctx context.Context, category Category, id string) TestResult {
	success, message := h.execute(ctx, category, id)
	if success {
		h.health.ClearStatus(category, id)
	} else if message != "" {
		h.health.SetError(category, id, message)
	}
	return TestResult{ID: id, Success: success, Message: message}
}

func (h *Handlers) execute(ctx context.Context, category Category, id string) (bool, string) {
	if h.tests == nil {
		return false, "testing not configured"
	}

	switch category {
	case CategoryDownloadClients:
		if h.tests.TestDownloadClient == nil {
			return false, "download client testing not configured"
		}
		clientID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return false, "invalid client ID"
		}
		ok, msg := h.tests.TestDownloadClient(ctx, clientID)
		if ok {
			msg = "connection verified"
		}
		return ok, msg

	case CategoryIndexers:
		if h.tests.TestIndexer == nil {
			return false, "indexer testing not configured"
		}
		indexerID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return false, "invalid indexer ID"
		}
		ok, msg := h.tests.TestIndexer(ctx, indexerID)
		if ok {
			msg = "connection verified"
		}
		return ok, msg

	case CategoryRootFolders:
		if h.tests.GetRootFolderPath == nil {
			return false, "root folder testing not configured"
		}
		folderID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return false, "invalid folder ID"
		}
		path, err := h.tests.GetRootFolderPath(ctx, folderID)
		if err != nil {
			return false, err.Error()
		}
		if path == "" {
			return false, "could not determine folder path"
		}
		if ok, msg := h.folders.CheckFolderHealth(path); !ok {
			return false, msg
		}
		return true, "folder is accessible and writable"

	case CategoryDVR:
		if h.tests.TestDVR == nil {
			return false, "DVR testing not configured"
		}
		ok, msg := h.tests.TestDVR(ctx)
		if ok {
			msg = "recorder is ready"
		}
		return ok, msg
	}

	return false, "unsupported category"
}
