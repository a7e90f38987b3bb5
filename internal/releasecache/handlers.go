package releasecache

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sideline/sideline/internal/store"
)

// Handlers provides HTTP handlers for browsing the release cache.
type Handlers struct {
	service *Service
}

// NewHandlers creates new release cache handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers release cache routes on the given group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/stats", h.Stats)
	g.GET("/recent", h.Recent)
	g.GET("/search", h.Search)
}

// releaseView is the JSON shape of a cached release.
type releaseView struct {
	GUID        string     `json:"guid"`
	Title       string     `json:"title"`
	IndexerID   int64      `json:"indexerId"`
	IndexerName string     `json:"indexerName"`
	Protocol    string     `json:"protocol"`
	Size        int64      `json:"size"`
	Seeders     int64      `json:"seeders"`
	Leechers    int64      `json:"leechers"`
	Quality     string     `json:"quality"`
	Resolution  string     `json:"resolution,omitempty"`
	InfoURL     string     `json:"infoUrl,omitempty"`
	IsPack      bool       `json:"isPack"`
	FromRSS     bool       `json:"fromRss"`
	PublishDate *time.Time `json:"publishDate,omitempty"`
	CachedAt    time.Time  `json:"cachedAt"`
	ExpiresAt   time.Time  `json:"expiresAt"`
}

func toView(entry store.CachedRelease) releaseView {
	v := releaseView{
		GUID:        entry.GUID,
		Title:       entry.Title,
		IndexerID:   entry.IndexerID,
		IndexerName: entry.IndexerName,
		Protocol:    entry.Protocol,
		Size:        entry.Size,
		Seeders:     entry.Seeders,
		Leechers:    entry.Leechers,
		Quality:     entry.Quality,
		Resolution:  entry.Resolution,
		InfoURL:     entry.InfoURL,
		IsPack:      entry.IsPack != 0,
		FromRSS:     entry.FromRSS != 0,
		CachedAt:    entry.CachedAt,
		ExpiresAt:   entry.ExpiresAt,
	}
	if entry.PublishDate.Valid {
		t := entry.PublishDate.Time
		v.PublishDate = &t
	}
	return v
}

func toViews(entries []store.CachedRelease) []releaseView {
	views := make([]releaseView, len(entries))
	for i, entry := range entries {
		views[i] = toView(entry)
	}
	return views
}

// Stats returns cache row counts.
// GET /api/v1/releases/cache/stats
func (h *Handlers) Stats(c echo.Context) error {
	total, err := h.service.Count(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int64{"total": total})
}

// Recent returns the newest unexpired cache entries.
// GET /api/v1/releases/cache/recent
func (h *Handlers) Recent(c echo.Context) error {
	limit := 100
	if l := c.QueryParam("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	entries, err := h.service.Recent(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toViews(entries))
}

// Search returns unexpired cache entries matching the query.
// GET /api/v1/releases/cache/search
func (h *Handlers) Search(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter 'q' is required")
	}

	limit := 100
	if l := c.QueryParam("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	entries, err := h.service.Search(c.Request().Context(), query, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toViews(entries))
}
