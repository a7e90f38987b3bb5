package epg

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for guide operations.
type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers EPG routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/status", h.Status)
	g.POST("/refresh", h.Refresh)
	g.GET("/suggestions", h.Suggestions)
}

// Status reports guide size and the last refresh outcome.
// GET /api/v1/epg/status
func (h *Handlers) Status(c echo.Context) error {
	status, err := h.service.Status(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, status)
}

// Refresh starts a guide ingestion in the background.
// POST /api/v1/epg/refresh
func (h *Handlers) Refresh(c echo.Context) error {
	if h.service.url == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrNoGuideURL.Error())
	}
	go func() {
		_, _ = h.service.Refresh(context.Background())
	}()
	return c.JSON(http.StatusAccepted, map[string]string{"status": "started"})
}

// Suggestions proposes channels for a league mapping.
// GET /api/v1/epg/suggestions?league=UFC
func (h *Handlers) Suggestions(c echo.Context) error {
	league := c.QueryParam("league")
	if league == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "league query parameter is required")
	}
	suggestions, err := h.service.SuggestLeagueChannels(c.Request().Context(), league)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, suggestions)
}
