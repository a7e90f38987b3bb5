package calendar

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for calendar operations.
type Handlers struct {
	service *Service
}

// NewHandlers creates new calendar handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers the calendar routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetEntries)
}

func dateParam(c echo.Context, name string) (time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s date is required", name)
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s date, expected YYYY-MM-DD", name)
	}
	return t, nil
}

// GetEntries returns events and recordings for a date range. The end date
// is inclusive: its whole day is part of the range.
// GET /api/v1/calendar?start=2026-01-01&end=2026-01-31
func (h *Handlers) GetEntries(c echo.Context) error {
	start, err := dateParam(c, "start")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	end, err := dateParam(c, "end")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if end.Before(start) {
		return echo.NewHTTPError(http.StatusBadRequest, "end date must be after start date")
	}

	entries, err := h.service.GetEntries(c.Request().Context(), start, end.Add(24*time.Hour))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if entries == nil {
		entries = []Entry{}
	}
	return c.JSON(http.StatusOK, entries)
}
