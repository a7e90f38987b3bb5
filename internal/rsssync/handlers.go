package rsssync

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for the RSS sync worker.
type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers RSS sync routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/status", h.Status)
	g.POST("/sync", h.Trigger)
}

// Status returns the last sync outcome.
// GET /api/v1/rsssync/status
func (h *Handlers) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Status())
}

// Trigger starts a sync pass in the background.
// POST /api/v1/rsssync/sync
func (h *Handlers) Trigger(c echo.Context) error {
	go func() {
		_ = h.service.Sync(context.Background())
	}()
	return c.JSON(http.StatusAccepted, map[string]string{"status": "started"})
}
