package event

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Searcher triggers an immediate acquisition attempt for one event.
// Wired in by the API server to avoid a package cycle with the planner.
type Searcher interface {
	SearchEvent(ctx context.Context, eventID int64) (interface{}, error)
}

// Handlers provides HTTP handlers for event operations.
type Handlers struct {
	service  *Service
	searcher Searcher
}

// NewHandlers creates new event handlers.
func NewHandlers(service *Service, searcher Searcher) *Handlers {
	return &Handlers{service: service, searcher: searcher}
}

// RegisterRoutes registers the event routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.PUT("/:id/monitored", h.SetMonitored)
	g.POST("/:id/search", h.Search)
	g.POST("/:id/parts", h.AddPart)
	g.PUT("/parts/:partId/monitored", h.SetPartMonitored)
	g.DELETE("/parts/:partId", h.RemovePart)
	g.GET("/:id/files", h.ListFiles)
	g.DELETE("/:id/files/:fileId", h.RemoveFile)
}

// List returns all events with optional filtering.
// GET /api/v1/events
func (h *Handlers) List(c echo.Context) error {
	var opts ListEventsOptions
	if monitored := c.QueryParam("monitored"); monitored == "true" {
		m := true
		opts.Monitored = &m
	}
	if c.QueryParam("missing") == "true" {
		opts.Missing = true
	}

	events, err := h.service.List(c.Request().Context(), opts)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, events)
}

// Get returns a single event with parts and files.
// GET /api/v1/events/:id
func (h *Handlers) Get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	ev, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, ev)
}

// Create adds a new event.
// POST /api/v1/events
func (h *Handlers) Create(c echo.Context) error {
	var input CreateEventInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ev, err := h.service.Create(c.Request().Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidEvent):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrDuplicateExternal):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, ev)
}

// Update updates an existing event.
// PUT /api/v1/events/:id
func (h *Handlers) Update(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var input UpdateEventInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ev, err := h.service.Update(c.Request().Context(), id, input)
	if err != nil {
		switch {
		case errors.Is(err, ErrEventNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrInvalidEvent):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, ev)
}

// Delete removes an event.
// DELETE /api/v1/events/:id?deleteFiles=true
func (h *Handlers) Delete(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	deleteFiles := c.QueryParam("deleteFiles") == "true"
	if err := h.service.Delete(c.Request().Context(), id, deleteFiles); err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// SetMonitored toggles event monitoring.
// PUT /api/v1/events/:id/monitored
func (h *Handlers) SetMonitored(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var body struct {
		Monitored bool `json:"monitored"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.service.SetMonitored(c.Request().Context(), id, body.Monitored); err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// Search triggers an immediate search for the event.
// POST /api/v1/events/:id/search
func (h *Handlers) Search(c echo.Context) error {
	if h.searcher == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search is not available")
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	result, err := h.searcher.SearchEvent(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

// AddPart appends a part to an event.
// POST /api/v1/events/:id/parts
func (h *Handlers) AddPart(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	part, err := h.service.AddPart(c.Request().Context(), id, body.Name)
	if err != nil {
		switch {
		case errors.Is(err, ErrEventNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrInvalidEvent):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, part)
}

// SetPartMonitored toggles part monitoring.
// PUT /api/v1/events/parts/:partId/monitored
func (h *Handlers) SetPartMonitored(c echo.Context) error {
	partID, err := strconv.ParseInt(c.Param("partId"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid part id")
	}

	var body struct {
		Monitored bool `json:"monitored"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.service.SetPartMonitored(c.Request().Context(), partID, body.Monitored); err != nil {
		if errors.Is(err, ErrPartNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// RemovePart deletes a part.
// DELETE /api/v1/events/parts/:partId
func (h *Handlers) RemovePart(c echo.Context) error {
	partID, err := strconv.ParseInt(c.Param("partId"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid part id")
	}

	if err := h.service.RemovePart(c.Request().Context(), partID); err != nil {
		if errors.Is(err, ErrPartNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// ListFiles returns the files attached to an event.
// GET /api/v1/events/:id/files
func (h *Handlers) ListFiles(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	files, err := h.service.ListFiles(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, files)
}

// RemoveFile deletes an event file.
// DELETE /api/v1/events/:id/files/:fileId?fromDisk=true
func (h *Handlers) RemoveFile(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	fileID, err := strconv.ParseInt(c.Param("fileId"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid file id")
	}

	fromDisk := c.QueryParam("fromDisk") == "true"
	if err := h.service.DeleteFile(c.Request().Context(), id, fileID, fromDisk); err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
