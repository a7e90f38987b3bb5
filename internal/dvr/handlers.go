package dvr

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for DVR operations.
type Handlers struct {
	service *Service
}

// NewHandlers creates new DVR handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers the DVR routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/status", h.Status)
	g.POST("/schedule", h.Schedule)

	g.GET("/recordings", h.ListRecordings)
	g.GET("/recordings/:id", h.GetRecording)
	g.POST("/recordings/:id/cancel", h.CancelRecording)
	g.POST("/recordings/:id/retry", h.RetryRecording)
	g.DELETE("/recordings/:id", h.DeleteRecording)

	g.GET("/channels", h.ListChannels)
	g.POST("/channels", h.CreateChannel)
	g.PUT("/channels/:id", h.UpdateChannel)
	g.DELETE("/channels/:id", h.DeleteChannel)

	g.GET("/leagues", h.ListLeagueMappings)
	g.POST("/leagues", h.CreateLeagueMapping)
	g.DELETE("/leagues/:id", h.DeleteLeagueMapping)
}

// Status reports DVR availability.
// GET /api/v1/dvr/status
func (h *Handlers) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.GetStatus())
}

// Schedule triggers a scheduling pass in the background.
// POST /api/v1/dvr/schedule
func (h *Handlers) Schedule(c echo.Context) error {
	if !h.service.cfg.Enabled {
		return echo.NewHTTPError(http.StatusBadRequest, ErrDVRDisabled.Error())
	}
	go func() {
		if _, err := h.service.Schedule(context.Background()); err != nil {
			h.service.logger.Error().Err(err).Msg("scheduling pass failed")
		}
	}()
	return c.JSON(http.StatusAccepted, map[string]string{"status": "started"})
}

// ListRecordings returns all recordings.
// GET /api/v1/dvr/recordings
func (h *Handlers) ListRecordings(c echo.Context) error {
	recordings, err := h.service.ListRecordings(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, recordings)
}

// GetRecording returns a single recording.
// GET /api/v1/dvr/recordings/:id
func (h *Handlers) GetRecording(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	rec, err := h.service.GetRecordingView(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrRecordingNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

// CancelRecording stops a scheduled or running recording.
// POST /api/v1/dvr/recordings/:id/cancel
func (h *Handlers) CancelRecording(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	rec, err := h.service.CancelRecording(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrRecordingNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		if errors.Is(err, ErrNotCancellable) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

// RetryRecording re-imports or rearms a failed recording.
// POST /api/v1/dvr/recordings/:id/retry
func (h *Handlers) RetryRecording(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	rec, err := h.service.RetryRecording(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrRecordingNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		if errors.Is(err, ErrNotRetryable) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

// DeleteRecording removes a recording row and any unimported capture file.
// DELETE /api/v1/dvr/recordings/:id
func (h *Handlers) DeleteRecording(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.service.DeleteRecording(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrRecordingNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		if errors.Is(err, ErrNotCancellable) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// ListChannels returns all channels.
// GET /api/v1/dvr/channels
func (h *Handlers) ListChannels(c echo.Context) error {
	channels, err := h.service.ListChannelViews(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, channels)
}

// CreateChannel adds a channel.
// POST /api/v1/dvr/channels
func (h *Handlers) CreateChannel(c echo.Context) error {
	var input ChannelInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ch, err := h.service.CreateChannel(c.Request().Context(), input)
	if err != nil {
		if errors.Is(err, ErrInvalidChannel) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, ch)
}

// UpdateChannel replaces a channel's fields.
// PUT /api/v1/dvr/channels/:id
func (h *Handlers) UpdateChannel(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var input ChannelInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ch, err := h.service.UpdateChannel(c.Request().Context(), id, input)
	if err != nil {
		if errors.Is(err, ErrChannelNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		if errors.Is(err, ErrInvalidChannel) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, ch)
}

// DeleteChannel removes a channel.
// DELETE /api/v1/dvr/channels/:id
func (h *Handlers) DeleteChannel(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.service.DeleteChannel(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrChannelNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// ListLeagueMappings returns every league to channel mapping.
// GET /api/v1/dvr/leagues
func (h *Handlers) ListLeagueMappings(c echo.Context) error {
	mappings, err := h.service.ListLeagueMappings(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, mappings)
}

// leagueMappingInput is the POST body for a new mapping.
type leagueMappingInput struct {
	League    string `json:"league"`
	ChannelID int64  `json:"channelId"`
	Priority  int64  `json:"priority"`
}

// CreateLeagueMapping declares that a channel carries a league.
// POST /api/v1/dvr/leagues
func (h *Handlers) CreateLeagueMapping(c echo.Context) error {
	var input leagueMappingInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	m, err := h.service.CreateLeagueMapping(c.Request().Context(), input.League, input.ChannelID, input.Priority)
	if err != nil {
		if errors.Is(err, ErrInvalidMapping) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if errors.Is(err, ErrChannelNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, m)
}

// DeleteLeagueMapping removes a mapping.
// DELETE /api/v1/dvr/leagues/:id
func (h *Handlers) DeleteLeagueMapping(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.service.DeleteLeagueMapping(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
