package quality

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for quality profiles and custom formats.
type Handlers struct {
	service *Service
}

// NewHandlers creates new quality handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers profile routes on profiles and format routes on formats.
func (h *Handlers) RegisterRoutes(profiles, formats *echo.Group) {
	profiles.GET("", h.ListProfiles)
	profiles.POST("", h.CreateProfile)
	profiles.GET("/definitions", h.Definitions)
	profiles.GET("/:id", h.GetProfile)
	profiles.PUT("/:id", h.UpdateProfile)
	profiles.DELETE("/:id", h.DeleteProfile)

	formats.GET("", h.ListFormats)
	formats.POST("", h.CreateFormat)
	formats.GET("/:id", h.GetFormat)
	formats.PUT("/:id", h.UpdateFormat)
	formats.DELETE("/:id", h.DeleteFormat)
}

// ListProfiles returns all quality profiles.
// GET /api/v1/qualityprofiles
func (h *Handlers) ListProfiles(c echo.Context) error {
	profiles, err := h.service.ListProfiles(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, profiles)
}

// Definitions returns the fixed quality ladder.
// GET /api/v1/qualityprofiles/definitions
func (h *Handlers) Definitions(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Definitions())
}

// GetProfile returns a single quality profile.
// GET /api/v1/qualityprofiles/:id
func (h *Handlers) GetProfile(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	profile, err := h.service.GetProfile(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, profile)
}

// CreateProfile creates a new quality profile.
// POST /api/v1/qualityprofiles
func (h *Handlers) CreateProfile(c echo.Context) error {
	var input CreateProfileInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	profile, err := h.service.CreateProfile(c.Request().Context(), input)
	if err != nil {
		if errors.Is(err, ErrInvalidProfile) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, profile)
}

// UpdateProfile updates an existing quality profile.
// PUT /api/v1/qualityprofiles/:id
func (h *Handlers) UpdateProfile(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var input CreateProfileInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	profile, err := h.service.UpdateProfile(c.Request().Context(), id, input)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		if errors.Is(err, ErrInvalidProfile) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, profile)
}

// DeleteProfile removes a quality profile.
// DELETE /api/v1/qualityprofiles/:id
func (h *Handlers) DeleteProfile(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.service.DeleteProfile(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// formatInput is the writable surface of a custom format.
type formatInput struct {
	Name           string          `json:"name"`
	Specifications []Specification `json:"specifications"`
}

// ListFormats returns all custom formats.
// GET /api/v1/customformats
func (h *Handlers) ListFormats(c echo.Context) error {
	formats, err := h.service.ListFormats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, formats)
}

// GetFormat returns a single custom format.
// GET /api/v1/customformats/:id
func (h *Handlers) GetFormat(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	format, err := h.service.GetFormat(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrFormatNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, format)
}

// CreateFormat creates a new custom format.
// POST /api/v1/customformats
func (h *Handlers) CreateFormat(c echo.Context) error {
	var input formatInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if input.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "format name is required")
	}

	format, err := h.service.CreateFormat(c.Request().Context(), input.Name, input.Specifications)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, format)
}

// UpdateFormat updates an existing custom format.
// PUT /api/v1/customformats/:id
func (h *Handlers) UpdateFormat(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var input formatInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if input.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "format name is required")
	}

	format, err := h.service.UpdateFormat(c.Request().Context(), id, input.Name, input.Specifications)
	if err != nil {
		if errors.Is(err, ErrFormatNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, format)
}

// DeleteFormat removes a custom format.
// DELETE /api/v1/customformats/:id
func (h *Handlers) DeleteFormat(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.service.DeleteFormat(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrFormatNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
