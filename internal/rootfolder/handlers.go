package rootfolder

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for root folders and remote path
// mappings.
type Handlers struct {
	service *Service
}

// NewHandlers creates new root folder handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers folder routes on folders and mapping routes
// on mappings.
func (h *Handlers) RegisterRoutes(folders, mappings *echo.Group) {
	folders.GET("", h.List)
	folders.POST("", h.Create)
	folders.GET("/:id", h.Get)
	folders.DELETE("/:id", h.Delete)

	mappings.GET("", h.ListMappings)
	mappings.POST("", h.CreateMapping)
	mappings.DELETE("/:id", h.DeleteMapping)
}

// List returns all root folders.
// GET /api/v1/rootfolders
func (h *Handlers) List(c echo.Context) error {
	folders, err := h.service.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, folders)
}

// Get returns a single root folder.
// GET /api/v1/rootfolders/:id
func (h *Handlers) Get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	folder, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrRootFolderNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, folder)
}

// Create creates a new root folder.
// POST /api/v1/rootfolders
func (h *Handlers) Create(c echo.Context) error {
	var input CreateRootFolderInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	folder, err := h.service.Create(c.Request().Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, ErrPathNotFound):
			return echo.NewHTTPError(http.StatusBadRequest, "path does not exist")
		case errors.Is(err, ErrPathNotDirectory):
			return echo.NewHTTPError(http.StatusBadRequest, "path is not a directory")
		case errors.Is(err, ErrPathAlreadyExists):
			return echo.NewHTTPError(http.StatusConflict, "path already exists as root folder")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, folder)
}

// Delete removes a root folder.
// DELETE /api/v1/rootfolders/:id
func (h *Handlers) Delete(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.service.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrRootFolderNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// ListMappings returns all remote path mappings.
// GET /api/v1/remotepathmappings
func (h *Handlers) ListMappings(c echo.Context) error {
	mappings, err := h.service.ListMappings(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, mappings)
}

// CreateMapping creates a new remote path mapping.
// POST /api/v1/remotepathmappings
func (h *Handlers) CreateMapping(c echo.Context) error {
	var input CreateMappingInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	mapping, err := h.service.CreateMapping(c.Request().Context(), input)
	if err != nil {
		if errors.Is(err, ErrInvalidMapping) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, mapping)
}

// DeleteMapping removes a remote path mapping.
// DELETE /api/v1/remotepathmappings/:id
func (h *Handlers) DeleteMapping(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.service.DeleteMapping(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrMappingNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
