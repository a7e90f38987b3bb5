package api

import (
	"net/http"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sideline/sideline/internal/logger"
)

// LogTail exposes the buffered log tail and the active log file.
type LogTail interface {
	RecentEntries(limit int) []logger.Entry
	LogFilePath() string
}

// LogsHandlers serves the in-memory log tail and the log file download.
type LogsHandlers struct {
	tail LogTail
}

func NewLogsHandlers(tail LogTail) *LogsHandlers {
	return &LogsHandlers{tail: tail}
}

func (h *LogsHandlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.Recent)
	g.GET("/download", h.Download)
}

// Recent returns buffered log entries, oldest first. ?limit=N caps the
// count; the default returns the whole tail.
func (h *LogsHandlers) Recent(c echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}

	entries := h.tail.RecentEntries(limit)
	if entries == nil {
		entries = []logger.Entry{}
	}
	return c.JSON(http.StatusOK, entries)
}

// Download serves the current log file.
func (h *LogsHandlers) Download(c echo.Context) error {
	path := h.tail.LogFilePath()
	if path == "" {
		return echo.NewHTTPError(http.StatusNotFound, "no log file configured")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return echo.NewHTTPError(http.StatusNotFound, "log file not found")
	}
	return c.Attachment(path, "sideline.log")
}
