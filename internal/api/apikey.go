package api

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

const apiKeySetting = "api_key"

// resolveAPIKey determines the key protecting /api/v1. An explicitly
// configured key wins; otherwise the key persisted on a previous run is
// reused; otherwise a fresh key is generated and stored. The generated
// key is logged once so a headless first run can be completed.
func (s *Server) resolveAPIKey(ctx context.Context) error {
	if s.cfg.Server.APIKey != "" {
		s.setAPIKey(s.cfg.Server.APIKey)
		return nil
	}

	key, err := s.queries.GetSetting(ctx, apiKeySetting)
	if err == nil && key != "" {
		s.setAPIKey(key)
		return nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read api key: %w", err)
	}

	key, err = generateAPIKey()
	if err != nil {
		return err
	}
	if err := s.queries.UpsertSetting(ctx, apiKeySetting, key); err != nil {
		return fmt.Errorf("failed to store api key: %w", err)
	}
	s.setAPIKey(key)

	s.logger.Info().Str("apiKey", key).Msg("generated API key; set server.api_key in config to override")
	return nil
}

func generateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (s *Server) currentAPIKey() string {
	s.apiKeyMu.RLock()
	defer s.apiKeyMu.RUnlock()
	return s.apiKey
}

func (s *Server) setAPIKey(key string) {
	s.apiKeyMu.Lock()
	s.apiKey = key
	s.apiKeyMu.Unlock()
}

// regenerateAPIKey replaces the stored API key. The new key is enforced
// on the next request. A key set in the config file cannot be rotated
// here; the config value always wins.
// POST /api/v1/settings/apikey
func (s *Server) regenerateAPIKey(c echo.Context) error {
	if s.cfg.Server.APIKey != "" {
		return echo.NewHTTPError(http.StatusConflict, "api key is fixed by configuration")
	}

	key, err := generateAPIKey()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := s.queries.UpsertSetting(c.Request().Context(), apiKeySetting, key); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	s.setAPIKey(key)

	s.logger.Info().Msg("API key regenerated")
	return c.JSON(http.StatusOK, map[string]string{"apiKey": key})
}

// getSettings reports the operator-facing runtime settings.
// GET /api/v1/settings
func (s *Server) getSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"apiKey":   s.currentAPIKey(),
		"port":     s.cfg.Server.Port,
		"logLevel": s.cfg.Logging.Level,
		"logPath":  s.cfg.Logging.Path,
	})
}
