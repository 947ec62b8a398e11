package httpapi

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"horse.fit/polyglot/internal/db"
)

// apiKeyBytes sizes the random token; 32 bytes yields a 43-character
// URL-safe key.
const apiKeyBytes = 32

type generateKeyRequest struct {
	Description string `json:"description"`
	CreatedBy   string `json:"created_by"`
}

type apiKeyView struct {
	Key         string    `json:"key"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"created_by"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Server) handleGenerateKey(c echo.Context) error {
	var req generateKeyRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, err.Error())
	}

	key, err := newAPIKeyToken()
	if err != nil {
		s.logger.Error().Err(err).Msg("api key generation failed")
		return internalError(c, "Failed to generate API key")
	}

	createdBy := strings.TrimSpace(req.CreatedBy)
	if createdBy == "" {
		createdBy = "admin"
	}

	row, err := s.keys.CreateAPIKey(c.Request().Context(), key, strings.TrimSpace(req.Description), createdBy)
	if err != nil {
		s.logger.Error().Err(err).Msg("api key insert failed")
		return internalError(c, "Failed to store API key")
	}

	return c.JSON(http.StatusOK, buildAPIKeyView(*row))
}

func (s *Server) handleListKeys(c echo.Context) error {
	rows, err := s.keys.ListAPIKeys(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("api key listing failed")
		return internalError(c, "Failed to list API keys")
	}

	items := make([]apiKeyView, 0, len(rows))
	for _, row := range rows {
		items = append(items, buildAPIKeyView(row))
	}

	return c.JSON(http.StatusOK, map[string]any{
		"keys":  items,
		"total": len(items),
	})
}

func (s *Server) handleDeactivateKey(c echo.Context) error {
	key := strings.TrimSpace(c.QueryParam("api_key"))
	if key == "" {
		return failValidation(c, "api_key query parameter is required")
	}

	if err := s.keys.DeactivateAPIKey(c.Request().Context(), key); err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return failNotFound(c, "API key not found")
		}
		s.logger.Error().Err(err).Msg("api key deactivation failed")
		return internalError(c, "Failed to deactivate API key")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "API key deactivated successfully",
	})
}

func buildAPIKeyView(row db.APIKey) apiKeyView {
	return apiKeyView{
		Key:         row.Key,
		Description: row.Description,
		CreatedBy:   row.CreatedBy,
		IsActive:    row.IsActive,
		CreatedAt:   row.CreatedAt,
	}
}

func newAPIKeyToken() (string, error) {
	buf := make([]byte, apiKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
