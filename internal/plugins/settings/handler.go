package settings

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/nexus/internal/apperror"
)

// maxSiteConfigBytes caps the site config request body.
const maxSiteConfigBytes = 256 << 10

// Handler serves the system and site config endpoints.
type Handler struct {
	service SettingsService
}

// NewHandler creates a new settings handler.
func NewHandler(service SettingsService) *Handler {
	return &Handler{service: service}
}

// GetSystemConfig returns the redacted system config (GET /api/system-config).
func (h *Handler) GetSystemConfig(c echo.Context) error {
	cfg, err := h.service.GetSystemConfig(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cfg)
}

// UpdateSystemConfig merges changes (POST /api/system-config).
func (h *Handler) UpdateSystemConfig(c echo.Context) error {
	var req UpdateSystemConfigRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	cfg, err := h.service.UpdateSystemConfig(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "config": cfg})
}

// GetSiteConfig returns the public site config (GET /api/site-config).
func (h *Handler) GetSiteConfig(c echo.Context) error {
	raw, err := h.service.GetSiteConfig(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, raw)
}

// UpdateSiteConfig replaces the site config (POST /api/site-config).
func (h *Handler) UpdateSiteConfig(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxSiteConfigBytes+1))
	if err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if len(body) > maxSiteConfigBytes {
		return apperror.NewValidation("site config is too large")
	}

	saved, err := h.service.UpdateSiteConfig(c.Request().Context(), json.RawMessage(body))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "config": saved})
}
