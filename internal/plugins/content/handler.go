package content

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/nexus/internal/apperror"
)

// Handler serves the catalog and stats endpoints.
type Handler struct {
	service ContentService
}

// NewHandler creates a new content handler.
func NewHandler(service ContentService) *Handler {
	return &Handler{service: service}
}

// GetCollection returns a handler for GET /api/<collection>.
func (h *Handler) GetCollection(c Collection) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		raw, err := h.service.Collection(ctx.Request().Context(), c)
		if err != nil {
			return err
		}
		return ctx.JSONBlob(http.StatusOK, raw)
	}
}

// ReplaceCollection returns a handler for POST /api/<collection>.
func (h *Handler) ReplaceCollection(c Collection) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		body, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxCollectionBytes+1))
		if err != nil {
			return apperror.NewBadRequest("invalid request body")
		}
		if err := h.service.ReplaceCollection(ctx.Request().Context(), c, body); err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}

// GetStats returns the site counters (GET /api/stats).
func (h *Handler) GetStats(c echo.Context) error {
	stats, err := h.service.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// RecordStat counts one event (POST /api/stats).
func (h *Handler) RecordStat(c echo.Context) error {
	var req StatEventRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := h.service.RecordEvent(c.Request().Context(), req.Type, req.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
