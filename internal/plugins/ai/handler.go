package ai

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/nexus/internal/apperror"
	"github.com/keyxmakerx/nexus/internal/plugins/auth"
)

// Handler serves the /api/ai endpoints. Each endpoint binds its own payload
// type and hands it to the service with the caller's bearer token.
type Handler struct {
	service Service
}

// NewHandler creates a new AI handler.
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// AnalyzeAudio handles POST /api/ai/analyze-audio.
func (h *Handler) AnalyzeAudio(c echo.Context) error {
	var req AnalyzeAudioRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	return h.generate(c, &req)
}

// AnalyzeMetadata handles POST /api/ai/analyze-metadata.
func (h *Handler) AnalyzeMetadata(c echo.Context) error {
	var req AnalyzeMetadataRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	return h.generate(c, req)
}

// GenerateCreative handles POST /api/ai/generate-creative.
func (h *Handler) GenerateCreative(c echo.Context) error {
	var req GenerateCreativeRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	return h.generate(c, req)
}

// GenerateRemix handles POST /api/ai/generate-remix.
func (h *Handler) GenerateRemix(c echo.Context) error {
	var req GenerateRemixRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	return h.generate(c, req)
}

// GenerateLyrics handles POST /api/ai/generate-lyrics.
func (h *Handler) GenerateLyrics(c echo.Context) error {
	var req GenerateLyricsRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	return h.generate(c, req)
}

func (h *Handler) generate(c echo.Context, req Request) error {
	result, err := h.service.Generate(c.Request().Context(), auth.BearerToken(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
