package ai

import (
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/keyxmakerx/nexus/internal/middleware"
)

// RegisterRoutes mounts the AI proxy. Sessions are resolved by the service
// itself, so no auth middleware is attached here. Every route shares a
// per-IP limit of 30 calls per minute.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	g := e.Group("/api/ai", middleware.RateLimit(30, time.Minute))

	// Inline audio is capped at 20MB decoded, about 27MB as base64 JSON.
	g.POST("/analyze-audio", h.AnalyzeAudio, echomw.BodyLimit("28M"))
	g.POST("/analyze-metadata", h.AnalyzeMetadata, echomw.BodyLimit("64K"))
	g.POST("/generate-creative", h.GenerateCreative, echomw.BodyLimit("64K"))
	g.POST("/generate-remix", h.GenerateRemix, echomw.BodyLimit("1M"))
	g.POST("/generate-lyrics", h.GenerateLyrics, echomw.BodyLimit("64K"))
}
