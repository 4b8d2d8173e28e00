package content

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/nexus/internal/middleware"
)

// RegisterRoutes mounts the collections and stats. Reads and stat hits
// are public; collection writes require adminOnly.
func RegisterRoutes(e *echo.Echo, h *Handler, adminOnly echo.MiddlewareFunc) {
	for _, c := range Collections {
		path := "/api/" + string(c)
		e.GET(path, h.GetCollection(c))
		e.POST(path, h.ReplaceCollection(c), adminOnly)
	}

	e.GET("/api/stats", h.GetStats)
	e.POST("/api/stats", h.RecordStat, middleware.RateLimit(120, time.Minute))
}
