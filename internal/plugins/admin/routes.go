package admin

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/nexus/internal/middleware"
)

// RegisterRoutes mounts the admin plane endpoints behind adminOnly, which
// app builds with RequireAdmin and shares with the other plugins.
//
// verify-auth is rate-limited per IP since it is the endpoint used to
// guess the secret.
func RegisterRoutes(e *echo.Echo, h *Handler, adminOnly echo.MiddlewareFunc) {
	e.POST("/api/verify-auth", h.VerifyAuth, middleware.RateLimit(10, time.Minute), adminOnly)

	users := e.Group("/api/users", adminOnly)
	users.GET("", h.ListUsers)
	users.PUT("/:id", h.UpdateUser)
	users.DELETE("/:id", h.DeleteUser)
	users.POST("/:id/credits", h.AdjustCredits)
	users.GET("/:id/activity", h.UserActivity)
	users.POST("/:id/revoke-sessions", h.RevokeSessions)

	e.GET("/api/admin/security", h.SecurityEvents, adminOnly)
}
