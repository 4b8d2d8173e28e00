package auth

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/nexus/internal/middleware"
)

// RegisterRoutes mounts the /api/auth endpoints.
//
// Register and login are rate-limited per IP to slow credential stuffing:
// 10 attempts per minute for login, 5 for register.
func RegisterRoutes(e *echo.Echo, h *Handler, service AuthService) {
	g := e.Group("/api/auth")

	g.POST("/register", h.Register, middleware.RateLimit(5, time.Minute))
	g.POST("/login", h.Login, middleware.RateLimit(10, time.Minute))
	g.GET("/me", h.Me, RequireAuth(service))
	g.POST("/update", h.UpdateProfile)
	g.POST("/logout", h.Logout)
}
