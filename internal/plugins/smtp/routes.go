package smtp

import "github.com/labstack/echo/v4"

// RegisterRoutes mounts the test-email endpoint behind adminOnly.
func RegisterRoutes(e *echo.Echo, h *Handler, adminOnly echo.MiddlewareFunc) {
	e.POST("/api/system-config/test-email", h.SendTestEmail, adminOnly)
}
