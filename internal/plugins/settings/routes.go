package settings

import "github.com/labstack/echo/v4"

// RegisterRoutes mounts the config endpoints. The site config is readable
// by anyone; everything else sits behind adminOnly.
func RegisterRoutes(e *echo.Echo, h *Handler, adminOnly echo.MiddlewareFunc) {
	e.GET("/api/site-config", h.GetSiteConfig)
	e.POST("/api/site-config", h.UpdateSiteConfig, adminOnly)

	e.GET("/api/system-config", h.GetSystemConfig, adminOnly)
	e.POST("/api/system-config", h.UpdateSystemConfig, adminOnly)
}
