package media

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/nexus/internal/middleware"
)

// RegisterRoutes mounts the bucket endpoints. Serving files and the health
// check are public; everything else requires adminOnly. maxUploadSize
// limits request bodies on the write routes so oversized payloads are
// rejected before being read into memory.
func RegisterRoutes(e *echo.Echo, h *Handler, adminOnly echo.MiddlewareFunc, maxUploadSize int64) {
	e.GET("/api/file/*", h.Serve)
	e.GET("/api/health-check", h.HealthCheck)

	uploadRateLimit := middleware.RateLimit(60, time.Minute)
	bodyLimit := bodyLimitMiddleware(maxUploadSize)

	e.PUT("/api/upload", h.Upload, adminOnly, uploadRateLimit, bodyLimit)

	mp := e.Group("/api/upload/mp", adminOnly, uploadRateLimit, bodyLimit)
	mp.POST("/create", h.CreateMultipart)
	mp.POST("/part", h.UploadPart)
	mp.POST("/complete", h.CompleteMultipart)

	e.GET("/api/storage/list", h.List, adminOnly)
	e.DELETE("/api/delete-file/*", h.Delete, adminOnly)
}

// bodyLimitMiddleware returns middleware that rejects request bodies exceeding
// the given size in bytes. Applied before the handler reads the body into memory.
func bodyLimitMiddleware(maxBytes int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if maxBytes <= 0 {
				return next(c)
			}
			if c.Request().ContentLength > maxBytes {
				return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
					fmt.Sprintf("request body too large; maximum is %d MB", maxBytes/(1024*1024)))
			}
			c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, maxBytes)
			return next(c)
		}
	}
}
