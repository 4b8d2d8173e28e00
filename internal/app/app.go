// Package app is the application bootstrap and dependency injection root.
// It holds the shared infrastructure (KV store, object storage, AI
// provider, Echo instance) and wires together all plugins.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/keyxmakerx/nexus/internal/apperror"
	"github.com/keyxmakerx/nexus/internal/config"
	"github.com/keyxmakerx/nexus/internal/kvstore"
	"github.com/keyxmakerx/nexus/internal/middleware"
	"github.com/keyxmakerx/nexus/internal/plugins/ai"
	"github.com/keyxmakerx/nexus/internal/plugins/media"
)

// msgRouteNotFound is returned for unknown API paths.
const msgRouteNotFound = "Route Not Found"

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go and used to register all routes.
type App struct {
	// Config holds the loaded application configuration.
	Config *config.Config

	// Store is the key-value backend every plugin persists through.
	Store kvstore.Store

	// Storage is the media bucket. Nil when STORAGE_BACKEND=none.
	Storage media.Storage

	// Provider performs AI completions.
	Provider ai.Provider

	// Echo is the HTTP server instance.
	Echo *echo.Echo
}

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 2 * time.Minute
)

// New creates a new App instance with the given dependencies and configures
// the Echo server with global middleware and error handling.
func New(cfg *config.Config, store kvstore.Store, storage media.Storage, provider ai.Provider) *App {
	e := echo.New()

	// Disable Echo's default banner and startup message -- we log our own.
	e.HideBanner = true
	e.HidePort = true

	// Rate limits and the admin security log key on c.RealIP(), so only
	// forwarding headers from known proxies are honored.
	middleware.TrustedProxies(e, cfg.TrustedProxies)

	app := &App{
		Config:   cfg,
		Store:    store,
		Storage:  storage,
		Provider: provider,
		Echo:     e,
	}

	// Register global middleware in order of execution.
	app.setupMiddleware()

	// Register the custom error handler that maps AppErrors to HTTP responses.
	e.HTTPErrorHandler = app.errorHandler

	return app
}

// setupMiddleware registers global middleware on the Echo instance.
// Order matters: outermost (recovery) runs first.
func (a *App) setupMiddleware() {
	// Panic recovery -- must be outermost to catch panics from all other middleware.
	a.Echo.Use(middleware.Recovery())

	// Request logging -- log every request with method, path, status, latency.
	a.Echo.Use(middleware.RequestLogger())

	a.Echo.Use(middleware.SecurityHeaders())

	a.Echo.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: a.Config.CORSOrigins,
	}))

	// The built frontend is a single-page app: unknown non-API paths fall
	// back to index.html so client-side routing works on reload.
	if a.Config.StaticDir != "" {
		a.Echo.Use(echomw.StaticWithConfig(echomw.StaticConfig{
			Root:    a.Config.StaticDir,
			HTML5:   true,
			Skipper: func(c echo.Context) bool { return isAPIRequest(c) },
		}))
	}
}

// errorHandler is the custom Echo error handler. Every error becomes a
// JSON body of the form {"error": message, "type": kind}.
func (a *App) errorHandler(err error, c echo.Context) {
	// Don't double-write if response is already committed.
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "An unexpected error occurred"
	errType := apperror.TypeInternal

	// Check if it's our domain error type.
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
		message = appErr.Message
		errType = appErr.Type

		// Log internal errors with the underlying cause.
		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", appErr.Type),
				slog.String("message", appErr.Message),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
			)
		}
	} else {
		// Check for Echo's built-in HTTP errors (e.g., 404 from router).
		var echoErr *echo.HTTPError
		if errors.As(err, &echoErr) {
			code = echoErr.Code
			errType = echoErrorType(code)
			if msg, ok := echoErr.Message.(string); ok {
				message = msg
			} else {
				message = http.StatusText(code)
			}
			if code == http.StatusNotFound {
				message = msgRouteNotFound
			}
		} else {
			// Truly unexpected error -- log it.
			slog.Error("unhandled error",
				slog.Any("error", err),
				slog.String("path", c.Request().URL.Path),
			)
		}
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, map[string]string{
		"error": message,
		"type":  errType,
	})
}

// echoErrorType maps router and middleware status codes onto error types.
func echoErrorType(code int) string {
	switch code {
	case http.StatusNotFound:
		return apperror.TypeNotFound
	case http.StatusUnauthorized:
		return apperror.TypeUnauthorized
	case http.StatusForbidden:
		return apperror.TypeForbidden
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusInternalServerError:
		return apperror.TypeInternal
	default:
		return apperror.TypeBadRequest
	}
}

// isAPIRequest returns true if the request is targeting the API (JSON response expected).
func isAPIRequest(c echo.Context) bool {
	p := c.Request().URL.Path
	return p == "/api" || strings.HasPrefix(p, "/api/")
}

// Start begins listening for HTTP requests on the configured port.
func (a *App) Start() error {
	addr := fmt.Sprintf(":%d", a.Config.Port)
	slog.Info("starting Nexus server",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
	)
	a.configureServer()
	return a.Echo.Start(addr)
}

// configureServer applies the configured timeouts to Echo's http.Server.
// The header timeout is fixed so slow clients cannot hold connections open
// before a handler runs.
func (a *App) configureServer() {
	srv := a.Echo.Server
	srv.ReadHeaderTimeout = readHeaderTimeout
	srv.ReadTimeout = a.Config.ReadTimeout
	srv.WriteTimeout = a.Config.WriteTimeout
	srv.IdleTimeout = idleTimeout
}
