// Package middleware provides HTTP middleware for the Nexus Echo server.
// Middleware is applied globally or per route group; see
// internal/app/routes.go for registration.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/labstack/echo/v4"
)

// clientIPKey carries Echo's resolved client IP into the net/http request
// context, where httprate's key function reads it.
type clientIPKey struct{}

// RateLimit returns middleware that limits requests per client IP to
// maxRequests within window, backed by httprate's sliding window counter.
// Exceeding the limit yields 429 with a JSON error body.
//
// The client IP comes from c.RealIP(), so forwarding headers are honored
// only for trusted proxies (see TrustedProxies).
func RateLimit(maxRequests int, window time.Duration) echo.MiddlewareFunc {
	limiter := httprate.NewRateLimiter(maxRequests, window,
		httprate.WithKeyFuncs(keyByEchoIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"Rate limit exceeded. Please try again later.","type":"rate_limited"}`))
		}),
	)
	limited := echo.WrapMiddleware(limiter.Handler)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		inner := limited(next)
		return func(c echo.Context) error {
			req := c.Request()
			ctx := context.WithValue(req.Context(), clientIPKey{}, c.RealIP())
			c.SetRequest(req.WithContext(ctx))
			return inner(c)
		}
	}
}

// keyByEchoIP keys the limiter on the IP stored by RateLimit, falling back
// to the peer address.
func keyByEchoIP(r *http.Request) (string, error) {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok && ip != "" {
		return ip, nil
	}
	return httprate.KeyByIP(r)
}
