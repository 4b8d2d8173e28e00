package admin

import (
	"time"

	"github.com/go-chi/httprate"
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/nexus/internal/apperror"
)

// Each IP may fail admin authentication this many times per window before
// further failures are refused with 429 and no longer written to the
// security log.
const (
	maxFailuresPerWindow = 20
	failureWindow        = time.Minute
)

// RequireAdmin returns middleware admitting requests that carry either a
// valid X-Admin-Token or the admin secret in X-Admin-Password. Rejected
// attempts are recorded as security events when security is non-nil.
// Valid credentials are never throttled.
func RequireAdmin(gate *Gate, security SecurityService) echo.MiddlewareFunc {
	failures := httprate.NewRateLimiter(maxFailuresPerWindow, failureWindow)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			var err error
			if token := req.Header.Get(HeaderAdminToken); token != "" {
				err = gate.VerifyToken(token)
			} else {
				err = gate.Authorize(req.Header.Get(HeaderAdminPassword))
			}
			if err == nil {
				return next(c)
			}

			ip := c.RealIP()
			if failures.OnLimit(c.Response(), req, ip) {
				return apperror.NewRateLimited("Too many failed admin attempts. Please try again later.")
			}
			if security != nil {
				security.LogEvent(req.Context(), EventAuthFailed, "", ip, req.UserAgent(), map[string]any{
					"method": req.Method,
					"path":   req.URL.Path,
				})
			}
			return err
		}
	}
}
