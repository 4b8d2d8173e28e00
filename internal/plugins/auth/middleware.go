package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// Context keys for storing the authenticated user in the Echo context.
// Other plugins read them through the exported getters below.
const (
	contextKeyUser  = "auth_user"
	contextKeyToken = "auth_token"
)

// RequireAuth returns middleware that resolves the bearer token and stores
// the user in the request context. Failures are returned as AppErrors so the
// central error handler renders them as 401 JSON.
func RequireAuth(service AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := BearerToken(c)
			user, err := service.CurrentUser(c.Request().Context(), token)
			if err != nil {
				return err
			}

			c.Set(contextKeyUser, user)
			c.Set(contextKeyToken, token)
			return next(c)
		}
	}
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
// Returns "" when the header is missing or uses another scheme.
func BearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// --- Exported getters for other plugins ---

// GetUser returns the authenticated user, or nil if RequireAuth did not run.
func GetUser(c echo.Context) *User {
	user, ok := c.Get(contextKeyUser).(*User)
	if !ok {
		return nil
	}
	return user
}

// GetUserID returns the authenticated user's ID, or "".
func GetUserID(c echo.Context) string {
	if user := GetUser(c); user != nil {
		return user.ID
	}
	return ""
}
