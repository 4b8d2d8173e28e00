package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/nexus/internal/apperror"
)

// Handler handles the /api/auth endpoints. Handlers are thin: they bind the
// request, call the service, and write JSON. No business logic lives here.
type Handler struct {
	service AuthService
}

// NewHandler creates a new auth handler with the given service.
func NewHandler(service AuthService) *Handler {
	return &Handler{service: service}
}

// Register creates an account and returns a session (POST /api/auth/register).
func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	result, err := h.service.Register(c.Request().Context(), RegisterInput(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// Login authenticates and returns a session (POST /api/auth/login).
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	result, err := h.service.Login(c.Request().Context(), LoginInput(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// Me returns the session's user (GET /api/auth/me). Requires RequireAuth.
func (h *Handler) Me(c echo.Context) error {
	user := GetUser(c)
	if user == nil {
		return apperror.NewMissingContext()
	}
	return c.JSON(http.StatusOK, map[string]any{"user": user})
}

// UpdateProfile changes username and/or password (POST /api/auth/update).
func (h *Handler) UpdateProfile(c echo.Context) error {
	var req UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	user, err := h.service.UpdateProfile(c.Request().Context(), BearerToken(c), UpdateProfileInput(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"user": user})
}

// Logout revokes the bearer token (POST /api/auth/logout). Logging out with
// an unknown or expired token still succeeds.
func (h *Handler) Logout(c echo.Context) error {
	token := BearerToken(c)
	if token == "" {
		return apperror.NewUnauthorized("authentication required")
	}
	if err := h.service.Logout(c.Request().Context(), token); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
