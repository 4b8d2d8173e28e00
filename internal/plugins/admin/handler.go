package admin

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/nexus/internal/apperror"
)

// Handler serves the admin plane endpoints. Depends on other plugins only
// through the services it is given.
type Handler struct {
	gate     *Gate
	users    UserAdminService
	security SecurityService
}

// NewHandler creates a new admin handler.
func NewHandler(gate *Gate, users UserAdminService, security SecurityService) *Handler {
	return &Handler{gate: gate, users: users, security: security}
}

// logEvent records a security event attributed to the caller.
func (h *Handler) logEvent(c echo.Context, eventType, userID string, details map[string]any) {
	req := c.Request()
	h.security.LogEvent(req.Context(), eventType, userID, c.RealIP(), req.UserAgent(), details)
}

// VerifyAuth checks the admin secret and issues a short-lived admin token
// (POST /api/verify-auth). Runs behind RequireAdmin.
func (h *Handler) VerifyAuth(c echo.Context) error {
	token, expires, err := h.gate.IssueToken()
	if err != nil {
		return apperror.NewInternal(err)
	}
	h.logEvent(c, EventAuthVerified, "", nil)
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "ok",
		"token":     token,
		"expiresAt": expires.UnixMilli(),
	})
}

// --- Users ---

// ListUsers returns every account without password hashes (GET /api/users).
func (h *Handler) ListUsers(c echo.Context) error {
	users, err := h.users.ListUsers(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"users": users})
}

// UpdateUser edits username and/or email (PUT /api/users/:id).
func (h *Handler) UpdateUser(c echo.Context) error {
	var req UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	id := c.Param("id")
	user, err := h.users.UpdateUser(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	h.logEvent(c, EventUserUpdated, id, nil)
	return c.JSON(http.StatusOK, map[string]any{"status": "ok", "user": user})
}

// DeleteUser removes an account (DELETE /api/users/:id).
func (h *Handler) DeleteUser(c echo.Context) error {
	id := c.Param("id")
	if err := h.users.DeleteUser(c.Request().Context(), id); err != nil {
		return err
	}
	h.logEvent(c, EventUserDeleted, id, nil)
	return c.JSON(http.StatusOK, map[string]any{"status": "ok"})
}

// AdjustCredits applies {amount} to the balance (POST /api/users/:id/credits).
func (h *Handler) AdjustCredits(c echo.Context) error {
	var req AdjustCreditsRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if req.Amount == nil {
		return apperror.NewValidation("amount is required")
	}

	id := c.Param("id")
	user, err := h.users.AdjustCredits(c.Request().Context(), id, *req.Amount)
	if err != nil {
		return err
	}
	h.logEvent(c, EventCreditsAdjusted, id, map[string]any{"amount": *req.Amount, "balance": user.Credits})
	return c.JSON(http.StatusOK, map[string]any{"status": "ok", "user": user})
}

// UserActivity lists recent audit entries (GET /api/users/:id/activity?limit=).
func (h *Handler) UserActivity(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	entries, err := h.users.Activity(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"activity": entries})
}

// RevokeSessions signs a user out everywhere (POST /api/users/:id/revoke-sessions).
func (h *Handler) RevokeSessions(c echo.Context) error {
	id := c.Param("id")
	if err := h.users.RevokeSessions(c.Request().Context(), id); err != nil {
		return err
	}
	h.logEvent(c, EventSessionsRevoked, id, nil)
	return c.JSON(http.StatusOK, map[string]any{"status": "ok"})
}

// --- Security ---

// SecurityEvents lists admin events (GET /api/admin/security?type=&page=).
func (h *Handler) SecurityEvents(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	ctx := c.Request().Context()

	events, total, err := h.security.ListEvents(ctx, c.QueryParam("type"), page)
	if err != nil {
		return err
	}
	stats, err := h.security.GetStats(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"events": events,
		"total":  total,
		"stats":  stats,
	})
}
