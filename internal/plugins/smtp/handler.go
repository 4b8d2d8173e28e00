package smtp

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/nexus/internal/apperror"
)

// Handler serves the admin mail endpoints.
type Handler struct {
	service MailService
}

// NewHandler creates a new SMTP handler.
func NewHandler(service MailService) *Handler {
	return &Handler{service: service}
}

// SendTestEmail sends a fixed message through the configured relay
// (POST /api/system-config/test-email).
func (h *Handler) SendTestEmail(c echo.Context) error {
	var req TestEmailRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	to := strings.TrimSpace(req.To)
	if to == "" {
		return apperror.NewValidation("recipient is required")
	}

	body := "This is a test message from Nexus.\n\nIf you received it, outgoing mail is configured correctly."
	if err := h.service.SendMail(c.Request().Context(), []string{to}, "Nexus SMTP test", body); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}
