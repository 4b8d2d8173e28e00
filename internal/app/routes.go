package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/nexus/internal/plugins/admin"
	"github.com/keyxmakerx/nexus/internal/plugins/ai"
	"github.com/keyxmakerx/nexus/internal/plugins/audit"
	"github.com/keyxmakerx/nexus/internal/plugins/auth"
	"github.com/keyxmakerx/nexus/internal/plugins/content"
	"github.com/keyxmakerx/nexus/internal/plugins/credits"
	"github.com/keyxmakerx/nexus/internal/plugins/media"
	"github.com/keyxmakerx/nexus/internal/plugins/settings"
	"github.com/keyxmakerx/nexus/internal/plugins/smtp"
)

// healthTimeout bounds the store ping behind /healthz.
const healthTimeout = 2 * time.Second

// RegisterRoutes builds every plugin's services and mounts their routes.
//
// This is the single place where all routes are aggregated. When a new
// plugin is added, its routes are registered here.
func (a *App) RegisterRoutes() error {
	e := a.Echo
	cfg := a.Config

	// Liveness probe for container orchestrators.
	e.GET("/healthz", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
		defer cancel()
		if err := a.Store.Ping(ctx); err != nil {
			slog.Warn("health check failed", slog.Any("error", err))
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// --- Core services ---
	userRepo := auth.NewUserRepository(a.Store)
	authService := auth.NewAuthService(userRepo, auth.NewSessionStore(a.Store, cfg.Auth.SessionTTL), cfg.Auth.InitialCredits)

	auditService := audit.NewAuditService(audit.NewAuditRepository(a.Store))
	ledger := credits.NewLedger(userRepo, auditService)

	settingsService, err := settings.NewSettingsService(settings.NewSettingsRepository(a.Store), cfg.Auth.SecretKey)
	if err != nil {
		return fmt.Errorf("creating settings service: %w", err)
	}

	mailService := smtp.NewMailService(settingsService)
	auth.ConfigureMailSender(authService, mailService, cfg.BaseURL)

	// --- Admin plane ---
	gate := admin.NewGate(cfg.Admin.Password, cfg.Auth.SecretKey, cfg.Admin.TokenTTL)
	securityService := admin.NewSecurityService(admin.NewSecurityEventRepository(a.Store))
	adminOnly := admin.RequireAdmin(gate, securityService)

	// --- Plugin routes ---
	auth.RegisterRoutes(e, auth.NewHandler(authService), authService)

	aiService := ai.NewService(ai.ServiceConfig{
		Auth:        authService,
		Ledger:      ledger,
		Keys:        settingsService,
		Provider:    a.Provider,
		Activity:    auditService,
		FallbackKey: cfg.AI.APIKey,
		Timeout:     cfg.AI.Timeout,
	})
	ai.RegisterRoutes(e, ai.NewHandler(aiService))

	userAdmin := admin.NewUserAdminService(userRepo, authService, ledger, auditService)
	admin.RegisterRoutes(e, admin.NewHandler(gate, userAdmin, securityService), adminOnly)

	settings.RegisterRoutes(e, settings.NewHandler(settingsService), adminOnly)
	smtp.RegisterRoutes(e, smtp.NewHandler(mailService), adminOnly)

	content.RegisterRoutes(e, content.NewHandler(content.NewContentService(content.NewContentRepository(a.Store))), adminOnly)

	mediaService := media.NewMediaService(a.Storage, cfg.Storage.MaxUploadSize)
	media.RegisterRoutes(e, media.NewHandler(mediaService, cfg.Storage.MaxUploadSize), adminOnly, cfg.Storage.MaxUploadSize)

	return nil
}
