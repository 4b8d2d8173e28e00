package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/keyxmakerx/nexus/internal/apperror"
	"github.com/keyxmakerx/nexus/internal/plugins/audit"
	"github.com/keyxmakerx/nexus/internal/plugins/auth"
	"github.com/keyxmakerx/nexus/internal/plugins/credits"
)

const msgNoAPIKey = "Server API Key Not Configured"

// KeySource returns the admin-configured provider key, or "" when unset.
// Satisfied by settings.SettingsService.
type KeySource interface {
	GeminiAPIKey(ctx context.Context) (string, error)
}

// Service runs credit-gated generations.
type Service interface {
	// Generate resolves the session behind token, checks the balance,
	// calls the provider and debits one credit on success.
	Generate(ctx context.Context, token string, req Request) (Result, error)
}

// ServiceConfig holds the collaborators of the AI service.
type ServiceConfig struct {
	Auth     auth.AuthService
	Ledger   credits.Ledger
	Keys     KeySource
	Provider Provider
	Activity credits.ActivityRecorder

	// FallbackKey is used when the system config holds no key.
	FallbackKey string

	// Timeout bounds one provider call. Zero means no extra bound.
	Timeout time.Duration
}

type service struct {
	ServiceConfig
}

// NewService creates the AI proxy service.
func NewService(cfg ServiceConfig) Service {
	return &service{ServiceConfig: cfg}
}

func (s *service) Generate(ctx context.Context, token string, req Request) (Result, error) {
	if req == nil {
		return nil, apperror.NewValidation("unknown AI operation")
	}

	user, err := s.Auth.CurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}
	if !s.Ledger.HasCredits(user) {
		return nil, credits.InsufficientCredits()
	}

	if err := req.validate(); err != nil {
		return nil, err
	}
	p := req.prompt()

	apiKey, err := s.apiKey(ctx)
	if err != nil {
		return nil, err
	}

	callCtx := ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	started := time.Now()
	text, err := s.Provider.Complete(callCtx, apiKey, p)
	if err != nil {
		slog.Warn("ai provider call failed",
			slog.String("kind", string(req.Kind())),
			slog.String("user_id", user.ID),
			slog.Bool("timeout", errors.Is(err, context.DeadlineExceeded)),
			slog.Any("error", err),
		)
		return nil, apperror.NewProviderError(err)
	}

	result, err := parseResult(p, text)
	if err != nil {
		slog.Warn("ai provider returned unusable output",
			slog.String("kind", string(req.Kind())),
			slog.Int("bytes", len(text)),
		)
		return nil, err
	}

	// Debit last: a failed call or unusable output costs nothing.
	updated, err := s.Ledger.Debit(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	if s.Activity != nil {
		s.Activity.Record(ctx, user.ID, audit.ActionAIGenerate, map[string]any{
			"kind":    string(req.Kind()),
			"balance": updated.Credits,
		})
	}
	slog.Info("ai generation completed",
		slog.String("kind", string(req.Kind())),
		slog.String("user_id", user.ID),
		slog.Int("credits_left", updated.Credits),
		slog.Duration("latency", time.Since(started)),
	)
	return result, nil
}

// apiKey prefers the admin-configured key over the deployment default.
func (s *service) apiKey(ctx context.Context) (string, error) {
	if s.Keys != nil {
		key, err := s.Keys.GeminiAPIKey(ctx)
		if err != nil {
			return "", err
		}
		if key != "" {
			return key, nil
		}
	}
	if s.FallbackKey != "" {
		return s.FallbackKey, nil
	}
	return "", apperror.NewServiceUnavailable(msgNoAPIKey)
}

// parseResult decodes provider text according to the prompt's mode.
func parseResult(p Prompt, text string) (Result, error) {
	if !p.Structured {
		lyrics := strings.TrimSpace(text)
		if lyrics == "" {
			return nil, apperror.NewInvalidProviderResponse(errors.New("empty lyrics"))
		}
		return LyricsResult{Text: lyrics}, nil
	}

	cleaned := stripCodeFences(text)
	if !strings.HasPrefix(cleaned, "{") {
		return nil, apperror.NewInvalidProviderResponse(errors.New("analysis is not a JSON object"))
	}
	var result AnalysisResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, apperror.NewInvalidProviderResponse(fmt.Errorf("decoding analysis: %w", err))
	}
	return &result, nil
}
