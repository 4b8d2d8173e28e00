package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/keyxmakerx/nexus/internal/apperror"
)

// SettingsService manages the system and site configuration documents.
type SettingsService interface {
	// GetSystemConfig returns the redacted system config.
	GetSystemConfig(ctx context.Context) (*SystemConfig, error)

	// UpdateSystemConfig merges req into the stored system config.
	UpdateSystemConfig(ctx context.Context, req UpdateSystemConfigRequest) (*SystemConfig, error)

	// GeminiAPIKey returns the decrypted provider key, or "" when unset.
	GeminiAPIKey(ctx context.Context) (string, error)

	// SMTPConfig returns the decrypted relay settings.
	SMTPConfig(ctx context.Context) (*SMTPConfig, error)

	// GetSiteConfig returns the stored site config or the default one.
	GetSiteConfig(ctx context.Context) (json.RawMessage, error)

	// UpdateSiteConfig replaces the site config. raw must be a JSON object.
	UpdateSiteConfig(ctx context.Context, raw json.RawMessage) (json.RawMessage, error)
}

type settingsService struct {
	repo   SettingsRepository
	sealer *sealer
	now    func() time.Time
}

// NewSettingsService creates a settings service. secretKey keys the
// encryption of stored secrets; changing it makes them unreadable.
func NewSettingsService(repo SettingsRepository, secretKey string) (SettingsService, error) {
	s, err := newSealer(secretKey)
	if err != nil {
		return nil, err
	}
	return &settingsService{repo: repo, sealer: s, now: time.Now}, nil
}

func (s *settingsService) GetSystemConfig(ctx context.Context) (*SystemConfig, error) {
	rec, err := s.repo.GetSystem(ctx)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return rec.toView(), nil
}

func (s *settingsService) UpdateSystemConfig(ctx context.Context, req UpdateSystemConfigRequest) (*SystemConfig, error) {
	var smtpReq *UpdateSMTPRequest
	if req.SMTP != nil {
		normalized, err := normalizeSMTP(*req.SMTP)
		if err != nil {
			return nil, err
		}
		smtpReq = &normalized
	}

	// Seal outside the update closure so retries reuse the ciphertext.
	sealedKey, err := s.sealer.seal(strings.TrimSpace(req.GeminiAPIKey))
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("encrypting api key: %w", err))
	}
	var sealedPass []byte
	if smtpReq != nil {
		if sealedPass, err = s.sealer.seal(smtpReq.Pass); err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("encrypting smtp password: %w", err))
		}
	}

	rec, err := s.repo.UpdateSystem(ctx, func(r *systemRecord) error {
		switch {
		case req.ClearGeminiAPIKey:
			r.GeminiAPIKey = nil
		case sealedKey != nil:
			r.GeminiAPIKey = sealedKey
		}

		if smtpReq != nil {
			pass := r.SMTP.Pass
			switch {
			case smtpReq.ClearPass:
				pass = nil
			case sealedPass != nil:
				pass = sealedPass
			}
			r.SMTP = smtpRecord{
				Host:       smtpReq.Host,
				Port:       smtpReq.Port,
				User:       smtpReq.User,
				Pass:       pass,
				From:       smtpReq.From,
				Encryption: smtpReq.Encryption,
			}
		}

		r.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("saving system config: %w", err))
	}

	slog.Info("system config updated",
		slog.Bool("gemini_key_set", len(rec.GeminiAPIKey) > 0),
		slog.String("smtp_host", rec.SMTP.Host),
	)
	return rec.toView(), nil
}

// normalizeSMTP trims and validates relay settings, filling defaults.
func normalizeSMTP(req UpdateSMTPRequest) (UpdateSMTPRequest, error) {
	req.Host = strings.TrimSpace(req.Host)
	req.User = strings.TrimSpace(req.User)
	req.From = strings.TrimSpace(req.From)
	req.Encryption = strings.ToLower(strings.TrimSpace(req.Encryption))

	if req.Port < 0 || req.Port > 65535 {
		return req, apperror.NewValidation("smtp port must be between 1 and 65535")
	}
	if req.Port == 0 {
		req.Port = defaultSMTPPort
	}

	switch req.Encryption {
	case "":
		req.Encryption = EncryptionStartTLS
	case EncryptionStartTLS, EncryptionSSL, EncryptionNone:
	default:
		return req, apperror.NewValidation("smtp encryption must be starttls, ssl or none")
	}

	if req.From != "" {
		if _, err := mail.ParseAddress(req.From); err != nil {
			return req, apperror.NewValidation("smtp from address is invalid")
		}
	}
	return req, nil
}

func (s *settingsService) GeminiAPIKey(ctx context.Context) (string, error) {
	rec, err := s.repo.GetSystem(ctx)
	if err != nil {
		return "", apperror.NewInternal(err)
	}
	key, err := s.sealer.open(rec.GeminiAPIKey)
	if err != nil {
		return "", apperror.NewInternal(fmt.Errorf("decrypting api key: %w", err))
	}
	return key, nil
}

func (s *settingsService) SMTPConfig(ctx context.Context) (*SMTPConfig, error) {
	rec, err := s.repo.GetSystem(ctx)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	// Decrypted at use time; plaintext is never cached.
	pass, err := s.sealer.open(rec.SMTP.Pass)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("decrypting smtp password: %w", err))
	}
	return &SMTPConfig{
		Host:       rec.SMTP.Host,
		Port:       rec.SMTP.Port,
		User:       rec.SMTP.User,
		Password:   pass,
		From:       rec.SMTP.From,
		Encryption: rec.SMTP.Encryption,
	}, nil
}

func (s *settingsService) GetSiteConfig(ctx context.Context) (json.RawMessage, error) {
	raw, ok, err := s.repo.GetSite(ctx)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	if ok {
		return raw, nil
	}
	def, err := json.Marshal(DefaultSiteConfig())
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return def, nil
}

func (s *settingsService) UpdateSiteConfig(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		return nil, apperror.NewValidation("site config must be a JSON object")
	}
	// Re-encode so the stored document is compact and known to be valid.
	compact, err := json.Marshal(doc)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	if err := s.repo.PutSite(ctx, compact); err != nil {
		return nil, apperror.NewInternal(err)
	}
	slog.Info("site config updated", slog.Int("bytes", len(compact)))
	return compact, nil
}
