// Package settings holds the two admin-managed configuration documents:
// the system config (provider API key and SMTP relay, secrets encrypted at
// rest) and the public site config read by the frontend shell.
//
// Stored secrets are NEVER returned by the API. The admin view only says
// whether a secret is set.
package settings

import "time"

// KV keys for the configuration documents.
const (
	systemConfigKey = "system_config"
	siteConfigKey   = "site_config"
)

// SMTP encryption modes.
const (
	EncryptionStartTLS = "starttls"
	EncryptionSSL      = "ssl"
	EncryptionNone     = "none"
)

// defaultSMTPPort is used when an SMTP host is saved without a port.
const defaultSMTPPort = 587

// --- Stored documents ---

// systemRecord is the persisted system config. Secret fields hold sealed
// bytes and are base64 encoded by encoding/json.
type systemRecord struct {
	GeminiAPIKey []byte     `json:"geminiApiKey,omitempty"`
	SMTP         smtpRecord `json:"smtpConfig"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type smtpRecord struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	User       string `json:"user"`
	Pass       []byte `json:"pass,omitempty"`
	From       string `json:"from"`
	Encryption string `json:"encryption"`
}

// --- Views ---

// SystemConfig is the redacted admin view of the system config.
type SystemConfig struct {
	HasGeminiAPIKey bool       `json:"hasGeminiApiKey"`
	SMTP            SMTPView   `json:"smtpConfig"`
	UpdatedAt       *time.Time `json:"updatedAt,omitempty"`
}

// SMTPView is the SMTP relay without its password.
type SMTPView struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	User       string `json:"user"`
	HasPass    bool   `json:"hasPass"`
	From       string `json:"from"`
	Encryption string `json:"encryption"`
	Enabled    bool   `json:"enabled"`
}

// SMTPConfig is the decrypted relay configuration handed to the mailer.
// Internal only.
type SMTPConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	From       string
	Encryption string
}

// Enabled reports whether a relay host is configured.
func (c *SMTPConfig) Enabled() bool {
	return c != nil && c.Host != ""
}

// toView redacts the record for the admin API.
func (r *systemRecord) toView() *SystemConfig {
	view := &SystemConfig{
		HasGeminiAPIKey: len(r.GeminiAPIKey) > 0,
		SMTP: SMTPView{
			Host:       r.SMTP.Host,
			Port:       r.SMTP.Port,
			User:       r.SMTP.User,
			HasPass:    len(r.SMTP.Pass) > 0,
			From:       r.SMTP.From,
			Encryption: r.SMTP.Encryption,
			Enabled:    r.SMTP.Host != "",
		},
	}
	if !r.UpdatedAt.IsZero() {
		t := r.UpdatedAt
		view.UpdatedAt = &t
	}
	return view
}

// --- Requests ---

// UpdateSystemConfigRequest merges into the stored system config. Omitted
// sections are left alone and an empty secret keeps the stored one.
type UpdateSystemConfigRequest struct {
	GeminiAPIKey      string             `json:"geminiApiKey"`
	ClearGeminiAPIKey bool               `json:"clearGeminiApiKey"`
	SMTP              *UpdateSMTPRequest `json:"smtpConfig"`
}

// UpdateSMTPRequest replaces the relay settings. Pass is optional: empty
// keeps the existing password unless ClearPass is set.
type UpdateSMTPRequest struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	User       string `json:"user"`
	Pass       string `json:"pass"`
	ClearPass  bool   `json:"clearPass"`
	From       string `json:"from"`
	Encryption string `json:"encryption"`
}

// DefaultSiteConfig is served until an admin saves a site config.
func DefaultSiteConfig() map[string]any {
	return map[string]any{
		"navLabels": map[string]any{
			"home":      "主控台",
			"video":     "影视中心",
			"music":     "精选音乐",
			"article":   "深度专栏",
			"gallery":   "视觉画廊",
			"dashboard": "工坊",
		},
	}
}
