package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/mail"
	gosmtp "net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/keyxmakerx/nexus/internal/apperror"
	"github.com/keyxmakerx/nexus/internal/plugins/settings"
)

// MailService is the contract other plugins use to send email.
type MailService interface {
	SendMail(ctx context.Context, to []string, subject, body string) error
	IsConfigured(ctx context.Context) bool
}

// ConfigSource supplies the decrypted relay settings. Satisfied by
// settings.SettingsService.
type ConfigSource interface {
	SMTPConfig(ctx context.Context) (*settings.SMTPConfig, error)
}

// sendFunc delivers a built message over the relay.
type sendFunc func(ctx context.Context, cfg *settings.SMTPConfig, from string, to []string, msg []byte) error

type mailService struct {
	source ConfigSource
	send   sendFunc
	now    func() time.Time
}

// NewMailService creates a mailer reading its relay from source.
func NewMailService(source ConfigSource) MailService {
	return &mailService{source: source, send: deliver, now: time.Now}
}

// IsConfigured reports whether a relay host is set.
func (s *mailService) IsConfigured(ctx context.Context) bool {
	cfg, err := s.source.SMTPConfig(ctx)
	if err != nil {
		return false
	}
	return cfg.Enabled()
}

// SendMail sends a plain-text message to every recipient.
func (s *mailService) SendMail(ctx context.Context, to []string, subject, body string) error {
	cfg, err := s.source.SMTPConfig(ctx)
	if err != nil {
		return err
	}
	if !cfg.Enabled() {
		return apperror.NewBadRequest("SMTP is not configured")
	}
	if len(to) == 0 {
		return apperror.NewValidation("at least one recipient is required")
	}
	for _, addr := range to {
		if _, err := mail.ParseAddress(addr); err != nil {
			return apperror.NewValidation(fmt.Sprintf("invalid recipient %q", addr))
		}
	}

	from, err := senderAddress(cfg)
	if err != nil {
		return err
	}

	msg := buildMessage(from, to, subject, body, s.now())
	if err := s.send(ctx, cfg, from.Address, to, msg); err != nil {
		slog.Warn("smtp send failed",
			slog.String("host", cfg.Host),
			slog.Int("recipients", len(to)),
			slog.Any("error", err),
		)
		return apperror.NewBadRequest(fmt.Sprintf("sending mail failed: %v", err))
	}

	slog.Info("mail sent", slog.String("host", cfg.Host), slog.Int("recipients", len(to)))
	return nil
}

// senderAddress parses the configured From, falling back to the relay
// user when it is an address.
func senderAddress(cfg *settings.SMTPConfig) (*mail.Address, error) {
	raw := cfg.From
	if raw == "" {
		raw = cfg.User
	}
	from, err := mail.ParseAddress(raw)
	if err != nil {
		return nil, apperror.NewBadRequest("SMTP sender address is not configured")
	}
	if from.Name == "" {
		from.Name = "Nexus"
	}
	return from, nil
}

// buildMessage renders an RFC 5322 plain-text message. Header values are
// stripped of CR and LF.
func buildMessage(from *mail.Address, to []string, subject, body string, now time.Time) []byte {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from.String())
	fmt.Fprintf(&msg, "To: %s\r\n", headerValue(strings.Join(to, ", ")))
	fmt.Fprintf(&msg, "Subject: %s\r\n", headerValue(subject))
	fmt.Fprintf(&msg, "Date: %s\r\n", now.UTC().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(msg.String())
}

func headerValue(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

// deliver opens a connection according to the encryption mode and sends msg.
func deliver(ctx context.Context, cfg *settings.SMTPConfig, from string, to []string, msg []byte) error {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	tlsConfig := &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}

	var conn net.Conn
	var err error
	if cfg.Encryption == settings.EncryptionSSL {
		d := &tls.Dialer{NetDialer: &net.Dialer{Timeout: dialTimeout}, Config: tlsConfig}
		conn, err = d.DialContext(ctx, "tcp", addr)
	} else {
		d := &net.Dialer{Timeout: dialTimeout}
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := gosmtp.NewClient(conn, cfg.Host)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}
	defer client.Close()

	if cfg.Encryption == settings.EncryptionStartTLS {
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("starting TLS: %w", err)
		}
	}

	if cfg.User != "" {
		if err := client.Auth(gosmtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)); err != nil {
			return fmt.Errorf("authenticating: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing data: %w", err)
	}
	return client.Quit()
}
