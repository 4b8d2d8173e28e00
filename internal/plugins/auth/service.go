package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/keyxmakerx/nexus/internal/apperror"
	"github.com/keyxmakerx/nexus/internal/sanitize"
)

// Field limits applied on registration and profile updates.
const (
	maxEmailLen    = 254
	maxUsernameLen = 64
	maxPasswordLen = 256
)

// msgInvalidCredentials is shared by every login failure so callers cannot
// tell an unknown email from a wrong password.
const msgInvalidCredentials = "invalid email or password"

// MailSender is the subset of the smtp plugin the auth service needs.
// Defined here so auth does not import smtp.
type MailSender interface {
	SendMail(ctx context.Context, to []string, subject, body string) error
	IsConfigured(ctx context.Context) bool
}

// AuthService defines the business logic contract for authentication.
// Handlers and other plugins call these methods; none of them touch the
// repository or session store directly.
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, input LoginInput) (*AuthResult, error)

	// CurrentUser resolves token and loads its user. Missing, expired and
	// invalid tokens return apperror.Unauthorized.
	CurrentUser(ctx context.Context, token string) (*User, error)

	UpdateProfile(ctx context.Context, token string, input UpdateProfileInput) (*User, error)
	Logout(ctx context.Context, token string) error

	// RevokeUserSessions signs a user out everywhere.
	RevokeUserSessions(ctx context.Context, userID string) error
}

// authService implements AuthService with argon2id hashing and KV sessions.
type authService struct {
	repo           UserRepository
	sessions       SessionStore
	initialCredits int
	mail           MailSender
	baseURL        string
	now            func() time.Time
}

// NewAuthService creates a new auth service with the given dependencies.
func NewAuthService(repo UserRepository, sessions SessionStore, initialCredits int) AuthService {
	return &authService{
		repo:           repo,
		sessions:       sessions,
		initialCredits: initialCredits,
		now:            time.Now,
	}
}

// ConfigureMailSender enables the welcome email sent after registration.
// Called after the smtp plugin is wired, since both depend on app startup
// order.
func ConfigureMailSender(svc AuthService, mail MailSender, baseURL string) {
	if s, ok := svc.(*authService); ok {
		s.mail = mail
		s.baseURL = baseURL
	}
}

// Register validates input, claims the email, stores the user with the
// initial credit grant and opens a session.
func (s *authService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email := normalizeEmail(input.Email)
	username := sanitize.Text(input.Username)
	password := input.Password

	if email == "" || username == "" || strings.TrimSpace(password) == "" {
		return nil, apperror.NewValidation("email, password and username are all required")
	}
	if err := validateFields(email, username, password); err != nil {
		return nil, err
	}

	// Check the index before doing expensive hashing. Create re-checks
	// atomically.
	if _, err := s.repo.FindIDByEmail(ctx, email); err == nil {
		return nil, errDuplicateEmail()
	} else if !apperror.IsType(err, apperror.TypeNotFound) {
		return nil, apperror.NewInternal(fmt.Errorf("checking email: %w", err))
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Credits:      s.initialCredits,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, asAppError(err, "creating user")
	}

	token, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("creating session: %w", err))
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
		slog.Int("credits", user.Credits),
	)

	s.sendWelcome(user)

	return &AuthResult{Token: token, User: user}, nil
}

// Login verifies credentials and opens a session. Legacy SHA-256 hashes
// are upgraded to argon2id on success.
func (s *authService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, apperror.NewValidation("email and password are required")
	}

	id, err := s.repo.FindIDByEmail(ctx, email)
	if err != nil {
		if apperror.IsType(err, apperror.TypeNotFound) {
			burnVerify(input.Password)
			return nil, apperror.NewUnauthorized(msgInvalidCredentials)
		}
		return nil, apperror.NewInternal(fmt.Errorf("resolving email: %w", err))
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if apperror.IsType(err, apperror.TypeNotFound) {
			burnVerify(input.Password)
			return nil, apperror.NewUnauthorized(msgInvalidCredentials)
		}
		return nil, apperror.NewInternal(fmt.Errorf("loading user: %w", err))
	}

	if !verifyPassword(input.Password, user.PasswordHash) {
		return nil, apperror.NewUnauthorized(msgInvalidCredentials)
	}

	if isLegacyHash(user.PasswordHash) {
		s.upgradeHash(ctx, user, input.Password)
	}

	token, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("creating session: %w", err))
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))

	return &AuthResult{Token: token, User: user}, nil
}

// CurrentUser resolves the session and loads the user.
func (s *authService) CurrentUser(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, apperror.NewUnauthorized("authentication required")
	}
	userID, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, asAppError(err, "loading user")
	}
	return user, nil
}

// UpdateProfile applies only the fields present in input.
func (s *authService) UpdateProfile(ctx context.Context, token string, input UpdateProfileInput) (*User, error) {
	current, err := s.CurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}

	var username, hash string
	if input.Username != nil {
		username = sanitize.Text(*input.Username)
		if username == "" {
			return nil, apperror.NewValidation("username cannot be empty")
		}
		if len(username) > maxUsernameLen {
			return nil, apperror.NewValidation(fmt.Sprintf("username must be at most %d characters", maxUsernameLen))
		}
	}
	if input.Password != nil {
		if strings.TrimSpace(*input.Password) == "" {
			return nil, apperror.NewValidation("password cannot be empty")
		}
		if len(*input.Password) > maxPasswordLen {
			return nil, apperror.NewValidation(fmt.Sprintf("password must be at most %d characters", maxPasswordLen))
		}
		hash, err = hashPassword(*input.Password)
		if err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
		}
	}
	if username == "" && hash == "" {
		return current, nil
	}

	updated, err := s.repo.Modify(ctx, current.ID, func(u *User) error {
		if username != "" {
			u.Username = username
		}
		if hash != "" {
			u.PasswordHash = hash
		}
		return nil
	})
	if err != nil {
		return nil, asAppError(err, "updating profile")
	}

	// A new password signs out every other device.
	if hash != "" {
		if err := s.sessions.RevokeOthers(ctx, current.ID, token); err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("revoking sessions: %w", err))
		}
	}

	slog.Info("profile updated",
		slog.String("user_id", updated.ID),
		slog.Bool("username_changed", username != ""),
		slog.Bool("password_changed", hash != ""),
	)
	return updated, nil
}

// Logout revokes the presented token server-side.
func (s *authService) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Revoke(ctx, token); err != nil {
		return apperror.NewInternal(fmt.Errorf("revoking session: %w", err))
	}
	return nil
}

// RevokeUserSessions drops every session belonging to userID.
func (s *authService) RevokeUserSessions(ctx context.Context, userID string) error {
	if err := s.sessions.RevokeAll(ctx, userID); err != nil {
		return apperror.NewInternal(fmt.Errorf("revoking sessions: %w", err))
	}
	return nil
}

// upgradeHash replaces a legacy hash. Failure is logged, not returned: the
// login itself already succeeded.
func (s *authService) upgradeHash(ctx context.Context, user *User, password string) {
	hash, err := hashPassword(password)
	if err != nil {
		slog.Warn("rehash failed", slog.String("user_id", user.ID), slog.Any("error", err))
		return
	}
	updated, err := s.repo.Modify(ctx, user.ID, func(u *User) error {
		u.PasswordHash = hash
		return nil
	})
	if err != nil {
		slog.Warn("storing upgraded hash failed", slog.String("user_id", user.ID), slog.Any("error", err))
		return
	}
	*user = *updated
	slog.Info("upgraded legacy password hash", slog.String("user_id", user.ID))
}

// sendWelcome mails new users in the background when SMTP is configured.
func (s *authService) sendWelcome(user *User) {
	if s.mail == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if !s.mail.IsConfigured(ctx) {
			return
		}
		body := fmt.Sprintf("Hi %s,\n\nYour Nexus account is ready and comes with %d AI credits.\nSign in at %s\n",
			user.Username, user.Credits, s.baseURL)
		if err := s.mail.SendMail(ctx, []string{user.Email}, "Welcome to Nexus", body); err != nil {
			slog.Warn("welcome email failed", slog.String("user_id", user.ID), slog.Any("error", err))
		}
	}()
}

// validateFields enforces length limits and a minimal email shape.
func validateFields(email, username, password string) error {
	if len(email) > maxEmailLen || !strings.Contains(email, "@") {
		return apperror.NewValidation("a valid email address is required")
	}
	if len(username) > maxUsernameLen {
		return apperror.NewValidation(fmt.Sprintf("username must be at most %d characters", maxUsernameLen))
	}
	if len(password) > maxPasswordLen {
		return apperror.NewValidation(fmt.Sprintf("password must be at most %d characters", maxPasswordLen))
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// asAppError passes AppErrors through and wraps anything else as internal.
func asAppError(err error, op string) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperror.NewInternal(fmt.Errorf("%s: %w", op, err))
}
