package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/keyxmakerx/nexus/internal/apperror"
	"github.com/keyxmakerx/nexus/internal/plugins/audit"
	"github.com/keyxmakerx/nexus/internal/plugins/auth"
	"github.com/keyxmakerx/nexus/internal/plugins/credits"
	"github.com/keyxmakerx/nexus/internal/sanitize"
)

// creditActor names the admin plane in ledger entries.
const creditActor = "admin"

// UserAdminService manages accounts on behalf of the admin plane.
type UserAdminService interface {
	ListUsers(ctx context.Context) ([]auth.User, error)

	// UpdateUser changes username and/or email.
	UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*auth.User, error)

	// DeleteUser signs the user out everywhere, then removes the account
	// and its activity log.
	DeleteUser(ctx context.Context, id string) error

	// AdjustCredits adds amount, which may be negative. Zero is a no-op.
	AdjustCredits(ctx context.Context, id string, amount int) (*auth.User, error)

	// Activity returns the newest audit entries for a user.
	Activity(ctx context.Context, id string, limit int) ([]audit.Entry, error)

	// RevokeSessions signs the user out everywhere.
	RevokeSessions(ctx context.Context, id string) error
}

type userAdminService struct {
	users  auth.UserRepository
	auth   auth.AuthService
	ledger credits.Ledger
	audit  audit.AuditService
}

// NewUserAdminService creates the admin user management service.
func NewUserAdminService(users auth.UserRepository, authService auth.AuthService, ledger credits.Ledger, auditService audit.AuditService) UserAdminService {
	return &userAdminService{users: users, auth: authService, ledger: ledger, audit: auditService}
}

func (s *userAdminService) ListUsers(ctx context.Context) ([]auth.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return users, nil
}

func (s *userAdminService) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*auth.User, error) {
	var username, email string
	if req.Username != nil {
		username = sanitize.Text(*req.Username)
		if username == "" {
			return nil, apperror.NewValidation("username cannot be empty")
		}
		if len(username) > maxUsernameLen {
			return nil, apperror.NewValidation(fmt.Sprintf("username must be at most %d characters", maxUsernameLen))
		}
	}
	if req.Email != nil {
		email = strings.ToLower(strings.TrimSpace(*req.Email))
		if email == "" || len(email) > maxEmailLen || !strings.Contains(email, "@") {
			return nil, apperror.NewValidation("a valid email is required")
		}
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, asAppError(err)
	}

	changed := map[string]any{}
	if req.Email != nil && email != user.Email {
		if user, err = s.users.ChangeEmail(ctx, id, email); err != nil {
			return nil, asAppError(err)
		}
		changed["email"] = email
	}
	if req.Username != nil && username != user.Username {
		user, err = s.users.Modify(ctx, id, func(u *auth.User) error {
			u.Username = username
			return nil
		})
		if err != nil {
			return nil, asAppError(err)
		}
		changed["username"] = username
	}

	if len(changed) > 0 {
		s.audit.Record(ctx, id, audit.ActionUserUpdated, changed)
		slog.Info("user updated by admin", slog.String("user_id", id), slog.Any("fields", changed))
	}
	return user, nil
}

func (s *userAdminService) DeleteUser(ctx context.Context, id string) error {
	if _, err := s.users.FindByID(ctx, id); err != nil {
		return asAppError(err)
	}
	if err := s.auth.RevokeUserSessions(ctx, id); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return asAppError(err)
	}
	if err := s.audit.Forget(ctx, id); err != nil {
		slog.Warn("failed to drop activity of deleted user", slog.String("user_id", id), slog.Any("error", err))
	}
	slog.Info("user deleted by admin", slog.String("user_id", id))
	return nil
}

func (s *userAdminService) AdjustCredits(ctx context.Context, id string, amount int) (*auth.User, error) {
	if amount > maxCreditChange || amount < -maxCreditChange {
		return nil, apperror.NewValidation("amount is out of range")
	}
	return s.ledger.Adjust(ctx, id, amount, creditActor)
}

func (s *userAdminService) Activity(ctx context.Context, id string, limit int) ([]audit.Entry, error) {
	if _, err := s.users.FindByID(ctx, id); err != nil {
		return nil, asAppError(err)
	}
	return s.audit.Activity(ctx, id, limit)
}

func (s *userAdminService) RevokeSessions(ctx context.Context, id string) error {
	if _, err := s.users.FindByID(ctx, id); err != nil {
		return asAppError(err)
	}
	return s.auth.RevokeUserSessions(ctx, id)
}

// asAppError passes AppErrors through and wraps anything else as a 500.
func asAppError(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperror.NewInternal(err)
}
