package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/keyxmakerx/nexus/internal/apperror"
)

// AuditService records and reads account activity.
type AuditService interface {
	// Record stores an entry. Fire-and-forget: errors are logged, never
	// returned.
	Record(ctx context.Context, userID, action string, details map[string]any)

	// Activity returns up to limit of the newest entries for userID.
	Activity(ctx context.Context, userID string, limit int) ([]Entry, error)

	// Forget removes every entry of a deleted user.
	Forget(ctx context.Context, userID string) error
}

type auditService struct {
	repo AuditRepository
	now  func() time.Time
}

// NewAuditService creates a new audit service with the given repository.
func NewAuditService(repo AuditRepository) AuditService {
	return &auditService{repo: repo, now: time.Now}
}

// Record appends an entry and logs it.
func (s *auditService) Record(ctx context.Context, userID, action string, details map[string]any) {
	if userID == "" || action == "" {
		return
	}
	entry := Entry{Action: action, Details: details, CreatedAt: s.now().UTC()}
	if err := s.repo.Append(ctx, userID, entry); err != nil {
		slog.Error("failed to write audit entry",
			slog.String("user_id", userID),
			slog.String("action", action),
			slog.Any("error", err),
		)
		return
	}
	slog.Debug("audit", slog.String("user_id", userID), slog.String("action", action))
}

// Activity clamps limit to the stored cap.
func (s *auditService) Activity(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > maxEntriesPerUser {
		limit = maxEntriesPerUser
	}
	entries, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing activity: %w", err))
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Forget drops the user's history.
func (s *auditService) Forget(ctx context.Context, userID string) error {
	if err := s.repo.DeleteAll(ctx, userID); err != nil {
		return apperror.NewInternal(err)
	}
	return nil
}
