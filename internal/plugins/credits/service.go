// Package credits meters AI usage. Every user carries an integer balance;
// each successful AI generation costs one credit and administrators can
// grant or remove credits at will.
package credits

import (
	"context"
	"errors"
	"log/slog"

	"github.com/keyxmakerx/nexus/internal/apperror"
	"github.com/keyxmakerx/nexus/internal/plugins/auth"
)

// msgInsufficient is shown when a metered call is attempted at zero balance.
const msgInsufficient = "Insufficient credits. Please contact an administrator for a top-up."

// ActivityRecorder receives an entry for every balance change. Satisfied
// by the audit plugin; defined here to avoid an import cycle.
type ActivityRecorder interface {
	Record(ctx context.Context, userID, action string, details map[string]any)
}

// Ledger reads and mutates user balances.
type Ledger interface {
	// HasCredits reports whether u may start a metered call.
	HasCredits(u *auth.User) bool

	// Debit removes one credit. It fails with 402 if the balance is already
	// exhausted when the write commits.
	Debit(ctx context.Context, userID string) (*auth.User, error)

	// Adjust adds delta (which may be negative) with no floor. A zero delta
	// changes nothing and returns the current user.
	Adjust(ctx context.Context, userID string, delta int, actor string) (*auth.User, error)
}

// ledger applies every change through UserRepository.Modify, so concurrent
// debits and grants on one account serialize via optimistic retries.
type ledger struct {
	users    auth.UserRepository
	activity ActivityRecorder
}

// NewLedger creates a ledger over the user repository. activity may be nil.
func NewLedger(users auth.UserRepository, activity ActivityRecorder) Ledger {
	return &ledger{users: users, activity: activity}
}

// HasCredits reports whether the balance is positive.
func (l *ledger) HasCredits(u *auth.User) bool {
	return u != nil && u.Credits > 0
}

// Debit decrements the balance by one.
func (l *ledger) Debit(ctx context.Context, userID string) (*auth.User, error) {
	updated, err := l.users.Modify(ctx, userID, func(u *auth.User) error {
		if u.Credits <= 0 {
			return apperror.NewInsufficientCredits(msgInsufficient)
		}
		u.Credits--
		return nil
	})
	if err != nil {
		return nil, wrap(err)
	}

	l.record(ctx, userID, "credits.debit", map[string]any{"delta": -1, "balance": updated.Credits})
	return updated, nil
}

// Adjust applies an administrative change.
func (l *ledger) Adjust(ctx context.Context, userID string, delta int, actor string) (*auth.User, error) {
	if delta == 0 {
		user, err := l.users.FindByID(ctx, userID)
		if err != nil {
			return nil, wrap(err)
		}
		return user, nil
	}

	updated, err := l.users.Modify(ctx, userID, func(u *auth.User) error {
		u.Credits += delta
		return nil
	})
	if err != nil {
		return nil, wrap(err)
	}

	slog.Info("credits adjusted",
		slog.String("user_id", userID),
		slog.Int("delta", delta),
		slog.Int("balance", updated.Credits),
		slog.String("actor", actor),
	)
	l.record(ctx, userID, "credits.adjust", map[string]any{"delta": delta, "balance": updated.Credits, "actor": actor})
	return updated, nil
}

// InsufficientCredits builds the 402 error used before a metered call.
func InsufficientCredits() *apperror.AppError {
	return apperror.NewInsufficientCredits(msgInsufficient)
}

func (l *ledger) record(ctx context.Context, userID, action string, details map[string]any) {
	if l.activity != nil {
		l.activity.Record(ctx, userID, action, details)
	}
}

// wrap passes AppErrors through and hides anything else behind a 500.
func wrap(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperror.NewInternal(err)
}
