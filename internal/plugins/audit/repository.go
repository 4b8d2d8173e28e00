package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/keyxmakerx/nexus/internal/kvstore"
)

const keyPrefix = "audit:"

// maxEntriesPerUser caps each user's history; older entries fall off.
const maxEntriesPerUser = 100

// AuditRepository persists activity entries.
type AuditRepository interface {
	Append(ctx context.Context, userID string, entry Entry) error
	List(ctx context.Context, userID string) ([]Entry, error)
	DeleteAll(ctx context.Context, userID string) error
}

type kvAuditRepository struct {
	store kvstore.Store
}

// NewAuditRepository creates an audit repository backed by store.
func NewAuditRepository(store kvstore.Store) AuditRepository {
	return &kvAuditRepository{store: store}
}

// Append prepends entry through an optimistic update so concurrent writers
// on the same user do not drop each other's entries.
func (r *kvAuditRepository) Append(ctx context.Context, userID string, entry Entry) error {
	_, err := kvstore.UpdateJSON(ctx, r.store, keyPrefix+userID, func(entries *[]Entry, _ bool) error {
		next := make([]Entry, 0, min(len(*entries)+1, maxEntriesPerUser))
		next = append(next, entry)
		for _, e := range *entries {
			if len(next) == maxEntriesPerUser {
				break
			}
			next = append(next, e)
		}
		*entries = next
		return nil
	})
	if err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

// List returns a user's entries, newest first.
func (r *kvAuditRepository) List(ctx context.Context, userID string) ([]Entry, error) {
	var entries []Entry
	err := kvstore.GetJSON(ctx, r.store, keyPrefix+userID, &entries)
	if errors.Is(err, kvstore.ErrNotFound) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading audit entries: %w", err)
	}
	return entries, nil
}

// DeleteAll drops a user's history.
func (r *kvAuditRepository) DeleteAll(ctx context.Context, userID string) error {
	if err := r.store.Delete(ctx, keyPrefix+userID); err != nil {
		return fmt.Errorf("deleting audit entries: %w", err)
	}
	return nil
}
