package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/keyxmakerx/nexus/internal/kvstore"
)

// SecurityEventRepository persists the admin event log.
type SecurityEventRepository interface {
	// Log prepends an event, dropping the oldest beyond the cap.
	Log(ctx context.Context, event SecurityEvent) error

	// All returns every stored event, newest first.
	All(ctx context.Context) ([]SecurityEvent, error)
}

type securityEventRepository struct {
	store kvstore.Store
}

// NewSecurityEventRepository creates a repository over the KV store.
func NewSecurityEventRepository(store kvstore.Store) SecurityEventRepository {
	return &securityEventRepository{store: store}
}

func (r *securityEventRepository) Log(ctx context.Context, event SecurityEvent) error {
	_, err := kvstore.UpdateJSON(ctx, r.store, securityEventsKey, func(events *[]SecurityEvent, _ bool) error {
		next := append([]SecurityEvent{event}, *events...)
		if len(next) > maxSecurityEvents {
			next = next[:maxSecurityEvents]
		}
		*events = next
		return nil
	})
	if err != nil {
		return fmt.Errorf("appending security event: %w", err)
	}
	return nil
}

func (r *securityEventRepository) All(ctx context.Context) ([]SecurityEvent, error) {
	var events []SecurityEvent
	err := kvstore.GetJSON(ctx, r.store, securityEventsKey, &events)
	if errors.Is(err, kvstore.ErrNotFound) {
		return []SecurityEvent{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading security events: %w", err)
	}
	return events, nil
}
