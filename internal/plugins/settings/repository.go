package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/keyxmakerx/nexus/internal/kvstore"
)

// SettingsRepository persists the configuration documents.
type SettingsRepository interface {
	// GetSystem returns the stored system config, or a zero record when
	// none has been saved.
	GetSystem(ctx context.Context) (*systemRecord, error)

	// UpdateSystem applies fn to the stored record atomically.
	UpdateSystem(ctx context.Context, fn func(r *systemRecord) error) (*systemRecord, error)

	// GetSite returns the raw site config and whether one is stored.
	GetSite(ctx context.Context) (json.RawMessage, bool, error)

	// PutSite replaces the site config.
	PutSite(ctx context.Context, raw json.RawMessage) error
}

type settingsRepository struct {
	store kvstore.Store
}

// NewSettingsRepository creates a settings repository over the KV store.
func NewSettingsRepository(store kvstore.Store) SettingsRepository {
	return &settingsRepository{store: store}
}

func (r *settingsRepository) GetSystem(ctx context.Context) (*systemRecord, error) {
	var rec systemRecord
	err := kvstore.GetJSON(ctx, r.store, systemConfigKey, &rec)
	if errors.Is(err, kvstore.ErrNotFound) {
		return &systemRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading system config: %w", err)
	}
	return &rec, nil
}

func (r *settingsRepository) UpdateSystem(ctx context.Context, fn func(r *systemRecord) error) (*systemRecord, error) {
	rec, err := kvstore.UpdateJSON(ctx, r.store, systemConfigKey, func(v *systemRecord, _ bool) error {
		return fn(v)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *settingsRepository) GetSite(ctx context.Context) (json.RawMessage, bool, error) {
	raw, err := r.store.Get(ctx, siteConfigKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading site config: %w", err)
	}
	return raw, true, nil
}

func (r *settingsRepository) PutSite(ctx context.Context, raw json.RawMessage) error {
	if err := r.store.Set(ctx, siteConfigKey, raw, 0); err != nil {
		return fmt.Errorf("saving site config: %w", err)
	}
	return nil
}
