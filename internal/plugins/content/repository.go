package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/keyxmakerx/nexus/internal/kvstore"
)

// ContentRepository persists collections and the stats document.
type ContentRepository interface {
	// GetCollection returns the raw document and whether one is stored.
	GetCollection(ctx context.Context, c Collection) (json.RawMessage, bool, error)

	PutCollection(ctx context.Context, c Collection, raw json.RawMessage) error

	// GetStats returns the counters, zeroed when none are stored.
	GetStats(ctx context.Context) (*SiteStats, error)

	// UpdateStats applies fn to the counters atomically.
	UpdateStats(ctx context.Context, fn func(s *SiteStats)) (*SiteStats, error)
}

type kvContentRepository struct {
	store kvstore.Store
}

// NewContentRepository creates a content repository over the KV store.
func NewContentRepository(store kvstore.Store) ContentRepository {
	return &kvContentRepository{store: store}
}

func (r *kvContentRepository) GetCollection(ctx context.Context, c Collection) (json.RawMessage, bool, error) {
	raw, err := r.store.Get(ctx, string(c))
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading %s: %w", c, err)
	}
	return raw, true, nil
}

func (r *kvContentRepository) PutCollection(ctx context.Context, c Collection, raw json.RawMessage) error {
	if err := r.store.Set(ctx, string(c), raw, 0); err != nil {
		return fmt.Errorf("saving %s: %w", c, err)
	}
	return nil
}

func (r *kvContentRepository) GetStats(ctx context.Context) (*SiteStats, error) {
	var stats SiteStats
	err := kvstore.GetJSON(ctx, r.store, statsKey, &stats)
	if errors.Is(err, kvstore.ErrNotFound) {
		return &SiteStats{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading site stats: %w", err)
	}
	return &stats, nil
}

func (r *kvContentRepository) UpdateStats(ctx context.Context, fn func(s *SiteStats)) (*SiteStats, error) {
	stats, err := kvstore.UpdateJSON(ctx, r.store, statsKey, func(s *SiteStats, _ bool) error {
		fn(s)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("updating site stats: %w", err)
	}
	return &stats, nil
}
