// Package kvstore is the durable key-value layer every plugin persists
// through. Two backends implement Store: Redis (default) and MariaDB.
//
// Values are opaque bytes; callers use the JSON helpers in this package.
// Single-key operations are atomic. Read-modify-write goes through Update,
// which uses optimistic concurrency and retries on conflicting writers, so
// concurrent counter mutations never lose an update.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// maxUpdateAttempts bounds the optimistic retry loop in Update.
const maxUpdateAttempts = 10

var (
	// ErrNotFound is returned by Get when the key is absent or expired.
	ErrNotFound = errors.New("kvstore: key not found")

	// ErrConflict is returned by Update when every attempt lost the race
	// to a concurrent writer.
	ErrConflict = errors.New("kvstore: too many concurrent updates")
)

// UpdateFunc computes the next value from the current one. exists is false
// when the key is absent. Returning an error aborts the update and the
// error is passed through to the caller of Update unchanged.
type UpdateFunc func(current []byte, exists bool) ([]byte, error)

// Store is the key-value contract shared by both backends.
type Store interface {
	// Get returns the stored value or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value unconditionally. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX writes value only if key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes the given keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Keys lists every live key starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Update atomically replaces the value of key with fn's result. The
	// existing expiry, if any, is preserved.
	Update(ctx context.Context, key string, fn UpdateFunc) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
}

// GetJSON loads key and decodes it into dst.
func GetJSON(ctx context.Context, s Store, key string, dst any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return s.Set(ctx, key, raw, ttl)
}

// UpdateJSON runs an optimistic read-modify-write over a JSON document.
// fn mutates the decoded value in place; exists is false when the key was
// absent and v holds the zero value. The committed value is returned.
func UpdateJSON[T any](ctx context.Context, s Store, key string, fn func(v *T, exists bool) error) (T, error) {
	var committed T
	err := s.Update(ctx, key, func(current []byte, exists bool) ([]byte, error) {
		var v T
		if exists {
			if err := json.Unmarshal(current, &v); err != nil {
				return nil, fmt.Errorf("decoding %s: %w", key, err)
			}
		}
		if err := fn(&v, exists); err != nil {
			return nil, err
		}
		next, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", key, err)
		}
		committed = v
		return next, nil
	})
	return committed, err
}
