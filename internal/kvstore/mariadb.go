package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// MariaDBStore implements Store on the kv_entries table. Each row carries a
// version column; Update is a compare-and-swap on that version.
type MariaDBStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewMariaDBStore wraps an open pool. The kv_entries migration must have run.
func NewMariaDBStore(db *sql.DB) *MariaDBStore {
	return &MariaDBStore{db: db, now: time.Now}
}

func (s *MariaDBStore) expiry(ttl time.Duration) sql.NullTime {
	if ttl <= 0 {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: s.now().Add(ttl).UTC(), Valid: true}
}

// Get returns the live value for key.
func (s *MariaDBStore) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT v FROM kv_entries WHERE k = ? AND (expires_at IS NULL OR expires_at > ?)`,
		key, s.now().UTC(),
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting %s: %w", key, err)
	}
	return v, nil
}

// Set upserts key and bumps its version.
func (s *MariaDBStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_entries (k, v, version, expires_at) VALUES (?, ?, 1, ?)
		 ON DUPLICATE KEY UPDATE v = VALUES(v), version = version + 1, expires_at = VALUES(expires_at)`,
		key, value, s.expiry(ttl),
	)
	if err != nil {
		return fmt.Errorf("upserting %s: %w", key, err)
	}
	return nil
}

// SetNX inserts key unless a live row exists. An expired row is reclaimed.
func (s *MariaDBStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := s.deleteExpired(ctx, key); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT IGNORE INTO kv_entries (k, v, version, expires_at) VALUES (?, ?, 1, ?)`,
		key, value, s.expiry(ttl),
	)
	if err != nil {
		return false, fmt.Errorf("inserting %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting %s: %w", key, err)
	}
	return n == 1, nil
}

// Delete removes keys in one statement.
func (s *MariaDBStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE k IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("deleting keys: %w", err)
	}
	return nil
}

// Keys lists live keys with the given prefix.
func (s *MariaDBStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT k FROM kv_entries WHERE k LIKE ? ESCAPE '\\' AND (expires_at IS NULL OR expires_at > ?) ORDER BY k`,
		escapeLike(prefix)+"%", s.now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("listing %s*: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Update reads the row and its version, then writes back only if the
// version is unchanged. A lost race retries from the read.
func (s *MariaDBStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		var (
			current []byte
			version uint64
		)
		err := s.db.QueryRowContext(ctx,
			`SELECT v, version FROM kv_entries WHERE k = ? AND (expires_at IS NULL OR expires_at > ?)`,
			key, s.now().UTC(),
		).Scan(&current, &version)
		exists := true
		if errors.Is(err, sql.ErrNoRows) {
			exists = false
		} else if err != nil {
			return fmt.Errorf("selecting %s: %w", key, err)
		}

		next, err := fn(current, exists)
		if err != nil {
			return err
		}

		var res sql.Result
		if exists {
			res, err = s.db.ExecContext(ctx,
				`UPDATE kv_entries SET v = ?, version = version + 1 WHERE k = ? AND version = ?`,
				next, key, version,
			)
		} else {
			if err := s.deleteExpired(ctx, key); err != nil {
				return err
			}
			res, err = s.db.ExecContext(ctx,
				`INSERT IGNORE INTO kv_entries (k, v, version) VALUES (?, ?, 1)`,
				key, next,
			)
		}
		if err != nil {
			return fmt.Errorf("writing %s: %w", key, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("writing %s: %w", key, err)
		}
		if n == 1 {
			return nil
		}
		slog.Debug("kv update conflict, retrying", slog.String("key", key), slog.Int("attempt", attempt+1))
	}
	return ErrConflict
}

// Ping checks connectivity.
func (s *MariaDBStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// PurgeExpired deletes every expired row. Reads already ignore expired
// rows; this only reclaims space.
func (s *MariaDBStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= ?`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purging expired entries: %w", err)
	}
	return res.RowsAffected()
}

// RunJanitor calls PurgeExpired every interval until ctx is done.
func (s *MariaDBStore) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				slog.Warn("kv janitor failed", slog.Any("error", err))
				continue
			}
			if n > 0 {
				slog.Debug("kv janitor purged expired entries", slog.Int64("count", n))
			}
		}
	}
}

func (s *MariaDBStore) deleteExpired(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE k = ? AND expires_at IS NOT NULL AND expires_at <= ?`,
		key, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("reclaiming expired %s: %w", key, err)
	}
	return nil
}

// escapeLike quotes LIKE wildcards so prefixes match literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
