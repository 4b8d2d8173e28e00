package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/keyxmakerx/nexus/internal/apperror"
	"github.com/keyxmakerx/nexus/internal/kvstore"
)

// sessionTokenBytes is the number of random bytes in a session token.
// 32 bytes = 256 bits of entropy, hex-encoded to 64 characters.
const sessionTokenBytes = 32

// SessionStore maps opaque bearer tokens to user IDs.
type SessionStore interface {
	// Create issues a fresh token for userID valid for the configured TTL.
	Create(ctx context.Context, userID string) (string, error)

	// Resolve returns the user ID for a live token. Absent, malformed and
	// expired tokens yield apperror.Unauthorized; expired ones are deleted.
	Resolve(ctx context.Context, token string) (string, error)

	// Revoke invalidates one token. Unknown tokens are ignored.
	Revoke(ctx context.Context, token string) error

	// RevokeAll invalidates every token issued to userID.
	RevokeAll(ctx context.Context, userID string) error

	// RevokeOthers invalidates every token of userID except keep.
	RevokeOthers(ctx context.Context, userID, keep string) error
}

// errNoSessionIndex aborts an index swap when the user has no sessions.
var errNoSessionIndex = errors.New("no session index")

// kvSessionStore keeps session:<token> records plus a per-user index of
// token expiries used by RevokeAll.
type kvSessionStore struct {
	store kvstore.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewSessionStore creates a session store with the given lifetime.
func NewSessionStore(store kvstore.Store, ttl time.Duration) SessionStore {
	return &kvSessionStore{store: store, ttl: ttl, now: time.Now}
}

func errInvalidSession() *apperror.AppError {
	return apperror.NewUnauthorized("session expired or invalid, please log in again")
}

// Create generates a token, stores the session with a backend TTL matching
// its expiry and records it in the user's token index.
func (s *kvSessionStore) Create(ctx context.Context, userID string) (string, error) {
	token, err := generateSessionToken()
	if err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	session := Session{UserID: userID, ExpiresAt: expiresAt.UnixMilli()}
	if err := kvstore.SetJSON(ctx, s.store, sessionKey(token), session, s.ttl); err != nil {
		return "", fmt.Errorf("storing session: %w", err)
	}

	_, err = kvstore.UpdateJSON(ctx, s.store, userSessionsKey(userID), func(index *map[string]int64, _ bool) error {
		if *index == nil {
			*index = make(map[string]int64)
		}
		for t, exp := range *index {
			if now.UnixMilli() >= exp {
				delete(*index, t)
			}
		}
		(*index)[token] = session.ExpiresAt
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("indexing session: %w", err)
	}
	return token, nil
}

// Resolve validates the token format before touching the store.
func (s *kvSessionStore) Resolve(ctx context.Context, token string) (string, error) {
	if !validTokenFormat(token) {
		return "", errInvalidSession()
	}

	var session Session
	err := kvstore.GetJSON(ctx, s.store, sessionKey(token), &session)
	if errors.Is(err, kvstore.ErrNotFound) {
		return "", errInvalidSession()
	}
	if err != nil {
		return "", apperror.NewInternal(fmt.Errorf("reading session: %w", err))
	}

	if session.Expired(s.now()) {
		if err := s.store.Delete(ctx, sessionKey(token)); err != nil {
			return "", apperror.NewInternal(fmt.Errorf("deleting expired session: %w", err))
		}
		return "", errInvalidSession()
	}
	return session.UserID, nil
}

// Revoke deletes the session record. The user index entry ages out on the
// next Create.
func (s *kvSessionStore) Revoke(ctx context.Context, token string) error {
	if !validTokenFormat(token) {
		return nil
	}
	if err := s.store.Delete(ctx, sessionKey(token)); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// RevokeAll deletes every indexed session of userID.
func (s *kvSessionStore) RevokeAll(ctx context.Context, userID string) error {
	return s.revokeExcept(ctx, userID, "")
}

// RevokeOthers deletes every indexed session of userID but keep.
func (s *kvSessionStore) RevokeOthers(ctx context.Context, userID, keep string) error {
	return s.revokeExcept(ctx, userID, keep)
}

// revokeExcept swaps the index for one holding only keep inside the same
// optimistic update a concurrent Create goes through, so a token indexed
// after the swap is never lost from the index.
func (s *kvSessionStore) revokeExcept(ctx context.Context, userID, keep string) error {
	var doomed []string
	_, err := kvstore.UpdateJSON(ctx, s.store, userSessionsKey(userID), func(index *map[string]int64, exists bool) error {
		if !exists {
			return errNoSessionIndex
		}
		doomed = doomed[:0]
		next := make(map[string]int64, 1)
		for token, exp := range *index {
			if token == keep {
				next[token] = exp
				continue
			}
			doomed = append(doomed, sessionKey(token))
		}
		*index = next
		return nil
	})
	if errors.Is(err, errNoSessionIndex) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("swapping session index: %w", err)
	}
	if len(doomed) == 0 {
		return nil
	}
	if err := s.store.Delete(ctx, doomed...); err != nil {
		return fmt.Errorf("deleting sessions: %w", err)
	}
	return nil
}

// generateSessionToken creates a cryptographically random hex-encoded token.
func generateSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// validTokenFormat accepts only 64 lowercase hex characters, the shape
// generateSessionToken produces.
func validTokenFormat(token string) bool {
	if len(token) != sessionTokenBytes*2 {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
