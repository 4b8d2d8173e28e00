package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/keyxmakerx/nexus/internal/apperror"
	"github.com/keyxmakerx/nexus/internal/kvstore"
)

// Key layout shared with the admin tooling and the previous backend.
const (
	userKeyPrefix      = "user:"
	userEmailKeyPrefix = "user_email:"
	userSessionsPrefix = "user_sessions:"
	sessionKeyPrefix   = "session:"
)

func userKey(id string) string         { return userKeyPrefix + id }
func userEmailKey(email string) string { return userEmailKeyPrefix + email }
func userSessionsKey(id string) string { return userSessionsPrefix + id }
func sessionKey(token string) string   { return sessionKeyPrefix + token }

// UserRepository defines the data access contract for user records.
// Lookups that miss return an apperror.NotFound; email collisions return
// an apperror.Conflict. Other failures are wrapped infrastructure errors.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindIDByEmail(ctx context.Context, email string) (string, error)

	// Update overwrites the whole record. Last write wins.
	Update(ctx context.Context, user *User) error

	// Modify applies fn to the current record under optimistic concurrency
	// and returns the committed user.
	Modify(ctx context.Context, id string, fn func(u *User) error) (*User, error)

	// ChangeEmail moves the email index to newEmail and rewrites the record.
	ChangeEmail(ctx context.Context, id, newEmail string) (*User, error)

	Delete(ctx context.Context, id string) error

	// List returns every user, newest first.
	List(ctx context.Context) ([]User, error)
}

// kvUserRepository implements UserRepository over the key-value store.
type kvUserRepository struct {
	store kvstore.Store
}

// NewUserRepository creates a new user repository backed by store.
func NewUserRepository(store kvstore.Store) UserRepository {
	return &kvUserRepository{store: store}
}

// errDuplicateEmail is the conflict returned when the email index is taken.
func errDuplicateEmail() *apperror.AppError {
	return apperror.NewConflict("an account with this email already exists")
}

// Create claims the email index with a set-if-absent before writing the
// record, so two concurrent registrations for one address cannot both win.
func (r *kvUserRepository) Create(ctx context.Context, user *User) error {
	claimed, err := r.store.SetNX(ctx, userEmailKey(user.Email), []byte(user.ID), 0)
	if err != nil {
		return fmt.Errorf("claiming email index: %w", err)
	}
	if !claimed {
		return errDuplicateEmail()
	}

	if err := kvstore.SetJSON(ctx, r.store, userKey(user.ID), user.toStored(), 0); err != nil {
		if delErr := r.store.Delete(ctx, userEmailKey(user.Email)); delErr != nil {
			err = errors.Join(err, delErr)
		}
		return fmt.Errorf("writing user: %w", err)
	}
	return nil
}

// FindByID loads a user by primary key.
func (r *kvUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	var s storedUser
	err := kvstore.GetJSON(ctx, r.store, userKey(id), &s)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, apperror.NewNotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("loading user %s: %w", id, err)
	}
	return s.toUser(), nil
}

// FindIDByEmail resolves the email index.
func (r *kvUserRepository) FindIDByEmail(ctx context.Context, email string) (string, error) {
	raw, err := r.store.Get(ctx, userEmailKey(email))
	if errors.Is(err, kvstore.ErrNotFound) {
		return "", apperror.NewNotFound("user not found")
	}
	if err != nil {
		return "", fmt.Errorf("resolving email index: %w", err)
	}
	return string(raw), nil
}

// Update overwrites the record.
func (r *kvUserRepository) Update(ctx context.Context, user *User) error {
	if err := kvstore.SetJSON(ctx, r.store, userKey(user.ID), user.toStored(), 0); err != nil {
		return fmt.Errorf("writing user %s: %w", user.ID, err)
	}
	return nil
}

// Modify runs fn inside an optimistic read-modify-write on the record.
func (r *kvUserRepository) Modify(ctx context.Context, id string, fn func(u *User) error) (*User, error) {
	committed, err := kvstore.UpdateJSON(ctx, r.store, userKey(id), func(s *storedUser, exists bool) error {
		if !exists {
			return apperror.NewNotFound("user not found")
		}
		u := s.toUser()
		if err := fn(u); err != nil {
			return err
		}
		*s = u.toStored()
		return nil
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		if errors.Is(err, kvstore.ErrConflict) {
			return nil, apperror.NewConflict("the account is being updated concurrently, please retry")
		}
		return nil, fmt.Errorf("modifying user %s: %w", id, err)
	}
	return committed.toUser(), nil
}

// ChangeEmail claims the new index key first, rewrites the record, then
// releases the old key. A failure after the claim releases it again.
func (r *kvUserRepository) ChangeEmail(ctx context.Context, id, newEmail string) (*User, error) {
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Email == newEmail {
		return current, nil
	}

	claimed, err := r.store.SetNX(ctx, userEmailKey(newEmail), []byte(id), 0)
	if err != nil {
		return nil, fmt.Errorf("claiming email index: %w", err)
	}
	if !claimed {
		owner, err := r.FindIDByEmail(ctx, newEmail)
		if err != nil || owner != id {
			return nil, errDuplicateEmail()
		}
	}

	var oldEmail string
	updated, err := r.Modify(ctx, id, func(u *User) error {
		oldEmail = u.Email
		u.Email = newEmail
		return nil
	})
	if err != nil {
		_ = r.store.Delete(ctx, userEmailKey(newEmail))
		return nil, err
	}

	if oldEmail != "" && oldEmail != newEmail {
		if err := r.store.Delete(ctx, userEmailKey(oldEmail)); err != nil {
			return nil, fmt.Errorf("releasing old email index: %w", err)
		}
	}
	return updated, nil
}

// Delete removes the record and its email index.
func (r *kvUserRepository) Delete(ctx context.Context, id string) error {
	user, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := r.store.Delete(ctx, userKey(id), userEmailKey(user.Email)); err != nil {
		return fmt.Errorf("deleting user %s: %w", id, err)
	}
	return nil
}

// List loads every user record. Records that vanish between the key scan
// and the read are skipped.
func (r *kvUserRepository) List(ctx context.Context) ([]User, error) {
	keys, err := r.store.Keys(ctx, userKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	users := make([]User, 0, len(keys))
	for _, k := range keys {
		var s storedUser
		err := kvstore.GetJSON(ctx, r.store, k, &s)
		if errors.Is(err, kvstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", k, err)
		}
		users = append(users, *s.toUser())
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}
