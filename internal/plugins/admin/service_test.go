package admin

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyxmakerx/nexus/internal/apperror"
	"github.com/keyxmakerx/nexus/internal/kvstore"
	"github.com/keyxmakerx/nexus/internal/plugins/audit"
	"github.com/keyxmakerx/nexus/internal/plugins/auth"
	"github.com/keyxmakerx/nexus/internal/plugins/credits"
)

func newTestStore(t *testing.T) kvstore.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return kvstore.NewRedisStore(rdb)
}

func newMemSecurity(t *testing.T) SecurityService {
	t.Helper()
	return NewSecurityService(NewSecurityEventRepository(newTestStore(t)))
}

type adminFixture struct {
	svc   UserAdminService
	auth  auth.AuthService
	users auth.UserRepository
	audit audit.AuditService
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	store := newTestStore(t)
	users := auth.NewUserRepository(store)
	authSvc := auth.NewAuthService(users, auth.NewSessionStore(store, time.Hour), 5)
	auditSvc := audit.NewAuditService(audit.NewAuditRepository(store))
	ledger := credits.NewLedger(users, auditSvc)
	return &adminFixture{
		svc:   NewUserAdminService(users, authSvc, ledger, auditSvc),
		auth:  authSvc,
		users: users,
		audit: auditSvc,
	}
}

func (f *adminFixture) register(t *testing.T, email, username string) *auth.AuthResult {
	t.Helper()
	res, err := f.auth.Register(context.Background(), auth.RegisterInput{Email: email, Password: "pw123", Username: username})
	require.NoError(t, err)
	return res
}

func ptr[T any](v T) *T { return &v }

func TestUpdateUser_RoundTrip(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice@x.com", "Alice")

	updated, err := f.svc.UpdateUser(ctx, alice.User.ID, UpdateUserRequest{
		Username: ptr("Alicia"),
		Email:    ptr("  Alicia@X.com "),
	})
	require.NoError(t, err)
	assert.Equal(t, "Alicia", updated.Username)
	assert.Equal(t, "alicia@x.com", updated.Email)

	got, err := f.users.FindByID(ctx, alice.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alicia", got.Username)
	assert.Equal(t, "alicia@x.com", got.Email)

	list, err := f.svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "alicia@x.com", list[0].Email)

	// The new email logs in; the old one no longer resolves.
	_, err = f.auth.Login(ctx, auth.LoginInput{Email: "alicia@x.com", Password: "pw123"})
	require.NoError(t, err)
	_, err = f.auth.Login(ctx, auth.LoginInput{Email: "alice@x.com", Password: "pw123"})
	assert.Equal(t, 401, apperror.SafeCode(err))

	entries, err := f.svc.Activity(ctx, alice.User.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, audit.ActionUserUpdated, entries[0].Action)
}

func TestUpdateUser_PartialAndValidation(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice@x.com", "Alice")
	f.register(t, "bob@x.com", "Bob")

	updated, err := f.svc.UpdateUser(ctx, alice.User.ID, UpdateUserRequest{Username: ptr("Al")})
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", updated.Email)

	_, err = f.svc.UpdateUser(ctx, alice.User.ID, UpdateUserRequest{Email: ptr("bob@x.com")})
	assert.Equal(t, 409, apperror.SafeCode(err))

	_, err = f.svc.UpdateUser(ctx, alice.User.ID, UpdateUserRequest{Username: ptr("  ")})
	assert.True(t, apperror.IsType(err, apperror.TypeValidation))

	_, err = f.svc.UpdateUser(ctx, alice.User.ID, UpdateUserRequest{Email: ptr("nope")})
	assert.True(t, apperror.IsType(err, apperror.TypeValidation))

	_, err = f.svc.UpdateUser(ctx, "missing", UpdateUserRequest{Username: ptr("x")})
	assert.Equal(t, 404, apperror.SafeCode(err))
}

func TestAdjustCredits(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice@x.com", "Alice")

	same, err := f.svc.AdjustCredits(ctx, alice.User.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, same.Credits)

	up, err := f.svc.AdjustCredits(ctx, alice.User.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 10, up.Credits)

	down, err := f.svc.AdjustCredits(ctx, alice.User.ID, -12)
	require.NoError(t, err)
	assert.Equal(t, -2, down.Credits, "no floor on admin adjustments")

	_, err = f.svc.AdjustCredits(ctx, alice.User.ID, maxCreditChange+1)
	assert.True(t, apperror.IsType(err, apperror.TypeValidation))

	_, err = f.svc.AdjustCredits(ctx, "missing", 1)
	assert.Equal(t, 404, apperror.SafeCode(err))
}

func TestDeleteUser_RevokesSessionsAndFreesEmail(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice@x.com", "Alice")
	f.audit.Record(ctx, alice.User.ID, audit.ActionAIGenerate, nil)

	require.NoError(t, f.svc.DeleteUser(ctx, alice.User.ID))

	_, err := f.auth.CurrentUser(ctx, alice.Token)
	assert.Equal(t, 401, apperror.SafeCode(err))

	entries, err := f.audit.Activity(ctx, alice.User.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// The email can be registered again.
	f.register(t, "alice@x.com", "Alice Again")

	assert.Equal(t, 404, apperror.SafeCode(f.svc.DeleteUser(ctx, alice.User.ID)))
}

func TestRevokeSessions(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice@x.com", "Alice")

	require.NoError(t, f.svc.RevokeSessions(ctx, alice.User.ID))
	_, err := f.auth.CurrentUser(ctx, alice.Token)
	assert.Equal(t, 401, apperror.SafeCode(err))

	user, err := f.users.FindByID(ctx, alice.User.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, user.Credits)
}

func TestSecurityService_PagingAndStats(t *testing.T) {
	sec := NewSecurityService(NewSecurityEventRepository(newTestStore(t))).(*securityService)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sec.now = func() time.Time { return now }

	for i := 0; i < securityPerPage+5; i++ {
		sec.LogEvent(ctx, EventAuthFailed, "", "10.0.0.1", "curl", nil)
	}
	sec.LogEvent(ctx, EventAuthVerified, "", "10.0.0.2", "browser", nil)

	page1, total, err := sec.ListEvents(ctx, EventAuthFailed, 1)
	require.NoError(t, err)
	assert.Equal(t, securityPerPage+5, total)
	assert.Len(t, page1, securityPerPage)

	page2, _, err := sec.ListEvents(ctx, EventAuthFailed, 2)
	require.NoError(t, err)
	assert.Len(t, page2, 5)

	all, total, err := sec.ListEvents(ctx, "", 1)
	require.NoError(t, err)
	assert.Equal(t, securityPerPage+6, total)
	assert.Equal(t, EventAuthVerified, all[0].EventType, "newest first")

	stats, err := sec.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, securityPerPage+5, stats.FailedAuth24h)
	assert.Equal(t, 1, stats.SuccessfulAuth24h)
	assert.Equal(t, 2, stats.UniqueIPs24h)

	now = now.Add(48 * time.Hour)
	stats, err = sec.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.FailedAuth24h)
	assert.Equal(t, securityPerPage+6, stats.TotalEvents)
}
