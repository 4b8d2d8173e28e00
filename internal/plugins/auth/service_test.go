package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/nexus/internal/apperror"
	"github.com/keyxmakerx/nexus/internal/kvstore"
)

// --- Mock Repository ---

// mockUserRepo implements UserRepository for testing.
type mockUserRepo struct {
	createFn        func(ctx context.Context, user *User) error
	findByIDFn      func(ctx context.Context, id string) (*User, error)
	findIDByEmailFn func(ctx context.Context, email string) (string, error)
	updateFn        func(ctx context.Context, user *User) error
	modifyFn        func(ctx context.Context, id string, fn func(u *User) error) (*User, error)
	changeEmailFn   func(ctx context.Context, id, newEmail string) (*User, error)
	deleteFn        func(ctx context.Context, id string) error
	listFn          func(ctx context.Context) ([]User, error)
}

func (m *mockUserRepo) Create(ctx context.Context, user *User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) FindIDByEmail(ctx context.Context, email string) (string, error) {
	if m.findIDByEmailFn != nil {
		return m.findIDByEmailFn(ctx, email)
	}
	return "", apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) Update(ctx context.Context, user *User) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) Modify(ctx context.Context, id string, fn func(u *User) error) (*User, error) {
	if m.modifyFn != nil {
		return m.modifyFn(ctx, id, fn)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) ChangeEmail(ctx context.Context, id, newEmail string) (*User, error) {
	if m.changeEmailFn != nil {
		return m.changeEmailFn(ctx, id, newEmail)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockUserRepo) List(ctx context.Context) ([]User, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

// --- Mock Session Store ---

// mockSessionStore hands out sequential tokens and resolves them from a map.
type mockSessionStore struct {
	mu      sync.Mutex
	tokens  map[string]string
	revoked []string
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{tokens: make(map[string]string)}
}

func (m *mockSessionStore) Create(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token := strings.Repeat("a", 63) + string(rune('0'+len(m.tokens)))
	m.tokens[token] = userID
	return token, nil
}

func (m *mockSessionStore) Resolve(ctx context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.tokens[token]
	if !ok {
		return "", errInvalidSession()
	}
	return id, nil
}

func (m *mockSessionStore) Revoke(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
	m.revoked = append(m.revoked, token)
	return nil
}

func (m *mockSessionStore) RevokeAll(ctx context.Context, userID string) error {
	return m.RevokeOthers(ctx, userID, "")
}

func (m *mockSessionStore) RevokeOthers(ctx context.Context, userID, keep string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for t, id := range m.tokens {
		if id == userID && t != keep {
			delete(m.tokens, t)
		}
	}
	return nil
}

// --- Mock Mail Sender ---

// mockMailSender implements MailSender and signals each send on a channel.
type mockMailSender struct {
	sent chan []string
}

func (m *mockMailSender) SendMail(ctx context.Context, to []string, subject, body string) error {
	m.sent <- to
	return nil
}

func (m *mockMailSender) IsConfigured(ctx context.Context) bool { return true }

// --- Test Helpers ---

func newTestAuthService(repo UserRepository, sessions SessionStore) *authService {
	return &authService{
		repo:           repo,
		sessions:       sessions,
		initialCredits: 5,
		now:            time.Now,
	}
}

// newKVAuthService wires the real repository and session store over
// miniredis.
func newKVAuthService(t *testing.T) (*authService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := kvstore.NewRedisStore(rdb)
	return newTestAuthService(NewUserRepository(store), NewSessionStore(store, 7*24*time.Hour)), mr
}

// assertAppError checks that err is an *apperror.AppError with the expected code.
func assertAppError(t *testing.T, err error, expectedCode int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %d, got nil", expectedCode)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.AppError, got %T: %v", err, err)
	}
	if appErr.Code != expectedCode {
		t.Errorf("expected status %d, got %d (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

// --- Register Tests ---

func TestRegister_ThenCurrentUserHasInitialCredits(t *testing.T) {
	svc, _ := newKVAuthService(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, RegisterInput{Email: "Alice@Example.com ", Password: "pw1", Username: "alice"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.Token == "" {
		t.Fatal("expected a token")
	}

	user, err := svc.CurrentUser(ctx, res.Token)
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if user.Credits != 5 {
		t.Errorf("credits = %d, want 5", user.Credits)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("email not normalized: %q", user.Email)
	}
	if !strings.HasPrefix(user.PasswordHash, "$argon2id$") {
		t.Errorf("expected argon2id hash, got %q", user.PasswordHash)
	}
}

func TestRegister_MissingFields(t *testing.T) {
	svc := newTestAuthService(&mockUserRepo{}, newMockSessionStore())
	cases := []RegisterInput{
		{Email: "", Password: "pw", Username: "u"},
		{Email: "a@b.c", Password: "", Username: "u"},
		{Email: "a@b.c", Password: "pw", Username: "   "},
		{Email: "a@b.c", Password: "pw", Username: "<b></b>"},
	}
	for _, in := range cases {
		_, err := svc.Register(context.Background(), in)
		assertAppError(t, err, 400)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _ := newKVAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "a@x.io", Password: "p", Username: "a"}); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	_, err := svc.Register(ctx, RegisterInput{Email: "A@X.io", Password: "q", Username: "b"})
	assertAppError(t, err, 409)
}

func TestRegister_CreateRaceReturnsConflict(t *testing.T) {
	repo := &mockUserRepo{
		createFn: func(ctx context.Context, user *User) error {
			return errDuplicateEmail()
		},
	}
	svc := newTestAuthService(repo, newMockSessionStore())
	_, err := svc.Register(context.Background(), RegisterInput{Email: "a@x.io", Password: "p", Username: "a"})
	assertAppError(t, err, 409)
}

func TestRegister_StoreErrorIsInternal(t *testing.T) {
	repo := &mockUserRepo{
		createFn: func(ctx context.Context, user *User) error {
			return errors.New("connection refused")
		},
	}
	svc := newTestAuthService(repo, newMockSessionStore())
	_, err := svc.Register(context.Background(), RegisterInput{Email: "a@x.io", Password: "p", Username: "a"})
	assertAppError(t, err, 500)
}

func TestRegister_SendsWelcomeMail(t *testing.T) {
	svc := newTestAuthService(&mockUserRepo{}, newMockSessionStore())
	mail := &mockMailSender{sent: make(chan []string, 1)}
	ConfigureMailSender(svc, mail, "http://localhost")

	if _, err := svc.Register(context.Background(), RegisterInput{Email: "a@x.io", Password: "p", Username: "a"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	select {
	case to := <-mail.sent:
		if len(to) != 1 || to[0] != "a@x.io" {
			t.Errorf("welcome sent to %v", to)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("welcome mail not sent")
	}
}

// --- Login Tests ---

func TestLogin_FailuresShareMessage(t *testing.T) {
	svc, _ := newKVAuthService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{Email: "bob@x.io", Password: "right", Username: "bob"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, wrongPw := svc.Login(ctx, LoginInput{Email: "bob@x.io", Password: "wrong"})
	_, unknown := svc.Login(ctx, LoginInput{Email: "nobody@x.io", Password: "right"})

	assertAppError(t, wrongPw, 401)
	assertAppError(t, unknown, 401)
	if apperror.SafeMessage(wrongPw) != apperror.SafeMessage(unknown) {
		t.Errorf("messages differ: %q vs %q", apperror.SafeMessage(wrongPw), apperror.SafeMessage(unknown))
	}
}

func TestLogin_Success(t *testing.T) {
	svc, _ := newKVAuthService(t)
	ctx := context.Background()
	reg, err := svc.Register(ctx, RegisterInput{Email: "bob@x.io", Password: "right", Username: "bob"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	res, err := svc.Login(ctx, LoginInput{Email: " BOB@x.io", Password: "right"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token == reg.Token {
		t.Error("login must issue a fresh token")
	}
	if res.User.ID != reg.User.ID {
		t.Errorf("logged in as %s, want %s", res.User.ID, reg.User.ID)
	}
}

func TestLogin_UpgradesLegacyHash(t *testing.T) {
	// sha256("secret")
	legacy := "2bb80d537b1da3e38bd30361aa855686bde0eacd7162fef6a25fe97bf527a25b"
	stored := &User{ID: "u1", Email: "old@x.io", Username: "old", PasswordHash: legacy, Credits: 3}

	var upgraded string
	repo := &mockUserRepo{
		findIDByEmailFn: func(ctx context.Context, email string) (string, error) { return "u1", nil },
		findByIDFn: func(ctx context.Context, id string) (*User, error) {
			u := *stored
			return &u, nil
		},
		modifyFn: func(ctx context.Context, id string, fn func(u *User) error) (*User, error) {
			u := *stored
			if err := fn(&u); err != nil {
				return nil, err
			}
			upgraded = u.PasswordHash
			return &u, nil
		},
	}
	svc := newTestAuthService(repo, newMockSessionStore())

	if _, err := svc.Login(context.Background(), LoginInput{Email: "old@x.io", Password: "secret"}); err != nil {
		t.Fatalf("Login with legacy hash: %v", err)
	}
	if !strings.HasPrefix(upgraded, "$argon2id$") {
		t.Errorf("hash not upgraded, got %q", upgraded)
	}
}

// --- Session / Profile Tests ---

func TestCurrentUser_MissingToken(t *testing.T) {
	svc := newTestAuthService(&mockUserRepo{}, newMockSessionStore())
	_, err := svc.CurrentUser(context.Background(), "")
	assertAppError(t, err, 401)
}

func TestCurrentUser_DeletedUser(t *testing.T) {
	sessions := newMockSessionStore()
	token, _ := sessions.Create(context.Background(), "ghost")
	svc := newTestAuthService(&mockUserRepo{}, sessions)

	_, err := svc.CurrentUser(context.Background(), token)
	assertAppError(t, err, 404)
}

func TestUpdateProfile_Partial(t *testing.T) {
	svc, _ := newKVAuthService(t)
	ctx := context.Background()
	reg, err := svc.Register(ctx, RegisterInput{Email: "c@x.io", Password: "old-pw", Username: "carol"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	name := "  Carol <i>K</i> "
	user, err := svc.UpdateProfile(ctx, reg.Token, UpdateProfileInput{Username: &name})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if user.Username != "Carol K" {
		t.Errorf("username = %q", user.Username)
	}
	if user.PasswordHash != reg.User.PasswordHash {
		t.Error("password hash changed without a password field")
	}

	pw := "new-pw"
	if _, err := svc.UpdateProfile(ctx, reg.Token, UpdateProfileInput{Password: &pw}); err != nil {
		t.Fatalf("UpdateProfile password: %v", err)
	}
	if _, err := svc.Login(ctx, LoginInput{Email: "c@x.io", Password: "old-pw"}); err == nil {
		t.Error("old password still accepted")
	}
	res, err := svc.Login(ctx, LoginInput{Email: "c@x.io", Password: "new-pw"})
	if err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if res.User.Username != "Carol K" {
		t.Errorf("username lost after password change: %q", res.User.Username)
	}
}

func TestUpdateProfile_PasswordChangeSignsOutOtherSessions(t *testing.T) {
	svc, _ := newKVAuthService(t)
	ctx := context.Background()
	reg, err := svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "pw", Username: "amy"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	other, err := svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "pw"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	bystander, err := svc.Register(ctx, RegisterInput{Email: "b@x.com", Password: "pw", Username: "bo"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	pw := "newpass"
	if _, err := svc.UpdateProfile(ctx, reg.Token, UpdateProfileInput{Password: &pw}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	_, err = svc.CurrentUser(ctx, other.Token)
	assertAppError(t, err, 401)
	if _, err := svc.CurrentUser(ctx, reg.Token); err != nil {
		t.Errorf("caller's session was revoked: %v", err)
	}
	if _, err := svc.CurrentUser(ctx, bystander.Token); err != nil {
		t.Errorf("another user's session was revoked: %v", err)
	}

	// A username-only edit leaves other sessions alone.
	again, err := svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "newpass"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	name := "Amy"
	if _, err := svc.UpdateProfile(ctx, reg.Token, UpdateProfileInput{Username: &name}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if _, err := svc.CurrentUser(ctx, again.Token); err != nil {
		t.Errorf("username change revoked a session: %v", err)
	}
}

func TestUpdateProfile_EmptyUsernameRejected(t *testing.T) {
	svc, _ := newKVAuthService(t)
	ctx := context.Background()
	reg, err := svc.Register(ctx, RegisterInput{Email: "d@x.io", Password: "pw", Username: "dan"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	empty := " "
	_, err = svc.UpdateProfile(ctx, reg.Token, UpdateProfileInput{Username: &empty})
	assertAppError(t, err, 400)
}

func TestUpdateProfile_RequiresSession(t *testing.T) {
	svc := newTestAuthService(&mockUserRepo{}, newMockSessionStore())
	name := "x"
	_, err := svc.UpdateProfile(context.Background(), "bogus", UpdateProfileInput{Username: &name})
	assertAppError(t, err, 401)
}

func TestLogout_RevokesToken(t *testing.T) {
	svc, _ := newKVAuthService(t)
	ctx := context.Background()
	reg, err := svc.Register(ctx, RegisterInput{Email: "e@x.io", Password: "pw", Username: "eve"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := svc.Logout(ctx, reg.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	_, err = svc.CurrentUser(ctx, reg.Token)
	assertAppError(t, err, 401)
}

func TestRevokeUserSessions(t *testing.T) {
	svc, _ := newKVAuthService(t)
	ctx := context.Background()
	reg, err := svc.Register(ctx, RegisterInput{Email: "f@x.io", Password: "pw", Username: "fay"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	second, err := svc.Login(ctx, LoginInput{Email: "f@x.io", Password: "pw"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := svc.RevokeUserSessions(ctx, reg.User.ID); err != nil {
		t.Fatalf("RevokeUserSessions: %v", err)
	}
	for _, tok := range []string{reg.Token, second.Token} {
		_, err := svc.CurrentUser(ctx, tok)
		assertAppError(t, err, 401)
	}
}
