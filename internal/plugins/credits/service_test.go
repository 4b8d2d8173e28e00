package credits

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyxmakerx/nexus/internal/apperror"
	"github.com/keyxmakerx/nexus/internal/kvstore"
	"github.com/keyxmakerx/nexus/internal/plugins/auth"
)

type recordedActivity struct {
	userID, action string
	details        map[string]any
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []recordedActivity
}

func (f *fakeRecorder) Record(ctx context.Context, userID, action string, details map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, recordedActivity{userID, action, details})
}

func newTestLedger(t *testing.T, balances map[string]int) (Ledger, auth.UserRepository, *fakeRecorder) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	users := auth.NewUserRepository(kvstore.NewRedisStore(rdb))
	for id, credits := range balances {
		require.NoError(t, users.Create(context.Background(), &auth.User{
			ID: id, Email: id + "@x.io", Username: id, Credits: credits, CreatedAt: time.Now(),
		}))
	}
	rec := &fakeRecorder{}
	return NewLedger(users, rec), users, rec
}

func TestHasCredits(t *testing.T) {
	l := NewLedger(nil, nil)
	assert.True(t, l.HasCredits(&auth.User{Credits: 1}))
	assert.False(t, l.HasCredits(&auth.User{Credits: 0}))
	assert.False(t, l.HasCredits(&auth.User{Credits: -3}))
	assert.False(t, l.HasCredits(nil))
}

func TestDebit_OnlyTouchesOneUser(t *testing.T) {
	l, users, rec := newTestLedger(t, map[string]int{"a": 3, "b": 3})
	ctx := context.Background()

	updated, err := l.Debit(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Credits)

	b, err := users.FindByID(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 3, b.Credits)

	require.Len(t, rec.entries, 1)
	assert.Equal(t, "credits.debit", rec.entries[0].action)
}

func TestDebit_ExhaustedBalance(t *testing.T) {
	l, _, _ := newTestLedger(t, map[string]int{"a": 0})
	_, err := l.Debit(context.Background(), "a")
	require.Error(t, err)
	assert.Equal(t, 402, apperror.SafeCode(err))
	assert.True(t, apperror.IsType(err, apperror.TypeInsufficientCredits))
}

func TestDebit_ConcurrentNeverOverdraws(t *testing.T) {
	l, users, _ := newTestLedger(t, map[string]int{"a": 3})
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, refused := 0, 0
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Debit(ctx, "a")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if apperror.IsType(err, apperror.TypeInsufficientCredits) {
				refused++
			} else {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, 3, refused)
	u, err := users.FindByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 0, u.Credits)
}

func TestAdjust(t *testing.T) {
	l, _, rec := newTestLedger(t, map[string]int{"a": 1})
	ctx := context.Background()

	u, err := l.Adjust(ctx, "a", 10, "admin")
	require.NoError(t, err)
	assert.Equal(t, 11, u.Credits)

	u, err = l.Adjust(ctx, "a", -20, "admin")
	require.NoError(t, err)
	assert.Equal(t, -9, u.Credits, "adjust has no floor")

	entriesBefore := len(rec.entries)
	u, err = l.Adjust(ctx, "a", 0, "admin")
	require.NoError(t, err)
	assert.Equal(t, -9, u.Credits)
	assert.Len(t, rec.entries, entriesBefore, "zero adjust is not recorded")
}

func TestAdjust_MissingUser(t *testing.T) {
	l, _, _ := newTestLedger(t, nil)
	_, err := l.Adjust(context.Background(), "ghost", 5, "admin")
	assert.Equal(t, 404, apperror.SafeCode(err))
}
