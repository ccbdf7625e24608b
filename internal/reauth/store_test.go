package reauth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCode_SixDigits(t *testing.T) {
	t.Parallel()

	for i := 0; i < 200; i++ {
		code, err := NewCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		assert.GreaterOrEqual(t, code, "100000")
		assert.LessOrEqual(t, code, "999999")
	}
}

func TestMemoryStore_SaveOverwrites(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(nil)
	ctx := context.Background()
	accountID := uuid.New()

	first := &Challenge{AccountID: accountID, Code: "111111", ExpiresAt: time.Now().Add(ChallengeTTL)}
	require.NoError(t, store.Save(ctx, first))
	second := &Challenge{AccountID: accountID, Code: "222222", ExpiresAt: time.Now().Add(ChallengeTTL)}
	require.NoError(t, store.Save(ctx, second))

	got, err := store.Get(ctx, accountID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "222222", got.Code)
}

func TestMemoryStore_GetReturnsExpiredForClassification(t *testing.T) {
	t.Parallel()

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(func() time.Time { return current })
	ctx := context.Background()
	accountID := uuid.New()

	require.NoError(t, store.Save(ctx, &Challenge{
		AccountID: accountID,
		Code:      "123456",
		ExpiresAt: current.Add(ChallengeTTL),
	}))

	// past expiry the challenge is still readable, so the caller can tell
	// "expired" apart from "never existed"
	current = current.Add(ChallengeTTL + time.Second)
	got, err := store.Get(ctx, accountID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Expired(current))
}

func TestMemoryStore_SweepsExpiredOnSave(t *testing.T) {
	t.Parallel()

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(func() time.Time { return current })
	ctx := context.Background()
	stale := uuid.New()

	require.NoError(t, store.Save(ctx, &Challenge{
		AccountID: stale,
		Code:      "123456",
		ExpiresAt: current.Add(ChallengeTTL),
	}))

	current = current.Add(ChallengeTTL + time.Second)
	require.NoError(t, store.Save(ctx, &Challenge{
		AccountID: uuid.New(),
		Code:      "654321",
		ExpiresAt: current.Add(ChallengeTTL),
	}))

	// abandoned entry is gone from the map, not just filtered on read
	store.mu.Lock()
	_, ok := store.challenges[stale]
	store.mu.Unlock()
	assert.False(t, ok)
}

func TestMemoryStore_PasswordFailureWindow(t *testing.T) {
	t.Parallel()

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(func() time.Time { return current })
	ctx := context.Background()
	accountID := uuid.New()

	for want := 1; want <= 3; want++ {
		n, err := store.IncrementPasswordFailures(ctx, accountID, 30*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	require.NoError(t, store.ResetPasswordFailures(ctx, accountID))
	n, err := store.IncrementPasswordFailures(ctx, accountID, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// window lapse resets the count
	current = current.Add(31 * time.Minute)
	n, err = store.IncrementPasswordFailures(ctx, accountID, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "reauth"), mr
}

func TestRedisStore_RoundTrip(t *testing.T) {
	t.Parallel()

	store, _ := newRedisStore(t)
	ctx := context.Background()
	accountID := uuid.New()

	ch := &Challenge{
		AccountID: accountID,
		Code:      "654321",
		ExpiresAt: time.Now().Add(ChallengeTTL),
		Attempts:  1,
	}
	require.NoError(t, store.Save(ctx, ch))

	got, err := store.Get(ctx, accountID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "654321", got.Code)
	assert.Equal(t, 1, got.Attempts)

	require.NoError(t, store.Delete(ctx, accountID))
	got, err = store.Get(ctx, accountID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_ExpiredChallengeReadableWithinRetention(t *testing.T) {
	t.Parallel()

	store, mr := newRedisStore(t)
	ctx := context.Background()
	accountID := uuid.New()

	expiresAt := time.Now().Add(time.Minute)
	require.NoError(t, store.Save(ctx, &Challenge{
		AccountID: accountID,
		Code:      "111111",
		ExpiresAt: expiresAt,
	}))

	// past ExpiresAt but inside the retention window: readable and expired
	mr.FastForward(90 * time.Second)
	got, err := store.Get(ctx, accountID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Expired(expiresAt.Add(time.Second)))

	// past the retention window the key is gone for good
	mr.FastForward(2 * time.Minute)
	got, err = store.Get(ctx, accountID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_PasswordFailures(t *testing.T) {
	t.Parallel()

	store, mr := newRedisStore(t)
	ctx := context.Background()
	accountID := uuid.New()

	for want := 1; want <= 2; want++ {
		n, err := store.IncrementPasswordFailures(ctx, accountID, 30*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	mr.FastForward(31 * time.Minute)
	n, err := store.IncrementPasswordFailures(ctx, accountID, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
