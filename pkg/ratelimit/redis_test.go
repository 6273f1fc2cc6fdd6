package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, "test"), mr
}

func TestRedisStoreIncrement(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	count, resetAt, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.WithinDuration(t, time.Now().Add(time.Minute), resetAt, 2*time.Second)

	count, _, err = store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRedisStoreKeyPrefix(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	_, _, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:k"))
}

func TestRedisStoreWindowExpiry(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	store.Increment(ctx, "k", time.Minute)
	store.Increment(ctx, "k", time.Minute)

	mr.FastForward(2 * time.Minute)

	count, _, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "expired counter restarts at one")
}

func TestRedisStoreRepairsMissingTTL(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	// a counter left without expiry by an earlier failure
	require.NoError(t, mr.Set("test:k", "5"))

	_, _, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Greater(t, mr.TTL("test:k"), time.Duration(0))
}

func TestRedisStoreReset(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	store.Increment(ctx, "k", time.Minute)
	require.NoError(t, store.Reset(ctx, "k"))
	assert.False(t, mr.Exists("test:k"))
}

func TestRedisStoreIncrementBackendDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, "test")
	mr.Close()

	_, _, err := store.Increment(context.Background(), "k", time.Minute)
	assert.Error(t, err)
}

func TestRedisStoreDefaultPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewRedisStore(client, "")
	_, _, err := store.Increment(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("ratelimit:k"))
}
