package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreIncrement(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	count, resetAt, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.WithinDuration(t, time.Now().Add(time.Minute), resetAt, 2*time.Second)

	count, second, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, resetAt, second, "reset time is fixed for the life of the window")
}

func TestMemoryStoreExpiredWindowRestarts(t *testing.T) {
	store := NewMemoryStore()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }
	ctx := context.Background()

	store.Increment(ctx, "k", time.Minute)
	store.Increment(ctx, "k", time.Minute)

	store.now = func() time.Time { return base.Add(2 * time.Minute) }
	count, resetAt, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, base.Add(3*time.Minute), resetAt)
}

func TestMemoryStoreReset(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Increment(ctx, "k", time.Minute)
	require.NoError(t, store.Reset(ctx, "k"))

	count, _, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMemoryStoreCleanup(t *testing.T) {
	store := NewMemoryStore()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }
	ctx := context.Background()

	store.Increment(ctx, "short", time.Minute)
	store.Increment(ctx, "long", time.Hour)
	assert.Equal(t, 2, store.Len())

	store.now = func() time.Time { return base.Add(2 * time.Minute) }
	require.NoError(t, store.Cleanup(ctx))
	assert.Equal(t, 1, store.Len(), "only the expired window is removed")
}

func TestMemoryStoreConcurrentIncrements(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	const workers = 50
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := store.Increment(ctx, "shared", time.Minute)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, _, err := store.Increment(ctx, "shared", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(workers+1), count, "no increment may be lost under contention")
}
