package ratelimit

import (
	"context"
	"time"
)

// Store is the pluggable counter backend behind a Limiter. Implementations
// must be safe for concurrent use by many request goroutines.
type Store interface {
	// Name identifies the backend in metrics and logs
	Name() string

	// Increment records one request against key. If no window exists for
	// the key, or the existing window has expired, a fresh window of the
	// given duration starts with count 1. Returns the count after the
	// increment and the instant the window resets.
	Increment(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)

	// Reset discards the window for key
	Reset(ctx context.Context, key string) error

	// Cleanup removes expired windows to bound storage growth
	Cleanup(ctx context.Context) error
}
