package ratelimit

import (
	"context"
	"sync"
	"time"
)

// window is one fixed counting interval for a key
type window struct {
	count       int64
	windowStart time.Time
	resetAt     time.Time
}

// MemoryStore is an in-process Store backed by a mutex-guarded map.
// A single lock serializes all reads and writes; without it a concurrent
// read-modify-write would under-count and let a burst through the ceiling.
// Suitable for single-instance deployments only: counts are not shared
// across processes.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window

	// now is swappable for tests
	now func() time.Time
}

// NewMemoryStore creates a new in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Name identifies the backend in metrics and logs
func (s *MemoryStore) Name() string { return "memory" }

// Increment records one request against key, starting a fresh window when
// none exists or the current one has expired
func (s *MemoryStore) Increment(ctx context.Context, key string, windowDur time.Duration) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &window{
			count:       1,
			windowStart: now,
			resetAt:     now.Add(windowDur),
		}
		s.windows[key] = w
		return w.count, w.resetAt, nil
	}

	w.count++
	return w.count, w.resetAt, nil
}

// Reset discards the window for key
func (s *MemoryStore) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// Cleanup removes expired windows
func (s *MemoryStore) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, w := range s.windows {
		if now.After(w.resetAt) {
			delete(s.windows, key)
		}
	}
	return nil
}

// StartSweep runs Cleanup on a fixed interval until ctx is cancelled
func (s *MemoryStore) StartSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Cleanup(ctx)
			case <-ctx.Done():
				ticker.Stop()
				return
			}
		}
	}()
}

// Len reports the number of live windows, for tests and diagnostics
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
