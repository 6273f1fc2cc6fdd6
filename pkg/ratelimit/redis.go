package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore is a Store backed by shared Redis counters. INCR is atomic at
// the server, so concurrent writers from different instances never lose an
// increment; this is the correct-by-construction multi-instance backend.
type RedisStore struct {
	client *redis.Client
	prefix string

	// now is swappable for tests
	now func() time.Time
}

// NewRedisStore creates a Redis-backed store
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// Name identifies the backend in metrics and logs
func (s *RedisStore) Name() string { return "redis" }

func (s *RedisStore) redisKey(key string) string {
	return fmt.Sprintf("%s:%s", s.prefix, key)
}

// Increment records one request against key. The key's TTL carries the
// window: it is set once when the counter is created and left alone on
// subsequent increments.
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	redisKey := s.redisKey(key)

	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("redis error: %w", err)
	}

	count := incr.Val()
	now := s.now()

	if count == 1 || pttl.Val() < 0 {
		// New counter, or a counter left without expiry by an earlier failure
		if err := s.client.PExpire(ctx, redisKey, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("redis error: %w", err)
		}
		return count, now.Add(window), nil
	}

	return count, now.Add(pttl.Val()), nil
}

// Reset discards the counter for key
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.redisKey(key)).Err()
}

// Cleanup is a no-op: Redis expires counters through their TTL
func (s *RedisStore) Cleanup(ctx context.Context) error {
	return nil
}
