package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitStore keeps fixed-window attempt counters under ratelimit:<key>
type RateLimitStore struct {
	rdb redis.UniversalClient
}

// NewRateLimitStore creates a new RateLimitStore
func NewRateLimitStore(rdb redis.UniversalClient) *RateLimitStore {
	return &RateLimitStore{rdb: rdb}
}

func rateLimitKey(key string) string {
	return "ratelimit:" + key
}

// Hit increments the counter, starting the window on the first attempt
func (s *RateLimitStore) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	k := rateLimitKey(key)

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count attempt: %w", err)
	}

	// a counter without expiry is a new window
	if ttl.Val() < 0 {
		if err := s.rdb.PExpire(ctx, k, window).Err(); err != nil {
			return 0, fmt.Errorf("failed to start rate limit window: %w", err)
		}
	}
	return incr.Val(), nil
}

// Count returns the attempts in the current window and the time until it resets
func (s *RateLimitStore) Count(ctx context.Context, key string) (int64, time.Duration, error) {
	k := rateLimitKey(key)

	var get *redis.StringCmd
	var ttl *redis.DurationCmd
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.Get(ctx, k)
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, fmt.Errorf("failed to read attempts: %w", err)
	}

	count, err := get.Int64()
	if errors.Is(err, redis.Nil) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse attempts: %w", err)
	}
	left := ttl.Val()
	if left < 0 {
		left = 0
	}
	return count, left, nil
}

// Reset clears the counter
func (s *RateLimitStore) Reset(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, rateLimitKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to reset attempts: %w", err)
	}
	return nil
}
