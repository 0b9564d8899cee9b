package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore keeps booking responses under idempotency:<key>
type IdempotencyStore struct {
	rdb redis.UniversalClient
}

// NewIdempotencyStore creates a new IdempotencyStore
func NewIdempotencyStore(rdb redis.UniversalClient) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb}
}

func idempotencyKey(key string) string {
	return "idempotency:" + key
}

// Get returns the stored response for key, if any
func (s *IdempotencyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.rdb.Get(ctx, idempotencyKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read idempotency record: %w", err)
	}
	return val, true, nil
}

// Put stores the response for key with a TTL
func (s *IdempotencyStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, idempotencyKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write idempotency record: %w", err)
	}
	return nil
}
