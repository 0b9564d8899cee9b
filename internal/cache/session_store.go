package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/safarmate/transit-backend/internal/models"
)

// SessionStore keeps SMS sessions as JSON blobs with a TTL
type SessionStore struct {
	rdb redis.UniversalClient
}

// NewSessionStore creates a new SessionStore
func NewSessionStore(rdb redis.UniversalClient) *SessionStore {
	return &SessionStore{rdb: rdb}
}

// Update runs fn between WATCH and MULTI. When another writer changes the key
// first, this write is dropped, the other writer's session stands and the
// returned error wraps redis.TxFailedErr. fn is never retried because it may
// have side effects.
func (s *SessionStore) Update(ctx context.Context, key string, ttl time.Duration, fn models.SessionUpdateFunc) error {
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readSession(ctx, tx, key)
		if err != nil {
			return err
		}

		next, action, err := fn(current)
		if err != nil {
			return err
		}

		switch action {
		case models.SessionSave:
			if next == nil {
				return nil
			}
			data, err := json.Marshal(next)
			if err != nil {
				return fmt.Errorf("failed to encode session: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, ttl)
				return nil
			})
			return err
		case models.SessionClear:
			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			return err
		}
		return nil
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("session %s changed concurrently: %w", key, err)
	}
	return err
}

func readSession(ctx context.Context, tx *redis.Tx, key string) (*models.Session, error) {
	data, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		// an unreadable session restarts at the menu
		return nil, nil
	}
	return &session, nil
}
