package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/safarmate/transit-backend/internal/apperrors"
	"github.com/safarmate/transit-backend/internal/models"
)

// RefreshTokenStore keeps refresh token records by hash
type RefreshTokenStore struct{ a *Arena }

func copyToken(t *models.RefreshToken) *models.RefreshToken {
	c := *t
	if t.RevokedAt != nil {
		at := *t.RevokedAt
		c.RevokedAt = &at
	}
	return &c
}

func (s *RefreshTokenStore) Create(ctx context.Context, token *models.RefreshToken) error {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	if _, exists := s.a.tokens[token.TokenHash]; exists {
		return apperrors.Conflict("token already exists")
	}
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	s.a.tokens[token.TokenHash] = copyToken(token)
	return nil
}

func (s *RefreshTokenStore) GetByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	t, ok := s.a.tokens[hash]
	if !ok {
		return nil, nil
	}
	return copyToken(t), nil
}

func (s *RefreshTokenStore) Revoke(ctx context.Context, hash string, at time.Time) (bool, error) {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	t, ok := s.a.tokens[hash]
	if !ok || t.Revoked {
		return false, nil
	}
	t.Revoked, t.RevokedAt = true, &at
	return true, nil
}

func (s *RefreshTokenStore) RevokeAllForUser(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	var n int64
	for _, t := range s.a.tokens {
		if t.UserID == userID && !t.Revoked {
			revokedAt := at
			t.Revoked, t.RevokedAt = true, &revokedAt
			n++
		}
	}
	return n, nil
}

func (s *RefreshTokenStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	var n int64
	for hash, t := range s.a.tokens {
		if t.ExpiresAt.Before(cutoff) {
			delete(s.a.tokens, hash)
			n++
		}
	}
	return n, nil
}

// RateLimitStore counts attempts in fixed windows
type RateLimitStore struct{ a *Arena }

func (s *RateLimitStore) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	now := s.a.now()
	entry, ok := s.a.attempts[key]
	if !ok || !entry.expiresAt.After(now) {
		entry = expiring[int64]{expiresAt: now.Add(window)}
	}
	entry.value++
	s.a.attempts[key] = entry
	return entry.value, nil
}

func (s *RateLimitStore) Count(ctx context.Context, key string) (int64, time.Duration, error) {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	now := s.a.now()
	entry, ok := s.a.attempts[key]
	if !ok {
		return 0, 0, nil
	}
	if !entry.expiresAt.After(now) {
		delete(s.a.attempts, key)
		return 0, 0, nil
	}
	return entry.value, entry.expiresAt.Sub(now), nil
}

func (s *RateLimitStore) Reset(ctx context.Context, key string) error {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	delete(s.a.attempts, key)
	return nil
}
