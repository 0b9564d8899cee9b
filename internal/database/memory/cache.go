package memory

import (
	"context"
	"time"

	"github.com/safarmate/transit-backend/internal/models"
)

// LocationStore keeps the latest telemetry per bus
type LocationStore struct{ a *Arena }

func (s *LocationStore) Get(ctx context.Context, busID string) (*models.LiveLocation, error) {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	loc, ok := s.a.locations[busID]
	if !ok {
		return nil, nil
	}
	c := *loc
	c.Speed = copyFloat(loc.Speed)
	c.Heading = copyFloat(loc.Heading)
	return &c, nil
}

func (s *LocationStore) Upsert(ctx context.Context, loc *models.LiveLocation) (bool, error) {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	_, existed := s.a.locations[loc.BusID]
	c := *loc
	c.Speed = copyFloat(loc.Speed)
	c.Heading = copyFloat(loc.Heading)
	s.a.locations[loc.BusID] = &c
	return existed, nil
}

// SessionStore keeps text-channel sessions. fn runs under a per-key lock but
// outside the arena lock, so it may call the other stores.
type SessionStore struct{ a *Arena }

func (s *SessionStore) Update(ctx context.Context, key string, ttl time.Duration, fn models.SessionUpdateFunc) error {
	unlock := s.a.sessionLocks.Lock(key)
	defer unlock()

	s.a.mu.Lock()
	current := s.current(key)
	s.a.mu.Unlock()

	next, action, err := fn(current)
	if err != nil {
		return err
	}

	s.a.mu.Lock()
	defer s.a.mu.Unlock()
	switch action {
	case models.SessionSave:
		if next != nil {
			s.a.sessions[key] = expiring[models.Session]{value: *next, expiresAt: s.a.now().Add(ttl)}
		}
	case models.SessionClear:
		delete(s.a.sessions, key)
	}
	return nil
}

func (s *SessionStore) current(key string) *models.Session {
	entry, ok := s.a.sessions[key]
	if !ok {
		return nil
	}
	if !entry.expiresAt.After(s.a.now()) {
		delete(s.a.sessions, key)
		return nil
	}
	session := entry.value
	return &session
}

// IdempotencyStore keeps serialized booking responses
type IdempotencyStore struct{ a *Arena }

func (s *IdempotencyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	entry, ok := s.a.idempotency[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.After(s.a.now()) {
		delete(s.a.idempotency, key)
		return nil, false, nil
	}
	return append([]byte(nil), entry.value...), true, nil
}

func (s *IdempotencyStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	s.a.idempotency[key] = expiring[[]byte]{
		value:     append([]byte(nil), value...),
		expiresAt: s.a.now().Add(ttl),
	}
	return nil
}

// PurgeExpired drops lapsed sessions, idempotency records and attempt counters.
// Reads already ignore them; this only releases the memory.
func (a *Arena) PurgeExpired(ctx context.Context) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	var n int64
	for k, e := range a.sessions {
		if !e.expiresAt.After(now) {
			delete(a.sessions, k)
			n++
		}
	}
	for k, e := range a.idempotency {
		if !e.expiresAt.After(now) {
			delete(a.idempotency, k)
			n++
		}
	}
	for k, e := range a.attempts {
		if !e.expiresAt.After(now) {
			delete(a.attempts, k)
			n++
		}
	}
	return n, nil
}
