package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/safarmate/transit-backend/internal/apperrors"
	"github.com/safarmate/transit-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDemoArena(t *testing.T) (*Arena, *time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	a := NewArena()
	a.SetClock(func() time.Time { return now })

	seed, err := DemoSeed()
	require.NoError(t, err)
	require.NoError(t, a.Load(seed))
	return a, &now
}

func TestDemoSeed(t *testing.T) {
	a, now := setupDemoArena(t)
	ctx := context.Background()

	routes, err := a.Routes().List(ctx, true)
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, "1", routes[0].Code)
	assert.Equal(t, "City Center - Airport", routes[0].Name)

	stop, err := a.Routes().FindStop(ctx, "s21a")
	require.NoError(t, err)
	require.NotNil(t, stop)
	assert.Equal(t, "r21", stop.RouteID)
	assert.Equal(t, "North Gate", stop.Name)

	stops, err := a.Routes().ListStops(ctx)
	require.NoError(t, err)
	assert.Len(t, stops, 8)

	bus, err := a.Buses().GetByID(ctx, "b21")
	require.NoError(t, err)
	assert.Equal(t, 30, bus.SeatCount)

	loc, err := a.Locations().Get(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, -1.305, loc.Lat)
	assert.Equal(t, 38.0, *loc.Speed)
	assert.Equal(t, now.Add(-15*time.Second), loc.UpdatedAt)

	reserved, held, err := a.Ledger().Totals(ctx, "b1", *now)
	require.NoError(t, err)
	assert.Equal(t, 0, reserved)
	assert.Equal(t, 2, held)

	reserved, held, err = a.Ledger().Totals(ctx, "b21", *now)
	require.NoError(t, err)
	assert.Equal(t, 1, reserved)
	assert.Equal(t, 0, held)
}

func TestParseSeed_RejectsBadCoordinates(t *testing.T) {
	_, err := ParseSeed([]byte(`
locations:
  - { bus_id: b1, lat: 123, lng: 36.8 }
`))
	assert.Error(t, err)
}

func TestLoad_UnknownRoute(t *testing.T) {
	a := NewArena()
	err := a.Load(&Seed{Buses: []models.Bus{{ID: "b9", RouteID: "r404", Plate: "X"}}})
	assert.Error(t, err)
}

func TestBusStore_Conflicts(t *testing.T) {
	a, _ := setupDemoArena(t)
	ctx := context.Background()

	err := a.Buses().Create(ctx, &models.Bus{ID: "b1", RouteID: "r1", Plate: "NEW-1", SeatCount: 10})
	assert.True(t, apperrors.IsConflict(err))

	err = a.Buses().Create(ctx, &models.Bus{ID: "b2", RouteID: "r1", Plate: "KAA-123A", SeatCount: 10})
	assert.True(t, apperrors.IsConflict(err))

	require.NoError(t, a.Buses().Create(ctx, &models.Bus{ID: "b2", RouteID: "r1", Plate: "NEW-1", SeatCount: 10}))
	buses, err := a.Buses().ListByRoute(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, buses, 2)
}

func TestLedgerStore_ExpiryAndTransition(t *testing.T) {
	a, now := setupDemoArena(t)
	ctx := context.Background()

	expires := now.Add(time.Second)
	hold := &models.SeatLedgerEntry{ID: "h1", BusID: "b21", SeatCount: 29,
		Status: models.LedgerStatusHold, HoldExpiresAt: &expires, CreatedAt: *now}

	ok, err := a.Ledger().InsertHoldIfAvailable(ctx, hold, 30, *now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.Ledger().InsertHoldIfAvailable(ctx, &models.SeatLedgerEntry{ID: "h2", BusID: "b21",
		SeatCount: 1, Status: models.LedgerStatusHold, HoldExpiresAt: &expires}, 30, *now)
	require.NoError(t, err)
	assert.False(t, ok)

	later := now.Add(time.Second)
	n, err := a.Ledger().ExpireHolds(ctx, "b21", later)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entry, err := a.Ledger().GetByID(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, models.LedgerStatusCancelled, entry.Status)
	assert.Nil(t, entry.HoldExpiresAt)

	ok, err = a.Ledger().Transition(ctx, "h1", models.LedgerStatusHold, models.LedgerStatusReserved)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionStore_Expiry(t *testing.T) {
	a, now := setupDemoArena(t)
	ctx := context.Background()
	store := a.Sessions()

	save := func(*models.Session) (*models.Session, models.SessionAction, error) {
		return &models.Session{Step: models.StepAwaitStop}, models.SessionSave, nil
	}
	require.NoError(t, store.Update(ctx, "sms:user:254700", 10*time.Minute, save))

	var seen *models.Session
	peek := func(s *models.Session) (*models.Session, models.SessionAction, error) {
		seen = s
		return nil, models.SessionKeep, nil
	}
	require.NoError(t, store.Update(ctx, "sms:user:254700", 10*time.Minute, peek))
	require.NotNil(t, seen)
	assert.Equal(t, models.StepAwaitStop, seen.Step)

	*now = now.Add(10 * time.Minute)
	require.NoError(t, store.Update(ctx, "sms:user:254700", 10*time.Minute, peek))
	assert.Nil(t, seen)
}

func TestIdempotencyStore_Expiry(t *testing.T) {
	a, now := setupDemoArena(t)
	ctx := context.Background()
	store := a.Idempotency()

	require.NoError(t, store.Put(ctx, "key-1", []byte(`{"ok":true}`), time.Hour))

	value, found, err := store.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"ok":true}`, string(value))

	*now = now.Add(time.Hour)
	_, found, err = store.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRefreshTokenStore(t *testing.T) {
	a, now := setupDemoArena(t)
	ctx := context.Background()
	store := a.RefreshTokens()
	userID := uuid.New()

	for _, raw := range []string{"t1", "t2"} {
		require.NoError(t, store.Create(ctx, &models.RefreshToken{
			UserID:    userID,
			TokenHash: models.HashToken(raw),
			CreatedAt: *now,
			ExpiresAt: now.Add(time.Hour),
		}))
	}
	err := store.Create(ctx, &models.RefreshToken{TokenHash: models.HashToken("t1")})
	assert.True(t, apperrors.IsConflict(err))

	ok, err := store.Revoke(ctx, models.HashToken("t1"), *now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Revoke(ctx, models.HashToken("t1"), *now)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := store.RevokeAllForUser(ctx, userID, *now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	token, err := store.GetByHash(ctx, models.HashToken("t2"))
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.False(t, token.Usable(*now))

	n, err = store.DeleteExpired(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestRateLimitStore_Window(t *testing.T) {
	a, now := setupDemoArena(t)
	ctx := context.Background()
	store := a.RateLimits()

	for i := 1; i <= 3; i++ {
		n, err := store.Hit(ctx, "login:a@b.co", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(i), n)
	}

	*now = now.Add(20 * time.Second)
	count, left, err := store.Count(ctx, "login:a@b.co")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.Equal(t, 40*time.Second, left)

	*now = now.Add(time.Minute)
	count, _, err = store.Count(ctx, "login:a@b.co")
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = store.Hit(ctx, "login:a@b.co", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Reset(ctx, "login:a@b.co"))
	count, _, err = store.Count(ctx, "login:a@b.co")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPurgeExpired(t *testing.T) {
	a, now := setupDemoArena(t)
	ctx := context.Background()

	require.NoError(t, a.Idempotency().Put(ctx, "k1", []byte(`{}`), time.Minute))
	require.NoError(t, a.Idempotency().Put(ctx, "k2", []byte(`{}`), time.Hour))
	_, err := a.RateLimits().Hit(ctx, "login:ip:10.0.0.1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, a.Sessions().Update(ctx, "sms:1", time.Minute, func(*models.Session) (*models.Session, models.SessionAction, error) {
		return &models.Session{Step: models.StepAwaitStop}, models.SessionSave, nil
	}))

	n, err := a.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	*now = now.Add(2 * time.Minute)
	n, err = a.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, ok, err := a.Idempotency().Get(ctx, "k2")
	require.NoError(t, err)
	assert.True(t, ok)
}
