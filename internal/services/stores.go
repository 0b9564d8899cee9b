package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/safarmate/transit-backend/internal/models"
)

// Lookups return (nil, nil) when the record does not exist.

// RouteStore persists routes with their embedded stops
type RouteStore interface {
	Create(ctx context.Context, route *models.Route) error
	GetByID(ctx context.Context, id string) (*models.Route, error)
	List(ctx context.Context, activeOnly bool) ([]models.Route, error)
	FindStop(ctx context.Context, stopID string) (*models.StopWithRoute, error)
	ListStops(ctx context.Context) ([]models.StopWithRoute, error)
}

// BusStore persists buses
type BusStore interface {
	Create(ctx context.Context, bus *models.Bus) error
	GetByID(ctx context.Context, id string) (*models.Bus, error)
	Update(ctx context.Context, id string, req *models.UpdateBusRequest) (*models.Bus, error)
	List(ctx context.Context) ([]models.Bus, error)
	ListByRoute(ctx context.Context, routeID string) ([]models.Bus, error)
}

// SeatLedgerStore persists seat holds and reservations
type SeatLedgerStore interface {
	// ExpireHolds cancels holds on busID whose expiry is not after now
	ExpireHolds(ctx context.Context, busID string, now time.Time) (int, error)
	// Totals sums reserved seats and live held seats on busID
	Totals(ctx context.Context, busID string, now time.Time) (reserved, held int, err error)
	// InsertHoldIfAvailable appends entry only if it fits within capacity
	InsertHoldIfAvailable(ctx context.Context, entry *models.SeatLedgerEntry, capacity int, now time.Time) (bool, error)
	GetByID(ctx context.Context, id string) (*models.SeatLedgerEntry, error)
	// Transition moves an entry from one status to another, clearing the hold expiry.
	// It reports false when the entry was no longer in the from status.
	Transition(ctx context.Context, id string, from, to models.LedgerStatus) (bool, error)
}

// BookingStore persists bookings
type BookingStore interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	// ConfirmWithHold reserves the live hold and confirms the pending booking as one unit
	ConfirmWithHold(ctx context.Context, bookingID, holdID string, now time.Time) (bool, error)
	// CancelWithHold cancels the pending booking and its hold (if any) as one unit
	CancelWithHold(ctx context.Context, bookingID string, holdID *string) (bool, error)
}

// UserStore persists accounts
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// LocationStore caches the latest telemetry per bus
type LocationStore interface {
	Get(ctx context.Context, busID string) (*models.LiveLocation, error)
	// Upsert overwrites the location and reports whether one already existed
	Upsert(ctx context.Context, loc *models.LiveLocation) (bool, error)
}

// SessionStore keeps text-channel sessions. Update is atomic per key.
type SessionStore interface {
	Update(ctx context.Context, key string, ttl time.Duration, fn models.SessionUpdateFunc) error
}

// IdempotencyStore keeps serialized booking responses by idempotency key
type IdempotencyStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RefreshTokenStore persists issued refresh tokens by hash
type RefreshTokenStore interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	GetByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	// Revoke reports false when the token was missing or already revoked
	Revoke(ctx context.Context, hash string, at time.Time) (bool, error)
	RevokeAllForUser(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
	// DeleteExpired removes tokens that expired before cutoff
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// RateLimitStore counts attempts per key in fixed windows
type RateLimitStore interface {
	// Hit records one attempt and returns the count in the current window
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
	// Count returns the attempts so far and the time left in the window
	Count(ctx context.Context, key string) (int64, time.Duration, error)
	Reset(ctx context.Context, key string) error
}

// CacheJanitor drops expired entries from a cache that does not expire them itself
type CacheJanitor interface {
	PurgeExpired(ctx context.Context) (int64, error)
}
