// Package memory keeps every store in process behind one mutex. It backs the
// demo deployment and the service tests, and mirrors the Postgres repositories.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/safarmate/transit-backend/internal/apperrors"
	"github.com/safarmate/transit-backend/internal/models"
	"github.com/safarmate/transit-backend/internal/syncutil"
)

// Arena owns all in-memory records
type Arena struct {
	mu  sync.Mutex
	now func() time.Time

	routes      map[string]*models.Route
	buses       map[string]*models.Bus
	ledger      map[string][]*models.SeatLedgerEntry // by bus id, insertion order
	ledgerByID  map[string]*models.SeatLedgerEntry
	bookings    map[string]*models.Booking
	users       map[uuid.UUID]*models.User
	locations   map[string]*models.LiveLocation
	sessions    map[string]expiring[models.Session]
	idempotency map[string]expiring[[]byte]
	tokens      map[string]*models.RefreshToken // by token hash
	attempts    map[string]expiring[int64]

	sessionLocks *syncutil.KeyedMutex
}

type expiring[T any] struct {
	value     T
	expiresAt time.Time
}

// NewArena creates an empty arena
func NewArena() *Arena {
	return &Arena{
		now:         time.Now,
		routes:      make(map[string]*models.Route),
		buses:       make(map[string]*models.Bus),
		ledger:      make(map[string][]*models.SeatLedgerEntry),
		ledgerByID:  make(map[string]*models.SeatLedgerEntry),
		bookings:    make(map[string]*models.Booking),
		users:       make(map[uuid.UUID]*models.User),
		locations:   make(map[string]*models.LiveLocation),
		sessions:    make(map[string]expiring[models.Session]),
		idempotency: make(map[string]expiring[[]byte]),
		tokens:      make(map[string]*models.RefreshToken),
		attempts:    make(map[string]expiring[int64]),

		sessionLocks: syncutil.NewKeyedMutex(),
	}
}

// SetClock replaces the clock used for cache expiry
func (a *Arena) SetClock(now func() time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.now = now
}

func (a *Arena) Routes() *RouteStore { return &RouteStore{a} }
func (a *Arena) Buses() *BusStore { return &BusStore{a} }
func (a *Arena) Ledger() *LedgerStore { return &LedgerStore{a} }
func (a *Arena) Bookings() *BookingStore { return &BookingStore{a} }
func (a *Arena) Users() *UserStore { return &UserStore{a} }
func (a *Arena) Locations() *LocationStore { return &LocationStore{a} }
func (a *Arena) Sessions() *SessionStore { return &SessionStore{a} }
func (a *Arena) Idempotency() *IdempotencyStore { return &IdempotencyStore{a} }
func (a *Arena) RefreshTokens() *RefreshTokenStore { return &RefreshTokenStore{a} }
func (a *Arena) RateLimits() *RateLimitStore { return &RateLimitStore{a} }

// Ping satisfies the health check
func (a *Arena) Ping(ctx context.Context) error { return nil }

// Records are copied on the way in and out so callers never share memory with the arena.

func copyRoute(r *models.Route) *models.Route {
	c := *r
	c.Stops = r.Stops.Sorted()
	return &c
}

func copyBus(b *models.Bus) *models.Bus {
	c := *b
	return &c
}

func copyEntry(e *models.SeatLedgerEntry) *models.SeatLedgerEntry {
	c := *e
	if e.HoldExpiresAt != nil {
		t := *e.HoldExpiresAt
		c.HoldExpiresAt = &t
	}
	return &c
}

func copyBooking(b *models.Booking) *models.Booking {
	c := *b
	c.UserID = copyString(b.UserID)
	c.FromStopID = copyString(b.FromStopID)
	c.ToStopID = copyString(b.ToStopID)
	c.HoldID = copyString(b.HoldID)
	c.IdempotencyKey = copyString(b.IdempotencyKey)
	return &c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// RouteStore is the in-memory route store
type RouteStore struct{ a *Arena }

func (s *RouteStore) Create(ctx context.Context, route *models.Route) error {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	if _, exists := s.a.routes[route.ID]; exists {
		return apperrors.Conflict("id already exists")
	}
	for _, r := range s.a.routes {
		if r.Code == route.Code {
			return apperrors.Conflict("code already exists")
		}
	}
	if route.CreatedAt.IsZero() {
		route.CreatedAt = s.a.now()
	}
	s.a.routes[route.ID] = copyRoute(route)
	return nil
}

func (s *RouteStore) GetByID(ctx context.Context, id string) (*models.Route, error) {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	r, ok := s.a.routes[id]
	if !ok {
		return nil, nil
	}
	return copyRoute(r), nil
}

func (s *RouteStore) List(ctx context.Context, activeOnly bool) ([]models.Route, error) {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	routes := []models.Route{}
	for _, r := range s.a.routes {
		if activeOnly && !r.Active {
			continue
		}
		routes = append(routes, *copyRoute(r))
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].Code < routes[j].Code })
	return routes, nil
}

func (s *RouteStore) FindStop(ctx context.Context, stopID string) (*models.StopWithRoute, error) {
	stops, err := s.ListStops(ctx)
	if err != nil {
		return nil, err
	}
	for i := range stops {
		if stops[i].StopID == stopID {
			return &stops[i], nil
		}
	}
	return nil, nil
}

func (s *RouteStore) ListStops(ctx context.Context) ([]models.StopWithRoute, error) {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	ids := make([]string, 0, len(s.a.routes))
	for id := range s.a.routes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	stops := []models.StopWithRoute{}
	for _, id := range ids {
		for _, st := range s.a.routes[id].Stops.Sorted() {
			stops = append(stops, models.StopWithRoute{
				StopID:   st.ID,
				RouteID:  id,
				Name:     st.Name,
				Lat:      st.Lat,
				Lng:      st.Lng,
				Sequence: st.Sequence,
			})
		}
	}
	return stops, nil
}

// BusStore is the in-memory bus store
type BusStore struct{ a *Arena }

func (s *BusStore) Create(ctx context.Context, bus *models.Bus) error {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	if _, exists := s.a.buses[bus.ID]; exists {
		return apperrors.Conflict("id already exists")
	}
	for _, b := range s.a.buses {
		if b.Plate == bus.Plate {
			return apperrors.Conflict("plate already exists")
		}
	}
	now := s.a.now()
	bus.CreatedAt, bus.UpdatedAt = now, now
	s.a.buses[bus.ID] = copyBus(bus)
	return nil
}

func (s *BusStore) GetByID(ctx context.Context, id string) (*models.Bus, error) {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	b, ok := s.a.buses[id]
	if !ok {
		return nil, nil
	}
	return copyBus(b), nil
}

func (s *BusStore) Update(ctx context.Context, id string, req *models.UpdateBusRequest) (*models.Bus, error) {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	b, ok := s.a.buses[id]
	if !ok {
		return nil, nil
	}
	if req.SeatCount != nil {
		b.SeatCount = *req.SeatCount
	}
	if req.Status != nil {
		b.Status = models.BusStatus(*req.Status)
	}
	b.UpdatedAt = s.a.now()
	return copyBus(b), nil
}

func (s *BusStore) List(ctx context.Context) ([]models.Bus, error) {
	return s.filter(func(*models.Bus) bool { return true }), nil
}

func (s *BusStore) ListByRoute(ctx context.Context, routeID string) ([]models.Bus, error) {
	return s.filter(func(b *models.Bus) bool { return b.RouteID == routeID }), nil
}

func (s *BusStore) filter(keep func(*models.Bus) bool) []models.Bus {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	buses := []models.Bus{}
	for _, b := range s.a.buses {
		if keep(b) {
			buses = append(buses, *copyBus(b))
		}
	}
	sort.Slice(buses, func(i, j int) bool { return buses[i].ID < buses[j].ID })
	return buses
}

// LedgerStore is the in-memory seat ledger
type LedgerStore struct{ a *Arena }

func (s *LedgerStore) ExpireHolds(ctx context.Context, busID string, now time.Time) (int, error) {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	n := 0
	for _, e := range s.a.ledger[busID] {
		if e.IsExpiredHold(now) {
			e.Status = models.LedgerStatusCancelled
			e.CancelReason = models.CancelReasonExpired
			e.HoldExpiresAt = nil
			n++
		}
	}
	return n, nil
}

func (s *LedgerStore) Totals(ctx context.Context, busID string, now time.Time) (int, int, error) {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	reserved, held := s.a.totals(busID, now)
	return reserved, held, nil
}

func (a *Arena) totals(busID string, now time.Time) (reserved, held int) {
	for _, e := range a.ledger[busID] {
		switch {
		case e.Status == models.LedgerStatusReserved:
			reserved += e.SeatCount
		case e.IsLiveHold(now):
			held += e.SeatCount
		}
	}
	return reserved, held
}

func (s *LedgerStore) InsertHoldIfAvailable(ctx context.Context, entry *models.SeatLedgerEntry, capacity int, now time.Time) (bool, error) {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	reserved, held := s.a.totals(entry.BusID, now)
	if reserved+held+entry.SeatCount > capacity {
		return false, nil
	}
	s.a.appendEntry(entry)
	return true, nil
}

func (a *Arena) appendEntry(entry *models.SeatLedgerEntry) {
	stored := copyEntry(entry)
	a.ledger[entry.BusID] = append(a.ledger[entry.BusID], stored)
	a.ledgerByID[entry.ID] = stored
}

func (s *LedgerStore) GetByID(ctx context.Context, id string) (*models.SeatLedgerEntry, error) {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	e, ok := s.a.ledgerByID[id]
	if !ok {
		return nil, nil
	}
	return copyEntry(e), nil
}

func (s *LedgerStore) Transition(ctx context.Context, id string, from, to models.LedgerStatus) (bool, error) {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	return s.a.transition(id, from, to), nil
}

func (a *Arena) transition(id string, from, to models.LedgerStatus) bool {
	e, ok := a.ledgerByID[id]
	if !ok || e.Status != from {
		return false
	}
	e.Status = to
	e.HoldExpiresAt = nil
	if to == models.LedgerStatusCancelled {
		e.CancelReason = models.CancelReasonReleased
	}
	return true
}

// BookingStore is the in-memory booking store
type BookingStore struct{ a *Arena }

func (s *BookingStore) Create(ctx context.Context, booking *models.Booking) error {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	if _, exists := s.a.bookings[booking.ID]; exists {
		return apperrors.Conflict("id already exists")
	}
	now := s.a.now()
	booking.CreatedAt, booking.UpdatedAt = now, now
	s.a.bookings[booking.ID] = copyBooking(booking)
	return nil
}

func (s *BookingStore) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	b, ok := s.a.bookings[id]
	if !ok {
		return nil, nil
	}
	return copyBooking(b), nil
}

func (s *BookingStore) ConfirmWithHold(ctx context.Context, bookingID, holdID string, now time.Time) (bool, error) {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	b, ok := s.a.bookings[bookingID]
	if !ok || b.Status != models.BookingStatusPending {
		return false, nil
	}
	hold, ok := s.a.ledgerByID[holdID]
	if !ok || !hold.IsLiveHold(now) {
		return false, nil
	}
	s.a.transition(holdID, models.LedgerStatusHold, models.LedgerStatusReserved)
	b.Status = models.BookingStatusConfirmed
	b.HoldID = nil
	b.UpdatedAt = s.a.now()
	return true, nil
}

func (s *BookingStore) CancelWithHold(ctx context.Context, bookingID string, holdID *string) (bool, error) {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	b, ok := s.a.bookings[bookingID]
	if !ok || b.Status != models.BookingStatusPending {
		return false, nil
	}
	if holdID != nil {
		s.a.transition(*holdID, models.LedgerStatusHold, models.LedgerStatusCancelled)
	}
	b.Status = models.BookingStatusCancelled
	b.UpdatedAt = s.a.now()
	return true, nil
}

// UserStore is the in-memory account store
type UserStore struct{ a *Arena }

func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	for _, u := range s.a.users {
		if u.Email == user.Email {
			return apperrors.Conflict("email already exists")
		}
		if user.Phone.Valid && u.Phone.Valid && u.Phone.String == user.Phone.String {
			return apperrors.Conflict("phone already exists")
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := s.a.now()
	user.CreatedAt, user.UpdatedAt = now, now
	c := *user
	s.a.users[user.ID] = &c
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	u, ok := s.a.users[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	for _, u := range s.a.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}
