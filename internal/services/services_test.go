package services

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/safarmate/transit-backend/internal/database/memory"
	"github.com/safarmate/transit-backend/internal/models"
	"github.com/safarmate/transit-backend/pkg/routing"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const testSeed = `
routes:
  - id: r1
    code: "1"
    name: Central Line
    active: true
    stops:
      - { id: s1, name: Origin, lat: 0, lng: 0, sequence: 1 }
      - { id: s2, name: East Market, lat: 0, lng: 0.1259, sequence: 2 }
  - id: r21
    code: "21"
    name: Ring Road
    active: true
    stops:
      - { id: s21a, name: North Gate, lat: -1.25, lng: 36.85, sequence: 1 }
buses:
  - { id: b1, route_id: r1, plate: KAA-001A, seat_count: 40, status: active }
  - { id: b21, route_id: r21, plate: KBB-021B, seat_count: 30, status: inactive }
locations:
  - { bus_id: b1, lat: 0, lng: 0 }
`

// fakeEstimator answers routing calls without a network
type fakeEstimator struct {
	mu    sync.Mutex
	calls [][2]routing.Coordinate
	est   *routing.Estimate
	err   error
}

func (f *fakeEstimator) Route(ctx context.Context, from, to routing.Coordinate) (*routing.Estimate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, [2]routing.Coordinate{from, to})
	if f.err != nil {
		return nil, f.err
	}
	e := *f.est
	return &e, nil
}

// recordingPublisher keeps every published booking event
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.BookingEvent
}

func (p *recordingPublisher) PublishBooking(ctx context.Context, event models.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []models.BookingEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.BookingEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	arena      *memory.Arena
	clock      *time.Time
	estimator  *fakeEstimator
	publisher  *recordingPublisher
	ledger     *SeatLedgerService
	bookings   *BookingService
	eta        *ETAService
	transit    *TransitService
	dispatcher *ChannelDispatcher
}

func (e *testEnv) advance(d time.Duration) {
	*e.clock = e.clock.Add(d)
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	arena := memory.NewArena()
	arena.SetClock(clock)
	seed, err := memory.ParseSeed([]byte(testSeed))
	require.NoError(t, err)
	require.NoError(t, arena.Load(seed))

	logger := newTestLogger()
	estimator := &fakeEstimator{est: &routing.Estimate{DistanceMeters: 12000, DurationSeconds: 900}}
	publisher := &recordingPublisher{}

	ledger := NewSeatLedgerService(arena.Buses(), arena.Ledger(), DefaultHoldTTL, logger)
	ledger.SetClock(clock)
	bookings := NewBookingService(arena.Bookings(), arena.Buses(), ledger, arena.Idempotency(), publisher, DefaultIdempotencyTTL, logger)
	eta := NewETAService(estimator, arena.Routes(), arena.Buses(), arena.Locations(), DefaultHeuristicSpeedKmh, logger)
	transit := NewTransitService(arena.Routes(), arena.Buses(), arena.Locations(), MatchBySuffix, logger)
	transit.now = clock
	dispatcher := NewChannelDispatcher(transit, eta, bookings, arena.Sessions(), DefaultSessionTTL, logger)

	return &testEnv{
		arena:      arena,
		clock:      &now,
		estimator:  estimator,
		publisher:  publisher,
		ledger:     ledger,
		bookings:   bookings,
		eta:        eta,
		transit:    transit,
		dispatcher: dispatcher,
	}
}
