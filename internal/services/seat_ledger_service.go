package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/safarmate/transit-backend/internal/metrics"
	"github.com/safarmate/transit-backend/internal/models"
	"github.com/safarmate/transit-backend/internal/syncutil"
	"github.com/sirupsen/logrus"
)

// DefaultHoldTTL is used when a hold is requested without a TTL
const DefaultHoldTTL = 120 * time.Second

// HoldResult is the outcome of a hold request
type HoldResult struct {
	OK     bool                    `json:"ok"`
	Hold   *models.SeatLedgerEntry `json:"hold,omitempty"`
	Reason models.FailureReason    `json:"reason,omitempty"`
}

// LedgerResult is the outcome of a hold transition
type LedgerResult struct {
	OK     bool                 `json:"ok"`
	Reason models.FailureReason `json:"reason,omitempty"`
}

// SeatLedgerService tracks seat holds and reservations per bus.
// Expired holds are swept lazily whenever a bus's ledger is read or written.
type SeatLedgerService struct {
	buses   BusStore
	ledger  SeatLedgerStore
	locks   *syncutil.KeyedMutex
	holdTTL time.Duration
	now     func() time.Time
	logger  *logrus.Logger
}

// NewSeatLedgerService creates a new SeatLedgerService
func NewSeatLedgerService(buses BusStore, ledger SeatLedgerStore, holdTTL time.Duration, logger *logrus.Logger) *SeatLedgerService {
	if holdTTL <= 0 {
		holdTTL = DefaultHoldTTL
	}
	return &SeatLedgerService{
		buses:   buses,
		ledger:  ledger,
		locks:   syncutil.NewKeyedMutex(),
		holdTTL: holdTTL,
		now:     time.Now,
		logger:  logger,
	}
}

// SetClock replaces the clock, for tests
func (s *SeatLedgerService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *SeatLedgerService) lockBus(busID string) func() {
	return s.locks.Lock("bus:" + busID)
}

// GetAvailability returns nil when the bus does not exist
func (s *SeatLedgerService) GetAvailability(ctx context.Context, busID string) (*models.SeatAvailability, error) {
	bus, err := s.buses.GetByID(ctx, busID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bus: %w", err)
	}
	if bus == nil {
		return nil, nil
	}

	unlock := s.lockBus(busID)
	defer unlock()

	return s.availability(ctx, bus, s.now())
}

func (s *SeatLedgerService) availability(ctx context.Context, bus *models.Bus, now time.Time) (*models.SeatAvailability, error) {
	if _, err := s.ledger.ExpireHolds(ctx, bus.ID, now); err != nil {
		return nil, err
	}
	reserved, held, err := s.ledger.Totals(ctx, bus.ID, now)
	if err != nil {
		return nil, err
	}
	return models.NewSeatAvailability(bus.SeatCount, reserved, held), nil
}

// HoldSeats places a hold of seatCount seats that lapses after ttl (default 120s)
func (s *SeatLedgerService) HoldSeats(ctx context.Context, busID string, seatCount int, ttl time.Duration) (*HoldResult, error) {
	result, err := s.holdSeats(ctx, busID, seatCount, ttl)
	if err == nil {
		label := "ok"
		if !result.OK {
			label = string(result.Reason)
		}
		metrics.SeatHolds.WithLabelValues(label).Inc()
	}
	return result, err
}

func (s *SeatLedgerService) holdSeats(ctx context.Context, busID string, seatCount int, ttl time.Duration) (*HoldResult, error) {
	if seatCount <= 0 {
		return &HoldResult{Reason: models.ReasonInvalidSeatCount}, nil
	}
	if ttl <= 0 {
		ttl = s.holdTTL
	}

	bus, err := s.buses.GetByID(ctx, busID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bus: %w", err)
	}
	if bus == nil {
		return &HoldResult{Reason: models.ReasonBusNotFound}, nil
	}

	unlock := s.lockBus(busID)
	defer unlock()

	now := s.now()
	avail, err := s.availability(ctx, bus, now)
	if err != nil {
		return nil, err
	}
	if avail.Available < seatCount {
		return &HoldResult{Reason: models.ReasonInsufficientSeat}, nil
	}

	expires := now.Add(ttl)
	hold := &models.SeatLedgerEntry{
		ID:            uuid.NewString(),
		BusID:         busID,
		SeatCount:     seatCount,
		Status:        models.LedgerStatusHold,
		HoldExpiresAt: &expires,
		CreatedAt:     now,
	}
	ok, err := s.ledger.InsertHoldIfAvailable(ctx, hold, bus.SeatCount, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// another instance took the seats between our check and the insert
		return &HoldResult{Reason: models.ReasonInsufficientSeat}, nil
	}

	s.logger.WithFields(logrus.Fields{
		"hold_id":    hold.ID,
		"bus_id":     busID,
		"seat_count": seatCount,
		"expires_at": expires,
	}).Debug("Seats held")

	return &HoldResult{OK: true, Hold: hold}, nil
}

// ConfirmHold turns a live hold into a reservation
func (s *SeatLedgerService) ConfirmHold(ctx context.Context, holdID string) (*LedgerResult, error) {
	return s.finishHold(ctx, holdID, models.LedgerStatusReserved)
}

// CancelHold releases a live hold
func (s *SeatLedgerService) CancelHold(ctx context.Context, holdID string) (*LedgerResult, error) {
	return s.finishHold(ctx, holdID, models.LedgerStatusCancelled)
}

func (s *SeatLedgerService) finishHold(ctx context.Context, holdID string, to models.LedgerStatus) (*LedgerResult, error) {
	entry, err := s.ledger.GetByID(ctx, holdID)
	if err != nil {
		return nil, fmt.Errorf("failed to load hold: %w", err)
	}
	if entry == nil {
		return &LedgerResult{Reason: models.ReasonHoldNotFound}, nil
	}

	unlock := s.lockBus(entry.BusID)
	defer unlock()

	if _, reason, err := s.inspectHold(ctx, holdID, s.now()); err != nil || reason != "" {
		return &LedgerResult{Reason: reason}, err
	}

	ok, err := s.ledger.Transition(ctx, holdID, models.LedgerStatusHold, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &LedgerResult{Reason: models.ReasonInvalidState}, nil
	}
	return &LedgerResult{OK: true}, nil
}

// inspectHold checks that holdID is a live hold. An expired hold is swept on the
// spot; a hold already swept still reports HOLD_EXPIRED. Callers must hold the bus lock.
func (s *SeatLedgerService) inspectHold(ctx context.Context, holdID string, now time.Time) (*models.SeatLedgerEntry, models.FailureReason, error) {
	entry, err := s.ledger.GetByID(ctx, holdID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load hold: %w", err)
	}
	if entry == nil {
		return nil, models.ReasonHoldNotFound, nil
	}
	if entry.Lapsed() {
		return entry, models.ReasonHoldExpired, nil
	}
	if entry.Status != models.LedgerStatusHold {
		return entry, models.ReasonInvalidState, nil
	}
	if entry.IsExpiredHold(now) {
		if _, err := s.ledger.ExpireHolds(ctx, entry.BusID, now); err != nil {
			return nil, "", err
		}
		return entry, models.ReasonHoldExpired, nil
	}
	return entry, "", nil
}
