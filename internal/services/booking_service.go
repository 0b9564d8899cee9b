package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/safarmate/transit-backend/internal/events"
	"github.com/safarmate/transit-backend/internal/metrics"
	"github.com/safarmate/transit-backend/internal/models"
	"github.com/safarmate/transit-backend/internal/syncutil"
	"github.com/sirupsen/logrus"
)

// DefaultIdempotencyTTL bounds how long a booking response can be replayed
const DefaultIdempotencyTTL = 24 * time.Hour

// CreateBookingInput carries a booking request from any channel
type CreateBookingInput struct {
	BusID          string
	Seats          int
	UserID         *string
	FromStopID     *string
	ToStopID       *string
	Channel        models.Channel
	IdempotencyKey string
}

// BookingResult is the outcome of a booking operation
type BookingResult struct {
	OK      bool                 `json:"ok"`
	Booking *models.Booking      `json:"booking,omitempty"`
	Reason  models.FailureReason `json:"reason,omitempty"`

	// Replayed is set when the result came from the idempotency store
	Replayed bool `json:"-"`
}

// BookingService runs the hold-then-confirm booking workflow on top of the seat ledger
type BookingService struct {
	bookings    BookingStore
	buses       BusStore
	ledger      *SeatLedgerService
	idempotency IdempotencyStore
	publisher   events.Publisher
	locks       *syncutil.KeyedMutex
	replayTTL   time.Duration
	logger      *logrus.Logger
}

// NewBookingService creates a new BookingService
func NewBookingService(
	bookings BookingStore,
	buses BusStore,
	ledger *SeatLedgerService,
	idempotency IdempotencyStore,
	publisher events.Publisher,
	replayTTL time.Duration,
	logger *logrus.Logger,
) *BookingService {
	if replayTTL <= 0 {
		replayTTL = DefaultIdempotencyTTL
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &BookingService{
		bookings:    bookings,
		buses:       buses,
		ledger:      ledger,
		idempotency: idempotency,
		publisher:   publisher,
		locks:       syncutil.NewKeyedMutex(),
		replayTTL:   replayTTL,
		logger:      logger,
	}
}

// CreateBooking holds seats and records a pending booking. A repeated
// idempotency key returns the first successful response unchanged.
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (*BookingResult, error) {
	if in.IdempotencyKey != "" {
		unlock := s.locks.Lock("idem:" + in.IdempotencyKey)
		defer unlock()

		replayed, err := s.replay(ctx, in.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if replayed != nil {
			metrics.IdempotentReplays.Inc()
			s.logger.WithField("idempotency_key", in.IdempotencyKey).Debug("Replaying booking response")
			return replayed, nil
		}
	}

	if in.Seats == 0 {
		in.Seats = 1
	}
	if in.Channel == "" {
		in.Channel = models.ChannelApp
	}

	bus, err := s.buses.GetByID(ctx, in.BusID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bus: %w", err)
	}
	if bus == nil {
		return &BookingResult{Reason: models.ReasonBusNotFound}, nil
	}

	hold, err := s.ledger.HoldSeats(ctx, in.BusID, in.Seats, 0)
	if err != nil {
		return nil, err
	}
	if !hold.OK {
		return &BookingResult{Reason: hold.Reason}, nil
	}

	now := s.ledger.now()
	booking := &models.Booking{
		ID:         uuid.NewString(),
		BusID:      in.BusID,
		UserID:     in.UserID,
		FromStopID: in.FromStopID,
		ToStopID:   in.ToStopID,
		Seats:      in.Seats,
		Channel:    in.Channel,
		Status:     models.BookingStatusPending,
		HoldID:     &hold.Hold.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if in.IdempotencyKey != "" {
		key := in.IdempotencyKey
		booking.IdempotencyKey = &key
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		// release the seats rather than leave them held until expiry
		if _, cancelErr := s.ledger.CancelHold(ctx, hold.Hold.ID); cancelErr != nil {
			s.logger.WithError(cancelErr).WithField("hold_id", hold.Hold.ID).Warn("Failed to release hold after booking error")
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	result := &BookingResult{OK: true, Booking: booking}
	if in.IdempotencyKey != "" {
		if err := s.remember(ctx, in.IdempotencyKey, result); err != nil {
			// without the record a retry would book again, so undo this one
			s.rollback(ctx, booking)
			return nil, err
		}
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"bus_id":     booking.BusID,
		"seats":      booking.Seats,
		"channel":    booking.Channel,
	}).Info("Booking created")
	s.publish(ctx, models.BookingEventCreated, booking)

	return result, nil
}

// rollback cancels a booking that could not be finished and releases its hold
func (s *BookingService) rollback(ctx context.Context, booking *models.Booking) {
	unlockBus := s.ledger.lockBus(booking.BusID)
	defer unlockBus()

	if _, err := s.bookings.CancelWithHold(ctx, booking.ID, booking.HoldID); err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).Warn("Failed to roll back booking")
	}
}

func (s *BookingService) replay(ctx context.Context, key string) (*BookingResult, error) {
	raw, ok, err := s.idempotency.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency record: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var result BookingResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("corrupt idempotency record %q: %w", key, err)
	}
	result.Replayed = true
	return &result, nil
}

func (s *BookingService) remember(ctx context.Context, key string, result *BookingResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode booking response: %w", err)
	}
	if err := s.idempotency.Put(ctx, key, raw, s.replayTTL); err != nil {
		return fmt.Errorf("failed to store idempotency record: %w", err)
	}
	return nil
}

// ConfirmBooking reserves the booking's hold. A failed confirm leaves the booking pending.
func (s *BookingService) ConfirmBooking(ctx context.Context, bookingID string) (*BookingResult, error) {
	unlock := s.locks.Lock("booking:" + bookingID)
	defer unlock()

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	if booking == nil {
		return &BookingResult{Reason: models.ReasonBookingNotFound}, nil
	}
	if booking.Status != models.BookingStatusPending {
		return &BookingResult{Reason: models.ReasonInvalidState}, nil
	}
	if booking.HoldID == nil {
		return &BookingResult{Reason: models.ReasonHoldNotFound}, nil
	}

	holdID := *booking.HoldID
	unlockBus := s.ledger.lockBus(booking.BusID)
	defer unlockBus()

	now := s.ledger.now()
	_, reason, err := s.ledger.inspectHold(ctx, holdID, now)
	if err != nil {
		return nil, err
	}
	if reason != "" {
		s.logger.WithFields(logrus.Fields{
			"booking_id": bookingID,
			"hold_id":    holdID,
			"reason":     reason,
		}).Info("Booking confirmation rejected")
		return &BookingResult{Reason: reason}, nil
	}

	ok, err := s.bookings.ConfirmWithHold(ctx, bookingID, holdID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm booking: %w", err)
	}
	if !ok {
		return &BookingResult{Reason: models.ReasonInvalidState}, nil
	}

	booking.Status = models.BookingStatusConfirmed
	booking.HoldID = nil
	booking.UpdatedAt = now

	s.logger.WithField("booking_id", bookingID).Info("Booking confirmed")
	s.publish(ctx, models.BookingEventConfirmed, booking)

	return &BookingResult{OK: true, Booking: booking}, nil
}

// CancelBooking cancels a pending booking and releases its hold
func (s *BookingService) CancelBooking(ctx context.Context, bookingID string) (*BookingResult, error) {
	unlock := s.locks.Lock("booking:" + bookingID)
	defer unlock()

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	if booking == nil {
		return &BookingResult{Reason: models.ReasonBookingNotFound}, nil
	}
	if booking.Status != models.BookingStatusPending {
		return &BookingResult{Reason: models.ReasonInvalidState}, nil
	}

	unlockBus := s.ledger.lockBus(booking.BusID)
	defer unlockBus()

	ok, err := s.bookings.CancelWithHold(ctx, bookingID, booking.HoldID)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}
	if !ok {
		return &BookingResult{Reason: models.ReasonInvalidState}, nil
	}

	booking.Status = models.BookingStatusCancelled
	booking.UpdatedAt = s.ledger.now()

	s.logger.WithField("booking_id", bookingID).Info("Booking cancelled")
	s.publish(ctx, models.BookingEventCancelled, booking)

	return &BookingResult{OK: true, Booking: booking}, nil
}

// GetBooking returns nil when the booking does not exist
func (s *BookingService) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	return booking, nil
}

func (s *BookingService) publish(ctx context.Context, eventType models.BookingEventType, booking *models.Booking) {
	metrics.BookingEvents.WithLabelValues(string(eventType)).Inc()
	event := models.NewBookingEvent(eventType, booking, s.ledger.now())
	if err := s.publisher.PublishBooking(ctx, event); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"event":      eventType,
		}).Warn("Failed to publish booking event")
	}
}
