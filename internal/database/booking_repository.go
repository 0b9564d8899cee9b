package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/safarmate/transit-backend/internal/models"
)

// BookingRepository handles database operations for bookings
type BookingRepository struct {
	db DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts a pending booking
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	query := `
		INSERT INTO bookings (
			id, bus_id, user_id, from_stop_id, to_stop_id,
			seats, channel, status, hold_id, idempotency_key
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		booking.ID, booking.BusID, booking.UserID, booking.FromStopID, booking.ToStopID,
		booking.Seats, booking.Channel, booking.Status, booking.HoldID, booking.IdempotencyKey,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return conflictOr(err, "create booking")
	}
	return nil
}

// GetByID retrieves a booking by ID
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	query := `
		SELECT
			id, bus_id, user_id, from_stop_id, to_stop_id, seats, channel,
			status, hold_id, idempotency_key, created_at, updated_at
		FROM bookings
		WHERE id = $1
	`

	booking := &models.Booking{}
	if err := r.db.GetContext(ctx, booking, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// ConfirmWithHold reserves the hold and confirms the booking in one transaction.
// It reports false, leaving both untouched, if either has moved on.
func (r *BookingRepository) ConfirmWithHold(ctx context.Context, bookingID, holdID string, now time.Time) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ok, err := execOne(ctx, tx, `
		UPDATE seat_ledger
		SET status = 'reserved', hold_expires_at = NULL
		WHERE id = $1 AND status = 'hold' AND (hold_expires_at IS NULL OR hold_expires_at > $2)
	`, holdID, now)
	if err != nil || !ok {
		return false, err
	}

	ok, err = execOne(ctx, tx, `
		UPDATE bookings
		SET status = 'confirmed', hold_id = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, bookingID)
	if err != nil || !ok {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit confirmation: %w", err)
	}
	return true, nil
}

// CancelWithHold cancels the pending booking and releases its hold
func (r *BookingRepository) CancelWithHold(ctx context.Context, bookingID string, holdID *string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if holdID != nil {
		// the hold may already have been cancelled by expiry
		if _, err := execOne(ctx, tx, `
			UPDATE seat_ledger
			SET status = 'cancelled', cancel_reason = 'released', hold_expires_at = NULL
			WHERE id = $1 AND status = 'hold'
		`, *holdID); err != nil {
			return false, err
		}
	}

	ok, err := execOne(ctx, tx, `
		UPDATE bookings
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, bookingID)
	if err != nil || !ok {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit cancellation: %w", err)
	}
	return true, nil
}

// execOne runs an update and reports whether exactly one row changed
func execOne(ctx context.Context, tx *sqlx.Tx, query string, args ...interface{}) (bool, error) {
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update booking state: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update booking state: %w", err)
	}
	return n == 1, nil
}
