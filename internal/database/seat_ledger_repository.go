package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/safarmate/transit-backend/internal/models"
)

// SeatLedgerRepository handles database operations for seat holds and reservations
type SeatLedgerRepository struct {
	db DB
}

// NewSeatLedgerRepository creates a new SeatLedgerRepository
func NewSeatLedgerRepository(db DB) *SeatLedgerRepository {
	return &SeatLedgerRepository{db: db}
}

const ledgerTotalsQuery = `
	SELECT
		COALESCE(SUM(seat_count) FILTER (WHERE status = 'reserved'), 0) AS reserved,
		COALESCE(SUM(seat_count) FILTER (
			WHERE status = 'hold' AND (hold_expires_at IS NULL OR hold_expires_at > $2)
		), 0) AS held
	FROM seat_ledger
	WHERE bus_id = $1
`

type ledgerTotals struct {
	Reserved int `db:"reserved"`
	Held     int `db:"held"`
}

// ExpireHolds cancels the holds on a bus whose expiry has passed
func (r *SeatLedgerRepository) ExpireHolds(ctx context.Context, busID string, now time.Time) (int, error) {
	query := `
		UPDATE seat_ledger
		SET status = 'cancelled', cancel_reason = 'expired', hold_expires_at = NULL
		WHERE bus_id = $1 AND status = 'hold' AND hold_expires_at <= $2
	`

	result, err := r.db.ExecContext(ctx, query, busID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire holds: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to expire holds: %w", err)
	}
	return int(n), nil
}

// Totals sums reserved and live held seats on a bus
func (r *SeatLedgerRepository) Totals(ctx context.Context, busID string, now time.Time) (int, int, error) {
	var totals ledgerTotals
	if err := r.db.GetContext(ctx, &totals, ledgerTotalsQuery, busID, now); err != nil {
		return 0, 0, fmt.Errorf("failed to sum seat ledger: %w", err)
	}
	return totals.Reserved, totals.Held, nil
}

// InsertHoldIfAvailable re-checks capacity under a row lock on the bus and inserts the hold.
// The locked row's seat_count is authoritative; capacity is only the caller's view of it.
func (r *SeatLedgerRepository) InsertHoldIfAvailable(ctx context.Context, entry *models.SeatLedgerEntry, capacity int, now time.Time) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var seatCount int
	if err := tx.GetContext(ctx, &seatCount, `SELECT seat_count FROM buses WHERE id = $1 FOR UPDATE`, entry.BusID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to lock bus: %w", err)
	}

	var totals ledgerTotals
	if err := tx.GetContext(ctx, &totals, ledgerTotalsQuery, entry.BusID, now); err != nil {
		return false, fmt.Errorf("failed to sum seat ledger: %w", err)
	}
	if totals.Reserved+totals.Held+entry.SeatCount > seatCount {
		return false, nil
	}

	insert := `
		INSERT INTO seat_ledger (id, bus_id, seat_count, status, hold_expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.ExecContext(ctx, insert,
		entry.ID, entry.BusID, entry.SeatCount, entry.Status, entry.HoldExpiresAt, entry.CreatedAt,
	); err != nil {
		return false, fmt.Errorf("failed to insert hold: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit hold: %w", err)
	}
	return true, nil
}

// GetByID retrieves a ledger entry by ID
func (r *SeatLedgerRepository) GetByID(ctx context.Context, id string) (*models.SeatLedgerEntry, error) {
	query := `
		SELECT id, bus_id, seat_count, status, hold_expires_at, cancel_reason, created_at
		FROM seat_ledger
		WHERE id = $1
	`

	entry := &models.SeatLedgerEntry{}
	if err := r.db.GetContext(ctx, entry, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return entry, nil
}

// Transition moves an entry between statuses if it is still in the from status
func (r *SeatLedgerRepository) Transition(ctx context.Context, id string, from, to models.LedgerStatus) (bool, error) {
	query := `
		UPDATE seat_ledger
		SET status = $3,
		    hold_expires_at = NULL,
		    cancel_reason = CASE WHEN $3 = 'cancelled' THEN 'released' ELSE cancel_reason END
		WHERE id = $1 AND status = $2
	`

	result, err := r.db.ExecContext(ctx, query, id, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to update ledger entry: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update ledger entry: %w", err)
	}
	return n == 1, nil
}
