package models

import "time"

// LedgerStatus represents the state of a seat ledger entry
type LedgerStatus string

const (
	LedgerStatusHold      LedgerStatus = "hold"
	LedgerStatusReserved  LedgerStatus = "reserved"
	LedgerStatusCancelled LedgerStatus = "cancelled"
)

// CancelReason records why an entry left the hold status for cancelled
type CancelReason string

const (
	CancelReasonExpired  CancelReason = "expired"
	CancelReasonReleased CancelReason = "released"
)

// FailureReason is a stable machine-readable code for a rejected ledger or booking operation
type FailureReason string

const (
	ReasonBusNotFound      FailureReason = "BUS_NOT_FOUND"
	ReasonInsufficientSeat FailureReason = "INSUFFICIENT_SEATS"
	ReasonInvalidSeatCount FailureReason = "INVALID_SEAT_COUNT"
	ReasonHoldNotFound     FailureReason = "HOLD_NOT_FOUND"
	ReasonHoldExpired      FailureReason = "HOLD_EXPIRED"
	ReasonInvalidState     FailureReason = "INVALID_STATE"
	ReasonBookingNotFound  FailureReason = "BOOKING_NOT_FOUND"
)

// SeatLedgerEntry is a hold or reservation of seats on a bus
type SeatLedgerEntry struct {
	ID            string       `json:"id" db:"id"`
	BusID         string       `json:"bus_id" db:"bus_id"`
	SeatCount     int          `json:"seat_count" db:"seat_count"`
	Status        LedgerStatus `json:"status" db:"status"`
	HoldExpiresAt *time.Time   `json:"hold_expires_at" db:"hold_expires_at"`
	CancelReason  CancelReason `json:"cancel_reason,omitempty" db:"cancel_reason"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
}

// Lapsed reports whether the entry was cancelled because its hold ran out
func (e *SeatLedgerEntry) Lapsed() bool {
	return e.Status == LedgerStatusCancelled && e.CancelReason == CancelReasonExpired
}

// IsLiveHold reports whether the entry is a hold that has not expired at now
func (e *SeatLedgerEntry) IsLiveHold(now time.Time) bool {
	if e.Status != LedgerStatusHold {
		return false
	}
	return e.HoldExpiresAt == nil || e.HoldExpiresAt.After(now)
}

// IsExpiredHold reports whether the entry is a hold whose expiry has passed at now
func (e *SeatLedgerEntry) IsExpiredHold(now time.Time) bool {
	return e.Status == LedgerStatusHold && e.HoldExpiresAt != nil && !e.HoldExpiresAt.After(now)
}

// SeatAvailability summarises the seat ledger of one bus
type SeatAvailability struct {
	Total     int `json:"total"`
	Reserved  int `json:"reserved"`
	Held      int `json:"held"`
	Available int `json:"available"`
}

// NewSeatAvailability computes availability, clamping at zero
func NewSeatAvailability(total, reserved, held int) *SeatAvailability {
	available := total - reserved - held
	if available < 0 {
		available = 0
	}
	return &SeatAvailability{
		Total:     total,
		Reserved:  reserved,
		Held:      held,
		Available: available,
	}
}
