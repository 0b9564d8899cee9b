package models

import (
	"errors"
	"time"
)

// BookingStatus represents the status of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Channel identifies where a booking originated
type Channel string

const (
	ChannelApp      Channel = "app"
	ChannelSMS      Channel = "sms"
	ChannelUSSD     Channel = "ussd"
	ChannelWhatsApp Channel = "whatsapp"
)

// ValidChannel reports whether c is a known booking channel
func ValidChannel(c Channel) bool {
	switch c {
	case ChannelApp, ChannelSMS, ChannelUSSD, ChannelWhatsApp:
		return true
	}
	return false
}

// Booking represents a seat booking on a bus, backed by a ledger hold until confirmed
type Booking struct {
	ID             string        `json:"id" db:"id"`
	BusID          string        `json:"bus_id" db:"bus_id"`
	UserID         *string       `json:"user_id" db:"user_id"`
	FromStopID     *string       `json:"from_stop_id" db:"from_stop_id"`
	ToStopID       *string       `json:"to_stop_id" db:"to_stop_id"`
	Seats          int           `json:"seats" db:"seats"`
	Channel        Channel       `json:"channel" db:"channel"`
	Status         BookingStatus `json:"status" db:"status"`
	HoldID         *string       `json:"hold_id" db:"hold_id"`
	IdempotencyKey *string       `json:"idempotency_key,omitempty" db:"idempotency_key"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// CreateBookingRequest represents the request to create a booking
type CreateBookingRequest struct {
	BusID          string  `json:"bus_id" binding:"required"`
	FromStopID     *string `json:"from_stop_id,omitempty"`
	ToStopID       *string `json:"to_stop_id,omitempty"`
	Seats          *int    `json:"seats,omitempty"`
	Channel        *string `json:"channel,omitempty"`
	IdempotencyKey *string `json:"idempotency_key,omitempty"`
}

// Validate validates the create booking request
func (r *CreateBookingRequest) Validate() error {
	if r.Seats != nil && *r.Seats <= 0 {
		return errors.New("seats must be at least 1")
	}
	if r.Channel != nil && !ValidChannel(Channel(*r.Channel)) {
		return errors.New("invalid channel: must be app, sms, ussd or whatsapp")
	}
	return nil
}

// BookingEventType names a booking lifecycle event
type BookingEventType string

const (
	BookingEventCreated   BookingEventType = "booking.created"
	BookingEventConfirmed BookingEventType = "booking.confirmed"
	BookingEventCancelled BookingEventType = "booking.cancelled"
)

// BookingEvent is published whenever a booking changes state
type BookingEvent struct {
	Type       BookingEventType `json:"type"`
	BookingID  string           `json:"booking_id"`
	BusID      string           `json:"bus_id"`
	Seats      int              `json:"seats"`
	Channel    Channel          `json:"channel"`
	Status     BookingStatus    `json:"status"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// NewBookingEvent builds an event snapshot of b
func NewBookingEvent(eventType BookingEventType, b *Booking, at time.Time) BookingEvent {
	return BookingEvent{
		Type:       eventType,
		BookingID:  b.ID,
		BusID:      b.BusID,
		Seats:      b.Seats,
		Channel:    b.Channel,
		Status:     b.Status,
		OccurredAt: at,
	}
}
