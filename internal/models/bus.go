package models

import (
	"errors"
	"time"
)

// BusStatus represents the current operational status of a bus
type BusStatus string

const (
	BusStatusActive   BusStatus = "active"
	BusStatusInactive BusStatus = "inactive"
)

// DefaultSeatCount is used when a bus is created without a seat_count
const DefaultSeatCount = 40

// Bus represents a vehicle assigned to a route
type Bus struct {
	ID        string    `json:"id" db:"id" yaml:"id"`
	RouteID   string    `json:"route_id" db:"route_id" yaml:"route_id"`
	Plate     string    `json:"plate" db:"plate" yaml:"plate"`
	SeatCount int       `json:"seat_count" db:"seat_count" yaml:"seat_count"`
	Status    BusStatus `json:"status" db:"status" yaml:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at" yaml:"-"`
}

// IsActive reports whether the bus is in service
func (b *Bus) IsActive() bool {
	return b.Status == BusStatusActive
}

// CreateBusRequest represents the request to register a new bus
type CreateBusRequest struct {
	ID        string  `json:"id"`
	RouteID   string  `json:"route_id"`
	Plate     string  `json:"plate"`
	SeatCount *int    `json:"seat_count,omitempty"`
	Status    *string `json:"status,omitempty"`
}

// UpdateBusRequest represents the request to update bus capacity or status
type UpdateBusRequest struct {
	SeatCount *int    `json:"seat_count,omitempty"`
	Status    *string `json:"status,omitempty"`
}

func validStatus(s string) bool {
	status := BusStatus(s)
	return status == BusStatusActive || status == BusStatusInactive
}

// Validate validates the CreateBusRequest
func (req *CreateBusRequest) Validate() error {
	if req.SeatCount != nil && *req.SeatCount <= 0 {
		return errors.New("seat_count must be greater than 0")
	}
	if req.Status != nil && !validStatus(*req.Status) {
		return errors.New("invalid status: must be active or inactive")
	}
	return nil
}

// ToBus builds a Bus with defaults applied
func (req *CreateBusRequest) ToBus() *Bus {
	bus := &Bus{
		ID:        req.ID,
		RouteID:   req.RouteID,
		Plate:     req.Plate,
		SeatCount: DefaultSeatCount,
		Status:    BusStatusActive,
	}
	if req.SeatCount != nil {
		bus.SeatCount = *req.SeatCount
	}
	if req.Status != nil {
		bus.Status = BusStatus(*req.Status)
	}
	return bus
}

// Validate validates the UpdateBusRequest
func (req *UpdateBusRequest) Validate() error {
	if req.SeatCount == nil && req.Status == nil {
		return errors.New("nothing to update: provide seat_count or status")
	}
	if req.SeatCount != nil && *req.SeatCount <= 0 {
		return errors.New("seat_count must be greater than 0")
	}
	if req.Status != nil && !validStatus(*req.Status) {
		return errors.New("invalid status: must be active or inactive")
	}
	return nil
}
