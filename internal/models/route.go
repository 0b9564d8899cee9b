package models

import (
	"errors"
	"fmt"
	"time"
)

// Stop represents a stop embedded in a route
type Stop struct {
	ID       string  `json:"id" yaml:"id"`
	Name     string  `json:"name" yaml:"name"`
	Lat      float64 `json:"lat" yaml:"lat"`
	Lng      float64 `json:"lng" yaml:"lng"`
	Sequence int     `json:"sequence" yaml:"sequence"`
}

// Point returns the stop's coordinates
func (s Stop) Point() Point {
	return Point{Lat: s.Lat, Lng: s.Lng}
}

// Route represents a bus route with its ordered stops
type Route struct {
	ID        string    `json:"id" db:"id" yaml:"id"`
	Code      string    `json:"code" db:"code" yaml:"code"`
	Name      string    `json:"name" db:"name" yaml:"name"`
	Active    bool      `json:"active" db:"active" yaml:"active"`
	Stops     StopList  `json:"stops" db:"stops" yaml:"stops"`
	CreatedAt time.Time `json:"created_at" db:"created_at" yaml:"-"`
}

// FindStop returns the stop with the given id, if the route has it
func (r *Route) FindStop(stopID string) (Stop, bool) {
	for _, s := range r.Stops {
		if s.ID == stopID {
			return s, true
		}
	}
	return Stop{}, false
}

// StopWithRoute is a stop flattened together with its owning route id
type StopWithRoute struct {
	StopID   string  `json:"stop_id" db:"stop_id"`
	RouteID  string  `json:"route_id" db:"route_id"`
	Name     string  `json:"name" db:"name"`
	Lat      float64 `json:"lat" db:"lat"`
	Lng      float64 `json:"lng" db:"lng"`
	Sequence int     `json:"sequence" db:"sequence"`
}

// CreateRouteRequest represents the request to create a route with stops
type CreateRouteRequest struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	Active *bool  `json:"active,omitempty"`
	Stops  []Stop `json:"stops"`
}

// Validate validates the CreateRouteRequest
func (req *CreateRouteRequest) Validate() error {
	seen := make(map[string]bool, len(req.Stops))
	for i, s := range req.Stops {
		if s.ID == "" || s.Name == "" {
			return fmt.Errorf("stops[%d]: id and name are required", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("stops[%d]: duplicate stop id %q", i, s.ID)
		}
		seen[s.ID] = true
		if s.Lat < -90 || s.Lat > 90 || s.Lng < -180 || s.Lng > 180 {
			return fmt.Errorf("stops[%d]: coordinates out of range", i)
		}
	}
	return nil
}

// ToRoute builds a Route with defaults applied and stops ordered by sequence
func (req *CreateRouteRequest) ToRoute() (*Route, error) {
	if req.ID == "" || req.Code == "" || req.Name == "" {
		return nil, errors.New("id, code and name are required")
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return &Route{
		ID:     req.ID,
		Code:   req.Code,
		Name:   req.Name,
		Active: active,
		Stops:  StopList(req.Stops).Sorted(),
	}, nil
}
