package models

import "time"

// Point is a WGS84 coordinate pair
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// LiveLocation is the last reported position of a bus
type LiveLocation struct {
	BusID     string    `json:"busId"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Speed     *float64  `json:"speed,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Point returns the location's coordinates
func (l *LiveLocation) Point() Point {
	return Point{Lat: l.Lat, Lng: l.Lng}
}

// ETAResult is a routing-provider travel estimate between two points
type ETAResult struct {
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
	ProviderStatus  string  `json:"provider_status"`
}

// Minutes returns the duration rounded to whole minutes, never negative
func (e *ETAResult) Minutes() int {
	m := int(e.DurationSeconds/60 + 0.5)
	if m < 0 {
		return 0
	}
	return m
}
