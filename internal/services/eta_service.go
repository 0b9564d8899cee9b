package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/safarmate/transit-backend/internal/apperrors"
	"github.com/safarmate/transit-backend/internal/metrics"
	"github.com/safarmate/transit-backend/internal/models"
	"github.com/safarmate/transit-backend/pkg/routing"
	"github.com/safarmate/transit-backend/pkg/validator"
	"github.com/sirupsen/logrus"
)

const (
	earthRadiusKm = 6371.0

	// DefaultHeuristicSpeedKmh is the assumed average urban bus speed
	DefaultHeuristicSpeedKmh = 28.0
)

// ETAService estimates travel time with the routing provider, or with a
// great-circle heuristic when no network call is wanted.
type ETAService struct {
	estimator routing.Estimator
	routes    RouteStore
	buses     BusStore
	locations LocationStore
	speedKmh  float64
	logger    *logrus.Logger
}

// NewETAService creates a new ETAService
func NewETAService(
	estimator routing.Estimator,
	routes RouteStore,
	buses BusStore,
	locations LocationStore,
	speedKmh float64,
	logger *logrus.Logger,
) *ETAService {
	if speedKmh <= 0 {
		speedKmh = DefaultHeuristicSpeedKmh
	}
	return &ETAService{
		estimator: estimator,
		routes:    routes,
		buses:     buses,
		locations: locations,
		speedKmh:  speedKmh,
		logger:    logger,
	}
}

// EtaBetween asks the routing provider for the driving estimate between two points
func (s *ETAService) EtaBetween(ctx context.Context, origin, destination models.Point) (*models.ETAResult, error) {
	for _, p := range []models.Point{origin, destination} {
		if err := validator.ValidateCoordinates(p.Lat, p.Lng); err != nil {
			return nil, apperrors.Validation("%s", err.Error())
		}
	}

	start := time.Now()
	est, err := s.estimator.Route(ctx,
		routing.Coordinate{Lat: origin.Lat, Lng: origin.Lng},
		routing.Coordinate{Lat: destination.Lat, Lng: destination.Lng},
	)
	metrics.ProviderLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ETARequests.WithLabelValues("provider", "error").Inc()
		return nil, providerFailure(err)
	}
	metrics.ETARequests.WithLabelValues("provider", "ok").Inc()

	status := est.Status
	if status == "" {
		status = "OK"
	}
	return &models.ETAResult{
		DistanceMeters:  est.DistanceMeters,
		DurationSeconds: est.DurationSeconds,
		ProviderStatus:  status,
	}, nil
}

// EtaBetweenRaw parses text coordinates, as received in query strings, and calls EtaBetween
func (s *ETAService) EtaBetweenRaw(ctx context.Context, origLat, origLng, destLat, destLng string) (*models.ETAResult, error) {
	origin, err := validator.ParseCoordinates(origLat, origLng)
	if err != nil {
		return nil, coordinateError(err)
	}
	destination, err := validator.ParseCoordinates(destLat, destLng)
	if err != nil {
		return nil, coordinateError(err)
	}
	return s.EtaBetween(ctx,
		models.Point{Lat: origin.Lat, Lng: origin.Lng},
		models.Point{Lat: destination.Lat, Lng: destination.Lng},
	)
}

// EtaFromBusToStop estimates the drive from a bus's last reported position to a stop
func (s *ETAService) EtaFromBusToStop(ctx context.Context, busID, stopID string) (*models.ETAResult, error) {
	loc, err := s.locations.Get(ctx, busID)
	if err != nil {
		return nil, apperrors.Internal("failed to read bus location", err)
	}
	if loc == nil {
		return nil, apperrors.NotFound("Bus location")
	}

	stop, err := s.routes.FindStop(ctx, stopID)
	if err != nil {
		return nil, apperrors.Internal("failed to look up stop", err)
	}
	if stop == nil {
		return nil, apperrors.NotFound("Stop")
	}

	return s.EtaBetween(ctx, loc.Point(), models.Point{Lat: stop.Lat, Lng: stop.Lng})
}

// EstimateStopETAs returns whole minutes from the bus to every stop on its route.
// It never fails: an unknown bus, route or position yields an empty map.
func (s *ETAService) EstimateStopETAs(ctx context.Context, busID string) map[string]int {
	eta := make(map[string]int)

	loc, err := s.locations.Get(ctx, busID)
	if err != nil || loc == nil {
		return eta
	}
	bus, err := s.buses.GetByID(ctx, busID)
	if err != nil || bus == nil {
		return eta
	}
	route, err := s.routes.GetByID(ctx, bus.RouteID)
	if err != nil || route == nil {
		return eta
	}

	for _, stop := range route.Stops {
		km := HaversineKm(loc.Point(), stop.Point())
		minutes := int(math.Round(km / s.speedKmh * 60))
		if minutes < 0 {
			minutes = 0
		}
		eta[stop.ID] = minutes
	}
	metrics.ETARequests.WithLabelValues("heuristic", "ok").Inc()
	return eta
}

// HaversineKm is the great-circle distance between two points
func HaversineKm(a, b models.Point) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func coordinateError(err error) error {
	if errors.Is(err, validator.ErrNotNumeric) {
		return apperrors.Validation("All coordinates must be numbers")
	}
	return apperrors.Validation("%s", err.Error())
}

func providerFailure(err error) error {
	var pe *routing.ProviderError
	if errors.As(err, &pe) {
		message := pe.Message
		if message == "" {
			message = "Request failed"
		}
		return apperrors.Provider(pe.StatusCode, message, pe.Payload)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.Provider(0, err.Error(), nil)
	}
	return apperrors.Provider(0, fmt.Sprintf("Request failed: %v", err), nil)
}
