package services

import (
	"context"
	"fmt"
	"time"

	"github.com/safarmate/transit-backend/internal/apperrors"
	"github.com/safarmate/transit-backend/internal/models"
	"github.com/safarmate/transit-backend/pkg/validator"
	"github.com/sirupsen/logrus"
)

// RouteMatchMode decides which buses count as serving a route
type RouteMatchMode string

const (
	// MatchBySuffix pairs route rX with bus ids of one leading character followed by X
	MatchBySuffix RouteMatchMode = "suffix"
	// MatchByRouteID pairs a route with the buses whose route_id names it
	MatchByRouteID RouteMatchMode = "route_id"
)

// LocationUpdate is raw telemetry as received from a tracker
type LocationUpdate struct {
	BusID   string
	Lat     string
	Lng     string
	Speed   string
	Heading string
}

// TransitService manages routes, buses and live bus positions
type TransitService struct {
	routes    RouteStore
	buses     BusStore
	locations LocationStore
	matchMode RouteMatchMode
	now       func() time.Time
	logger    *logrus.Logger
}

// NewTransitService creates a new TransitService
func NewTransitService(routes RouteStore, buses BusStore, locations LocationStore, matchMode RouteMatchMode, logger *logrus.Logger) *TransitService {
	if matchMode != MatchByRouteID {
		matchMode = MatchBySuffix
	}
	return &TransitService{
		routes:    routes,
		buses:     buses,
		locations: locations,
		matchMode: matchMode,
		now:       time.Now,
		logger:    logger,
	}
}

// CreateBus registers a bus on an existing route
func (s *TransitService) CreateBus(ctx context.Context, req *models.CreateBusRequest) (*models.Bus, error) {
	if req.ID == "" || req.RouteID == "" || req.Plate == "" {
		return nil, apperrors.Validation("id, route_id and plate are required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation("%s", err.Error())
	}

	route, err := s.routes.GetByID(ctx, req.RouteID)
	if err != nil {
		return nil, fmt.Errorf("failed to load route: %w", err)
	}
	if route == nil {
		return nil, apperrors.NotFound("Route")
	}

	bus := req.ToBus()
	now := s.now()
	bus.CreatedAt = now
	bus.UpdatedAt = now
	if err := s.buses.Create(ctx, bus); err != nil {
		if apperrors.IsConflict(err) {
			return nil, apperrors.Conflict("Bus with same id or plate already exists").WithDetails(err.Error())
		}
		return nil, fmt.Errorf("failed to create bus: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"bus_id":   bus.ID,
		"route_id": bus.RouteID,
		"seats":    bus.SeatCount,
	}).Info("Bus created")
	return bus, nil
}

// UpdateBus changes a bus's capacity or status
func (s *TransitService) UpdateBus(ctx context.Context, busID string, req *models.UpdateBusRequest) (*models.Bus, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation("%s", err.Error())
	}
	bus, err := s.buses.Update(ctx, busID, req)
	if err != nil {
		return nil, fmt.Errorf("failed to update bus: %w", err)
	}
	if bus == nil {
		return nil, apperrors.NotFound("Bus")
	}
	s.logger.WithField("bus_id", busID).Info("Bus updated")
	return bus, nil
}

// GetBus returns nil when the bus does not exist
func (s *TransitService) GetBus(ctx context.Context, busID string) (*models.Bus, error) {
	return s.buses.GetByID(ctx, busID)
}

// CreateRoute stores a route with its stops
func (s *TransitService) CreateRoute(ctx context.Context, req *models.CreateRouteRequest) (*models.Route, error) {
	route, err := req.ToRoute()
	if err != nil {
		return nil, apperrors.Validation("%s", err.Error())
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation("%s", err.Error())
	}
	route.CreatedAt = s.now()

	if err := s.routes.Create(ctx, route); err != nil {
		if apperrors.IsConflict(err) {
			return nil, apperrors.Conflict("Route with same id or code already exists").WithDetails(err.Error())
		}
		return nil, fmt.Errorf("failed to create route: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"route_id": route.ID,
		"stops":    len(route.Stops),
	}).Info("Route created")
	return route, nil
}

// GetRoute returns nil when the route does not exist
func (s *TransitService) GetRoute(ctx context.Context, routeID string) (*models.Route, error) {
	return s.routes.GetByID(ctx, routeID)
}

// ListRoutes returns the active routes
func (s *TransitService) ListRoutes(ctx context.Context) ([]models.Route, error) {
	return s.routes.List(ctx, true)
}

// ListStops returns every stop flattened with its route id
func (s *TransitService) ListStops(ctx context.Context) ([]models.StopWithRoute, error) {
	return s.routes.ListStops(ctx)
}

// RouteForStop returns the stop together with the id of the route serving it
func (s *TransitService) RouteForStop(ctx context.Context, stopID string) (*models.StopWithRoute, error) {
	stop, err := s.routes.FindStop(ctx, stopID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up stop: %w", err)
	}
	if stop == nil {
		return nil, apperrors.NotFoundf("Route not found for given stopId")
	}
	return stop, nil
}

// BusesForStop lists the ids of buses serving the route that owns stopID
func (s *TransitService) BusesForStop(ctx context.Context, stopID string) (string, []string, error) {
	stop, err := s.routes.FindStop(ctx, stopID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to look up stop: %w", err)
	}
	if stop == nil {
		return "", nil, apperrors.NotFoundf("Route not found for provided stopId")
	}

	var buses []models.Bus
	if s.matchMode == MatchByRouteID {
		buses, err = s.buses.ListByRoute(ctx, stop.RouteID)
	} else {
		buses, err = s.buses.List(ctx)
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to list buses: %w", err)
	}

	ids := make([]string, 0, len(buses))
	for _, b := range buses {
		if s.matchMode == MatchByRouteID || matchesRouteSuffix(stop.RouteID, b.ID) {
			ids = append(ids, b.ID)
		}
	}
	return stop.RouteID, ids, nil
}

// matchesRouteSuffix pairs route r21 with buses b21, x21 and so on
func matchesRouteSuffix(routeID, busID string) bool {
	suffix := routeID
	if r := []rune(routeID); len(r) > 1 {
		suffix = string(r[1:])
	}
	b := []rune(busID)
	return len(b) > 0 && string(b[1:]) == suffix
}

// ActiveBusForRoute returns the first active bus assigned to routeID, or nil
func (s *TransitService) ActiveBusForRoute(ctx context.Context, routeID string) (*models.Bus, error) {
	buses, err := s.buses.ListByRoute(ctx, routeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list buses: %w", err)
	}
	for i := range buses {
		if buses[i].IsActive() {
			return &buses[i], nil
		}
	}
	return nil, nil
}

// GetLocation returns the cached position of a bus
func (s *TransitService) GetLocation(ctx context.Context, busID string) (*models.LiveLocation, error) {
	loc, err := s.locations.Get(ctx, busID)
	if err != nil {
		return nil, fmt.Errorf("failed to read bus location: %w", err)
	}
	if loc == nil {
		return nil, apperrors.NotFound("Bus location")
	}
	return loc, nil
}

// UpdateLocation overwrites the cached position and reports "created" or "updated"
func (s *TransitService) UpdateLocation(ctx context.Context, in LocationUpdate) (string, error) {
	if in.BusID == "" {
		return "", apperrors.Validation("busId is required")
	}
	coords, err := validator.ParseCoordinates(in.Lat, in.Lng)
	if err != nil {
		return "", coordinateError(err)
	}
	speed, err := validator.ParseOptionalNumber(in.Speed)
	if err != nil {
		return "", apperrors.Validation("speed must be a number")
	}
	heading, err := validator.ParseOptionalNumber(in.Heading)
	if err != nil {
		return "", apperrors.Validation("heading must be a number")
	}

	existed, err := s.locations.Upsert(ctx, &models.LiveLocation{
		BusID:     in.BusID,
		Lat:       coords.Lat,
		Lng:       coords.Lng,
		Speed:     speed,
		Heading:   heading,
		UpdatedAt: s.now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to store bus location: %w", err)
	}

	status := "created"
	if existed {
		status = "updated"
	}
	s.logger.WithFields(logrus.Fields{
		"bus_id":  in.BusID,
		"existed": existed,
	}).Debug("Bus location stored")
	return status, nil
}
