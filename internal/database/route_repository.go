package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safarmate/transit-backend/internal/models"
)

// RouteRepository handles database operations for routes and their embedded stops
type RouteRepository struct {
	db DB
}

// NewRouteRepository creates a new RouteRepository
func NewRouteRepository(db DB) *RouteRepository {
	return &RouteRepository{db: db}
}

const routeColumns = `id, code, name, active, stops, created_at`

// Create inserts a route; a duplicate id or code is a conflict
func (r *RouteRepository) Create(ctx context.Context, route *models.Route) error {
	query := `
		INSERT INTO routes (id, code, name, active, stops)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		route.ID, route.Code, route.Name, route.Active, route.Stops,
	).Scan(&route.CreatedAt)
	if err != nil {
		return conflictOr(err, "create route")
	}
	return nil
}

// GetByID retrieves a route by ID
func (r *RouteRepository) GetByID(ctx context.Context, id string) (*models.Route, error) {
	query := `SELECT ` + routeColumns + ` FROM routes WHERE id = $1`

	route := &models.Route{}
	if err := r.db.GetContext(ctx, route, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get route: %w", err)
	}
	route.Stops = route.Stops.Sorted()
	return route, nil
}

// List returns routes ordered by code
func (r *RouteRepository) List(ctx context.Context, activeOnly bool) ([]models.Route, error) {
	query := `SELECT ` + routeColumns + ` FROM routes`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY code`

	routes := []models.Route{}
	if err := r.db.SelectContext(ctx, &routes, query); err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	for i := range routes {
		routes[i].Stops = routes[i].Stops.Sorted()
	}
	return routes, nil
}

const stopColumns = `
	s->>'id' AS stop_id,
	r.id AS route_id,
	s->>'name' AS name,
	(s->>'lat')::float8 AS lat,
	(s->>'lng')::float8 AS lng,
	COALESCE((s->>'sequence')::int, 0) AS sequence
`

// FindStop locates a stop by id across all routes
func (r *RouteRepository) FindStop(ctx context.Context, stopID string) (*models.StopWithRoute, error) {
	query := `
		SELECT ` + stopColumns + `
		FROM routes r, jsonb_array_elements(r.stops) s
		WHERE s->>'id' = $1
		ORDER BY r.id
		LIMIT 1
	`

	stop := &models.StopWithRoute{}
	if err := r.db.GetContext(ctx, stop, query, stopID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find stop: %w", err)
	}
	return stop, nil
}

// ListStops flattens the stops of every route
func (r *RouteRepository) ListStops(ctx context.Context) ([]models.StopWithRoute, error) {
	query := `
		SELECT ` + stopColumns + `
		FROM routes r, jsonb_array_elements(r.stops) s
		ORDER BY r.id, sequence
	`

	stops := []models.StopWithRoute{}
	if err := r.db.SelectContext(ctx, &stops, query); err != nil {
		return nil, fmt.Errorf("failed to list stops: %w", err)
	}
	return stops, nil
}
