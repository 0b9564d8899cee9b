package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safarmate/transit-backend/internal/models"
)

// BusRepository handles database operations for buses
type BusRepository struct {
	db DB
}

// NewBusRepository creates a new BusRepository
func NewBusRepository(db DB) *BusRepository {
	return &BusRepository{db: db}
}

const busColumns = `id, route_id, plate, seat_count, status, created_at, updated_at`

// Create creates a new bus; a duplicate id or plate is a conflict
func (r *BusRepository) Create(ctx context.Context, bus *models.Bus) error {
	query := `
		INSERT INTO buses (id, route_id, plate, seat_count, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		bus.ID, bus.RouteID, bus.Plate, bus.SeatCount, bus.Status,
	).Scan(&bus.CreatedAt, &bus.UpdatedAt)
	if err != nil {
		return conflictOr(err, "create bus")
	}
	return nil
}

// GetByID retrieves a bus by ID
func (r *BusRepository) GetByID(ctx context.Context, id string) (*models.Bus, error) {
	query := `SELECT ` + busColumns + ` FROM buses WHERE id = $1`

	bus := &models.Bus{}
	if err := r.db.GetContext(ctx, bus, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get bus: %w", err)
	}
	return bus, nil
}

// Update changes seat_count and/or status
func (r *BusRepository) Update(ctx context.Context, id string, req *models.UpdateBusRequest) (*models.Bus, error) {
	query := `
		UPDATE buses
		SET seat_count = COALESCE($2, seat_count),
		    status = COALESCE($3, status),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + busColumns

	bus := &models.Bus{}
	if err := r.db.GetContext(ctx, bus, query, id, req.SeatCount, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update bus: %w", err)
	}
	return bus, nil
}

// List returns all buses
func (r *BusRepository) List(ctx context.Context) ([]models.Bus, error) {
	query := `SELECT ` + busColumns + ` FROM buses ORDER BY id`

	buses := []models.Bus{}
	if err := r.db.SelectContext(ctx, &buses, query); err != nil {
		return nil, fmt.Errorf("failed to list buses: %w", err)
	}
	return buses, nil
}

// ListByRoute returns the buses assigned to a route
func (r *BusRepository) ListByRoute(ctx context.Context, routeID string) ([]models.Bus, error) {
	query := `SELECT ` + busColumns + ` FROM buses WHERE route_id = $1 ORDER BY id`

	buses := []models.Bus{}
	if err := r.db.SelectContext(ctx, &buses, query, routeID); err != nil {
		return nil, fmt.Errorf("failed to list buses for route: %w", err)
	}
	return buses, nil
}
