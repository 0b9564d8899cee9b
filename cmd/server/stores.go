package main

import (
	"context"
	"fmt"
	"time"

	"github.com/safarmate/transit-backend/internal/apperrors"
	"github.com/safarmate/transit-backend/internal/cache"
	"github.com/safarmate/transit-backend/internal/config"
	"github.com/safarmate/transit-backend/internal/database"
	"github.com/safarmate/transit-backend/internal/database/memory"
	"github.com/safarmate/transit-backend/internal/models"
	"github.com/safarmate/transit-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// stores is the set of repositories the services run on
type stores struct {
	routes      services.RouteStore
	buses       services.BusStore
	ledger      services.SeatLedgerStore
	bookings    services.BookingStore
	users       services.UserStore
	locations   services.LocationStore
	sessions    services.SessionStore
	idempotency services.IdempotencyStore
	tokens      services.RefreshTokenStore
	rateLimits  services.RateLimitStore

	// janitor purges the in-process cache; nil when Redis holds the cache
	janitor services.CacheJanitor

	// checks are pinged by /health
	checks  map[string]func(context.Context) error
	closers []func() error
}

func (s *stores) close(logger *logrus.Logger) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logger.WithError(err).Warn("Failed to close store")
		}
	}
}

// openStores builds the durable store for cfg.Database.Driver and the cache
// stores on Redis when REDIS_ADDR is set. Without Redis the cache stores live
// in the in-memory arena.
func openStores(ctx context.Context, cfg *config.Config, seed *memory.Seed, logger *logrus.Logger) (*stores, error) {
	arena := memory.NewArena()
	s := &stores{
		locations:   arena.Locations(),
		sessions:    arena.Sessions(),
		idempotency: arena.Idempotency(),
		rateLimits:  arena.RateLimits(),
		janitor:     arena,
		checks:      map[string]func(context.Context) error{},
	}

	switch cfg.Database.Driver {
	case "postgres":
		logger.Info("Connecting to database...")
		db, err := database.NewConnection(cfg.Database)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		logger.Info("Database connection established")

		if cfg.Database.AutoMigrate {
			if err := database.Migrate(ctx, db); err != nil {
				s.close(logger)
				return nil, err
			}
		}

		s.routes = database.NewRouteRepository(db)
		s.buses = database.NewBusRepository(db)
		s.ledger = database.NewSeatLedgerRepository(db)
		s.bookings = database.NewBookingRepository(db)
		s.users = database.NewUserRepository(db)
		s.tokens = database.NewRefreshTokenRepository(db)
		s.checks["database"] = db.PingContext

		if seed != nil {
			if err := seedDurable(ctx, s, seed, logger); err != nil {
				s.close(logger)
				return nil, err
			}
		}
	default:
		if seed != nil {
			if err := arena.Load(seed); err != nil {
				return nil, fmt.Errorf("failed to load seed data: %w", err)
			}
		}
		s.routes = arena.Routes()
		s.buses = arena.Buses()
		s.ledger = arena.Ledger()
		s.bookings = arena.Bookings()
		s.users = arena.Users()
		s.tokens = arena.RefreshTokens()
		s.checks["database"] = arena.Ping
	}

	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			s.close(logger)
			return nil, err
		}
		s.closers = append(s.closers, rdb.Close)
		s.locations = cache.NewLocationStore(rdb)
		s.sessions = cache.NewSessionStore(rdb)
		s.idempotency = cache.NewIdempotencyStore(rdb)
		s.rateLimits = cache.NewRateLimitStore(rdb)
		s.janitor = nil
		s.checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		logger.WithField("addr", cfg.Redis.Addr).Info("Redis connection established")

		if seed != nil {
			if err := seedLocations(ctx, s.locations, seed); err != nil {
				s.close(logger)
				return nil, err
			}
		}
	}

	return s, nil
}

// seedDurable writes seed routes and buses, keeping rows that already exist
func seedDurable(ctx context.Context, s *stores, seed *memory.Seed, logger *logrus.Logger) error {
	created := 0
	for i := range seed.Routes {
		route := seed.Routes[i]
		route.Stops = route.Stops.Sorted()
		route.CreatedAt = time.Now()
		if err := s.routes.Create(ctx, &route); err != nil {
			if apperrors.IsConflict(err) {
				continue
			}
			return fmt.Errorf("failed to seed route %s: %w", route.ID, err)
		}
		created++
	}
	for i := range seed.Buses {
		bus := seed.Buses[i]
		if bus.SeatCount <= 0 {
			bus.SeatCount = models.DefaultSeatCount
		}
		if bus.Status == "" {
			bus.Status = models.BusStatusActive
		}
		if err := s.buses.Create(ctx, &bus); err != nil {
			if apperrors.IsConflict(err) {
				continue
			}
			return fmt.Errorf("failed to seed bus %s: %w", bus.ID, err)
		}
		created++
	}
	logger.WithField("records", created).Info("Seed data written")
	return nil
}

// seedLocations writes seed positions for buses Redis has no position for
func seedLocations(ctx context.Context, locations services.LocationStore, seed *memory.Seed) error {
	now := time.Now().UTC()
	for _, l := range seed.Locations {
		existing, err := locations.Get(ctx, l.BusID)
		if err != nil {
			return fmt.Errorf("failed to read location for %s: %w", l.BusID, err)
		}
		if existing != nil {
			continue
		}
		if _, err := locations.Upsert(ctx, &models.LiveLocation{
			BusID:     l.BusID,
			Lat:       l.Lat,
			Lng:       l.Lng,
			Speed:     l.Speed,
			Heading:   l.Heading,
			UpdatedAt: now.Add(-l.Age),
		}); err != nil {
			return fmt.Errorf("failed to seed location for %s: %w", l.BusID, err)
		}
	}
	return nil
}
