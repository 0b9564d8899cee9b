package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/safarmate/transit-backend/internal/config"
	"github.com/safarmate/transit-backend/internal/database/memory"
	"github.com/safarmate/transit-backend/internal/events"
	"github.com/safarmate/transit-backend/internal/handlers"
	"github.com/safarmate/transit-backend/internal/metrics"
	"github.com/safarmate/transit-backend/internal/middleware"
	"github.com/safarmate/transit-backend/internal/services"
	"github.com/safarmate/transit-backend/pkg/jwt"
	"github.com/safarmate/transit-backend/pkg/routing"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting SafarMate transit backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	ctx := context.Background()

	seed, err := loadSeed(cfg.Seed)
	if err != nil {
		logger.Fatalf("Failed to load seed data: %v", err)
	}

	st, err := openStores(ctx, cfg, seed, logger)
	if err != nil {
		logger.Fatalf("Failed to open stores: %v", err)
	}
	defer st.close(logger)

	publisher := events.NewPublisher(cfg.Kafka)
	defer publisher.Close()
	if len(cfg.Kafka.Brokers) > 0 {
		logger.WithFields(logrus.Fields{
			"brokers": cfg.Kafka.Brokers,
			"topic":   cfg.Kafka.BookingTopic,
		}).Info("Publishing booking events to Kafka")
	}

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	estimator := routing.NewOSRMClient(routing.Config{
		BaseURL: cfg.Routing.BaseURL,
		Profile: cfg.Routing.Profile,
		Timeout: cfg.Routing.Timeout,
	})

	ledgerService := services.NewSeatLedgerService(st.buses, st.ledger, cfg.Ledger.HoldTTL, logger)
	bookingService := services.NewBookingService(st.bookings, st.buses, ledgerService, st.idempotency, publisher, cfg.Idempotency.TTL, logger)
	etaService := services.NewETAService(estimator, st.routes, st.buses, st.locations, cfg.Ledger.HeuristicSpeed, logger)
	transitService := services.NewTransitService(st.routes, st.buses, st.locations, services.RouteMatchMode(cfg.Ledger.BusRouteMatch), logger)
	dispatcher := services.NewChannelDispatcher(transitService, etaService, bookingService, st.sessions, cfg.Channels.SessionTTL, logger)
	var limiter *services.RateLimitService
	if cfg.RateLimit.Enabled {
		limiter = services.NewRateLimitService(st.rateLimits, services.RateLimitConfig{
			MaxEmailAttempts: cfg.RateLimit.MaxEmailAttempts,
			EmailWindow:      cfg.RateLimit.EmailWindow,
			MaxIPAttempts:    cfg.RateLimit.MaxIPAttempts,
			IPWindow:         cfg.RateLimit.IPWindow,
		})
	}
	authService := services.NewAuthService(st.users, st.tokens, limiter, jwtService, cfg.Security.BcryptCost, logger)

	if cfg.Security.AdminEmail != "" && cfg.Security.AdminPassword != "" {
		if err := authService.EnsureAdmin(ctx, cfg.Security.AdminEmail, cfg.Security.AdminPassword); err != nil {
			logger.Fatalf("Failed to create admin account: %v", err)
		}
	}

	if cfg.Maintenance.Enabled {
		cronService := services.NewCronService(authService, st.janitor, services.CronConfig{
			TokenPurgeSchedule: cfg.Maintenance.TokenPurgeSchedule,
			CachePurgeSchedule: cfg.Maintenance.CachePurgeSchedule,
		}, logger)
		if err := cronService.Start(); err != nil {
			logger.Fatalf("Failed to start cron service: %v", err)
		}
		defer cronService.Stop()
	}

	// Initialize handlers
	handlerSet := handlers.Set{
		Bus:     handlers.NewBusHandler(transitService, etaService, ledgerService, logger),
		Route:   handlers.NewRouteHandler(transitService, etaService, logger),
		Booking: handlers.NewBookingHandler(bookingService, logger),
		Channel: handlers.NewChannelHandler(dispatcher, logger),
		Auth:    handlers.NewAuthHandler(authService, logger),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	if cfg.Security.EnableRequestLog {
		router.Use(middleware.RequestLogger(logger))
	}

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:  cfg.CORS.AllowedOrigins,
		AllowMethods:  cfg.CORS.AllowedMethods,
		AllowHeaders:  cfg.CORS.AllowedHeaders,
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader, "Idempotent-Replayed", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", healthCheckHandler(st))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	handlers.RegisterRoutes(router.Group("/api"), handlerSet, jwtService, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// loadSeed returns the seed to apply at startup, or nil when seeding is off
func loadSeed(cfg config.SeedConfig) (*memory.Seed, error) {
	if cfg.File != "" {
		return memory.LoadSeedFile(cfg.File)
	}
	if !cfg.Demo {
		return nil, nil
	}
	return memory.DemoSeed()
}

// healthCheckHandler reports the state of every backing store
func healthCheckHandler(st *stores) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := gin.H{}
		for name, ping := range st.checks {
			if err := ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				checks[name] = gin.H{"status": "unhealthy", "error": err.Error()}
				continue
			}
			checks[name] = gin.H{"status": "healthy"}
		}

		overall := "healthy"
		if status != http.StatusOK {
			overall = "unhealthy"
		}
		c.JSON(status, gin.H{
			"status":    overall,
			"checks":    checks,
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
