package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// JWT configuration
	JWT JWTConfig

	// Routing provider configuration
	Routing RoutingConfig

	// Seat ledger configuration
	Ledger LedgerConfig

	// SMS / USSD channel configuration
	Channels ChannelsConfig

	// Idempotency configuration
	Idempotency IdempotencyConfig

	// Kafka configuration
	Kafka KafkaConfig

	// CORS configuration
	CORS CORSConfig

	// Security configuration
	Security SecurityConfig

	// Login rate limit configuration
	RateLimit RateLimitConfig

	// Scheduled maintenance configuration
	Maintenance MaintenanceConfig

	// Seed data configuration
	Seed SeedConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string `validate:"required,numeric"`
	Environment string `validate:"oneof=development staging production test"`
	LogLevel    string `validate:"oneof=debug info warn error"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver             string `validate:"oneof=memory postgres"` // memory or postgres
	URL                string
	MaxConnections     int `validate:"gte=1"`
	MaxIdleConnections int `validate:"gte=0"`
	ConnMaxLifetime    time.Duration
	AutoMigrate        bool
}

// RedisConfig holds cache configuration. An empty Addr keeps everything in process.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int `validate:"gte=0"`
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret             string
	RefreshSecret      string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// RoutingConfig holds OSRM provider configuration
type RoutingConfig struct {
	BaseURL string `validate:"required,url"`
	Profile string `validate:"required"`
	Timeout time.Duration
}

// LedgerConfig holds seat ledger configuration
type LedgerConfig struct {
	HoldTTL        time.Duration
	BusRouteMatch  string  `validate:"oneof=suffix route_id"` // suffix or route_id
	HeuristicSpeed float64 `validate:"gt=0"`                  // km/h
}

// ChannelsConfig holds text-channel configuration
type ChannelsConfig struct {
	SessionTTL time.Duration
}

// IdempotencyConfig holds booking idempotency configuration
type IdempotencyConfig struct {
	TTL time.Duration
}

// KafkaConfig holds event bus configuration. No brokers disables publishing.
type KafkaConfig struct {
	Brokers      []string
	BookingTopic string
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	BcryptCost       int `validate:"gte=4,lte=31"`
	EnableRequestLog bool

	// Bootstrap admin account, created at startup when both are set
	AdminEmail    string `validate:"omitempty,email"`
	AdminPassword string
}

// RateLimitConfig holds failed-login throttling configuration
type RateLimitConfig struct {
	Enabled          bool
	MaxEmailAttempts int `validate:"gte=1"`
	EmailWindow      time.Duration
	MaxIPAttempts    int `validate:"gte=1"`
	IPWindow         time.Duration
}

// MaintenanceConfig holds the cron schedules (six fields, with seconds). Empty disables a job.
type MaintenanceConfig struct {
	Enabled            bool
	TokenPurgeSchedule string
	CachePurgeSchedule string
}

// SeedConfig holds demo data configuration for the memory driver
type SeedConfig struct {
	File string // empty uses the embedded demo data
	Demo bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Driver:             getEnv("DATABASE_DRIVER", "memory"),
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
			AutoMigrate:        getEnvAsBool("DATABASE_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", ""),
			RefreshSecret:      getEnv("JWT_REFRESH_SECRET", ""),
			AccessTokenExpiry:  time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
			RefreshTokenExpiry: time.Duration(getEnvAsInt("JWT_REFRESH_TOKEN_EXPIRY", 604800)) * time.Second,
		},
		Routing: RoutingConfig{
			BaseURL: getEnv("OSRM_BASE_URL", "https://router.project-osrm.org"),
			Profile: getEnv("OSRM_PROFILE", "driving"),
			Timeout: time.Duration(getEnvAsInt("OSRM_TIMEOUT_MS", 8000)) * time.Millisecond,
		},
		Ledger: LedgerConfig{
			HoldTTL:        time.Duration(getEnvAsInt("HOLD_TTL_MS", 120000)) * time.Millisecond,
			BusRouteMatch:  getEnv("BUS_ROUTE_MATCH", "suffix"),
			HeuristicSpeed: getEnvAsFloat("HEURISTIC_SPEED_KMH", 28),
		},
		Channels: ChannelsConfig{
			SessionTTL: time.Duration(getEnvAsInt("SMS_SESSION_TTL_SECONDS", 600)) * time.Second,
		},
		Idempotency: IdempotencyConfig{
			TTL: time.Duration(getEnvAsInt("IDEMPOTENCY_TTL_SECONDS", 86400)) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:      getEnvAsSlice("KAFKA_BROKERS", nil),
			BookingTopic: getEnv("KAFKA_BOOKING_TOPIC", "booking-events"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PATCH", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization", "Idempotency-Key"}),
		},
		Security: SecurityConfig{
			BcryptCost:       getEnvAsInt("BCRYPT_COST", 12),
			EnableRequestLog: getEnvAsBool("ENABLE_REQUEST_LOGGING", true),
			AdminEmail:       getEnv("ADMIN_EMAIL", ""),
			AdminPassword:    getEnv("ADMIN_PASSWORD", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled:          getEnvAsBool("LOGIN_RATE_LIMIT_ENABLED", true),
			MaxEmailAttempts: getEnvAsInt("LOGIN_MAX_ATTEMPTS", 5),
			EmailWindow:      time.Duration(getEnvAsInt("LOGIN_WINDOW_SECONDS", 900)) * time.Second,
			MaxIPAttempts:    getEnvAsInt("LOGIN_MAX_ATTEMPTS_PER_IP", 20),
			IPWindow:         time.Duration(getEnvAsInt("LOGIN_IP_WINDOW_SECONDS", 3600)) * time.Second,
		},
		Maintenance: MaintenanceConfig{
			Enabled:            getEnvAsBool("MAINTENANCE_ENABLED", true),
			TokenPurgeSchedule: getEnv("TOKEN_PURGE_SCHEDULE", "0 0 * * * *"),
			CachePurgeSchedule: getEnv("CACHE_PURGE_SCHEDULE", "0 */5 * * * *"),
		},
		Seed: SeedConfig{
			File: getEnv("SEED_FILE", ""),
			Demo: getEnvAsBool("SEED_DEMO_DATA", true),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Database.Driver == "postgres" && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when DATABASE_DRIVER=postgres")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.JWT.RefreshSecret == "" {
		return fmt.Errorf("JWT_REFRESH_SECRET is required")
	}

	if c.Ledger.HoldTTL <= 0 {
		return fmt.Errorf("HOLD_TTL_MS must be positive")
	}

	if c.Idempotency.TTL <= 0 {
		return fmt.Errorf("IDEMPOTENCY_TTL_SECONDS must be positive")
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid float value for %s, using default: %g", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
