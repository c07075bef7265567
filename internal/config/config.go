// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Provisioning modes.
const (
	ProvisionModeAtomic = "atomic"
	ProvisionModeSaga   = "saga"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Storage
	StoreBackend  string        `env:"STORE_BACKEND" envDefault:"postgres"`
	DatabaseURL   string        `env:"DATABASE_URL"`
	DBAutoMigrate bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
	StoreTimeout  time.Duration `env:"STORE_TIMEOUT" envDefault:"3s"`

	// Cache (Redis). Optional; idempotency, rate limiting and the group
	// cache are disabled without it.
	RedisURL       string        `env:"REDIS_URL"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	// Lifetime of a reservation whose request never completed. Must
	// outlast WRITE_TIMEOUT so a live request keeps its key.
	IdempotencyPendingTTL time.Duration `env:"IDEMPOTENCY_PENDING_TTL" envDefault:"30s"`
	GroupCacheTTL         time.Duration `env:"GROUP_CACHE_TTL" envDefault:"1h"`

	// Provisioning workflow
	ProvisionMode string `env:"PROVISION_MODE" envDefault:"atomic"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting (mutating routes, per client IP)
	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPS     int  `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst   int  `env:"RATE_LIMIT_BURST" envDefault:"20"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Tracing
	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"fairshare-api"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// UsesPostgres reports whether the PostgreSQL store is selected.
func (c *Config) UsesPostgres() bool {
	return c.StoreBackend == BackendPostgres
}

// RedisEnabled reports whether a Redis URL is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisURL != ""
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks cross-field rules that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE_BACKEND=postgres"))
		}
	case BackendMemory:
		if c.IsProduction() {
			errs = append(errs, errors.New("STORE_BACKEND=memory is not allowed when APP_ENV=production"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendMemory, c.StoreBackend))
	}

	if c.ProvisionMode != ProvisionModeAtomic && c.ProvisionMode != ProvisionModeSaga {
		errs = append(errs, fmt.Errorf("PROVISION_MODE must be %q or %q, got %q", ProvisionModeAtomic, ProvisionModeSaga, c.ProvisionMode))
	}

	if c.RateLimitEnabled && (c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0) {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}

	if c.IdempotencyPendingTTL <= c.WriteTimeout {
		errs = append(errs, errors.New("IDEMPOTENCY_PENDING_TTL must exceed WRITE_TIMEOUT"))
	}

	if c.MaxRequestBodySize <= 0 {
		errs = append(errs, errors.New("MAX_REQUEST_BODY_SIZE must be positive"))
	}

	return errors.Join(errs...)
}

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
