// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Advisory classifier (optional sidecar)
	AdvisoryURL     string
	AdvisoryTimeout time.Duration

	// Audit batching
	BatchSize     int
	BatchInterval time.Duration

	// Enforcement
	LockCooldown     time.Duration
	TransferCooldown time.Duration

	// Habitual-hours band for login scoring (inclusive, UTC)
	NormalHoursStart int
	NormalHoursEnd   int

	// Security
	RateLimitRPS int

	// Tracing
	OTLPEndpoint string // OTLP gRPC endpoint (optional, tracing is no-op if not set)
}

// Defaults
const (
	DefaultPort             = "8080"
	DefaultEnv              = "development"
	DefaultLogLevel         = "info"
	DefaultAdvisoryTimeout  = 5 * time.Second
	DefaultBatchSize        = 50
	DefaultBatchInterval    = 300 * time.Second
	DefaultLockCooldown     = 30 * time.Minute
	DefaultTransferCooldown = 10 * time.Minute
	DefaultNormalHoursStart = 6
	DefaultNormalHoursEnd   = 22
	DefaultRateLimit        = 100
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", DefaultPort),
		Env:              getEnv("ENV", DefaultEnv),
		LogLevel:         getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:      os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		AdvisoryURL:      os.Getenv("ADVISORY_URL"), // Optional, regex-only scanning if not set
		AdvisoryTimeout:  getEnvDuration("ADVISORY_TIMEOUT", DefaultAdvisoryTimeout),
		BatchSize:        int(getEnvInt64("BATCH_SIZE", DefaultBatchSize)),
		BatchInterval:    getEnvDuration("BATCH_INTERVAL", DefaultBatchInterval),
		LockCooldown:     getEnvDuration("LOCK_COOLDOWN", DefaultLockCooldown),
		TransferCooldown: getEnvDuration("TRANSFER_COOLDOWN", DefaultTransferCooldown),
		NormalHoursStart: int(getEnvInt64("NORMAL_HOURS_START", DefaultNormalHoursStart)),
		NormalHoursEnd:   int(getEnvInt64("NORMAL_HOURS_END", DefaultNormalHoursEnd)),
		RateLimitRPS:     int(getEnvInt64("RATE_LIMIT_RPS", int64(DefaultRateLimit))),
		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configuration values are coherent
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive")
	}
	if c.BatchInterval <= 0 {
		return fmt.Errorf("BATCH_INTERVAL must be positive")
	}
	if c.LockCooldown <= 0 {
		return fmt.Errorf("LOCK_COOLDOWN must be positive")
	}
	if c.TransferCooldown <= 0 {
		return fmt.Errorf("TRANSFER_COOLDOWN must be positive")
	}
	if c.NormalHoursStart < 0 || c.NormalHoursStart > 23 {
		return fmt.Errorf("NORMAL_HOURS_START must be an hour 0-23")
	}
	if c.NormalHoursEnd < 0 || c.NormalHoursEnd > 23 {
		return fmt.Errorf("NORMAL_HOURS_END must be an hour 0-23")
	}
	if c.NormalHoursStart >= c.NormalHoursEnd {
		return fmt.Errorf("NORMAL_HOURS_START must precede NORMAL_HOURS_END")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("5m") or bare seconds ("300").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
