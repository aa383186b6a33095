package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_WithValidConfig(t *testing.T) {
	setEnv(t, "PORT", "9090")
	setEnv(t, "BATCH_SIZE", "25")
	setEnv(t, "BATCH_INTERVAL", "2m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, 2*time.Minute, cfg.BatchInterval)
	assert.Equal(t, DefaultLockCooldown, cfg.LockCooldown)
	assert.Equal(t, DefaultTransferCooldown, cfg.TransferCooldown)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, DefaultBatchInterval, cfg.BatchInterval)
	assert.Equal(t, DefaultNormalHoursStart, cfg.NormalHoursStart)
	assert.Equal(t, DefaultNormalHoursEnd, cfg.NormalHoursEnd)
	assert.Equal(t, DefaultAdvisoryTimeout, cfg.AdvisoryTimeout)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			BatchSize:        DefaultBatchSize,
			BatchInterval:    DefaultBatchInterval,
			LockCooldown:     DefaultLockCooldown,
			TransferCooldown: DefaultTransferCooldown,
			NormalHoursStart: DefaultNormalHoursStart,
			NormalHoursEnd:   DefaultNormalHoursEnd,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "zero batch size",
			mutate:  func(c *Config) { c.BatchSize = 0 },
			wantErr: "BATCH_SIZE",
		},
		{
			name:    "zero batch interval",
			mutate:  func(c *Config) { c.BatchInterval = 0 },
			wantErr: "BATCH_INTERVAL",
		},
		{
			name:    "zero lock cooldown",
			mutate:  func(c *Config) { c.LockCooldown = 0 },
			wantErr: "LOCK_COOLDOWN",
		},
		{
			name:    "out of range hour",
			mutate:  func(c *Config) { c.NormalHoursEnd = 24 },
			wantErr: "NORMAL_HOURS_END",
		},
		{
			name: "inverted hour band",
			mutate: func(c *Config) {
				c.NormalHoursStart = 22
				c.NormalHoursEnd = 6
			},
			wantErr: "NORMAL_HOURS_START must precede",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{Env: "development"}
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Env = "production"
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
}

func TestGetEnv(t *testing.T) {
	setEnv(t, "TEST_VAR", "custom_value")

	assert.Equal(t, "custom_value", getEnv("TEST_VAR", "default"))
	assert.Equal(t, "default", getEnv("NONEXISTENT_VAR", "default"))
}

func TestGetEnvInt64(t *testing.T) {
	setEnv(t, "TEST_INT", "42")
	setEnv(t, "TEST_INVALID", "not_a_number")

	assert.Equal(t, int64(42), getEnvInt64("TEST_INT", 0))
	assert.Equal(t, int64(99), getEnvInt64("NONEXISTENT_VAR", 99))
	assert.Equal(t, int64(99), getEnvInt64("TEST_INVALID", 99)) // Falls back on parse error
}

func TestGetEnvDuration(t *testing.T) {
	setEnv(t, "TEST_DUR", "90s")
	setEnv(t, "TEST_DUR_SECS", "300")
	setEnv(t, "TEST_DUR_BAD", "soon")

	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DUR", time.Minute))
	assert.Equal(t, 300*time.Second, getEnvDuration("TEST_DUR_SECS", time.Minute))
	assert.Equal(t, time.Minute, getEnvDuration("TEST_DUR_BAD", time.Minute))
	assert.Equal(t, time.Minute, getEnvDuration("NONEXISTENT_VAR", time.Minute))
}
