package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "access")
	t.Setenv("JWT_REFRESH_SECRET", "refresh")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshTTL)
	assert.Equal(t, 100, cfg.RateLimit.Max)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, "memory", cfg.RateLimit.Store)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.False(t, cfg.Storage.S3.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "access")
	t.Setenv("JWT_REFRESH_SECRET", "refresh")
	t.Setenv("JWT_ACCESS_TTL", "5m")
	t.Setenv("RATE_LIMIT_MAX", "3")
	t.Setenv("RATE_LIMIT_STORE", "REDIS")
	t.Setenv("WORKER_ENABLED", "true")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 3, cfg.RateLimit.Max)
	assert.Equal(t, "redis", cfg.RateLimit.Store)
	assert.True(t, cfg.Worker.Enabled)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
}

func TestLoadRejectsMissingOrSharedSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWT_REFRESH_SECRET", "")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "same")
	t.Setenv("JWT_REFRESH_SECRET", "same")
	_, err = Load()
	assert.Error(t, err)
}

func TestTestConfigIsValid(t *testing.T) {
	assert.NoError(t, LoadTestConfig().Validate())
}
