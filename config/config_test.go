package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	os.Setenv("DB_HOST", "localhost")
	os.Setenv("DB_PORT", "5432")
	os.Setenv("DB_USER", "postgres")
	os.Setenv("DB_PASSWORD", "postgres")
	os.Setenv("DB_NAME", "pantryloop")
	os.Setenv("DB_SSL_MODE", "disable")
	os.Setenv("JWT_SECRET", "test-secret")
	os.Setenv("REDIS_URL", "redis://localhost:6379")
	defer os.Unsetenv("JWT_SECRET")

	cfg, err := LoadConfig()
	assert.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, "5432", cfg.DBPort)
	assert.Equal(t, "pantryloop", cfg.DBName)
	assert.Equal(t, "disable", cfg.DBSSLMode)
	assert.Equal(t, "test-secret", cfg.JWTSecret)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
}

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"EXPIRING_SOON_DAYS", "USE_BY_WEIGHT", "BEST_BEFORE_WEIGHT",
		"MAX_ACTIVE_SESSIONS", "LEFTOVER_SHELF_LIFE_DAYS",
		"BATCH_LOCK_WAIT", "BATCH_LOCK_RETRIES", "IDEMPOTENCY_TTL",
	} {
		os.Unsetenv(key)
	}

	cfg, err := LoadConfig()
	assert.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, 3, cfg.ExpiringSoonDays)
	assert.Equal(t, 1.0, cfg.UseByWeight)
	assert.Equal(t, 0.7, cfg.BestBeforeWeight)
	assert.Equal(t, 3, cfg.MaxActiveSessions)
	assert.Equal(t, 3, cfg.LeftoverShelfLifeDays)
	assert.Equal(t, 2*time.Second, cfg.LockWait)
	assert.Equal(t, 3, cfg.LockRetries)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
}

func TestLoadConfigRejectsBadPolicy(t *testing.T) {
	os.Setenv("USE_BY_WEIGHT", "1.5")
	defer os.Unsetenv("USE_BY_WEIGHT")

	cfg, err := LoadConfig()
	assert.Error(t, err)
	assert.Nil(t, cfg)
}
