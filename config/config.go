package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	ServerPort string
	ServerHost string

	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis configuration
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RedisURL      string

	// JWT configuration
	JWTSecret string

	// Batch lifecycle policy
	ExpiringSoonDays int     // days-remaining window that flags a batch expiring_soon
	UseByWeight      float64 // urgency weight for use_by labels
	BestBeforeWeight float64 // urgency weight for best_before labels

	// Cooking session policy
	MaxActiveSessions     int
	LeftoverShelfLifeDays int

	// Consumption transaction policy
	LockWait    time.Duration
	LockRetries int

	// Idempotency policy
	IdempotencyTTL time.Duration
}

// LoadConfig creates a new Config instance from environment variables,
// falling back to development defaults
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		ServerHost: getEnv("SERVER_HOST", "0.0.0.0"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "pantryloop"),
		DBSSLMode:  getEnv("DB_SSL_MODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       0,
		RedisURL:      getEnv("REDIS_URL", ""),

		JWTSecret: getEnv("JWT_SECRET", "your-secret-key"),

		ExpiringSoonDays: getEnvInt("EXPIRING_SOON_DAYS", 3),
		UseByWeight:      getEnvFloat("USE_BY_WEIGHT", 1.0),
		BestBeforeWeight: getEnvFloat("BEST_BEFORE_WEIGHT", 0.7),

		MaxActiveSessions:     getEnvInt("MAX_ACTIVE_SESSIONS", 3),
		LeftoverShelfLifeDays: getEnvInt("LEFTOVER_SHELF_LIFE_DAYS", 3),

		LockWait:    getEnvDuration("BATCH_LOCK_WAIT", 2*time.Second),
		LockRetries: getEnvInt("BATCH_LOCK_RETRIES", 3),

		IdempotencyTTL: getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
