package config

import (
	"fmt"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig checks that the loaded configuration is usable in the
// current environment. Development and test fall back to defaults, so only
// cross-field and production checks live here.
func ValidateConfig(cfg *Config) error {
	if IsProduction() && cfg.JWTSecret == "your-secret-key" {
		return ValidationError{Field: "JWT_SECRET", Message: "default secret is not allowed in production"}
	}
	if cfg.ExpiringSoonDays <= 0 {
		return ValidationError{Field: "EXPIRING_SOON_DAYS", Message: "must be positive"}
	}
	if cfg.UseByWeight <= 0 || cfg.UseByWeight > 1 {
		return ValidationError{Field: "USE_BY_WEIGHT", Message: "must be in (0, 1]"}
	}
	if cfg.BestBeforeWeight <= 0 || cfg.BestBeforeWeight > 1 {
		return ValidationError{Field: "BEST_BEFORE_WEIGHT", Message: "must be in (0, 1]"}
	}
	if cfg.MaxActiveSessions <= 0 {
		return ValidationError{Field: "MAX_ACTIVE_SESSIONS", Message: "must be positive"}
	}
	if cfg.LockRetries < 0 {
		return ValidationError{Field: "BATCH_LOCK_RETRIES", Message: "must not be negative"}
	}
	if cfg.IdempotencyTTL <= 0 {
		return ValidationError{Field: "IDEMPOTENCY_TTL", Message: "must be positive"}
	}
	return nil
}
