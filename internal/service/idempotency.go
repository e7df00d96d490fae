package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"gorm.io/gorm"

	"github.com/pantryloop/backend/internal/models"
)

// IdempotencyService guarantees at-most-one side effect per client intent.
// A mutating call presents a key (scoped per endpoint) and the hash of its
// request; the first execution claims the key, its stored result is replayed
// to every retry, and a key reused for a different request is rejected.
type IdempotencyService struct {
	db    *gorm.DB
	ttl   time.Duration
	clock Clock
}

// NewIdempotencyService creates a new IdempotencyService instance
func NewIdempotencyService(db *gorm.DB, ttl time.Duration, clock Clock) *IdempotencyService {
	return &IdempotencyService{db: db, ttl: ttl, clock: clock}
}

// RequestHash fingerprints the normalized request: method, the concrete URL
// path (including resource ids), acting owner and raw body
func RequestHash(method, path, ownerID string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte("|"))
	h.Write([]byte(path))
	h.Write([]byte("|"))
	h.Write([]byte(ownerID))
	h.Write([]byte("|"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Begin claims a key before the underlying operation runs. It returns nil
// when the claim succeeded and the caller should execute, the stored record
// when this is a replay, an idempotency conflict when the key was used for
// a different request, and a transient error when another request holding
// the same key is still in flight. The unique (scope, key) index arbitrates
// concurrent claims. Expired records are treated as absent.
func (s *IdempotencyService) Begin(ctx context.Context, scope, key, ownerID, hash string) (*models.IdempotencyRecord, error) {
	for attempt := 0; attempt < 2; attempt++ {
		claim := models.IdempotencyRecord{
			Scope:       scope,
			Key:         key,
			OwnerID:     ownerID,
			RequestHash: hash,
			ExpiresAt:   s.clock.Now().Add(s.ttl),
		}
		if err := s.db.WithContext(ctx).Create(&claim).Error; err == nil {
			return nil, nil
		}

		var existing models.IdempotencyRecord
		err := s.db.WithContext(ctx).First(&existing, "scope = ? AND key = ?", scope, key).Error
		if err == gorm.ErrRecordNotFound {
			// the holder vanished between insert and lookup; claim again
			continue
		}
		if err != nil {
			return nil, err
		}
		if s.clock.Now().After(existing.ExpiresAt) {
			s.db.WithContext(ctx).
				Where("id = ? AND expires_at < ?", existing.ID, s.clock.Now()).
				Delete(&models.IdempotencyRecord{})
			continue
		}
		if existing.RequestHash != hash {
			return nil, ErrIdempotencyConflict
		}
		if existing.ResponseStatus == 0 {
			return nil, Transientf("request with idempotency key %q is still in flight", key)
		}
		return &existing, nil
	}
	return nil, Transientf("could not claim idempotency key %q", key)
}

// Store records the result of a successful mutation against the claim made
// by Begin. A claim already resolved keeps its first result.
func (s *IdempotencyService) Store(ctx context.Context, scope, key string, status int, body []byte) error {
	return s.db.WithContext(ctx).Model(&models.IdempotencyRecord{}).
		Where("scope = ? AND key = ? AND response_status = 0", scope, key).
		Updates(map[string]interface{}{
			"response_status": status,
			"response_body":   body,
		}).Error
}

// Release drops an unresolved claim after a failed execution, so a genuine
// retry with the same key re-executes instead of replaying a failure.
func (s *IdempotencyService) Release(ctx context.Context, scope, key string) error {
	return s.db.WithContext(ctx).
		Where("scope = ? AND key = ? AND response_status = 0", scope, key).
		Delete(&models.IdempotencyRecord{}).Error
}

// Sweep purges records past their TTL; run from a background ticker
func (s *IdempotencyService) Sweep(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&models.IdempotencyRecord{})
	return res.RowsAffected, res.Error
}
