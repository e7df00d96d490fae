package models

import (
	"time"
)

// IdempotencyRecord stores the first successful response for a given
// client key. Keys are scoped per endpoint; a key reused with a different
// request hash is a conflict. A row with ResponseStatus 0 is a claim for a
// request still in flight. Records past ExpiresAt are purged by the
// background sweep.
type IdempotencyRecord struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	Scope          string    `gorm:"size:64;not null;uniqueIndex:idx_idem_scope_key" json:"scope"`
	Key            string    `gorm:"size:128;not null;uniqueIndex:idx_idem_scope_key" json:"key"`
	OwnerID        string    `gorm:"size:36" json:"owner_id"`
	RequestHash    string    `gorm:"size:64;not null" json:"request_hash"`
	ResponseStatus int       `gorm:"not null" json:"response_status"`
	ResponseBody   []byte    `gorm:"type:bytes" json:"-"`
	ExpiresAt      time.Time `gorm:"not null;index" json:"expires_at"`
}
