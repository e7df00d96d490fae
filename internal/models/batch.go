package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BatchState is the lifecycle state of an ingredient batch
type BatchState string

const (
	BatchAvailable    BatchState = "available"
	BatchReserved     BatchState = "reserved"
	BatchInCooking    BatchState = "in_cooking"
	BatchFrozen       BatchState = "frozen"
	BatchExpiringSoon BatchState = "expiring_soon"
	BatchQuarantine   BatchState = "quarantine"
	BatchExpired      BatchState = "expired"
	BatchConsumed     BatchState = "consumed"
	BatchRemoved      BatchState = "removed"
)

// StorageLocation is where a batch is physically kept
type StorageLocation string

const (
	LocationPantry  StorageLocation = "pantry"
	LocationFridge  StorageLocation = "fridge"
	LocationFreezer StorageLocation = "freezer"
)

// LabelType distinguishes a hard safety cutoff from a soft quality cutoff
type LabelType string

const (
	LabelUseBy      LabelType = "use_by"
	LabelBestBefore LabelType = "best_before"
)

// batchTransitions is the closed set of valid state edges. Any mutation
// attempting an edge not listed here is rejected before persisting.
var batchTransitions = map[BatchState][]BatchState{
	BatchAvailable: {
		BatchReserved, BatchInCooking, BatchFrozen,
		BatchExpiringSoon, BatchQuarantine, BatchExpired, BatchConsumed,
	},
	BatchReserved: {
		BatchReserved, BatchInCooking,
		BatchExpiringSoon, BatchQuarantine, BatchExpired, BatchConsumed,
	},
	BatchInCooking: {BatchAvailable, BatchConsumed},
	BatchExpiringSoon: {
		BatchReserved, BatchInCooking, BatchConsumed,
		BatchQuarantine, BatchExpired,
	},
	BatchQuarantine: {BatchRemoved},
	BatchExpired:    {BatchRemoved},
	// frozen, consumed and removed are terminal
}

// CanTransitionTo reports whether the edge from s to next is in the
// transition table
func (s BatchState) CanTransitionTo(next BatchState) bool {
	for _, allowed := range batchTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Consumable reports whether a batch in this state may take part in a
// consumption. expiring_soon stays consumable: the classification exists to
// push stock to the front of the queue, not to block it.
func (s BatchState) Consumable() bool {
	switch s {
	case BatchAvailable, BatchReserved, BatchInCooking, BatchExpiringSoon:
		return true
	}
	return false
}

// Terminal reports whether no further transitions exist from this state
func (s BatchState) Terminal() bool {
	return len(batchTransitions[s]) == 0
}

// IngredientBatch is a physical lot of one ingredient with a single expiry
// date and storage condition
type IngredientBatch struct {
	ID             uuid.UUID       `gorm:"type:varchar(36);primarykey" json:"id"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeletedAt      gorm.DeletedAt  `gorm:"index" json:"-"`
	IngredientID   uuid.UUID       `gorm:"type:varchar(36);not null;index" json:"ingredient_id"`
	IngredientName string          `gorm:"size:100" json:"ingredient_name"`
	Quantity       float64         `gorm:"not null;check:quantity >= 0" json:"quantity"`
	Unit           string          `gorm:"size:10;not null" json:"unit"`
	Location       StorageLocation `gorm:"size:20;not null;default:'pantry'" json:"location"`
	LabelType      LabelType       `gorm:"size:20;not null" json:"label_type"`
	ExpiryDate     time.Time       `gorm:"not null;index" json:"expiry_date"`
	State          BatchState      `gorm:"size:20;not null;default:'available';index" json:"state"`
	Sealed         bool            `gorm:"default:false" json:"sealed"`
	PlannedFor     *time.Time      `json:"planned_for,omitempty"`
	OwnerID        uuid.UUID       `gorm:"type:varchar(36);not null;index" json:"owner_id"`
}

func (b *IngredientBatch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// PastExpiry reports whether the batch's expiry date has passed at now
func (b *IngredientBatch) PastExpiry(now time.Time) bool {
	return now.After(b.ExpiryDate)
}

// HardBlocked reports whether consumption must be refused outright: a
// use_by batch past its date can never be consumed, only discarded
func (b *IngredientBatch) HardBlocked(now time.Time) bool {
	return b.LabelType == LabelUseBy && b.PastExpiry(now)
}
