package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WasteReason explains why a batch was discarded
type WasteReason string

const (
	WasteExpired      WasteReason = "expired"
	WasteBadCondition WasteReason = "bad_condition"
	WasteOther        WasteReason = "other"
)

// WasteLog records a discarded batch, both for audit and as wasted-impact
// input for the footprint calculator
type WasteLog struct {
	ID              uuid.UUID   `gorm:"type:varchar(36);primarykey" json:"id"`
	CreatedAt       time.Time   `json:"created_at"`
	BatchID         uuid.UUID   `gorm:"type:varchar(36);not null;index" json:"batch_id"`
	OwnerID         uuid.UUID   `gorm:"type:varchar(36);not null;index" json:"owner_id"`
	IngredientID    uuid.UUID   `gorm:"type:varchar(36);not null" json:"ingredient_id"`
	Reason          WasteReason `gorm:"size:20;not null" json:"reason"`
	EstimatedWeight float64     `gorm:"not null" json:"estimated_weight"`
	Unit            string      `gorm:"size:10;not null" json:"unit"`
	LoggedAt        time.Time   `gorm:"not null" json:"logged_at"`
}

func (w *WasteLog) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// LeftoverItem is a prepared-food record created at the owner's choice
// after finishing a session, or as the output of a transform rescue
type LeftoverItem struct {
	ID         uuid.UUID       `gorm:"type:varchar(36);primarykey" json:"id"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	DeletedAt  gorm.DeletedAt  `gorm:"index" json:"-"`
	OwnerID    uuid.UUID       `gorm:"type:varchar(36);not null;index" json:"owner_id"`
	RecipeID   uuid.UUID       `gorm:"type:varchar(36)" json:"recipe_id"`
	SessionID  *uuid.UUID      `gorm:"type:varchar(36);index" json:"session_id,omitempty"`
	Portions   int             `gorm:"not null" json:"portions"`
	EatBy      time.Time       `gorm:"not null" json:"eat_by"`
	Location   StorageLocation `gorm:"size:20;not null;default:'fridge'" json:"location"`
	ConsumedAt *time.Time      `json:"consumed_at,omitempty"`
}

func (l *LeftoverItem) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
