package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SavingBasis says what an environmental saving was computed from
type SavingBasis string

const (
	BasisPerSession        SavingBasis = "per_session"
	BasisPerRecipeEstimate SavingBasis = "per_recipe_estimate"
)

// ConsumptionInput is one line of the list a saving was computed from
type ConsumptionInput struct {
	IngredientID uuid.UUID `json:"ingredient_id"`
	Quantity     float64   `json:"quantity"`
	Unit         string    `json:"unit"`
}

// JSONBConsumptionList stores the calculation input as JSONB so the
// persisted saving is self-contained
type JSONBConsumptionList []ConsumptionInput

// Value implements the driver.Valuer interface
func (l JSONBConsumptionList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface
func (l *JSONBConsumptionList) Scan(value interface{}) error {
	if value == nil {
		*l = JSONBConsumptionList{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, l)
}

// EnvironmentalSaving is the persisted result of one footprint calculation.
// A session is calculated at most once; the row is immutable after insert.
type EnvironmentalSaving struct {
	ID           uuid.UUID            `gorm:"type:varchar(36);primarykey" json:"id"`
	CreatedAt    time.Time            `json:"created_at"`
	SessionID    *uuid.UUID           `gorm:"type:varchar(36);uniqueIndex" json:"session_id,omitempty"`
	OwnerID      uuid.UUID            `gorm:"type:varchar(36);not null;index" json:"owner_id"`
	CO2e         float64              `gorm:"not null" json:"co2e"`
	Water        float64              `gorm:"not null" json:"water"`
	WasteAvoided float64              `gorm:"not null" json:"waste_avoided"`
	Basis        SavingBasis          `gorm:"size:30;not null" json:"basis"`
	Inputs       JSONBConsumptionList `gorm:"type:jsonb;not null;default:'[]'" json:"inputs"`
}

func (s *EnvironmentalSaving) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// FootprintFactor holds the per-ingredient coefficients the calculator
// multiplies consumed quantities by. Coefficients are per kilogram of the
// ingredient; liquid units are treated at density 1.
type FootprintFactor struct {
	ID           uuid.UUID `gorm:"type:varchar(36);primarykey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	IngredientID uuid.UUID `gorm:"type:varchar(36);not null;uniqueIndex" json:"ingredient_id"`
	CO2ePerKg    float64   `gorm:"not null" json:"co2e_per_kg"`
	WaterPerKg   float64   `gorm:"not null" json:"water_per_kg"`
}

func (f *FootprintFactor) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
