package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RecipeIngredient is one line of a recipe definition: how much of an
// ingredient the recipe estimates it needs
type RecipeIngredient struct {
	IngredientID uuid.UUID `json:"ingredient_id"`
	Name         string    `json:"name"`
	Quantity     float64   `json:"quantity"`
	Unit         string    `json:"unit"`
}

// JSONBIngredientList is the JSONB column type for a recipe's ingredients
type JSONBIngredientList []RecipeIngredient

// Value implements the driver.Valuer interface
func (l JSONBIngredientList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface
func (l *JSONBIngredientList) Scan(value interface{}) error {
	if value == nil {
		*l = JSONBIngredientList{}
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

// RecipeDefinition is the slice of a recipe the cooking engine needs: an
// ingredient list and a step count. Authoring, text generation and the
// rest of the recipe surface live in an external service.
type RecipeDefinition struct {
	ID          uuid.UUID           `gorm:"type:varchar(36);primarykey" json:"id"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	DeletedAt   gorm.DeletedAt      `gorm:"index" json:"-"`
	Name        string              `gorm:"size:255;not null" json:"name"`
	StepCount   int                 `gorm:"not null" json:"step_count"`
	Servings    int                 `gorm:"not null;default:2" json:"servings"`
	Ingredients JSONBIngredientList `gorm:"type:jsonb;not null;default:'[]'" json:"ingredients"`
}

func (r *RecipeDefinition) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
