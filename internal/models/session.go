package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionStatus is the lifecycle state of a cooking session
type SessionStatus string

const (
	SessionRunning  SessionStatus = "running"
	SessionFinished SessionStatus = "finished"
)

// StepStatus is the state of a single guided step
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepDone    StepStatus = "done"
	StepSkipped StepStatus = "skipped"
)

// CookingSession is one guided cooking run. A finished session is immutable
// except for the optional leftover it spawns.
type CookingSession struct {
	ID         uuid.UUID      `gorm:"type:varchar(36);primarykey" json:"id"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
	OwnerID    uuid.UUID      `gorm:"type:varchar(36);not null;index" json:"owner_id"`
	RecipeID   uuid.UUID      `gorm:"type:varchar(36);not null" json:"recipe_id"`
	Servings   int            `gorm:"not null" json:"servings"`
	SkillLevel string         `gorm:"size:20;not null" json:"skill_level"`
	Status     SessionStatus  `gorm:"size:20;not null;default:'running';index" json:"status"`
	Notes      string         `gorm:"type:text" json:"notes"`
	PhotoURL   string         `gorm:"size:255" json:"photo_url"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Steps      []CookingStep  `gorm:"foreignKey:SessionID" json:"steps"`
}

func (s *CookingSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// CookingStep is one ordered step within a session
type CookingStep struct {
	ID             uuid.UUID     `gorm:"type:varchar(36);primarykey" json:"id"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	SessionID      uuid.UUID     `gorm:"type:varchar(36);not null;index" json:"session_id"`
	Position       int           `gorm:"not null" json:"position"`
	Status         StepStatus    `gorm:"size:20;not null;default:'pending'" json:"status"`
	ElapsedSeconds int           `json:"elapsed_seconds"`
	Consumptions   []Consumption `gorm:"foreignKey:StepID" json:"consumptions"`
}

func (s *CookingStep) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Consumption is one committed ledger entry: what was actually taken from a
// lot during a step. Rows are append-only; nothing in the codebase updates
// or deletes them.
type Consumption struct {
	ID           uuid.UUID `gorm:"type:varchar(36);primarykey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	SessionID    uuid.UUID `gorm:"type:varchar(36);not null;index" json:"session_id"`
	StepID       uuid.UUID `gorm:"type:varchar(36);not null;index" json:"step_id"`
	BatchID      uuid.UUID `gorm:"type:varchar(36);not null;index" json:"lot_id"`
	IngredientID uuid.UUID `gorm:"type:varchar(36);not null" json:"ingredient_id"`
	Quantity     float64   `gorm:"not null" json:"quantity"`
	Unit         string    `gorm:"size:10;not null" json:"unit"`
}

func (c *Consumption) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
