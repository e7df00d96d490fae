package types

import (
	"time"

	"github.com/google/uuid"
)

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// CreateBatchRequest represents the request body for batch intake
type CreateBatchRequest struct {
	IngredientID   uuid.UUID `json:"ingredient_id" binding:"required"`
	IngredientName string    `json:"ingredient_name"`
	Quantity       float64   `json:"quantity" binding:"required,gt=0"`
	Unit           string    `json:"unit" binding:"required"`
	Location       string    `json:"location"`
	LabelType      string    `json:"label_type" binding:"required,oneof=use_by best_before"`
	ExpiryDate     time.Time `json:"expiry_date" binding:"required"`
	Sealed         bool      `json:"sealed"`
}

// StartSessionRequest represents the request body for starting a session
type StartSessionRequest struct {
	RecipeID uuid.UUID `json:"recipe_id" binding:"required"`
	Servings int       `json:"servings" binding:"required,gt=0"`
	Level    string    `json:"level" binding:"required"`
}

// ConsumptionRequest is one requested take within a step
type ConsumptionRequest struct {
	IngredientID uuid.UUID `json:"ingredient_id" binding:"required"`
	LotID        uuid.UUID `json:"lot_id" binding:"required"`
	Quantity     float64   `json:"quantity" binding:"required,gt=0"`
	Unit         string    `json:"unit" binding:"required"`
}

// CompleteStepRequest represents the request body for completing a step
type CompleteStepRequest struct {
	StepID         uuid.UUID            `json:"step_id" binding:"required"`
	Consumptions   []ConsumptionRequest `json:"consumptions" binding:"required,min=1,dive"`
	ElapsedSeconds int                  `json:"elapsed_seconds"`
}

// FinishSessionRequest represents the request body for finishing a session
type FinishSessionRequest struct {
	Notes    string `json:"notes"`
	PhotoURL string `json:"photo_url"`
}

// CreateLeftoverRequest represents the request body for keeping leftovers
type CreateLeftoverRequest struct {
	Portions int    `json:"portions" binding:"required,gt=0"`
	Location string `json:"location"`
}

// ReserveBatchRequest represents the request body for reserving a batch
type ReserveBatchRequest struct {
	PlannedFor *time.Time `json:"planned_for"`
}

// FreezeBatchRequest represents the request body for freezing a batch
type FreezeBatchRequest struct {
	NewBestBefore time.Time `json:"new_best_before" binding:"required"`
}

// TransformBatchRequest represents the request body for transforming a batch
type TransformBatchRequest struct {
	OutputType    string  `json:"output_type" binding:"required"`
	YieldQty      float64 `json:"yield_qty" binding:"required,gt=0"`
	Unit          string  `json:"unit" binding:"required"`
	ShelfLifeDays int     `json:"shelf_life_days"`
}

// DiscardBatchRequest represents the request body for discarding a batch
type DiscardBatchRequest struct {
	EstimatedWeight float64 `json:"estimated_weight" binding:"required,gt=0"`
	Unit            string  `json:"unit" binding:"required"`
	Reason          string  `json:"reason" binding:"required,oneof=expired bad_condition other"`
}

// EstimateFootprintRequest represents the request body for the non-session
// footprint path
type EstimateFootprintRequest struct {
	Consumptions []ConsumptionRequest `json:"consumptions" binding:"required,min=1,dive"`
}
