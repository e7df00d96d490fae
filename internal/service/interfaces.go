package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pantryloop/backend/internal/models"
)

// RecipeProvider supplies the slice of a recipe the cooking engine needs.
// The full recipe surface (authoring, generation) is an external service.
type RecipeProvider interface {
	Definition(ctx context.Context, id uuid.UUID) (*models.RecipeDefinition, error)
}

// Factor holds the per-kilogram footprint coefficients for one ingredient
type Factor struct {
	CO2ePerKg  float64
	WaterPerKg float64
}

// FactorProvider supplies footprint factors for ingredients
type FactorProvider interface {
	FactorFor(ctx context.Context, ingredientID uuid.UUID) (Factor, error)
}

// EventSink receives logical lifecycle events. Planning or notification
// subsystems subscribe through this; the default sink just logs.
type EventSink interface {
	BatchTransition(batch *models.IngredientBatch, from, to models.BatchState, at time.Time)
}

// LogEventSink logs transitions and nothing else
type LogEventSink struct{}

func (LogEventSink) BatchTransition(batch *models.IngredientBatch, from, to models.BatchState, at time.Time) {
	log.Printf("batch %s (%s) %s -> %s", batch.ID, batch.IngredientName, from, to)
}

// DBRecipeProvider reads recipe definitions from the application database
type DBRecipeProvider struct {
	db *gorm.DB
}

func NewDBRecipeProvider(db *gorm.DB) *DBRecipeProvider {
	return &DBRecipeProvider{db: db}
}

func (p *DBRecipeProvider) Definition(ctx context.Context, id uuid.UUID) (*models.RecipeDefinition, error) {
	var def models.RecipeDefinition
	if err := p.db.WithContext(ctx).First(&def, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NotFoundf("recipe %s not found", id)
		}
		return nil, err
	}
	return &def, nil
}

// StaticRecipeProvider serves definitions from memory; used in tests and
// for deployments where recipes arrive from the external service directly
type StaticRecipeProvider struct {
	Definitions map[uuid.UUID]*models.RecipeDefinition
}

func (p *StaticRecipeProvider) Definition(ctx context.Context, id uuid.UUID) (*models.RecipeDefinition, error) {
	def, ok := p.Definitions[id]
	if !ok {
		return nil, NotFoundf("recipe %s not found", id)
	}
	return def, nil
}
