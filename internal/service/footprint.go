package service

import (
	"context"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pantryloop/backend/internal/models"
)

// FootprintService derives environmental metrics from what was actually
// consumed, using externally supplied per-ingredient factors
type FootprintService struct {
	db      *gorm.DB
	factors FactorProvider
	clock   Clock
}

// NewFootprintService creates a new FootprintService instance
func NewFootprintService(db *gorm.DB, factors FactorProvider, clock Clock) *FootprintService {
	return &FootprintService{db: db, factors: factors, clock: clock}
}

// DBFactorProvider reads factors from the footprint_factors table
type DBFactorProvider struct {
	db *gorm.DB
}

func NewDBFactorProvider(db *gorm.DB) *DBFactorProvider {
	return &DBFactorProvider{db: db}
}

func (p *DBFactorProvider) FactorFor(ctx context.Context, ingredientID uuid.UUID) (Factor, error) {
	var row models.FootprintFactor
	if err := p.db.WithContext(ctx).First(&row, "ingredient_id = ?", ingredientID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return Factor{}, NotFoundf("no footprint factor for ingredient %s", ingredientID)
		}
		return Factor{}, err
	}
	return Factor{CO2ePerKg: row.CO2ePerKg, WaterPerKg: row.WaterPerKg}, nil
}

// StaticFactorProvider serves factors from memory; used in tests
type StaticFactorProvider struct {
	Factors map[uuid.UUID]Factor
}

func (p *StaticFactorProvider) FactorFor(ctx context.Context, ingredientID uuid.UUID) (Factor, error) {
	f, ok := p.Factors[ingredientID]
	if !ok {
		return Factor{}, NotFoundf("no footprint factor for ingredient %s", ingredientID)
	}
	return f, nil
}

// CalculateForSession aggregates the session's consumption ledger into a
// persisted saving. A session is calculated once: a second call returns
// the stored row untouched.
func (s *FootprintService) CalculateForSession(ctx context.Context, session *models.CookingSession) (*models.EnvironmentalSaving, error) {
	var existing models.EnvironmentalSaving
	err := s.db.WithContext(ctx).First(&existing, "session_id = ?", session.ID).Error
	if err == nil {
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	var ledger []models.Consumption
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", session.ID).
		Order("created_at asc").
		Find(&ledger).Error; err != nil {
		return nil, err
	}

	inputs := make(models.JSONBConsumptionList, 0, len(ledger))
	for _, entry := range ledger {
		inputs = append(inputs, models.ConsumptionInput{
			IngredientID: entry.IngredientID,
			Quantity:     entry.Quantity,
			Unit:         entry.Unit,
		})
	}

	saving, err := s.compute(ctx, inputs)
	if err != nil {
		return nil, err
	}
	saving.SessionID = &session.ID
	saving.OwnerID = session.OwnerID
	saving.Basis = models.BasisPerSession

	if err := s.db.WithContext(ctx).Create(saving).Error; err != nil {
		// lost a race with a concurrent finish; the stored row wins
		var winner models.EnvironmentalSaving
		if lookupErr := s.db.WithContext(ctx).First(&winner, "session_id = ?", session.ID).Error; lookupErr == nil {
			return &winner, nil
		}
		return nil, err
	}
	return saving, nil
}

// Estimate computes a saving for a caller-supplied consumption list (the
// non-session path) and persists it with the per_recipe_estimate basis
func (s *FootprintService) Estimate(ctx context.Context, ownerID uuid.UUID, inputs []models.ConsumptionInput) (*models.EnvironmentalSaving, error) {
	if len(inputs) == 0 {
		return nil, Validationf("consumptions", "at least one entry required")
	}
	saving, err := s.compute(ctx, inputs)
	if err != nil {
		return nil, err
	}
	saving.OwnerID = ownerID
	saving.Basis = models.BasisPerRecipeEstimate
	if err := s.db.WithContext(ctx).Create(saving).Error; err != nil {
		return nil, err
	}
	return saving, nil
}

// WastedImpact returns the co2e footprint of a discarded quantity
func (s *FootprintService) WastedImpact(ctx context.Context, ingredientID uuid.UUID, quantity float64, unit string) (float64, error) {
	kg, ok := massKg(quantity, unit)
	if !ok {
		return 0, nil
	}
	factor, err := s.factors.FactorFor(ctx, ingredientID)
	if err != nil {
		if IsKind(err, KindNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return kg * factor.CO2ePerKg, nil
}

func (s *FootprintService) compute(ctx context.Context, inputs models.JSONBConsumptionList) (*models.EnvironmentalSaving, error) {
	saving := &models.EnvironmentalSaving{Inputs: inputs}
	for _, in := range inputs {
		kg, ok := massKg(in.Quantity, in.Unit)
		if !ok {
			log.Printf("footprint: skipping %g %s of %s (no mass conversion)", in.Quantity, in.Unit, in.IngredientID)
			continue
		}
		factor, err := s.factors.FactorFor(ctx, in.IngredientID)
		if err != nil {
			if IsKind(err, KindNotFound) {
				log.Printf("footprint: no factor for ingredient %s, contribution skipped", in.IngredientID)
				continue
			}
			return nil, err
		}
		saving.CO2e += kg * factor.CO2ePerKg
		saving.Water += kg * factor.WaterPerKg
		saving.WasteAvoided += kg
	}
	return saving, nil
}
