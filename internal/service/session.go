package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pantryloop/backend/config"
	"github.com/pantryloop/backend/internal/models"
)

// quantityEpsilon absorbs float drift when deciding a lot hit zero
const quantityEpsilon = 1e-9

var skillLevels = map[string]bool{
	"beginner":     true,
	"intermediate": true,
	"advanced":     true,
}

// CookingSessionService drives a guided cooking run: start, per-step
// atomic consumption, finish
type CookingSessionService struct {
	db        *gorm.DB
	cfg       *config.Config
	clock     Clock
	batches   *BatchService
	footprint *FootprintService
	recipes   RecipeProvider
}

// NewCookingSessionService creates a new CookingSessionService instance
func NewCookingSessionService(db *gorm.DB, cfg *config.Config, clock Clock, batches *BatchService, footprint *FootprintService, recipes RecipeProvider) *CookingSessionService {
	return &CookingSessionService{
		db:        db,
		cfg:       cfg,
		clock:     clock,
		batches:   batches,
		footprint: footprint,
		recipes:   recipes,
	}
}

// Start validates the request, enforces the concurrent-session cap and
// creates a running session with pending steps from the recipe definition
func (s *CookingSessionService) Start(ctx context.Context, ownerID, recipeID uuid.UUID, servings int, level string) (*models.CookingSession, error) {
	if servings <= 0 {
		return nil, Validationf("servings", "must be positive")
	}
	if !skillLevels[level] {
		return nil, Validationf("level", "unknown skill level %q", level)
	}

	def, err := s.recipes.Definition(ctx, recipeID)
	if err != nil {
		return nil, err
	}

	var active int64
	err = s.db.WithContext(ctx).Model(&models.CookingSession{}).
		Where("owner_id = ? AND status = ?", ownerID, models.SessionRunning).
		Count(&active).Error
	if err != nil {
		return nil, err
	}
	if active >= int64(s.cfg.MaxActiveSessions) {
		return nil, ErrTooManySessions
	}

	stepCount := def.StepCount
	if stepCount < 1 {
		stepCount = 1
	}

	session := &models.CookingSession{
		OwnerID:    ownerID,
		RecipeID:   recipeID,
		Servings:   servings,
		SkillLevel: level,
		Status:     models.SessionRunning,
		StartedAt:  s.clock.Now(),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(session).Error; err != nil {
			return err
		}
		for i := 0; i < stepCount; i++ {
			step := models.CookingStep{
				SessionID: session.ID,
				Position:  i + 1,
				Status:    models.StepPending,
			}
			if err := tx.Create(&step).Error; err != nil {
				return err
			}
			session.Steps = append(session.Steps, step)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession loads a session with its steps and ledger entries
func (s *CookingSessionService) GetSession(ctx context.Context, ownerID, id uuid.UUID) (*models.CookingSession, error) {
	var session models.CookingSession
	err := s.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Preload("Steps.Consumptions").
		First(&session, "id = ? AND owner_id = ?", id, ownerID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NotFoundf("session %s not found", id)
		}
		return nil, err
	}
	return &session, nil
}

// StepConsumption is one requested take from a lot during a step
type StepConsumption struct {
	IngredientID uuid.UUID `json:"ingredient_id"`
	LotID        uuid.UUID `json:"lot_id"`
	Quantity     float64   `json:"quantity"`
	Unit         string    `json:"unit"`
}

// LotQuantity reports a lot's remaining quantity after a step for caller
// display
type LotQuantity struct {
	LotID       uuid.UUID `json:"lot_id"`
	NewQuantity float64   `json:"new_quantity"`
	Unit        string    `json:"unit"`
}

// StepResult is the outcome of a committed step
type StepResult struct {
	UpdatedQuantities []LotQuantity `json:"updated_quantities"`
	Warnings          []string      `json:"warnings,omitempty"`
}

// CompleteStep commits every requested consumption of one step in a single
// transaction over the affected lots, or commits nothing. Each lot is
// locked, ownership and state are verified, use_by-expired stock is
// rejected outright and a shortfall on any lot aborts the whole step.
func (s *CookingSessionService) CompleteStep(ctx context.Context, ownerID, sessionID, stepID uuid.UUID, consumptions []StepConsumption, elapsedSeconds int) (*StepResult, error) {
	if len(consumptions) == 0 {
		return nil, Validationf("consumptions", "at least one entry required")
	}
	for i, c := range consumptions {
		if c.Quantity <= 0 {
			return nil, Validationf(fmt.Sprintf("consumptions[%d].quantity", i), "must be positive")
		}
		if _, _, err := toBaseUnits(c.Quantity, c.Unit); err != nil {
			return nil, Validationf(fmt.Sprintf("consumptions[%d].unit", i), "unknown unit %q", c.Unit)
		}
	}

	var session models.CookingSession
	if err := s.db.WithContext(ctx).First(&session, "id = ? AND owner_id = ?", sessionID, ownerID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NotFoundf("session %s not found", sessionID)
		}
		return nil, err
	}
	if session.Status != models.SessionRunning {
		return nil, BusinessRulef("session %s is not running", sessionID)
	}

	var step models.CookingStep
	if err := s.db.WithContext(ctx).First(&step, "id = ? AND session_id = ?", stepID, sessionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NotFoundf("step %s not found", stepID)
		}
		return nil, err
	}
	if step.Status != models.StepPending {
		return nil, BusinessRulef("step %s is already %s", stepID, step.Status)
	}

	lotIDs := make([]uuid.UUID, 0, len(consumptions))
	for _, c := range consumptions {
		lotIDs = append(lotIDs, c.LotID)
	}

	now := s.clock.Now()
	result := &StepResult{}
	err := s.batches.LockedTransaction(ctx, lotIDs, func(tx *gorm.DB) error {
		result.UpdatedQuantities = result.UpdatedQuantities[:0]
		result.Warnings = result.Warnings[:0]
		for _, c := range consumptions {
			batch, err := s.batches.LockRow(tx, c.LotID)
			if err != nil {
				return err
			}
			if batch.OwnerID != ownerID {
				return NotFoundf("batch %s not found", c.LotID)
			}
			if !batch.State.Consumable() {
				if batch.State == models.BatchConsumed || batch.State == models.BatchRemoved {
					return InsufficientStockf("batch %s is exhausted", batch.ID)
				}
				return BusinessRulef("batch %s is %s and cannot be consumed", batch.ID, batch.State)
			}
			if batch.HardBlocked(now) {
				return BusinessRulef("batch %s passed its use_by date and cannot be consumed", batch.ID)
			}
			if batch.LabelType == models.LabelBestBefore && batch.PastExpiry(now) {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("batch %s is past its best_before date", batch.ID))
			}

			wantBase, wantFamily, err := toBaseUnits(c.Quantity, c.Unit)
			if err != nil {
				return err
			}
			haveBase, haveFamily, err := toBaseUnits(batch.Quantity, batch.Unit)
			if err != nil {
				return err
			}
			if wantFamily != haveFamily {
				return Validationf("unit", "cannot take %s from a lot measured in %s", c.Unit, batch.Unit)
			}
			if haveBase+quantityEpsilon < wantBase {
				return InsufficientStockf("batch %s holds %g %s, requested %g %s",
					batch.ID, batch.Quantity, batch.Unit, c.Quantity, c.Unit)
			}

			if batch.State != models.BatchInCooking {
				if err := s.batches.Transition(tx, batch, models.BatchInCooking); err != nil {
					return err
				}
			}

			newBase := haveBase - wantBase
			if math.Abs(newBase) < quantityEpsilon {
				newBase = 0
			}
			newQty, err := fromBaseUnits(newBase, batch.Unit)
			if err != nil {
				return err
			}
			if err := tx.Model(batch).Update("quantity", newQty).Error; err != nil {
				return err
			}
			batch.Quantity = newQty

			if newQty == 0 {
				if err := s.batches.Transition(tx, batch, models.BatchConsumed); err != nil {
					return err
				}
			} else {
				if err := s.batches.Transition(tx, batch, models.BatchAvailable); err != nil {
					return err
				}
			}

			ledger := models.Consumption{
				SessionID:    sessionID,
				StepID:       stepID,
				BatchID:      batch.ID,
				IngredientID: c.IngredientID,
				Quantity:     c.Quantity,
				Unit:         c.Unit,
			}
			if err := tx.Create(&ledger).Error; err != nil {
				return err
			}

			result.UpdatedQuantities = append(result.UpdatedQuantities, LotQuantity{
				LotID:       batch.ID,
				NewQuantity: newQty,
				Unit:        batch.Unit,
			})
		}

		return tx.Model(&step).Updates(map[string]interface{}{
			"status":          models.StepDone,
			"elapsed_seconds": elapsedSeconds,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// LeftoverSuggestion proposes how to store what the session produced
type LeftoverSuggestion struct {
	Portions int                    `json:"portions"`
	EatBy    time.Time              `json:"eat_by"`
	Location models.StorageLocation `json:"location"`
}

// FinishResult is what a (possibly replayed) finish returns
type FinishResult struct {
	Session    *models.CookingSession      `json:"session"`
	Saving     *models.EnvironmentalSaving `json:"environmental_saving"`
	Suggestion *LeftoverSuggestion         `json:"leftover_suggestion,omitempty"`
}

// Finish closes the session and runs the footprint calculation against its
// full ledger. Finishing twice is a no-op returning the original result;
// the suggestion derives from finished_at so replays are byte-identical.
func (s *CookingSessionService) Finish(ctx context.Context, ownerID, sessionID uuid.UUID, notes, photoURL string) (*FinishResult, error) {
	session, err := s.GetSession(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}

	if session.Status != models.SessionFinished {
		finishedAt := s.clock.Now()
		updates := map[string]interface{}{
			"status":      models.SessionFinished,
			"finished_at": finishedAt,
		}
		if notes != "" {
			updates["notes"] = notes
		}
		if photoURL != "" {
			updates["photo_url"] = photoURL
		}
		if err := s.db.WithContext(ctx).Model(session).Updates(updates).Error; err != nil {
			return nil, err
		}
		session.Status = models.SessionFinished
		session.FinishedAt = &finishedAt
	}

	saving, err := s.footprint.CalculateForSession(ctx, session)
	if err != nil {
		return nil, err
	}

	return &FinishResult{
		Session:    session,
		Saving:     saving,
		Suggestion: s.suggestLeftover(session),
	}, nil
}

func (s *CookingSessionService) suggestLeftover(session *models.CookingSession) *LeftoverSuggestion {
	if session.FinishedAt == nil {
		return nil
	}
	return &LeftoverSuggestion{
		Portions: session.Servings,
		EatBy:    session.FinishedAt.AddDate(0, 0, s.cfg.LeftoverShelfLifeDays),
		Location: models.LocationFridge,
	}
}

// CreateLeftover records the owner's explicit choice to keep what a
// finished session produced
func (s *CookingSessionService) CreateLeftover(ctx context.Context, ownerID, sessionID uuid.UUID, portions int, location models.StorageLocation) (*models.LeftoverItem, error) {
	if portions <= 0 {
		return nil, Validationf("portions", "must be positive")
	}
	session, err := s.GetSession(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionFinished {
		return nil, BusinessRulef("session %s must be finished before keeping leftovers", sessionID)
	}
	if location == "" {
		location = models.LocationFridge
	}

	leftover := &models.LeftoverItem{
		OwnerID:   ownerID,
		RecipeID:  session.RecipeID,
		SessionID: &session.ID,
		Portions:  portions,
		EatBy:     session.FinishedAt.AddDate(0, 0, s.cfg.LeftoverShelfLifeDays),
		Location:  location,
	}
	if err := s.db.WithContext(ctx).Create(leftover).Error; err != nil {
		return nil, err
	}
	return leftover, nil
}

// ListLeftovers returns the owner's uneaten leftovers, soonest eat-by first
func (s *CookingSessionService) ListLeftovers(ctx context.Context, ownerID uuid.UUID) ([]models.LeftoverItem, error) {
	var items []models.LeftoverItem
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND consumed_at IS NULL", ownerID).
		Order("eat_by asc").
		Find(&items).Error
	return items, err
}

// ConsumeLeftover marks a leftover as eaten
func (s *CookingSessionService) ConsumeLeftover(ctx context.Context, ownerID, id uuid.UUID) (*models.LeftoverItem, error) {
	var item models.LeftoverItem
	if err := s.db.WithContext(ctx).First(&item, "id = ? AND owner_id = ?", id, ownerID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NotFoundf("leftover %s not found", id)
		}
		return nil, err
	}
	if item.ConsumedAt != nil {
		return &item, nil
	}
	now := s.clock.Now()
	if err := s.db.WithContext(ctx).Model(&item).Update("consumed_at", now).Error; err != nil {
		return nil, err
	}
	item.ConsumedAt = &now
	return &item, nil
}
