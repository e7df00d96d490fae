package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pantryloop/backend/config"
	"github.com/pantryloop/backend/internal/models"
)

// RescueService covers the single-batch operations that save stock from
// the bin outside a cooking session: reserve, freeze, transform,
// quarantine, discard. Every operation validates ownership and the state
// edge, and mutates under the batch lock.
type RescueService struct {
	db        *gorm.DB
	cfg       *config.Config
	clock     Clock
	batches   *BatchService
	footprint *FootprintService
}

// NewRescueService creates a new RescueService instance
func NewRescueService(db *gorm.DB, cfg *config.Config, clock Clock, batches *BatchService, footprint *FootprintService) *RescueService {
	return &RescueService{
		db:        db,
		cfg:       cfg,
		clock:     clock,
		batches:   batches,
		footprint: footprint,
	}
}

func (s *RescueService) lockedBatch(ctx context.Context, ownerID, batchID uuid.UUID, fn func(tx *gorm.DB, batch *models.IngredientBatch) error) error {
	return s.batches.LockedTransaction(ctx, []uuid.UUID{batchID}, func(tx *gorm.DB) error {
		batch, err := s.batches.LockRow(tx, batchID)
		if err != nil {
			return err
		}
		if batch.OwnerID != ownerID {
			return NotFoundf("batch %s not found", batchID)
		}
		return fn(tx, batch)
	})
}

// Reserve earmarks a batch for a planned cooking date
func (s *RescueService) Reserve(ctx context.Context, ownerID, batchID uuid.UUID, plannedFor *time.Time) (*models.IngredientBatch, error) {
	var out *models.IngredientBatch
	err := s.lockedBatch(ctx, ownerID, batchID, func(tx *gorm.DB, batch *models.IngredientBatch) error {
		if err := s.batches.Transition(tx, batch, models.BatchReserved); err != nil {
			return err
		}
		if err := tx.Model(batch).Update("planned_for", plannedFor).Error; err != nil {
			return err
		}
		batch.PlannedFor = plannedFor
		out = batch
		return nil
	})
	return out, err
}

// Freeze moves an available batch to the freezer, replacing its expiry
// with the new best-before date
func (s *RescueService) Freeze(ctx context.Context, ownerID, batchID uuid.UUID, newBestBefore time.Time) (*models.IngredientBatch, error) {
	if !newBestBefore.After(s.clock.Now()) {
		return nil, Validationf("new_best_before", "must be in the future")
	}
	var out *models.IngredientBatch
	err := s.lockedBatch(ctx, ownerID, batchID, func(tx *gorm.DB, batch *models.IngredientBatch) error {
		if batch.State != models.BatchAvailable {
			return BusinessRulef("batch %s is %s; only available batches can be frozen", batch.ID, batch.State)
		}
		if err := s.batches.Transition(tx, batch, models.BatchFrozen); err != nil {
			return err
		}
		updates := map[string]interface{}{
			"expiry_date": newBestBefore,
			"location":    models.LocationFreezer,
		}
		if err := tx.Model(batch).Updates(updates).Error; err != nil {
			return err
		}
		batch.ExpiryDate = newBestBefore
		batch.Location = models.LocationFreezer
		out = batch
		return nil
	})
	return out, err
}

// Transform consumes a batch entirely and produces a new tracked batch
// with its own shelf life (soup from tired vegetables, stock from bones).
// The source ends consumed, not removed: salvage is not waste, so no
// WasteLog entry is written.
func (s *RescueService) Transform(ctx context.Context, ownerID, batchID uuid.UUID, outputName string, yieldQty float64, unit string, shelfLifeDays int) (*models.IngredientBatch, error) {
	if outputName == "" {
		return nil, Validationf("output_type", "required")
	}
	if yieldQty <= 0 {
		return nil, Validationf("yield_qty", "must be positive")
	}
	if _, _, err := toBaseUnits(yieldQty, unit); err != nil {
		return nil, err
	}
	if shelfLifeDays <= 0 {
		shelfLifeDays = s.cfg.LeftoverShelfLifeDays
	}

	var derived *models.IngredientBatch
	err := s.lockedBatch(ctx, ownerID, batchID, func(tx *gorm.DB, batch *models.IngredientBatch) error {
		if batch.HardBlocked(s.clock.Now()) {
			return BusinessRulef("batch %s passed its use_by date and cannot be transformed", batch.ID)
		}
		if err := s.batches.Transition(tx, batch, models.BatchConsumed); err != nil {
			return err
		}
		if err := tx.Model(batch).Update("quantity", 0).Error; err != nil {
			return err
		}

		now := s.clock.Now()
		derived = &models.IngredientBatch{
			IngredientID:   uuid.New(),
			IngredientName: outputName,
			Quantity:       yieldQty,
			Unit:           unit,
			Location:       models.LocationFridge,
			LabelType:      models.LabelBestBefore,
			ExpiryDate:     now.AddDate(0, 0, shelfLifeDays),
			State:          models.BatchAvailable,
			OwnerID:        ownerID,
		}
		return tx.Create(derived).Error
	})
	if err != nil {
		return nil, err
	}
	return derived, nil
}

// Quarantine flags a batch for review when spoilage is suspected before
// its formal expiry date
func (s *RescueService) Quarantine(ctx context.Context, ownerID, batchID uuid.UUID) (*models.IngredientBatch, error) {
	var out *models.IngredientBatch
	err := s.lockedBatch(ctx, ownerID, batchID, func(tx *gorm.DB, batch *models.IngredientBatch) error {
		if err := s.batches.Transition(tx, batch, models.BatchQuarantine); err != nil {
			return err
		}
		out = batch
		return nil
	})
	return out, err
}

// DiscardResult is what a committed discard returns
type DiscardResult struct {
	Waste      *models.WasteLog `json:"waste"`
	CO2eWasted float64          `json:"co2e_wasted"`
}

// Discard removes a quarantined or expired batch and writes the waste log
// entry that feeds the wasted-impact side of the footprint calculator
func (s *RescueService) Discard(ctx context.Context, ownerID, batchID uuid.UUID, estimatedWeight float64, unit string, reason models.WasteReason) (*DiscardResult, error) {
	if estimatedWeight <= 0 {
		return nil, Validationf("estimated_weight", "must be positive")
	}
	switch reason {
	case models.WasteExpired, models.WasteBadCondition, models.WasteOther:
	default:
		return nil, Validationf("reason", "unknown reason %q", reason)
	}

	var result *DiscardResult
	err := s.lockedBatch(ctx, ownerID, batchID, func(tx *gorm.DB, batch *models.IngredientBatch) error {
		if err := s.batches.Transition(tx, batch, models.BatchRemoved); err != nil {
			return err
		}
		entry := &models.WasteLog{
			BatchID:         batch.ID,
			OwnerID:         ownerID,
			IngredientID:    batch.IngredientID,
			Reason:          reason,
			EstimatedWeight: estimatedWeight,
			Unit:            unit,
			LoggedAt:        s.clock.Now(),
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		co2e, err := s.footprint.WastedImpact(ctx, batch.IngredientID, estimatedWeight, unit)
		if err != nil {
			return err
		}
		result = &DiscardResult{Waste: entry, CO2eWasted: co2e}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListWaste returns the owner's waste log, newest first
func (s *RescueService) ListWaste(ctx context.Context, ownerID uuid.UUID) ([]models.WasteLog, error) {
	var entries []models.WasteLog
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("logged_at desc").
		Find(&entries).Error
	return entries, err
}
