package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pantryloop/backend/config"
	"github.com/pantryloop/backend/internal/models"
)

// BatchService owns ingredient batches: FEFO lookup, urgency scoring,
// per-batch locking and the expiry sweep. It is the only component that
// mutates batch quantity or state.
type BatchService struct {
	db     *gorm.DB
	cfg    *config.Config
	clock  Clock
	locker *BatchLocker
	events EventSink
}

// NewBatchService creates a new BatchService instance
func NewBatchService(db *gorm.DB, cfg *config.Config, clock Clock, events EventSink) *BatchService {
	if events == nil {
		events = LogEventSink{}
	}
	return &BatchService{
		db:     db,
		cfg:    cfg,
		clock:  clock,
		locker: NewBatchLocker(),
		events: events,
	}
}

// Locker exposes the lock table to the session and rescue services, which
// run their own transactions under it
func (s *BatchService) Locker() *BatchLocker { return s.locker }

// CreateBatch records a new physical lot (intake)
func (s *BatchService) CreateBatch(ctx context.Context, batch *models.IngredientBatch) (*models.IngredientBatch, error) {
	if batch.Quantity <= 0 {
		return nil, Validationf("quantity", "must be positive")
	}
	if _, _, err := toBaseUnits(batch.Quantity, batch.Unit); err != nil {
		return nil, err
	}
	if batch.LabelType != models.LabelUseBy && batch.LabelType != models.LabelBestBefore {
		return nil, Validationf("label_type", "must be use_by or best_before")
	}
	if batch.State == "" {
		batch.State = models.BatchAvailable
	}
	if err := s.db.WithContext(ctx).Create(batch).Error; err != nil {
		return nil, err
	}
	return batch, nil
}

// GetBatch retrieves a batch owned by the given owner
func (s *BatchService) GetBatch(ctx context.Context, ownerID, id uuid.UUID) (*models.IngredientBatch, error) {
	var batch models.IngredientBatch
	if err := s.db.WithContext(ctx).First(&batch, "id = ? AND owner_id = ?", id, ownerID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NotFoundf("batch %s not found", id)
		}
		return nil, err
	}
	return &batch, nil
}

// BatchWithUrgency pairs a batch with its display urgency
type BatchWithUrgency struct {
	models.IngredientBatch
	Urgency float64 `json:"urgency"`
}

// ListBatches returns the owner's live batches, most urgent first
func (s *BatchService) ListBatches(ctx context.Context, ownerID uuid.UUID) ([]BatchWithUrgency, error) {
	var batches []models.IngredientBatch
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND state NOT IN ?", ownerID,
			[]models.BatchState{models.BatchConsumed, models.BatchRemoved}).
		Order("expiry_date asc, created_at asc").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	out := make([]BatchWithUrgency, len(batches))
	for i, b := range batches {
		out[i] = BatchWithUrgency{IngredientBatch: b, Urgency: s.UrgencyScore(&b, now)}
	}
	// expiry-ascending order already approximates urgency-descending, but
	// label weights can reorder neighbours
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Urgency > out[j-1].Urgency; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

// UrgencyScore computes the [0,1] display urgency of a batch. Past-expiry
// batches score 1.0 regardless of label; otherwise the score decays
// linearly across the configured threshold window, damped for best_before
// labels because consumption stays possible after their date.
func (s *BatchService) UrgencyScore(batch *models.IngredientBatch, now time.Time) float64 {
	if batch.PastExpiry(now) {
		return 1.0
	}
	daysRemaining := batch.ExpiryDate.Sub(now).Hours() / 24
	score := 1 - daysRemaining/float64(s.cfg.ExpiringSoonDays)
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	weight := s.cfg.BestBeforeWeight
	if batch.LabelType == models.LabelUseBy {
		weight = s.cfg.UseByWeight
	}
	return score * weight
}

// CandidateLot is one (lot, quantity to take) pair from a FEFO selection.
// Take is expressed in the lot's own unit.
type CandidateLot struct {
	Batch models.IngredientBatch `json:"batch"`
	Take  float64                `json:"take"`
}

// fefoEligible are the states a lot may be consumed from via selection.
// expiring_soon stays eligible: the whole point of FEFO is to cook that
// stock first.
var fefoEligible = []models.BatchState{
	models.BatchAvailable, models.BatchReserved, models.BatchExpiringSoon,
}

// FindCandidateLots orders the owner's eligible lots of an ingredient by
// expiry date (ties by creation time) and greedily covers the requested
// quantity, splitting across lots when needed. Insufficient total stock
// fails the whole selection; nothing is taken.
func (s *BatchService) FindCandidateLots(ctx context.Context, ownerID, ingredientID uuid.UUID, quantity float64, unit string) ([]CandidateLot, error) {
	if quantity <= 0 {
		return nil, Validationf("quantity", "must be positive")
	}
	needed, family, err := toBaseUnits(quantity, unit)
	if err != nil {
		return nil, err
	}

	var batches []models.IngredientBatch
	err = s.db.WithContext(ctx).
		Where("owner_id = ? AND ingredient_id = ? AND state IN ?", ownerID, ingredientID, fefoEligible).
		Order("expiry_date asc, created_at asc").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var lots []CandidateLot
	remaining := needed
	for _, b := range batches {
		if remaining <= 0 {
			break
		}
		if b.HardBlocked(now) {
			continue
		}
		have, haveFamily, err := toBaseUnits(b.Quantity, b.Unit)
		if err != nil || haveFamily != family || have <= 0 {
			continue
		}
		takeBase := have
		if takeBase > remaining {
			takeBase = remaining
		}
		take, err := fromBaseUnits(takeBase, b.Unit)
		if err != nil {
			continue
		}
		lots = append(lots, CandidateLot{Batch: b, Take: take})
		remaining -= takeBase
	}

	if remaining > 0 {
		return nil, InsufficientStockf("ingredient %s: short %g %s of requested %g %s",
			ingredientID, remaining, unit, quantity, unit)
	}
	return lots, nil
}

// LockedTransaction acquires the in-process locks for the given batches
// (stable order), then runs fn inside one database transaction. Rollback
// leaves every row untouched; the locks release on all exit paths.
func (s *BatchService) LockedTransaction(ctx context.Context, ids []uuid.UUID, fn func(tx *gorm.DB) error) error {
	release, err := s.locker.AcquireAll(ctx, ids, s.cfg.LockWait, s.cfg.LockRetries)
	if err != nil {
		return err
	}
	defer release()
	return s.db.WithContext(ctx).Transaction(fn)
}

// LockRow loads a batch for update inside a transaction. On postgres this
// takes the row lock; sqlite serializes writers anyway and the in-process
// lock already holds exclusivity.
func (s *BatchService) LockRow(tx *gorm.DB, id uuid.UUID) (*models.IngredientBatch, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var batch models.IngredientBatch
	if err := q.First(&batch, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NotFoundf("batch %s not found", id)
		}
		return nil, err
	}
	return &batch, nil
}

// Transition validates the edge against the state table and persists it,
// emitting a logical event. Any edge outside the table is rejected.
func (s *BatchService) Transition(tx *gorm.DB, batch *models.IngredientBatch, next models.BatchState) error {
	if batch.State == next {
		return nil
	}
	if !batch.State.CanTransitionTo(next) {
		return BusinessRulef("batch %s cannot go from %s to %s", batch.ID, batch.State, next)
	}
	from := batch.State
	batch.State = next
	if err := tx.Model(batch).Update("state", next).Error; err != nil {
		batch.State = from
		return err
	}
	s.events.BatchTransition(batch, from, next, s.clock.Now())
	return nil
}

// RunExpirySweep reclassifies every live batch against its expiry date at
// the given instant. Past-date use_by lots are quarantined (hard-blocked,
// awaiting a discard decision); past-date best_before lots become expired;
// lots inside the threshold window become expiring_soon. The job is
// idempotent and safe to run from any scheduler.
func (s *BatchService) RunExpirySweep(ctx context.Context, now time.Time) (int, error) {
	var batches []models.IngredientBatch
	err := s.db.WithContext(ctx).
		Where("state IN ?", fefoEligible).
		Find(&batches).Error
	if err != nil {
		return 0, err
	}

	transitions := 0
	for i := range batches {
		b := batches[i]
		next := s.sweepTarget(&b, now)
		if next == b.State {
			continue
		}
		err := s.LockedTransaction(ctx, []uuid.UUID{b.ID}, func(tx *gorm.DB) error {
			current, err := s.LockRow(tx, b.ID)
			if err != nil {
				return err
			}
			// re-evaluate under the lock; a consumption may have won the race
			target := s.sweepTarget(current, now)
			if target == current.State {
				return nil
			}
			if err := s.Transition(tx, current, target); err != nil {
				return err
			}
			transitions++
			return nil
		})
		if err != nil {
			// a contended or already-terminal batch is picked up next run
			log.Printf("expiry sweep: batch %s skipped: %v", b.ID, err)
		}
	}
	return transitions, nil
}

func (s *BatchService) sweepTarget(b *models.IngredientBatch, now time.Time) models.BatchState {
	if !b.State.Consumable() || b.State == models.BatchInCooking {
		return b.State
	}
	if b.PastExpiry(now) {
		if b.LabelType == models.LabelUseBy {
			return models.BatchQuarantine
		}
		return models.BatchExpired
	}
	daysRemaining := b.ExpiryDate.Sub(now).Hours() / 24
	if daysRemaining <= float64(s.cfg.ExpiringSoonDays) && b.State != models.BatchExpiringSoon {
		return models.BatchExpiringSoon
	}
	return b.State
}
