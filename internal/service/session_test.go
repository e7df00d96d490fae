package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pantryloop/backend/config"
	"github.com/pantryloop/backend/internal/models"
)

type sessionEnv struct {
	db       *gorm.DB
	cfg      *config.Config
	clock    *FrozenClock
	batches  *BatchService
	sessions *CookingSessionService
	owner    uuid.UUID
	recipe   uuid.UUID
	carrots  uuid.UUID
}

func newSessionEnv(t *testing.T) *sessionEnv {
	db := newTestDB(t)
	cfg := testConfig()
	clock := &FrozenClock{Instant: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
	batches := NewBatchService(db, cfg, clock, nil)

	carrots := uuid.New()
	factors := &StaticFactorProvider{Factors: map[uuid.UUID]Factor{
		carrots: {CO2ePerKg: 2.5, WaterPerKg: 100},
	}}
	footprint := NewFootprintService(db, factors, clock)

	recipe := uuid.New()
	recipes := &StaticRecipeProvider{Definitions: map[uuid.UUID]*models.RecipeDefinition{
		recipe: {
			ID:        recipe,
			Name:      "Carrot soup",
			StepCount: 2,
			Servings:  2,
			Ingredients: models.JSONBIngredientList{
				{IngredientID: carrots, Name: "carrot", Quantity: 300, Unit: "g"},
			},
		},
	}}

	return &sessionEnv{
		db:       db,
		cfg:      cfg,
		clock:    clock,
		batches:  batches,
		sessions: NewCookingSessionService(db, cfg, clock, batches, footprint, recipes),
		owner:    uuid.New(),
		recipe:   recipe,
		carrots:  carrots,
	}
}

func (e *sessionEnv) lot(t *testing.T, qty float64, unit string, label models.LabelType, expiry time.Time) *models.IngredientBatch {
	t.Helper()
	return seedBatch(t, e.db, &models.IngredientBatch{
		IngredientID:   e.carrots,
		IngredientName: "carrot",
		Quantity:       qty,
		Unit:           unit,
		LabelType:      label,
		ExpiryDate:     expiry,
		OwnerID:        e.owner,
	})
}

func (e *sessionEnv) start(t *testing.T) *models.CookingSession {
	t.Helper()
	session, err := e.sessions.Start(context.Background(), e.owner, e.recipe, 2, "beginner")
	require.NoError(t, err)
	return session
}

func TestStartSessionValidation(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()

	_, err := env.sessions.Start(ctx, env.owner, env.recipe, 0, "beginner")
	assert.True(t, IsKind(err, KindValidation))

	_, err = env.sessions.Start(ctx, env.owner, env.recipe, 2, "grandmaster")
	assert.True(t, IsKind(err, KindValidation))

	_, err = env.sessions.Start(ctx, env.owner, uuid.New(), 2, "beginner")
	assert.True(t, IsKind(err, KindNotFound))
}

func TestStartSessionCreatesPendingSteps(t *testing.T) {
	env := newSessionEnv(t)
	session := env.start(t)

	assert.Equal(t, models.SessionRunning, session.Status)
	require.Len(t, session.Steps, 2)
	for i, step := range session.Steps {
		assert.Equal(t, i+1, step.Position)
		assert.Equal(t, models.StepPending, step.Status)
	}

	loaded, err := env.sessions.GetSession(context.Background(), env.owner, session.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Steps, 2)
}

func TestStartSessionCap(t *testing.T) {
	env := newSessionEnv(t)
	for i := 0; i < env.cfg.MaxActiveSessions; i++ {
		env.start(t)
	}

	_, err := env.sessions.Start(context.Background(), env.owner, env.recipe, 2, "beginner")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooManySessions)

	// another owner is not affected by this owner's cap
	_, err = env.sessions.Start(context.Background(), uuid.New(), env.recipe, 2, "beginner")
	require.NoError(t, err)
}

func TestCompleteStepDecrementsLot(t *testing.T) {
	env := newSessionEnv(t)
	now := env.clock.Now()
	lot := env.lot(t, 500, "g", models.LabelBestBefore, now.AddDate(0, 0, 5))
	session := env.start(t)
	ctx := context.Background()

	result, err := env.sessions.CompleteStep(ctx, env.owner, session.ID, session.Steps[0].ID, []StepConsumption{
		{IngredientID: env.carrots, LotID: lot.ID, Quantity: 300, Unit: "g"},
	}, 95)
	require.NoError(t, err)
	require.Len(t, result.UpdatedQuantities, 1)
	assert.InDelta(t, 200, result.UpdatedQuantities[0].NewQuantity, 1e-9)
	assert.Empty(t, result.Warnings)

	var stored models.IngredientBatch
	require.NoError(t, env.db.First(&stored, "id = ?", lot.ID).Error)
	assert.Equal(t, models.BatchAvailable, stored.State)
	assert.InDelta(t, 200, stored.Quantity, 1e-9)

	var step models.CookingStep
	require.NoError(t, env.db.First(&step, "id = ?", session.Steps[0].ID).Error)
	assert.Equal(t, models.StepDone, step.Status)
	assert.Equal(t, 95, step.ElapsedSeconds)

	var ledger []models.Consumption
	require.NoError(t, env.db.Where("session_id = ?", session.ID).Find(&ledger).Error)
	require.Len(t, ledger, 1)
	assert.Equal(t, lot.ID, ledger[0].BatchID)
	assert.InDelta(t, 300, ledger[0].Quantity, 1e-9)
}

func TestCompleteStepExhaustsLot(t *testing.T) {
	env := newSessionEnv(t)
	now := env.clock.Now()
	lot := env.lot(t, 300, "g", models.LabelBestBefore, now.AddDate(0, 0, 5))
	first := env.start(t)
	ctx := context.Background()

	result, err := env.sessions.CompleteStep(ctx, env.owner, first.ID, first.Steps[0].ID, []StepConsumption{
		{IngredientID: env.carrots, LotID: lot.ID, Quantity: 300, Unit: "g"},
	}, 60)
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.UpdatedQuantities[0].NewQuantity)

	var stored models.IngredientBatch
	require.NoError(t, env.db.First(&stored, "id = ?", lot.ID).Error)
	assert.Equal(t, models.BatchConsumed, stored.State)
	assert.Equal(t, 0.0, stored.Quantity)

	// a later attempt against the emptied lot reports missing stock
	second := env.start(t)
	_, err = env.sessions.CompleteStep(ctx, env.owner, second.ID, second.Steps[0].ID, []StepConsumption{
		{IngredientID: env.carrots, LotID: lot.ID, Quantity: 100, Unit: "g"},
	}, 30)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInsufficientStock))
}

func TestCompleteStepIsAtomicAcrossLots(t *testing.T) {
	env := newSessionEnv(t)
	now := env.clock.Now()
	big := env.lot(t, 500, "g", models.LabelBestBefore, now.AddDate(0, 0, 5))
	small := env.lot(t, 100, "g", models.LabelBestBefore, now.AddDate(0, 0, 5))
	session := env.start(t)
	ctx := context.Background()

	_, err := env.sessions.CompleteStep(ctx, env.owner, session.ID, session.Steps[0].ID, []StepConsumption{
		{IngredientID: env.carrots, LotID: big.ID, Quantity: 200, Unit: "g"},
		{IngredientID: env.carrots, LotID: small.ID, Quantity: 200, Unit: "g"},
	}, 60)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInsufficientStock))

	// the shortfall on the second lot rolled back the take from the first
	var stored models.IngredientBatch
	require.NoError(t, env.db.First(&stored, "id = ?", big.ID).Error)
	assert.InDelta(t, 500, stored.Quantity, 1e-9)
	assert.Equal(t, models.BatchAvailable, stored.State)

	var count int64
	require.NoError(t, env.db.Model(&models.Consumption{}).Where("session_id = ?", session.ID).Count(&count).Error)
	assert.Zero(t, count)

	var step models.CookingStep
	require.NoError(t, env.db.First(&step, "id = ?", session.Steps[0].ID).Error)
	assert.Equal(t, models.StepPending, step.Status)
}

func TestCompleteStepExpiryRules(t *testing.T) {
	env := newSessionEnv(t)
	now := env.clock.Now()
	session := env.start(t)
	ctx := context.Background()

	hard := env.lot(t, 300, "g", models.LabelUseBy, now.Add(-time.Hour))
	_, err := env.sessions.CompleteStep(ctx, env.owner, session.ID, session.Steps[0].ID, []StepConsumption{
		{IngredientID: env.carrots, LotID: hard.ID, Quantity: 100, Unit: "g"},
	}, 30)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindBusinessRule))

	// past best_before is allowed with a warning
	soft := env.lot(t, 300, "g", models.LabelBestBefore, now.Add(-time.Hour))
	result, err := env.sessions.CompleteStep(ctx, env.owner, session.ID, session.Steps[0].ID, []StepConsumption{
		{IngredientID: env.carrots, LotID: soft.ID, Quantity: 100, Unit: "g"},
	}, 30)
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "best_before")
}

func TestCompleteStepRejections(t *testing.T) {
	env := newSessionEnv(t)
	now := env.clock.Now()
	lot := env.lot(t, 500, "g", models.LabelBestBefore, now.AddDate(0, 0, 5))
	session := env.start(t)
	ctx := context.Background()

	_, err := env.sessions.CompleteStep(ctx, env.owner, session.ID, session.Steps[0].ID, nil, 10)
	assert.True(t, IsKind(err, KindValidation))

	_, err = env.sessions.CompleteStep(ctx, env.owner, session.ID, session.Steps[0].ID, []StepConsumption{
		{IngredientID: env.carrots, LotID: lot.ID, Quantity: 100, Unit: "ml"},
	}, 10)
	assert.True(t, IsKind(err, KindValidation))

	_, err = env.sessions.CompleteStep(ctx, env.owner, session.ID, session.Steps[0].ID, []StepConsumption{
		{IngredientID: env.carrots, LotID: uuid.New(), Quantity: 100, Unit: "g"},
	}, 10)
	assert.True(t, IsKind(err, KindNotFound))

	// a lot belonging to someone else reads as absent
	stranger := seedBatch(t, env.db, &models.IngredientBatch{
		IngredientID: env.carrots, Quantity: 500, Unit: "g",
		LabelType: models.LabelBestBefore, ExpiryDate: now.AddDate(0, 0, 5),
		OwnerID: uuid.New(),
	})
	_, err = env.sessions.CompleteStep(ctx, env.owner, session.ID, session.Steps[0].ID, []StepConsumption{
		{IngredientID: env.carrots, LotID: stranger.ID, Quantity: 100, Unit: "g"},
	}, 10)
	assert.True(t, IsKind(err, KindNotFound))

	// completing a step twice is rejected
	_, err = env.sessions.CompleteStep(ctx, env.owner, session.ID, session.Steps[0].ID, []StepConsumption{
		{IngredientID: env.carrots, LotID: lot.ID, Quantity: 100, Unit: "g"},
	}, 10)
	require.NoError(t, err)
	_, err = env.sessions.CompleteStep(ctx, env.owner, session.ID, session.Steps[0].ID, []StepConsumption{
		{IngredientID: env.carrots, LotID: lot.ID, Quantity: 100, Unit: "g"},
	}, 10)
	assert.True(t, IsKind(err, KindBusinessRule))
}

func TestConcurrentConsumptionNeverOversells(t *testing.T) {
	env := newSessionEnv(t)
	env.cfg.MaxActiveSessions = 10
	now := env.clock.Now()
	lot := env.lot(t, 1000, "g", models.LabelBestBefore, now.AddDate(0, 0, 5))
	ctx := context.Background()

	steps := make([]uuid.UUID, 0, 5)
	sessions := make([]uuid.UUID, 0, 5)
	for i := 0; i < 5; i++ {
		s := env.start(t)
		sessions = append(sessions, s.ID)
		steps = append(steps, s.Steps[0].ID)
	}

	var wg sync.WaitGroup
	outcomes := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(sessionID, stepID uuid.UUID) {
			defer wg.Done()
			_, err := env.sessions.CompleteStep(ctx, env.owner, sessionID, stepID, []StepConsumption{
				{IngredientID: env.carrots, LotID: lot.ID, Quantity: 300, Unit: "g"},
			}, 30)
			outcomes <- err
		}(sessions[i], steps[i])
	}
	wg.Wait()
	close(outcomes)

	succeeded, short := 0, 0
	for err := range outcomes {
		switch {
		case err == nil:
			succeeded++
		case IsKind(err, KindInsufficientStock):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 3, succeeded)
	assert.Equal(t, 2, short)

	var stored models.IngredientBatch
	require.NoError(t, env.db.First(&stored, "id = ?", lot.ID).Error)
	assert.InDelta(t, 100, stored.Quantity, 1e-9)
	assert.Equal(t, models.BatchAvailable, stored.State)
}

func TestFinishSessionIdempotent(t *testing.T) {
	env := newSessionEnv(t)
	now := env.clock.Now()
	lot := env.lot(t, 500, "g", models.LabelBestBefore, now.AddDate(0, 0, 5))
	session := env.start(t)
	ctx := context.Background()

	_, err := env.sessions.CompleteStep(ctx, env.owner, session.ID, session.Steps[0].ID, []StepConsumption{
		{IngredientID: env.carrots, LotID: lot.ID, Quantity: 300, Unit: "g"},
	}, 60)
	require.NoError(t, err)

	first, err := env.sessions.Finish(ctx, env.owner, session.ID, "great soup", "")
	require.NoError(t, err)
	assert.Equal(t, models.SessionFinished, first.Session.Status)
	// 0.3 kg at 2.5 kgCO2e/kg and 100 l/kg
	assert.InDelta(t, 0.75, first.Saving.CO2e, 1e-9)
	assert.InDelta(t, 30, first.Saving.Water, 1e-9)
	assert.InDelta(t, 0.3, first.Saving.WasteAvoided, 1e-9)
	require.NotNil(t, first.Suggestion)
	assert.Equal(t, now.AddDate(0, 0, env.cfg.LeftoverShelfLifeDays), first.Suggestion.EatBy)

	env.clock.Advance(6 * time.Hour)
	second, err := env.sessions.Finish(ctx, env.owner, session.ID, "", "")
	require.NoError(t, err)
	assert.Equal(t, first.Saving.ID, second.Saving.ID)
	assert.Equal(t, first.Suggestion.EatBy.Unix(), second.Suggestion.EatBy.Unix())

	var count int64
	require.NoError(t, env.db.Model(&models.EnvironmentalSaving{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestLeftoverLifecycle(t *testing.T) {
	env := newSessionEnv(t)
	session := env.start(t)
	ctx := context.Background()

	_, err := env.sessions.CreateLeftover(ctx, env.owner, session.ID, 2, models.LocationFridge)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindBusinessRule))

	_, err = env.sessions.Finish(ctx, env.owner, session.ID, "", "")
	require.NoError(t, err)

	leftover, err := env.sessions.CreateLeftover(ctx, env.owner, session.ID, 2, "")
	require.NoError(t, err)
	assert.Equal(t, models.LocationFridge, leftover.Location)
	assert.Equal(t, env.clock.Now().AddDate(0, 0, env.cfg.LeftoverShelfLifeDays).Unix(), leftover.EatBy.Unix())

	items, err := env.sessions.ListLeftovers(ctx, env.owner)
	require.NoError(t, err)
	require.Len(t, items, 1)

	eaten, err := env.sessions.ConsumeLeftover(ctx, env.owner, leftover.ID)
	require.NoError(t, err)
	require.NotNil(t, eaten.ConsumedAt)

	// eating twice keeps the original timestamp
	again, err := env.sessions.ConsumeLeftover(ctx, env.owner, leftover.ID)
	require.NoError(t, err)
	assert.Equal(t, eaten.ConsumedAt.Unix(), again.ConsumedAt.Unix())

	items, err = env.sessions.ListLeftovers(ctx, env.owner)
	require.NoError(t, err)
	assert.Empty(t, items)
}
