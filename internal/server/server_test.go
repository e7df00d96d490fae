package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pantryloop/backend/config"
	"github.com/pantryloop/backend/internal/database"
	"github.com/pantryloop/backend/internal/models"
	"github.com/pantryloop/backend/internal/types"
)

type apiFixture struct {
	t      *testing.T
	router *gin.Engine
	db     *gorm.DB
	token  string
}

func newAPIFixture(t *testing.T) *apiFixture {
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.RunMigrations(db))

	cfg := &config.Config{
		ServerHost:            "127.0.0.1",
		ServerPort:            "0",
		JWTSecret:             "test-secret",
		ExpiringSoonDays:      3,
		UseByWeight:           1.0,
		BestBeforeWeight:      0.7,
		MaxActiveSessions:     3,
		LeftoverShelfLifeDays: 3,
		LockWait:              200 * time.Millisecond,
		LockRetries:           2,
		IdempotencyTTL:        time.Hour,
	}

	srv := New(cfg, db, nil)
	f := &apiFixture{t: t, router: srv.Router(), db: db}

	w := f.request(http.MethodPost, "/api/v1/auth/register", "", types.RegisterRequest{
		Name: "Mara", Email: "mara@example.com", Password: "supersecret1",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	f.token = f.decode(w)["token"].(string)
	require.NotEmpty(t, f.token)
	return f
}

func (f *apiFixture) request(method, path, idemKey string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewBuffer(payload)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	require.NoError(f.t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	w := f.request(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", f.decode(w)["status"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newAPIFixture(t)
	f.token = ""
	w := f.request(http.MethodGet, "/api/v1/batches", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBatchIntakeIdempotency(t *testing.T) {
	f := newAPIFixture(t)
	body := types.CreateBatchRequest{
		IngredientID:   uuid.New(),
		IngredientName: "carrot",
		Quantity:       500,
		Unit:           "g",
		LabelType:      "best_before",
		ExpiryDate:     time.Now().AddDate(0, 0, 7),
	}

	w := f.request(http.MethodPost, "/api/v1/batches", "", body)
	assert.Equal(t, http.StatusBadRequest, w.Code, "mutations demand an Idempotency-Key")

	first := f.request(http.MethodPost, "/api/v1/batches", "intake-1", body)
	require.Equal(t, http.StatusCreated, first.Code)
	firstID := f.decode(first)["id"].(string)

	replay := f.request(http.MethodPost, "/api/v1/batches", "intake-1", body)
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, firstID, f.decode(replay)["id"].(string))

	body.Quantity = 900
	conflict := f.request(http.MethodPost, "/api/v1/batches", "intake-1", body)
	assert.Equal(t, http.StatusConflict, conflict.Code)

	list := f.request(http.MethodGet, "/api/v1/batches", "", nil)
	require.Equal(t, http.StatusOK, list.Code)
	batches := f.decode(list)["batches"].([]interface{})
	require.Len(t, batches, 1)
	assert.Contains(t, batches[0].(map[string]interface{}), "urgency")
}

func TestCookingFlow(t *testing.T) {
	f := newAPIFixture(t)
	carrots := uuid.New()

	recipe := &models.RecipeDefinition{
		Name:      "Carrot soup",
		StepCount: 1,
		Servings:  2,
		Ingredients: models.JSONBIngredientList{
			{IngredientID: carrots, Name: "carrot", Quantity: 300, Unit: "g"},
		},
	}
	require.NoError(t, f.db.Create(recipe).Error)
	require.NoError(t, f.db.Create(&models.FootprintFactor{
		IngredientID: carrots, CO2ePerKg: 2.5, WaterPerKg: 100,
	}).Error)

	w := f.request(http.MethodPost, "/api/v1/batches", "intake-1", types.CreateBatchRequest{
		IngredientID: carrots, IngredientName: "carrot",
		Quantity: 500, Unit: "g", LabelType: "best_before",
		ExpiryDate: time.Now().AddDate(0, 0, 7),
	})
	require.Equal(t, http.StatusCreated, w.Code)
	lotID := uuid.MustParse(f.decode(w)["id"].(string))

	w = f.request(http.MethodPost, "/api/v1/sessions", "start-1", types.StartSessionRequest{
		RecipeID: recipe.ID, Servings: 2, Level: "beginner",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	started := f.decode(w)
	sessionID := started["session_id"].(string)
	steps := started["steps"].([]interface{})
	require.Len(t, steps, 1)
	stepID := uuid.MustParse(steps[0].(map[string]interface{})["id"].(string))

	w = f.request(http.MethodPost, "/api/v1/sessions/"+sessionID+"/steps/complete", "step-1", types.CompleteStepRequest{
		StepID: stepID,
		Consumptions: []types.ConsumptionRequest{
			{IngredientID: carrots, LotID: lotID, Quantity: 300, Unit: "g"},
		},
		ElapsedSeconds: 120,
	})
	require.Equal(t, http.StatusOK, w.Code)
	completed := f.decode(w)
	assert.Equal(t, true, completed["ok"])
	updated := completed["updated_quantities"].([]interface{})
	require.Len(t, updated, 1)
	assert.InDelta(t, 200, updated[0].(map[string]interface{})["new_quantity"].(float64), 1e-9)

	// replaying the committed step does not consume again
	w = f.request(http.MethodPost, "/api/v1/sessions/"+sessionID+"/steps/complete", "step-1", types.CompleteStepRequest{
		StepID: stepID,
		Consumptions: []types.ConsumptionRequest{
			{IngredientID: carrots, LotID: lotID, Quantity: 300, Unit: "g"},
		},
		ElapsedSeconds: 120,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var lot models.IngredientBatch
	require.NoError(t, f.db.First(&lot, "id = ?", lotID).Error)
	assert.InDelta(t, 200, lot.Quantity, 1e-9)

	w = f.request(http.MethodPost, "/api/v1/sessions/"+sessionID+"/finish", "finish-1", types.FinishSessionRequest{
		Notes: "good",
	})
	require.Equal(t, http.StatusOK, w.Code)
	finished := f.decode(w)
	saving := finished["environmental_saving"].(map[string]interface{})
	assert.InDelta(t, 0.75, saving["co2e"].(float64), 1e-9)
	assert.NotNil(t, finished["leftover_suggestion"])

	w = f.request(http.MethodGet, "/api/v1/sessions/"+sessionID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "finished", f.decode(w)["status"])
}

func TestRescueEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	carrots := uuid.New()

	w := f.request(http.MethodPost, "/api/v1/batches", "intake-1", types.CreateBatchRequest{
		IngredientID: carrots, IngredientName: "carrot",
		Quantity: 500, Unit: "g", LabelType: "best_before",
		ExpiryDate: time.Now().AddDate(0, 0, 2),
	})
	require.Equal(t, http.StatusCreated, w.Code)
	lotID := f.decode(w)["id"].(string)

	w = f.request(http.MethodPost, "/api/v1/batches/"+lotID+"/freeze", "freeze-1", types.FreezeBatchRequest{
		NewBestBefore: time.Now().AddDate(0, 3, 0),
	})
	require.Equal(t, http.StatusOK, w.Code)
	frozen := f.decode(w)
	assert.Equal(t, "frozen", frozen["state"])
	assert.Equal(t, "freezer", frozen["location"])

	// a frozen batch cannot be reserved
	w = f.request(http.MethodPost, "/api/v1/batches/"+lotID+"/reserve", "reserve-1", types.ReserveBatchRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// quarantine then discard a second lot
	w = f.request(http.MethodPost, "/api/v1/batches", "intake-2", types.CreateBatchRequest{
		IngredientID: carrots, IngredientName: "carrot",
		Quantity: 200, Unit: "g", LabelType: "best_before",
		ExpiryDate: time.Now().AddDate(0, 0, 2),
	})
	require.Equal(t, http.StatusCreated, w.Code)
	secondID := f.decode(w)["id"].(string)

	w = f.request(http.MethodPost, "/api/v1/batches/"+secondID+"/quarantine", "quarantine-1", struct{}{})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.request(http.MethodPost, "/api/v1/batches/"+secondID+"/discard", "discard-1", types.DiscardBatchRequest{
		EstimatedWeight: 200, Unit: "g", Reason: "bad_condition",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, f.decode(w), "waste_id")

	w = f.request(http.MethodGet, "/api/v1/waste", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, f.decode(w)["waste"].([]interface{}), 1)
}

func TestFootprintEstimateEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	carrots := uuid.New()
	require.NoError(t, f.db.Create(&models.FootprintFactor{
		IngredientID: carrots, CO2ePerKg: 2.0, WaterPerKg: 10,
	}).Error)

	w := f.request(http.MethodPost, "/api/v1/footprint/estimate", "estimate-1", types.EstimateFootprintRequest{
		Consumptions: []types.ConsumptionRequest{
			{IngredientID: carrots, LotID: uuid.New(), Quantity: 2, Unit: "kg"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	out := f.decode(w)
	assert.InDelta(t, 4.0, out["co2e"].(float64), 1e-9)
	assert.Equal(t, "per_recipe_estimate", out["basis"])
}
