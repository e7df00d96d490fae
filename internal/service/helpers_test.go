package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pantryloop/backend/config"
	"github.com/pantryloop/backend/internal/database"
	"github.com/pantryloop/backend/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:             "test-secret",
		ExpiringSoonDays:      3,
		UseByWeight:           1.0,
		BestBeforeWeight:      0.7,
		MaxActiveSessions:     3,
		LeftoverShelfLifeDays: 3,
		LockWait:              200 * time.Millisecond,
		LockRetries:           2,
		IdempotencyTTL:        24 * time.Hour,
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// every pooled connection to :memory: would be its own database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.RunMigrations(db))
	return db
}

func seedBatch(t *testing.T, db *gorm.DB, batch *models.IngredientBatch) *models.IngredientBatch {
	t.Helper()
	if batch.State == "" {
		batch.State = models.BatchAvailable
	}
	if batch.Location == "" {
		batch.Location = models.LocationFridge
	}
	require.NoError(t, db.Create(batch).Error)
	return batch
}
