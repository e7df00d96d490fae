package database

import (
	"log"

	"gorm.io/gorm"

	"github.com/pantryloop/backend/internal/models"
)

// RunMigrations brings the schema up to date. The schema has no raw-SQL
// needs, so GORM auto-migration covers both the postgres and sqlite
// dialects.
func RunMigrations(db *gorm.DB) error {
	log.Printf("Running migrations (%s)", db.Dialector.Name())
	return db.AutoMigrate(
		&models.User{},
		&models.IngredientBatch{},
		&models.RecipeDefinition{},
		&models.CookingSession{},
		&models.CookingStep{},
		&models.Consumption{},
		&models.LeftoverItem{},
		&models.WasteLog{},
		&models.FootprintFactor{},
		&models.EnvironmentalSaving{},
		&models.IdempotencyRecord{},
	)
}
