package main

import (
	"log"

	"github.com/google/uuid"

	"github.com/pantryloop/backend/config"
	"github.com/pantryloop/backend/internal/database"
	"github.com/pantryloop/backend/internal/models"
)

// Fixed ingredient ids so intake, recipes and factors agree across runs.
var (
	carrotID  = uuid.MustParse("6f1f7a2e-0001-4000-8000-000000000001")
	onionID   = uuid.MustParse("6f1f7a2e-0001-4000-8000-000000000002")
	potatoID  = uuid.MustParse("6f1f7a2e-0001-4000-8000-000000000003")
	chickenID = uuid.MustParse("6f1f7a2e-0001-4000-8000-000000000004")
	beefID    = uuid.MustParse("6f1f7a2e-0001-4000-8000-000000000005")
	riceID    = uuid.MustParse("6f1f7a2e-0001-4000-8000-000000000006")
	tomatoID  = uuid.MustParse("6f1f7a2e-0001-4000-8000-000000000007")
	milkID    = uuid.MustParse("6f1f7a2e-0001-4000-8000-000000000008")
)

// Per-kg coefficients from commonly cited LCA figures (Poore & Nemecek
// aggregates, rounded).
var factors = []models.FootprintFactor{
	{IngredientID: carrotID, CO2ePerKg: 0.4, WaterPerKg: 195},
	{IngredientID: onionID, CO2ePerKg: 0.5, WaterPerKg: 280},
	{IngredientID: potatoID, CO2ePerKg: 0.5, WaterPerKg: 290},
	{IngredientID: chickenID, CO2ePerKg: 6.9, WaterPerKg: 4325},
	{IngredientID: beefID, CO2ePerKg: 60.0, WaterPerKg: 15415},
	{IngredientID: riceID, CO2ePerKg: 4.5, WaterPerKg: 2500},
	{IngredientID: tomatoID, CO2ePerKg: 2.1, WaterPerKg: 214},
	{IngredientID: milkID, CO2ePerKg: 3.2, WaterPerKg: 1020},
}

var recipes = []models.RecipeDefinition{
	{
		Name:      "Carrot and potato soup",
		StepCount: 3,
		Servings:  4,
		Ingredients: models.JSONBIngredientList{
			{IngredientID: carrotID, Name: "carrot", Quantity: 400, Unit: "g"},
			{IngredientID: potatoID, Name: "potato", Quantity: 300, Unit: "g"},
			{IngredientID: onionID, Name: "onion", Quantity: 1, Unit: "pc"},
		},
	},
	{
		Name:      "Chicken fried rice",
		StepCount: 4,
		Servings:  2,
		Ingredients: models.JSONBIngredientList{
			{IngredientID: chickenID, Name: "chicken breast", Quantity: 300, Unit: "g"},
			{IngredientID: riceID, Name: "rice", Quantity: 200, Unit: "g"},
			{IngredientID: onionID, Name: "onion", Quantity: 1, Unit: "pc"},
		},
	},
	{
		Name:      "Tomato beef stew",
		StepCount: 5,
		Servings:  4,
		Ingredients: models.JSONBIngredientList{
			{IngredientID: beefID, Name: "stewing beef", Quantity: 500, Unit: "g"},
			{IngredientID: tomatoID, Name: "tomato", Quantity: 400, Unit: "g"},
			{IngredientID: potatoID, Name: "potato", Quantity: 400, Unit: "g"},
		},
	},
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Fatalf("Database error: %v", err)
	}
	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Migration error: %v", err)
	}

	for _, f := range factors {
		var existing models.FootprintFactor
		err := db.Where("ingredient_id = ?", f.IngredientID).First(&existing).Error
		if err == nil {
			continue
		}
		if err := db.Create(&f).Error; err != nil {
			log.Fatalf("Failed to seed factor for %s: %v", f.IngredientID, err)
		}
	}
	log.Printf("Seeded %d footprint factors", len(factors))

	for _, r := range recipes {
		var existing models.RecipeDefinition
		err := db.Where("name = ?", r.Name).First(&existing).Error
		if err == nil {
			continue
		}
		if err := db.Create(&r).Error; err != nil {
			log.Fatalf("Failed to seed recipe %q: %v", r.Name, err)
		}
	}
	log.Printf("Seeded %d recipe definitions", len(recipes))
}
