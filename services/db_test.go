package services

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mnmfullmetal/savor/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{},
		&models.UserSettings{},
		&models.Allergen{},
		&models.DietaryRequirement{},
		&models.Product{},
		&models.Pantry{},
		&models.PantryItem{},
		&models.SuggestedRecipe{},
		&models.SavedRecipe{},
		&models.SavedRecipeIngredient{},
	)
	require.NoError(t, err)

	for _, table := range []string{
		"saved_recipe_ingredients", "saved_recipes",
		"suggested_recipe_products", "suggested_recipes",
		"pantry_items", "pantries",
		"user_favourited_products", "products",
		"user_settings_allergens", "user_settings_dietary_requirements",
		"user_settings", "allergens", "dietary_requirements", "users",
	} {
		db.Exec("DELETE FROM " + table)
	}

	return db
}

func createTestUserWithPantry(t *testing.T, db *gorm.DB) (models.User, models.Pantry) {
	user := models.User{Email: "test@example.com", Username: "tester", Password: "x"}
	require.NoError(t, db.Create(&user).Error)

	pantry := models.Pantry{UserID: user.ID}
	require.NoError(t, db.Create(&pantry).Error)

	return user, pantry
}
