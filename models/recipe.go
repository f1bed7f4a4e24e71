package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Suggestion lifecycle states.
const (
	SuggestionStatusNew     = "new"
	SuggestionStatusRecent  = "recent"
	SuggestionStatusSaved   = "saved"
	SuggestionStatusDeleted = "deleted"
)

// An AI-generated recipe candidate. Created as "new"; moved to "recent" when
// superseded by a fresh generation or viewed; "recent" rows older than the
// retention window are swept to "deleted".
type SuggestedRecipe struct {
	gorm.Model
	UserID uint `gorm:"index;not null"`

	Title      string
	RecipeData datatypes.JSON `gorm:"type:jsonb"` // raw structured AI output
	Status     string         `gorm:"type:varchar(10);default:'new';index"`

	UsedProducts []Product `gorm:"many2many:suggested_recipe_products;"`
}

// A user-confirmed permanent recipe, created only by promoting a suggestion.
type SavedRecipe struct {
	gorm.Model
	UserID       uint `gorm:"index;not null"`
	Title        string
	Instructions datatypes.JSON `gorm:"type:jsonb"`
	Ingredients  []SavedRecipeIngredient
}

type SavedRecipeIngredient struct {
	gorm.Model
	SavedRecipeID uint `gorm:"uniqueIndex:idx_recipe_product;not null"`
	ProductID     uint `gorm:"uniqueIndex:idx_recipe_product;not null"`
	Product       Product

	Quantity decimal.Decimal `gorm:"type:decimal(10,2)"`
	Unit     string          `gorm:"type:varchar(50)"`
}
