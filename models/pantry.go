package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// One pantry per user, created at registration. The aggregate scores are a
// cached weighted average over the pantry's items, recomputed on each pantry
// view; null when no item carries the respective score.
type Pantry struct {
	gorm.Model
	UserID uint `gorm:"uniqueIndex;not null"`
	Items  []PantryItem

	NutritionScore *float64 `gorm:"type:decimal(5,2)"`
	NutritionGrade *string  `gorm:"type:varchar(1)"`
	EcoScore       *float64 `gorm:"type:decimal(5,2)"`
	EcoGrade       *string  `gorm:"type:varchar(1)"`
}

// At most one row per (pantry, product); repeated adds increment Quantity.
// Quantity must stay positive, rows driven to zero or below are deleted.
type PantryItem struct {
	gorm.Model
	PantryID  uint    `gorm:"uniqueIndex:idx_pantry_product;not null"`
	ProductID uint    `gorm:"uniqueIndex:idx_pantry_product;not null"`
	Product   Product

	Quantity       decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	ExpirationDate *time.Time
	AddedDate      time.Time `gorm:"autoCreateTime"`
}
