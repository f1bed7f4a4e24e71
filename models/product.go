package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// A catalog entry cached from the external food database. Products are shared
// reference data: created and updated only through the resolver's upsert,
// never deleted.
type Product struct {
	gorm.Model
	Code        string `gorm:"type:varchar(100);uniqueIndex;not null"`
	ProductName string `gorm:"not null"`
	Brands      string
	ImageURL    string

	ServingSize         *decimal.Decimal `gorm:"type:decimal(10,2)"`
	ServingPerContainer *decimal.Decimal `gorm:"type:decimal(10,2)"`
	ProductQuantity     *decimal.Decimal `gorm:"type:decimal(10,2)"`
	ProductQuantityUnit string           `gorm:"type:varchar(50)"`

	Ingredients   string `gorm:"type:text"`
	AllergensTags string `gorm:"type:text"` // comma-separated facet tags, e.g. "en:milk,en:gluten"
	LabelsTags    string `gorm:"type:text"`
	CountriesEn   string
	CategoriesEn  string

	EnergyKj   *float64 `gorm:"type:decimal(10,2)"`
	EnergyKcal *float64 `gorm:"type:decimal(10,2)"`

	ProteinServing       *float64 `gorm:"type:decimal(10,2)"`
	FatServing           *float64 `gorm:"type:decimal(10,2)"`
	SaturatedFatServing  *float64 `gorm:"type:decimal(10,2)"`
	CarbohydratesServing *float64 `gorm:"type:decimal(10,2)"`
	SugarsServing        *float64 `gorm:"type:decimal(10,2)"`
	FiberServing         *float64 `gorm:"type:decimal(10,2)"`
	SodiumServing        *float64 `gorm:"type:decimal(10,2)"`

	Protein100g       *float64 `gorm:"type:decimal(10,2)"`
	Fat100g           *float64 `gorm:"type:decimal(10,2)"`
	SaturatedFat100g  *float64 `gorm:"type:decimal(10,2)"`
	Carbohydrates100g *float64 `gorm:"type:decimal(10,2)"`
	Sugars100g        *float64 `gorm:"type:decimal(10,2)"`
	Fiber100g         *float64 `gorm:"type:decimal(10,2)"`
	Sodium100g        *float64 `gorm:"type:decimal(10,2)"`

	NutritionScore *float64 `gorm:"type:decimal(5,2)"`
	NutritionGrade string   `gorm:"type:varchar(1)"`
	NovaGroup      string   `gorm:"type:varchar(50)"`
	EcoscoreScore  *float64 `gorm:"type:decimal(5,2)"`
	EcoscoreGrade  string   `gorm:"type:varchar(1)"`

	ManufacturingLocation string
	LastUpdated           time.Time
}
