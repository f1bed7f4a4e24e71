package models

import (
	"gorm.io/gorm"
)

// A known allergen facet tag, seeded from the external catalog's allergens
// facet (english tags with known == 1 only).
type Allergen struct {
	gorm.Model
	APITag       string `gorm:"type:varchar(100);uniqueIndex;not null"` // e.g. "en:milk"
	AllergenName string `gorm:"not null"`
}

// A dietary requirement backed by a label facet tag (vegan, halal, …).
type DietaryRequirement struct {
	gorm.Model
	APITag          string `gorm:"type:varchar(100);uniqueIndex;not null"` // e.g. "en:vegan"
	RequirementName string `gorm:"not null"`
}

// Per-user preferences. Read by the resolver to annotate results; the core
// never mutates these.
type UserSettings struct {
	gorm.Model
	UserID uint `gorm:"uniqueIndex;not null"`

	Allergens           []Allergen           `gorm:"many2many:user_settings_allergens;"`
	DietaryRequirements []DietaryRequirement `gorm:"many2many:user_settings_dietary_requirements;"`

	LanguagePreference      string `gorm:"type:varchar(50);default:'en'"`
	CountryPreference       string `gorm:"type:varchar(100)"`
	GetOnlyLocalisedResults bool
}
