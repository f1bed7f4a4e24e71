package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mnmfullmetal/savor/models"
)

// ProductRecord is a normalized external catalog record. Nil pointers and
// empty strings mean the field was absent from the payload; the merge leaves
// the stored value untouched for those.
type ProductRecord struct {
	Code        string
	ProductName string
	Brands      string
	ImageURL    string

	ProductQuantity     *decimal.Decimal
	ProductQuantityUnit string
	ServingSize         *decimal.Decimal
	ServingPerContainer *decimal.Decimal

	Ingredients   string
	AllergensTags []string
	LabelsTags    []string
	CountriesEn   string
	CategoriesEn  string

	EnergyKj   *float64
	EnergyKcal *float64

	Protein100g       *float64
	Fat100g           *float64
	SaturatedFat100g  *float64
	Carbohydrates100g *float64
	Sugars100g        *float64
	Fiber100g         *float64
	Sodium100g        *float64

	ProteinServing       *float64
	FatServing           *float64
	SaturatedFatServing  *float64
	CarbohydratesServing *float64
	SugarsServing        *float64
	FiberServing         *float64
	SodiumServing        *float64

	NutritionScore *float64
	NutritionGrade string
	EcoscoreScore  *float64
	EcoscoreGrade  string
	NovaGroup      string

	ManufacturingLocation string
}

// SearchResult is a page of records from the external source.
type SearchResult struct {
	Records   []ProductRecord
	Count     int
	Page      int
	PageSize  int
	PageCount int
}

// mergeRecord applies a record onto a product: fields present in the record
// overwrite, absent fields keep the stored value. Applying the same record
// twice leaves the product unchanged.
func mergeRecord(p *models.Product, rec ProductRecord) {
	setStr := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setFloat := func(dst **float64, v *float64) {
		if v != nil {
			*dst = v
		}
	}
	setDec := func(dst **decimal.Decimal, v *decimal.Decimal) {
		if v != nil {
			*dst = v
		}
	}

	p.Code = rec.Code
	setStr(&p.ProductName, rec.ProductName)
	setStr(&p.Brands, rec.Brands)
	setStr(&p.ImageURL, rec.ImageURL)
	setStr(&p.ProductQuantityUnit, rec.ProductQuantityUnit)
	setStr(&p.Ingredients, rec.Ingredients)
	setStr(&p.CountriesEn, rec.CountriesEn)
	setStr(&p.CategoriesEn, rec.CategoriesEn)
	setStr(&p.NutritionGrade, rec.NutritionGrade)
	setStr(&p.EcoscoreGrade, rec.EcoscoreGrade)
	setStr(&p.NovaGroup, rec.NovaGroup)
	setStr(&p.ManufacturingLocation, rec.ManufacturingLocation)

	setDec(&p.ProductQuantity, rec.ProductQuantity)
	setDec(&p.ServingSize, rec.ServingSize)
	setDec(&p.ServingPerContainer, rec.ServingPerContainer)

	if len(rec.AllergensTags) > 0 {
		p.AllergensTags = strings.Join(rec.AllergensTags, ",")
	}
	if len(rec.LabelsTags) > 0 {
		p.LabelsTags = strings.Join(rec.LabelsTags, ",")
	}

	setFloat(&p.EnergyKj, rec.EnergyKj)
	setFloat(&p.EnergyKcal, rec.EnergyKcal)
	setFloat(&p.Protein100g, rec.Protein100g)
	setFloat(&p.Fat100g, rec.Fat100g)
	setFloat(&p.SaturatedFat100g, rec.SaturatedFat100g)
	setFloat(&p.Carbohydrates100g, rec.Carbohydrates100g)
	setFloat(&p.Sugars100g, rec.Sugars100g)
	setFloat(&p.Fiber100g, rec.Fiber100g)
	setFloat(&p.Sodium100g, rec.Sodium100g)
	setFloat(&p.ProteinServing, rec.ProteinServing)
	setFloat(&p.FatServing, rec.FatServing)
	setFloat(&p.SaturatedFatServing, rec.SaturatedFatServing)
	setFloat(&p.CarbohydratesServing, rec.CarbohydratesServing)
	setFloat(&p.SugarsServing, rec.SugarsServing)
	setFloat(&p.FiberServing, rec.FiberServing)
	setFloat(&p.SodiumServing, rec.SodiumServing)
	setFloat(&p.NutritionScore, rec.NutritionScore)
	setFloat(&p.EcoscoreScore, rec.EcoscoreScore)

	p.LastUpdated = time.Now()
}

// ProductStore is the durable cache of previously-seen products.
type ProductStore struct {
	db *gorm.DB
}

func NewProductStore(db *gorm.DB) *ProductStore {
	return &ProductStore{db: db}
}

// FindByCode returns the product with the exact external code, or
// ErrProductNotFound.
func (s *ProductStore) FindByCode(code string) (*models.Product, error) {
	var product models.Product
	err := s.db.Where("code = ?", code).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error fetching product: %w", err)
	}
	return &product, nil
}

// StoreSearchCriteria filters local products: case-insensitive substring on
// name, exact (case-insensitive) match on country, category and brand.
// Results come back in insertion order; stable, but not a guarantee.
type StoreSearchCriteria struct {
	Name     string
	Country  string
	Category string
	Brand    string
}

func (s *ProductStore) Search(c StoreSearchCriteria) ([]models.Product, error) {
	q := s.db.Model(&models.Product{})
	if c.Name != "" {
		q = q.Where("LOWER(product_name) LIKE ?", "%"+strings.ToLower(c.Name)+"%")
	}
	if c.Country != "" {
		q = q.Where("LOWER(countries_en) = ?", strings.ToLower(c.Country))
	}
	if c.Category != "" {
		q = q.Where("LOWER(categories_en) = ?", strings.ToLower(c.Category))
	}
	if c.Brand != "" {
		q = q.Where("LOWER(brands) = ?", strings.ToLower(c.Brand))
	}

	var products []models.Product
	if err := q.Order("id").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("db error searching products: %w", err)
	}
	return products, nil
}

// Upsert merges the record into the stored product keyed by its external
// code, creating it when unseen. Safe under concurrent writers for the same
// code: last write wins per field, which is acceptable for reference data.
func (s *ProductStore) Upsert(rec ProductRecord) (*models.Product, error) {
	if rec.Code == "" {
		return nil, &ValidationError{Msg: "product record has no code"}
	}

	var product models.Product
	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("code = ?", rec.Code).First(&product).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		mergeRecord(&product, rec)
		return tx.Save(&product).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert product %s: %w", rec.Code, err)
	}
	return &product, nil
}
