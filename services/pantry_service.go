package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mnmfullmetal/savor/models"
)

// Grade ladders for the aggregate scores. Nutrition scores run low-is-good,
// eco scores high-is-good.
func NutritionGradeForScore(score float64) string {
	switch {
	case score <= -1:
		return "A"
	case score <= 2:
		return "B"
	case score <= 10:
		return "C"
	case score <= 18:
		return "D"
	default:
		return "E"
	}
}

func EcoGradeForScore(score float64) string {
	switch {
	case score >= 80:
		return "A"
	case score >= 60:
		return "B"
	case score >= 40:
		return "C"
	case score >= 20:
		return "D"
	default:
		return "E"
	}
}

// AggregateScores is the weighted-average outcome over a pantry's items.
// Nil score means no item contributed one.
type AggregateScores struct {
	NutritionScore *float64
	NutritionGrade *string
	EcoScore       *float64
	EcoGrade       *string
}

// computeAggregates folds the quantity-weighted averages over the items.
// Items missing one score still contribute to the other.
func computeAggregates(items []models.PantryItem) AggregateScores {
	var nutriSum, nutriWeight, ecoSum, ecoWeight decimal.Decimal

	for _, item := range items {
		qty := item.Quantity
		if item.Product.NutritionScore != nil {
			score := decimal.NewFromFloat(*item.Product.NutritionScore)
			nutriSum = nutriSum.Add(score.Mul(qty))
			nutriWeight = nutriWeight.Add(qty)
		}
		if item.Product.EcoscoreScore != nil {
			score := decimal.NewFromFloat(*item.Product.EcoscoreScore)
			ecoSum = ecoSum.Add(score.Mul(qty))
			ecoWeight = ecoWeight.Add(qty)
		}
	}

	var out AggregateScores
	if nutriWeight.IsPositive() {
		avg := nutriSum.Div(nutriWeight).Round(2).InexactFloat64()
		grade := NutritionGradeForScore(avg)
		out.NutritionScore = &avg
		out.NutritionGrade = &grade
	}
	if ecoWeight.IsPositive() {
		avg := ecoSum.Div(ecoWeight).Round(2).InexactFloat64()
		grade := EcoGradeForScore(avg)
		out.EcoScore = &avg
		out.EcoGrade = &grade
	}
	return out
}

// PantryService maintains per-user pantry contents and the cached aggregate
// nutrition/eco grades.
type PantryService struct {
	db *gorm.DB
}

func NewPantryService(db *gorm.DB) *PantryService {
	return &PantryService{db: db}
}

func (s *PantryService) GetPantry(userID uint) (*models.Pantry, error) {
	var pantry models.Pantry
	err := s.db.Where("user_id = ?", userID).First(&pantry).Error
	if err != nil {
		return nil, fmt.Errorf("pantry not found for user %d: %w", userID, err)
	}
	return &pantry, nil
}

// AddItem creates the (pantry, product) row with the given quantity, or
// atomically increments the existing one. A retried add will double-increment;
// callers are expected to dedupe.
func (s *PantryService) AddItem(userID uint, productCode string, quantity decimal.Decimal) (*models.PantryItem, error) {
	if !quantity.IsPositive() {
		return nil, &ValidationError{Msg: "quantity must be positive"}
	}

	pantry, err := s.GetPantry(userID)
	if err != nil {
		return nil, err
	}

	var product models.Product
	if err := s.db.Where("code = ?", productCode).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	item := models.PantryItem{
		PantryID:  pantry.ID,
		ProductID: product.ID,
		Quantity:  quantity,
	}
	// Single transactional step so concurrent adds never lose an increment.
	err = s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "pantry_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("pantry_items.quantity + ?", quantity),
			"updated_at": gorm.Expr("NOW()"),
		}),
	}).Create(&item).Error
	if err != nil {
		return nil, fmt.Errorf("failed to add pantry item: %w", err)
	}

	var saved models.PantryItem
	if err := s.db.Preload("Product").
		Where("pantry_id = ? AND product_id = ?", pantry.ID, product.ID).
		First(&saved).Error; err != nil {
		return nil, err
	}
	return &saved, nil
}

// RemoveItem decrements the item's quantity; a result of zero or below
// deletes the row outright.
func (s *PantryService) RemoveItem(userID, itemID uint, quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return &ValidationError{Msg: "quantity must be positive"}
	}

	pantry, err := s.GetPantry(userID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var item models.PantryItem
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND pantry_id = ?", itemID, pantry.ID).
			First(&item).Error
		if err != nil {
			return err
		}

		remaining := item.Quantity.Sub(quantity)
		if remaining.IsPositive() {
			return tx.Model(&item).Update("quantity", remaining).Error
		}
		// Hard delete: a soft-deleted row would keep occupying the
		// (pantry, product) unique slot and block re-adding the product.
		return tx.Unscoped().Delete(&item).Error
	})
}

// SetExpiration stamps an expiration date on an existing item.
func (s *PantryService) SetExpiration(itemID uint, expiration time.Time) error {
	return s.db.Model(&models.PantryItem{}).
		Where("id = ?", itemID).
		Update("expiration_date", expiration).Error
}

// ListItems returns the pantry's items with products preloaded, in insertion
// order.
func (s *PantryService) ListItems(userID uint) ([]models.PantryItem, error) {
	pantry, err := s.GetPantry(userID)
	if err != nil {
		return nil, err
	}
	var items []models.PantryItem
	err = s.db.Preload("Product").
		Where("pantry_id = ?", pantry.ID).
		Order("id").
		Find(&items).Error
	return items, err
}

// ComputeAggregateScores recomputes the weighted nutrition/eco aggregates and
// persists them on the pantry. Returns the fresh values.
func (s *PantryService) ComputeAggregateScores(userID uint) (*AggregateScores, error) {
	pantry, err := s.GetPantry(userID)
	if err != nil {
		return nil, err
	}

	var items []models.PantryItem
	if err := s.db.Preload("Product").Where("pantry_id = ?", pantry.ID).Find(&items).Error; err != nil {
		return nil, err
	}

	agg := computeAggregates(items)
	err = s.db.Model(pantry).
		Select("nutrition_score", "nutrition_grade", "eco_score", "eco_grade").
		Updates(map[string]interface{}{
			"nutrition_score": agg.NutritionScore,
			"nutrition_grade": agg.NutritionGrade,
			"eco_score":       agg.EcoScore,
			"eco_grade":       agg.EcoGrade,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to persist aggregate scores: %w", err)
	}
	return &agg, nil
}
