package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnmfullmetal/savor/models"
)

func scoredItem(nutri, eco *float64, qty int64) models.PantryItem {
	return models.PantryItem{
		Quantity: decimal.NewFromInt(qty),
		Product: models.Product{
			NutritionScore: nutri,
			EcoscoreScore:  eco,
		},
	}
}

func TestComputeAggregatesWeightsByQuantity(t *testing.T) {
	items := []models.PantryItem{
		scoredItem(fptr(10), nil, 2),
		scoredItem(fptr(20), nil, 1),
	}

	agg := computeAggregates(items)

	require.NotNil(t, agg.NutritionScore)
	// (10*2 + 20*1) / 3 = 13.33
	assert.Equal(t, 13.33, *agg.NutritionScore)
	assert.Equal(t, "D", *agg.NutritionGrade)
	assert.Nil(t, agg.EcoScore)
	assert.Nil(t, agg.EcoGrade)
}

func TestComputeAggregatesNoScoredItems(t *testing.T) {
	items := []models.PantryItem{
		scoredItem(nil, nil, 3),
		scoredItem(nil, nil, 1),
	}

	agg := computeAggregates(items)

	assert.Nil(t, agg.NutritionScore)
	assert.Nil(t, agg.NutritionGrade)
	assert.Nil(t, agg.EcoScore)
	assert.Nil(t, agg.EcoGrade)
}

func TestComputeAggregatesIndependentContributions(t *testing.T) {
	// one item carries only a nutrition score, the other only an eco score;
	// each aggregate is weighted over its own contributors
	items := []models.PantryItem{
		scoredItem(fptr(-2), nil, 1),
		scoredItem(nil, fptr(90), 4),
	}

	agg := computeAggregates(items)

	require.NotNil(t, agg.NutritionScore)
	assert.Equal(t, -2.0, *agg.NutritionScore)
	assert.Equal(t, "A", *agg.NutritionGrade)

	require.NotNil(t, agg.EcoScore)
	assert.Equal(t, 90.0, *agg.EcoScore)
	assert.Equal(t, "A", *agg.EcoGrade)
}

func TestComputeAggregatesEmpty(t *testing.T) {
	agg := computeAggregates(nil)
	assert.Nil(t, agg.NutritionScore)
	assert.Nil(t, agg.EcoScore)
}

func TestNutritionGradeLadder(t *testing.T) {
	cases := []struct {
		score float64
		grade string
	}{
		{-5, "A"}, {-1, "A"},
		{-0.5, "B"}, {2, "B"},
		{2.1, "C"}, {10, "C"},
		{10.5, "D"}, {18, "D"},
		{18.5, "E"}, {40, "E"},
	}
	for _, c := range cases {
		assert.Equal(t, c.grade, NutritionGradeForScore(c.score), "score %v", c.score)
	}
}

func TestEcoGradeLadder(t *testing.T) {
	cases := []struct {
		score float64
		grade string
	}{
		{100, "A"}, {80, "A"},
		{79.9, "B"}, {60, "B"},
		{59, "C"}, {40, "C"},
		{39, "D"}, {20, "D"},
		{19, "E"}, {0, "E"},
	}
	for _, c := range cases {
		assert.Equal(t, c.grade, EcoGradeForScore(c.score), "score %v", c.score)
	}
}

func TestPantryAddItemIncrementsExisting(t *testing.T) {
	db := setupTestDB(t)
	user, _ := createTestUserWithPantry(t, db)
	svc := NewPantryService(db)

	product := models.Product{Code: "111", ProductName: "Lentils"}
	require.NoError(t, db.Create(&product).Error)

	item, err := svc.AddItem(user.ID, "111", decimal.NewFromInt(2))
	require.NoError(t, err)
	assert.True(t, item.Quantity.Equal(decimal.NewFromInt(2)))

	// adding the same product again sums quantities instead of duplicating
	item, err = svc.AddItem(user.ID, "111", decimal.NewFromInt(3))
	require.NoError(t, err)
	assert.True(t, item.Quantity.Equal(decimal.NewFromInt(5)))

	var count int64
	db.Model(&models.PantryItem{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestPantryAddItemValidation(t *testing.T) {
	db := setupTestDB(t)
	user, _ := createTestUserWithPantry(t, db)
	svc := NewPantryService(db)

	_, err := svc.AddItem(user.ID, "111", decimal.Zero)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = svc.AddItem(user.ID, "does-not-exist", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestPantryRemoveItem(t *testing.T) {
	db := setupTestDB(t)
	user, _ := createTestUserWithPantry(t, db)
	svc := NewPantryService(db)

	product := models.Product{Code: "222", ProductName: "Chickpeas"}
	require.NoError(t, db.Create(&product).Error)

	item, err := svc.AddItem(user.ID, "222", decimal.NewFromInt(5))
	require.NoError(t, err)

	require.NoError(t, svc.RemoveItem(user.ID, item.ID, decimal.NewFromInt(2)))

	var saved models.PantryItem
	require.NoError(t, db.First(&saved, item.ID).Error)
	assert.True(t, saved.Quantity.Equal(decimal.NewFromInt(3)))

	// removing at least the remaining quantity deletes the row
	require.NoError(t, svc.RemoveItem(user.ID, item.ID, decimal.NewFromInt(10)))
	err = db.First(&saved, item.ID).Error
	assert.Error(t, err)
}

func TestPantryReAddAfterFullRemove(t *testing.T) {
	db := setupTestDB(t)
	user, _ := createTestUserWithPantry(t, db)
	svc := NewPantryService(db)

	product := models.Product{Code: "223", ProductName: "Black Beans"}
	require.NoError(t, db.Create(&product).Error)

	item, err := svc.AddItem(user.ID, "223", decimal.NewFromInt(2))
	require.NoError(t, err)
	require.NoError(t, svc.RemoveItem(user.ID, item.ID, decimal.NewFromInt(2)))

	// the deletion must vacate the (pantry, product) slot entirely,
	// including for unscoped queries, or this add comes back empty-handed
	var count int64
	db.Unscoped().Model(&models.PantryItem{}).Where("product_id = ?", product.ID).Count(&count)
	assert.Equal(t, int64(0), count)

	readded, err := svc.AddItem(user.ID, "223", decimal.NewFromInt(3))
	require.NoError(t, err)
	assert.True(t, readded.Quantity.Equal(decimal.NewFromInt(3)))
	assert.False(t, readded.DeletedAt.Valid)
}

func TestPantryComputeAggregateScoresPersists(t *testing.T) {
	db := setupTestDB(t)
	user, pantry := createTestUserWithPantry(t, db)
	svc := NewPantryService(db)

	a := models.Product{Code: "331", ProductName: "Soup", NutritionScore: fptr(4), EcoscoreScore: fptr(70)}
	b := models.Product{Code: "332", ProductName: "Crisps", NutritionScore: fptr(20)}
	require.NoError(t, db.Create(&a).Error)
	require.NoError(t, db.Create(&b).Error)

	_, err := svc.AddItem(user.ID, "331", decimal.NewFromInt(1))
	require.NoError(t, err)
	_, err = svc.AddItem(user.ID, "332", decimal.NewFromInt(1))
	require.NoError(t, err)

	agg, err := svc.ComputeAggregateScores(user.ID)
	require.NoError(t, err)
	require.NotNil(t, agg.NutritionScore)
	assert.Equal(t, 12.0, *agg.NutritionScore)
	assert.Equal(t, "D", *agg.NutritionGrade)
	require.NotNil(t, agg.EcoScore)
	assert.Equal(t, 70.0, *agg.EcoScore)
	assert.Equal(t, "B", *agg.EcoGrade)

	var fresh models.Pantry
	require.NoError(t, db.First(&fresh, pantry.ID).Error)
	require.NotNil(t, fresh.NutritionScore)
	assert.Equal(t, 12.0, *fresh.NutritionScore)
	require.NotNil(t, fresh.EcoGrade)
	assert.Equal(t, "B", *fresh.EcoGrade)
}
