package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/mnmfullmetal/savor/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AddPantryItemInput struct {
	ProductCode    string  `json:"product_code" binding:"required"`
	Quantity       string  `json:"quantity" binding:"required"`
	ExpirationDate *string `json:"expiration_date"` // YYYY-MM-DD
}

// POST /pantry/items
func AddPantryItem(c *gin.Context) {
	userID := c.GetUint("userID")

	var input AddPantryItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	qty, err := decimal.NewFromString(input.Quantity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quantity"})
		return
	}

	item, err := services.Pantries.AddItem(userID, input.ProductCode, qty)
	if err != nil {
		renderPantryError(c, err)
		return
	}

	if input.ExpirationDate != nil {
		if exp, perr := time.Parse("2006-01-02", *input.ExpirationDate); perr == nil {
			item.ExpirationDate = &exp
			_ = services.Pantries.SetExpiration(item.ID, exp)
		}
	}

	// Pantry changed: debounce a fresh generation run.
	services.Scheduler.Trigger(userID)

	c.JSON(http.StatusCreated, item)
}

type RemovePantryItemInput struct {
	Quantity string `json:"quantity" binding:"required"`
}

// DELETE /pantry/items/:id
func RemovePantryItem(c *gin.Context) {
	userID := c.GetUint("userID")

	itemID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	var input RemovePantryItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	qty, err := decimal.NewFromString(input.Quantity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quantity"})
		return
	}

	if err := services.Pantries.RemoveItem(userID, uint(itemID), qty); err != nil {
		renderPantryError(c, err)
		return
	}

	services.Scheduler.Trigger(userID)

	c.Status(http.StatusNoContent)
}

// GET /pantry — items plus the freshly recomputed aggregate grades.
func GetPantry(c *gin.Context) {
	userID := c.GetUint("userID")

	items, err := services.Pantries.ListItems(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	scores, err := services.Pantries.ComputeAggregateScores(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"aggregate_scores": gin.H{
			"nutrition_score": scores.NutritionScore,
			"nutrition_grade": scores.NutritionGrade,
			"eco_score":       scores.EcoScore,
			"eco_grade":       scores.EcoGrade,
		},
	})
}

func renderPantryError(c *gin.Context, err error) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
	case errors.Is(err, services.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "pantry item not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
