package controllers

import (
	"net/http"
	"strconv"

	"github.com/mnmfullmetal/savor/services"

	"github.com/gin-gonic/gin"
)

// GET /recipes — latest suggestions, recent history and saved recipes.
func GetRecipes(c *gin.Context) {
	userID := c.GetUint("userID")

	lists, err := services.Recipes.ListForUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, lists)
}

// POST /recipes/suggestions/seen — the user has viewed the latest batch.
func MarkSuggestionsSeen(c *gin.Context) {
	if err := services.Recipes.MarkSuggestionsViewed(c.GetUint("userID")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /recipes/suggestions/:id/save
func SaveSuggestion(c *gin.Context) {
	userID := c.GetUint("userID")

	suggestionID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid suggestion id"})
		return
	}

	saved, err := services.Recipes.SaveSuggestion(userID, uint(suggestionID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, saved)
}

// GET /recipes/status — whether a generation is pending or running, for the
// loading indicator.
func GenerationStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"in_progress": services.Scheduler.InProgress(c.GetUint("userID")),
	})
}
