package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mnmfullmetal/savor/services"

	"github.com/gin-gonic/gin"
)

func clientKey(c *gin.Context) string {
	if uid := c.GetUint("userID"); uid != 0 {
		return fmt.Sprintf("user:%d", uid)
	}
	return "ip:" + c.ClientIP()
}

// renderResolveError maps the resolver's error taxonomy onto HTTP statuses.
func renderResolveError(c *gin.Context, err error) {
	var rl *services.RateLimitedError
	var te *services.TransportError
	var ve *services.ValidationError

	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
	case errors.As(err, &rl):
		c.Header("Retry-After", strconv.Itoa(int(rl.RetryAfter.Seconds())+1))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "Too Many Requests",
			"message":     "You have exceeded the search rate limit. Please wait a moment and try again.",
			"retry_after": rl.RetryAfter.Seconds(),
		})
	case errors.Is(err, services.ErrProductNotFound):
		// A miss everywhere is an empty result, not an error state.
		c.JSON(http.StatusOK, services.ResolveResult{Products: nil, PageCount: 1, Page: 1})
	case errors.As(err, &te):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "product source unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// GET /products/search?q=oats&page=2
func SearchProducts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	criteria := services.ResolveCriteria{
		Name: c.Query("q"),
		Page: page,
	}

	result, err := services.Resolver.Resolve(c.GetUint("userID"), clientKey(c), criteria)
	if err != nil {
		renderResolveError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GET /products/barcode/:code
func LookupBarcode(c *gin.Context) {
	criteria := services.ResolveCriteria{Barcode: c.Param("code")}

	result, err := services.Resolver.Resolve(c.GetUint("userID"), clientKey(c), criteria)
	if err != nil {
		renderResolveError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type AdvancedSearchInput struct {
	Name     string `json:"name"`
	Country  string `json:"country"`
	Brand    string `json:"brand"`
	Category string `json:"category"`
	Page     int    `json:"page"`
}

// POST /products/search/advanced
func AdvancedSearchProducts(c *gin.Context) {
	var input AdvancedSearchInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	criteria := services.ResolveCriteria{
		Name:     input.Name,
		Country:  input.Country,
		Brand:    input.Brand,
		Category: input.Category,
		Page:     input.Page,
	}
	result, err := services.Resolver.Resolve(c.GetUint("userID"), clientKey(c), criteria)
	if err != nil {
		renderResolveError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GET /products/suggestions?q=toma — search-as-you-type ingredient names.
func ProductSuggestions(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing 'q' query param"})
		return
	}

	suggestions, err := services.Source.FetchSuggestions(clientKey(c), query, "")
	if err != nil {
		renderResolveError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

// POST /products/:code/favourite
func ToggleFavourite(c *gin.Context) {
	favourited, err := services.ToggleFavourite(c.GetUint("userID"), c.Param("code"))
	if err != nil {
		if errors.Is(err, services.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"favourited": favourited})
}
