package routes

import (
	"github.com/mnmfullmetal/savor/controllers"
	"github.com/mnmfullmetal/savor/middlewares"

	"github.com/gin-gonic/gin"
)

func SetupRouter() *gin.Engine {
	r := gin.Default()

	// Public auth routes
	auth := r.Group("/auth")
	{
		auth.POST("/register", controllers.Register)
		auth.POST("/login", controllers.Login)
	}

	api := r.Group("/")
	api.Use(middlewares.AuthMiddleware())
	{
		products := api.Group("/products")
		{
			products.GET("/search", controllers.SearchProducts)
			products.POST("/search/advanced", controllers.AdvancedSearchProducts)
			products.GET("/barcode/:code", controllers.LookupBarcode)
			products.GET("/suggestions", controllers.ProductSuggestions)
			products.POST("/:code/favourite", controllers.ToggleFavourite)
		}

		pantry := api.Group("/pantry")
		{
			pantry.GET("", controllers.GetPantry)
			pantry.POST("/items", controllers.AddPantryItem)
			pantry.DELETE("/items/:id", controllers.RemovePantryItem)
		}

		recipes := api.Group("/recipes")
		{
			recipes.GET("", controllers.GetRecipes)
			recipes.GET("/status", controllers.GenerationStatus)
			recipes.POST("/suggestions/seen", controllers.MarkSuggestionsSeen)
			recipes.POST("/suggestions/:id/save", controllers.SaveSuggestion)
		}

		api.GET("/settings", controllers.GetSettings)
		api.PUT("/settings", controllers.UpdateSettings)
		api.GET("/ws", controllers.SuggestionEventsWS)
	}

	return r
}
