package services

import (
	"gorm.io/gorm"
)

// Shared service instances wired once at startup. The scheduler and hub hold
// state (timers, sockets) and must be process-wide singletons.
var (
	Source    *OFFService
	Store     *ProductStore
	Facets    *FacetService
	Resolver  *ResolverService
	Pantries  *PantryService
	Recipes   *RecipeService
	Scheduler *RecipeScheduler
	Hub       *RealtimeHub
)

func InitCore(db *gorm.DB) {
	Hub = NewRealtimeHub()
	Source = NewOFFService()
	Store = NewProductStore(db)
	Facets = NewFacetService(db, Source)
	Resolver = NewResolverService(db, Store, Source, Facets)
	Pantries = NewPantryService(db)
	Recipes = NewRecipeService(db, NewSuggestionService(), Hub)
	Scheduler = NewRecipeScheduler(Recipes, Hub, DefaultGenerationDelay, 4)
}
