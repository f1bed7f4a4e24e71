package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mnmfullmetal/savor/models"
)

// A pantry below this many items cannot support a meaningful recipe.
const MinPantryItemsForRecipe = 4

const suggestionsPerRun = 3

// Suggestions sitting in "recent" longer than this are swept to "deleted".
const recentRetention = 12 * time.Hour

// eventBroadcaster is the realtime hub slice the recipe pipeline needs.
type eventBroadcaster interface {
	Broadcast(userID uint, event SuggestionEvent)
}

// RecipeService owns the suggestion lifecycle: generation, the new→recent
// promotion, the retention sweep, and promotion to saved recipes.
type RecipeService struct {
	db        *gorm.DB
	suggester RecipeSuggester
	hub       eventBroadcaster
}

func NewRecipeService(db *gorm.DB, suggester RecipeSuggester, hub eventBroadcaster) *RecipeService {
	return &RecipeService{db: db, suggester: suggester, hub: hub}
}

func (s *RecipeService) broadcast(userID uint, event SuggestionEvent) {
	if s.hub != nil {
		s.hub.Broadcast(userID, event)
	}
}

// GenerateForUser is the debounced job body. It always acts on the pantry
// state at execution time, not schedule time. stillCurrent is consulted
// before anything is written, so a stale in-flight job cannot clobber the
// results of a newer one.
func (s *RecipeService) GenerateForUser(userID uint, stillCurrent func() bool) error {
	var items []models.PantryItem
	err := s.db.Preload("Product").
		Joins("JOIN pantries ON pantries.id = pantry_items.pantry_id").
		Where("pantries.user_id = ?", userID).
		Find(&items).Error
	if err != nil {
		return fmt.Errorf("db error fetching pantry items: %w", err)
	}

	if len(items) < MinPantryItemsForRecipe {
		// A stale skip-job must not delete suggestions a newer run wrote.
		if !stillCurrent() {
			log.Printf("discarding stale recipe generation for user %d", userID)
			return nil
		}
		// Nothing worth suggesting; clear any stale "new" suggestions.
		if err := s.DeleteNewSuggestions(userID); err != nil {
			return err
		}
		s.broadcast(userID, SuggestionEvent{Kind: EventSuggestionsSkipped})
		return ErrNotEnoughPantryItems
	}

	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Product.ProductName)
	}
	sort.Strings(names)

	candidates, err := s.suggester.Suggest(names, suggestionsPerRun)
	if err != nil {
		// A failed call keeps existing "new" suggestions in place: promotion
		// happens only after a generation attempt actually went through.
		return fmt.Errorf("suggestion service failed: %w", err)
	}

	if !stillCurrent() {
		log.Printf("discarding stale recipe generation for user %d", userID)
		return nil
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// Promote the previous batch out of the "latest" section. This runs
		// even for an empty result: the attempt succeeded, the old batch is
		// superseded.
		err := tx.Model(&models.SuggestedRecipe{}).
			Where("user_id = ? AND status = ?", userID, models.SuggestionStatusNew).
			Update("status", models.SuggestionStatusRecent).Error
		if err != nil {
			return err
		}

		for _, cand := range candidates {
			raw, err := json.Marshal(cand)
			if err != nil {
				return err
			}
			suggestion := models.SuggestedRecipe{
				UserID:       userID,
				Title:        cand.Title,
				RecipeData:   raw,
				Status:       models.SuggestionStatusNew,
				UsedProducts: matchUsedProducts(cand, items),
			}
			if err := tx.Create(&suggestion).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to persist suggestions: %w", err)
	}

	s.broadcast(userID, SuggestionEvent{Kind: EventSuggestionsReady, Count: len(candidates)})
	return nil
}

// matchUsedProducts links a candidate's declared ingredient names back to the
// user's products by exact name match.
func matchUsedProducts(cand RecipeCandidate, items []models.PantryItem) []models.Product {
	byName := make(map[string]models.Product, len(items))
	for _, item := range items {
		byName[item.Product.ProductName] = item.Product
	}

	var used []models.Product
	seen := make(map[uint]bool)
	for _, ing := range cand.Ingredients {
		if p, ok := byName[ing.Name]; ok && !seen[p.ID] {
			used = append(used, p)
			seen[p.ID] = true
		}
	}
	return used
}

// DeleteNewSuggestions marks all of the user's "new" suggestions deleted.
func (s *RecipeService) DeleteNewSuggestions(userID uint) error {
	return s.db.Model(&models.SuggestedRecipe{}).
		Where("user_id = ? AND status = ?", userID, models.SuggestionStatusNew).
		Update("status", models.SuggestionStatusDeleted).Error
}

// MarkSuggestionsViewed moves the user's "new" suggestions to "recent",
// called when the user has seen the suggestion list.
func (s *RecipeService) MarkSuggestionsViewed(userID uint) error {
	return s.db.Model(&models.SuggestedRecipe{}).
		Where("user_id = ? AND status = ?", userID, models.SuggestionStatusNew).
		Update("status", models.SuggestionStatusRecent).Error
}

// SweepRecentSuggestions is the periodic retention pass: "recent" rows older
// than the retention window go to "deleted". Returns how many moved.
func (s *RecipeService) SweepRecentSuggestions() (int64, error) {
	cutoff := time.Now().Add(-recentRetention)
	res := s.db.Model(&models.SuggestedRecipe{}).
		Where("status = ? AND created_at <= ?", models.SuggestionStatusRecent, cutoff).
		Update("status", models.SuggestionStatusDeleted)
	return res.RowsAffected, res.Error
}

// StartSweeper runs the retention sweep on the given interval until the stop
// channel closes.
func (s *RecipeService) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				count, err := s.SweepRecentSuggestions()
				if err != nil {
					log.Printf("suggestion sweep failed: %v", err)
				} else if count > 0 {
					log.Printf("suggestion sweep: %d recipes moved to deleted", count)
				}
			case <-stop:
				return
			}
		}
	}()
}

// SuggestionLists groups the recipe screen's three sections.
type SuggestionLists struct {
	LatestSuggestions []models.SuggestedRecipe `json:"latest_suggestions"`
	RecentlySuggested []models.SuggestedRecipe `json:"recently_suggested"`
	SavedRecipes      []models.SavedRecipe     `json:"saved_recipes"`
}

func (s *RecipeService) ListForUser(userID uint) (*SuggestionLists, error) {
	out := &SuggestionLists{}

	err := s.db.Preload("UsedProducts").
		Where("user_id = ? AND status = ?", userID, models.SuggestionStatusNew).
		Order("created_at DESC").
		Find(&out.LatestSuggestions).Error
	if err != nil {
		return nil, err
	}

	err = s.db.Preload("UsedProducts").
		Where("user_id = ? AND status IN ?", userID, []string{models.SuggestionStatusNew, models.SuggestionStatusRecent}).
		Order("created_at DESC").
		Find(&out.RecentlySuggested).Error
	if err != nil {
		return nil, err
	}

	err = s.db.Preload("Ingredients.Product").
		Where("user_id = ?", userID).
		Order("title").
		Find(&out.SavedRecipes).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SaveSuggestion promotes a suggestion into a permanent SavedRecipe with
// ingredients bound to the products it was generated from.
func (s *RecipeService) SaveSuggestion(userID, suggestionID uint) (*models.SavedRecipe, error) {
	var suggestion models.SuggestedRecipe
	err := s.db.Preload("UsedProducts").
		Where("id = ? AND user_id = ?", suggestionID, userID).
		First(&suggestion).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("suggestion not found")
		}
		return nil, err
	}

	var cand RecipeCandidate
	if err := json.Unmarshal(suggestion.RecipeData, &cand); err != nil {
		return nil, fmt.Errorf("failed to parse suggestion data: %w", err)
	}

	instructions, err := json.Marshal(cand.Instructions)
	if err != nil {
		return nil, err
	}

	productsByName := make(map[string]models.Product, len(suggestion.UsedProducts))
	for _, p := range suggestion.UsedProducts {
		productsByName[p.ProductName] = p
	}

	saved := models.SavedRecipe{
		UserID:       userID,
		Title:        cand.Title,
		Instructions: instructions,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&saved).Error; err != nil {
			return err
		}
		for _, ing := range cand.Ingredients {
			product, ok := productsByName[ing.Name]
			if !ok {
				continue // ingredient the user does not own
			}
			qty, qErr := decimal.NewFromString(ing.Quantity)
			if qErr != nil {
				qty = decimal.Zero
			}
			row := models.SavedRecipeIngredient{
				SavedRecipeID: saved.ID,
				ProductID:     product.ID,
				Quantity:      qty,
				Unit:          ing.Unit,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return tx.Model(&suggestion).Update("status", models.SuggestionStatusSaved).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save recipe: %w", err)
	}
	return &saved, nil
}
