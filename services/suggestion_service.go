package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// RecipeIngredient is one declared ingredient of an AI recipe candidate.
type RecipeIngredient struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
	Unit     string `json:"unit"`
}

// RecipeCandidate is one structured recipe from the suggestion service.
type RecipeCandidate struct {
	Title        string             `json:"title"`
	Ingredients  []RecipeIngredient `json:"ingredients"`
	Instructions []string           `json:"instructions"`
}

// RecipeSuggester is the opaque AI collaborator. An empty slice is a valid
// "no suggestions" outcome, distinct from an error.
type RecipeSuggester interface {
	Suggest(productNames []string, count int) ([]RecipeCandidate, error)
}

// SuggestionService calls the recipe generation API over HTTP.
type SuggestionService struct {
	client *http.Client
	apiURL string
	token  string
}

func NewSuggestionService() *SuggestionService {
	return &SuggestionService{
		client: &http.Client{Timeout: 30 * time.Second}, // generation is slow
		apiURL: os.Getenv("RECIPE_API_URL"),
		token:  os.Getenv("RECIPE_API_TOKEN"),
	}
}

func (s *SuggestionService) Suggest(productNames []string, count int) ([]RecipeCandidate, error) {
	if s.apiURL == "" {
		return nil, fmt.Errorf("RECIPE_API_URL not set")
	}

	payload := map[string]interface{}{
		"ingredients": productNames,
		"count":       count,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal suggestion payload: %w", err)
	}

	req, err := http.NewRequest("POST", s.apiURL, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("failed to create suggestion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("suggestion request error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read suggestion response error: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("suggestion api error (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("suggestion api error (%d): %s", resp.StatusCode, string(body))
	}

	var out struct {
		Recipes []RecipeCandidate `json:"recipes"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode suggestion response error: %w", err)
	}

	// Drop candidates with no usable structure rather than failing the batch.
	recipes := make([]RecipeCandidate, 0, len(out.Recipes))
	for _, r := range out.Recipes {
		if r.Title == "" || len(r.Ingredients) == 0 {
			continue
		}
		recipes = append(recipes, r)
	}
	return recipes, nil
}
