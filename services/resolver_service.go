package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/mnmfullmetal/savor/models"
)

// ProductSource is the external catalog seen by the resolver.
type ProductSource interface {
	FetchByCode(clientKey, barcode string) (*ProductRecord, error)
	SearchByName(clientKey, name, languageTag string, page int) (*SearchResult, error)
	AdvancedSearch(clientKey string, p AdvancedSearchParams, languageTag string, page int) (*SearchResult, error)
}

// productStore is the local cache seen by the resolver.
type productStore interface {
	FindByCode(code string) (*models.Product, error)
	Search(c StoreSearchCriteria) ([]models.Product, error)
	Upsert(rec ProductRecord) (*models.Product, error)
}

// Localiser resolves facet tag ids to display names.
type Localiser interface {
	Localise(tagIDs []string, facet, languageCode string) []string
}

// ResolveCriteria is one of: barcode lookup, name search, or advanced
// (tag-filtered) search. Page applies to the search kinds only.
type ResolveCriteria struct {
	Barcode  string
	Name     string
	Country  string
	Brand    string
	Category string
	Page     int
}

func (c ResolveCriteria) isBarcode() bool { return c.Barcode != "" }

func (c ResolveCriteria) isAdvanced() bool {
	return !c.isBarcode() && (c.Country != "" || c.Brand != "" || c.Category != "")
}

// Validate rejects malformed criteria before any I/O.
func (c ResolveCriteria) Validate() error {
	if c.Barcode == "" && c.Name == "" && c.Country == "" && c.Brand == "" && c.Category == "" {
		return &ValidationError{Msg: "search criteria required"}
	}
	if c.Barcode != "" && (c.Name != "" || c.Country != "" || c.Brand != "" || c.Category != "") {
		return &ValidationError{Msg: "barcode cannot be combined with other criteria"}
	}
	if c.Page < 0 {
		return &ValidationError{Msg: "page must be positive"}
	}
	return nil
}

// ResolvedProduct is a product decorated with per-request annotations. The
// annotations are computed fresh on every request and never persisted.
type ResolvedProduct struct {
	models.Product

	IsFavourited         bool     `json:"is_favourited"`
	HasAllergenConflict  bool     `json:"has_allergen_conflict"`
	ConflictingAllergens []string `json:"conflicting_allergens"`
	HasDietaryMismatch   bool     `json:"has_dietary_mismatch"`
	MissingDietaryTags   []string `json:"missing_dietary_tags"`
}

// ResolveResult carries a page of annotated products. For local results the
// pagination fields are synthesized as a single page.
type ResolveResult struct {
	Products  []ResolvedProduct `json:"products"`
	Count     int               `json:"count"`
	Page      int               `json:"page"`
	PageSize  int               `json:"page_size"`
	PageCount int               `json:"page_count"`
	Source    string            `json:"source"` // "local" or "external"
}

// annotationContext is the per-request user state annotations are computed
// against.
type annotationContext struct {
	favouriteCodes map[string]bool
	allergenTags   []string
	requiredTags   []string
	languageCode   string
}

// annotateProduct computes the decoration for one product. Pure: the stored
// entity is copied, never mutated.
func annotateProduct(p models.Product, actx annotationContext, loc Localiser) ResolvedProduct {
	out := ResolvedProduct{Product: p}
	out.IsFavourited = actx.favouriteCodes[p.Code]

	productAllergens := splitTags(p.AllergensTags)
	var conflicts []string
	for _, tag := range actx.allergenTags {
		if productAllergens[tag] {
			conflicts = append(conflicts, tag)
		}
	}
	if len(conflicts) > 0 {
		out.HasAllergenConflict = true
		out.ConflictingAllergens = loc.Localise(conflicts, "allergens", actx.languageCode)
	}

	productLabels := splitTags(p.LabelsTags)
	var missing []string
	for _, tag := range actx.requiredTags {
		if !productLabels[tag] {
			missing = append(missing, tag)
		}
	}
	if len(missing) > 0 {
		out.HasDietaryMismatch = true
		out.MissingDietaryTags = loc.Localise(missing, "labels", actx.languageCode)
	}
	return out
}

func splitTags(joined string) map[string]bool {
	tags := make(map[string]bool)
	for _, t := range strings.Split(joined, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags[t] = true
		}
	}
	return tags
}

// ResolverService orchestrates store-first, source-fallback product lookup.
type ResolverService struct {
	db     *gorm.DB
	store  productStore
	source ProductSource
	loc    Localiser
}

func NewResolverService(db *gorm.DB, store productStore, source ProductSource, loc Localiser) *ResolverService {
	return &ResolverService{db: db, store: store, source: source, loc: loc}
}

func (s *ResolverService) loadAnnotationContext(userID uint) annotationContext {
	actx := annotationContext{favouriteCodes: make(map[string]bool)}
	if userID == 0 {
		return actx
	}

	var user models.User
	if err := s.db.Preload("FavouritedProducts").First(&user, userID).Error; err == nil {
		for _, p := range user.FavouritedProducts {
			actx.favouriteCodes[p.Code] = true
		}
	}

	var settings models.UserSettings
	err := s.db.Preload("Allergens").Preload("DietaryRequirements").
		Where("user_id = ?", userID).First(&settings).Error
	if err == nil {
		for _, a := range settings.Allergens {
			actx.allergenTags = append(actx.allergenTags, a.APITag)
		}
		for _, r := range settings.DietaryRequirements {
			actx.requiredTags = append(actx.requiredTags, r.APITag)
		}
		actx.languageCode = LanguageCodeMap[settings.LanguagePreference]
	}
	return actx
}

func (s *ResolverService) languageTag(userID uint) string {
	if userID == 0 {
		return ""
	}
	var settings models.UserSettings
	err := s.db.Where("user_id = ?", userID).First(&settings).Error
	if err != nil || !settings.GetOnlyLocalisedResults {
		return ""
	}
	return settings.LanguagePreference
}

// Resolve runs the full pipeline: local lookup, external fallback on miss,
// normalize & persist, annotate. Local hits never contact the external
// source, deliberately trading staleness for API load.
func (s *ResolverService) Resolve(userID uint, clientKey string, criteria ResolveCriteria) (*ResolveResult, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}
	if criteria.isBarcode() {
		return s.resolveBarcode(userID, clientKey, criteria.Barcode)
	}
	return s.resolveSearch(userID, clientKey, criteria)
}

func (s *ResolverService) resolveBarcode(userID uint, clientKey, barcode string) (*ResolveResult, error) {
	product, err := s.store.FindByCode(barcode)
	if err == nil {
		return s.localResult(userID, []models.Product{*product}), nil
	}
	if !errors.Is(err, ErrProductNotFound) {
		return nil, err
	}

	rec, err := s.source.FetchByCode(clientKey, barcode)
	if err != nil {
		// Nothing local to fall back to for a barcode miss.
		return nil, err
	}

	stored, err := s.store.Upsert(*rec)
	if err != nil {
		return nil, fmt.Errorf("failed to persist resolved product: %w", err)
	}
	res := s.localResult(userID, []models.Product{*stored})
	res.Source = "external"
	return res, nil
}

func (s *ResolverService) resolveSearch(userID uint, clientKey string, criteria ResolveCriteria) (*ResolveResult, error) {
	local, err := s.store.Search(StoreSearchCriteria{
		Name:     criteria.Name,
		Country:  criteria.Country,
		Category: criteria.Category,
		Brand:    criteria.Brand,
	})
	if err != nil {
		return nil, err
	}
	if len(local) > 0 {
		return s.localResult(userID, local), nil
	}

	langTag := s.languageTag(userID)
	var external *SearchResult
	if criteria.isAdvanced() {
		external, err = s.source.AdvancedSearch(clientKey, AdvancedSearchParams{
			SearchTerm: criteria.Name,
			Country:    criteria.Country,
			Brand:      criteria.Brand,
			Category:   criteria.Category,
		}, langTag, criteria.Page)
	} else {
		external, err = s.source.SearchByName(clientKey, criteria.Name, langTag, criteria.Page)
	}
	if err != nil {
		// No local rows matched, so there is no fallback.
		return nil, err
	}

	actx := s.loadAnnotationContext(userID)
	result := &ResolveResult{
		Count:     external.Count,
		Page:      external.Page,
		PageSize:  external.PageSize,
		PageCount: external.PageCount,
		Source:    "external",
	}
	if result.PageSize == 0 {
		result.PageSize = searchPageSize
	}
	if result.PageCount == 0 && result.PageSize > 0 {
		result.PageCount = (result.Count + result.PageSize - 1) / result.PageSize
	}
	if result.Page == 0 {
		result.Page = 1
	}

	for _, rec := range external.Records {
		if rec.Code == "" {
			continue
		}
		stored, err := s.store.Upsert(rec)
		if err != nil {
			return nil, fmt.Errorf("failed to persist resolved product: %w", err)
		}
		result.Products = append(result.Products, annotateProduct(*stored, actx, s.loc))
	}
	return result, nil
}

// localResult annotates store rows and synthesizes single-page pagination.
func (s *ResolverService) localResult(userID uint, products []models.Product) *ResolveResult {
	actx := s.loadAnnotationContext(userID)
	result := &ResolveResult{
		Count:     len(products),
		Page:      1,
		PageSize:  len(products),
		PageCount: 1,
		Source:    "local",
	}
	for _, p := range products {
		result.Products = append(result.Products, annotateProduct(p, actx, s.loc))
	}
	return result
}
