package services

import (
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/mnmfullmetal/savor/models"
)

// Dietary label tags the settings screen cares about; everything else in the
// labels facet is marketing noise.
var relevantDietaryTags = []string{
	"en:halal", "en:kosher", "en:no-lactose", "en:vegan",
	"en:vegetarian", "en:no-gluten",
}

const facetCacheTTL = 7 * 24 * time.Hour

// FacetFetcher is the slice of the external adapter the facet service needs.
type FacetFetcher interface {
	FetchFacet(facetName, languageCode string) (*FacetData, error)
}

type cachedFacet struct {
	data      *FacetData
	fetchedAt time.Time
}

// FacetService caches facet listings per (facet, language) and resolves
// facet tag ids to localized display names.
type FacetService struct {
	mu      sync.RWMutex
	cache   map[string]cachedFacet
	fetcher FacetFetcher
	db      *gorm.DB
}

func NewFacetService(db *gorm.DB, fetcher FacetFetcher) *FacetService {
	return &FacetService{
		cache:   make(map[string]cachedFacet),
		fetcher: fetcher,
		db:      db,
	}
}

func cacheKey(facet, languageCode string) string {
	if languageCode == "" {
		languageCode = "en"
	}
	return facet + ":" + languageCode
}

// GetFacet returns the cached facet listing, fetching through the adapter
// when missing or stale. A fetch failure with stale data present degrades to
// the stale copy.
func (s *FacetService) GetFacet(facet, languageCode string) *FacetData {
	key := cacheKey(facet, languageCode)

	s.mu.RLock()
	entry, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < facetCacheTTL {
		return entry.data
	}

	data, err := s.fetcher.FetchFacet(facet, languageCode)
	if err != nil {
		log.Printf("facet fetch failed for %s: %v", key, err)
		if ok {
			return entry.data
		}
		return nil
	}

	if facet == "languages" {
		known := make([]FacetTag, 0, len(data.Tags))
		for _, tag := range data.Tags {
			if tag.Known == 1 {
				known = append(known, tag)
			}
		}
		data.Tags = known
	}

	s.mu.Lock()
	s.cache[key] = cachedFacet{data: data, fetchedAt: time.Now()}
	s.mu.Unlock()
	return data
}

// Localise maps facet tag ids to display names in the given language,
// falling back to the raw tag id when no cached translation exists.
func (s *FacetService) Localise(tagIDs []string, facet, languageCode string) []string {
	names := make([]string, 0, len(tagIDs))
	data := s.GetFacet(facet, languageCode)

	byID := make(map[string]string)
	if data != nil {
		for _, tag := range data.Tags {
			if tag.Name != "" {
				byID[tag.ID] = tag.Name
			}
		}
	}

	for _, id := range tagIDs {
		if name, ok := byID[id]; ok {
			names = append(names, name)
		} else {
			names = append(names, id)
		}
	}
	return names
}

// RefreshAll warms the default-language caches and seeds the allergen and
// dietary requirement reference rows from the facet data.
func (s *FacetService) RefreshAll() {
	for _, facet := range []string{"allergens", "labels", "languages", "brands", "countries", "categories"} {
		data := s.GetFacet(facet, "en")
		if data == nil {
			continue
		}
		switch facet {
		case "allergens":
			s.seedAllergens(data)
		case "labels":
			s.seedDietaryRequirements(data)
		}
	}
}

func (s *FacetService) seedAllergens(data *FacetData) {
	for _, tag := range data.Tags {
		if tag.ID == "" || tag.Name == "" || tag.Known != 1 {
			continue
		}
		if len(tag.ID) < 3 || tag.ID[:3] != "en:" {
			continue
		}
		err := s.db.Where(models.Allergen{APITag: tag.ID}).
			Attrs(models.Allergen{AllergenName: tag.Name}).
			FirstOrCreate(&models.Allergen{}).Error
		if err != nil {
			log.Printf("failed to seed allergen %s: %v", tag.ID, err)
		}
	}
}

func (s *FacetService) seedDietaryRequirements(data *FacetData) {
	relevant := make(map[string]bool, len(relevantDietaryTags))
	for _, t := range relevantDietaryTags {
		relevant[t] = true
	}
	for _, tag := range data.Tags {
		if !relevant[tag.ID] || tag.Name == "" {
			continue
		}
		err := s.db.Where(models.DietaryRequirement{APITag: tag.ID}).
			Attrs(models.DietaryRequirement{RequirementName: tag.Name}).
			FirstOrCreate(&models.DietaryRequirement{}).Error
		if err != nil {
			log.Printf("failed to seed dietary requirement %s: %v", tag.ID, err)
		}
	}
}

// StartRefresher refreshes the facet caches on the given interval until the
// stop channel closes.
func (s *FacetService) StartRefresher(interval time.Duration, stop <-chan struct{}) {
	go func() {
		s.RefreshAll()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.RefreshAll()
			case <-stop:
				return
			}
		}
	}()
}
