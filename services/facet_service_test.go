package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFacetFetcher struct {
	data  map[string]*FacetData
	err   error
	calls int
}

func (f *fakeFacetFetcher) FetchFacet(facetName, languageCode string) (*FacetData, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if d, ok := f.data[cacheKey(facetName, languageCode)]; ok {
		return d, nil
	}
	return &FacetData{}, nil
}

func allergenFixture() *FacetData {
	return &FacetData{Tags: []FacetTag{
		{ID: "en:milk", Name: "Milk", Known: 1},
		{ID: "en:gluten", Name: "Gluten", Known: 1},
	}}
}

func TestFacetLocaliseMapsNames(t *testing.T) {
	fetcher := &fakeFacetFetcher{data: map[string]*FacetData{
		cacheKey("allergens", "en"): allergenFixture(),
	}}
	svc := NewFacetService(nil, fetcher)

	names := svc.Localise([]string{"en:milk", "en:gluten"}, "allergens", "en")
	assert.Equal(t, []string{"Milk", "Gluten"}, names)
}

func TestFacetLocaliseFallsBackToRawID(t *testing.T) {
	fetcher := &fakeFacetFetcher{data: map[string]*FacetData{
		cacheKey("allergens", "en"): allergenFixture(),
	}}
	svc := NewFacetService(nil, fetcher)

	names := svc.Localise([]string{"en:milk", "en:unknown-tag"}, "allergens", "en")
	assert.Equal(t, []string{"Milk", "en:unknown-tag"}, names)
}

func TestFacetCacheAvoidsRepeatFetches(t *testing.T) {
	fetcher := &fakeFacetFetcher{data: map[string]*FacetData{
		cacheKey("allergens", "en"): allergenFixture(),
	}}
	svc := NewFacetService(nil, fetcher)

	first := svc.GetFacet("allergens", "en")
	require.NotNil(t, first)
	second := svc.GetFacet("allergens", "en")
	require.NotNil(t, second)

	assert.Equal(t, 1, fetcher.calls)
}

func TestFacetCacheIsPerLanguage(t *testing.T) {
	fetcher := &fakeFacetFetcher{data: map[string]*FacetData{
		cacheKey("allergens", "en"): allergenFixture(),
		cacheKey("allergens", "fr"): {Tags: []FacetTag{{ID: "en:milk", Name: "Lait", Known: 1}}},
	}}
	svc := NewFacetService(nil, fetcher)

	assert.Equal(t, []string{"Milk"}, svc.Localise([]string{"en:milk"}, "allergens", "en"))
	assert.Equal(t, []string{"Lait"}, svc.Localise([]string{"en:milk"}, "allergens", "fr"))
	assert.Equal(t, 2, fetcher.calls)
}

func TestFacetFetchFailureDegradesGracefully(t *testing.T) {
	fetcher := &fakeFacetFetcher{err: errors.New("connection refused")}
	svc := NewFacetService(nil, fetcher)

	assert.Nil(t, svc.GetFacet("allergens", "en"))
	// a failed lookup still falls back to raw ids
	names := svc.Localise([]string{"en:milk"}, "allergens", "en")
	assert.Equal(t, []string{"en:milk"}, names)
}

func TestFacetLanguagesFilteredToKnown(t *testing.T) {
	fetcher := &fakeFacetFetcher{data: map[string]*FacetData{
		cacheKey("languages", "en"): {Tags: []FacetTag{
			{ID: "en:english", Name: "English", Known: 1},
			{ID: "en:klingon", Name: "Klingon", Known: 0},
		}},
	}}
	svc := NewFacetService(nil, fetcher)

	data := svc.GetFacet("languages", "en")
	require.NotNil(t, data)
	require.Len(t, data.Tags, 1)
	assert.Equal(t, "en:english", data.Tags[0].ID)
}

func TestFacetSeedingPersistsReferenceRows(t *testing.T) {
	db := setupTestDB(t)
	fetcher := &fakeFacetFetcher{data: map[string]*FacetData{
		cacheKey("allergens", "en"): {Tags: []FacetTag{
			{ID: "en:milk", Name: "Milk", Known: 1},
			{ID: "fr:lait-cru", Name: "Lait cru", Known: 1}, // non-en prefix skipped
			{ID: "en:obscure", Name: "Obscure", Known: 0},   // unknown skipped
		}},
		cacheKey("labels", "en"): {Tags: []FacetTag{
			{ID: "en:vegan", Name: "Vegan", Known: 1},
			{ID: "en:organic", Name: "Organic", Known: 1}, // not a dietary tag
		}},
	}}
	svc := NewFacetService(db, fetcher)

	svc.RefreshAll()

	var allergenCount, reqCount int64
	db.Table("allergens").Count(&allergenCount)
	db.Table("dietary_requirements").Count(&reqCount)
	assert.Equal(t, int64(1), allergenCount)
	assert.Equal(t, int64(1), reqCount)

	// refreshing again stays idempotent
	svc.RefreshAll()
	db.Table("allergens").Count(&allergenCount)
	assert.Equal(t, int64(1), allergenCount)
}
