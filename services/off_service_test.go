package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOFFService(baseURL string) *OFFService {
	return &OFFService{
		baseURL:            baseURL,
		client:             &http.Client{Timeout: 2 * time.Second},
		barcodeLimiter:     newKeyedLimiter(100),
		nameLimiter:        newKeyedLimiter(100),
		advLimiter:         newKeyedLimiter(100),
		suggestionsLimiter: newKeyedLimiter(100),
		facetLimiter:       newKeyedLimiter(100),
	}
}

func TestFetchByCodeParsesProduct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/product/4000417025005.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		// nutriscore_score arrives as a string, product_quantity as a number
		w.Write([]byte(`{
			"status": 1,
			"product": {
				"code": "4000417025005",
				"product_name": "Hazelnut Spread",
				"brands": "Nutco",
				"product_quantity": 400,
				"allergens_tags": ["en:nuts", "en:milk"],
				"nutriscore_score": "26",
				"nutriscore_grade": "e",
				"ecoscore_score": 30,
				"nova_group": 4,
				"nutriments": {
					"energy-kcal_100g": 539,
					"sugars_100g": "56.3"
				}
			}
		}`))
	}))
	defer srv.Close()

	svc := testOFFService(srv.URL)
	rec, err := svc.FetchByCode("ip:test", "4000417025005")
	require.NoError(t, err)

	assert.Equal(t, "4000417025005", rec.Code)
	assert.Equal(t, "Hazelnut Spread", rec.ProductName)
	assert.Equal(t, []string{"en:nuts", "en:milk"}, rec.AllergensTags)
	require.NotNil(t, rec.NutritionScore)
	assert.Equal(t, 26.0, *rec.NutritionScore)
	assert.Equal(t, "e", rec.NutritionGrade)
	require.NotNil(t, rec.EcoscoreScore)
	assert.Equal(t, 30.0, *rec.EcoscoreScore)
	assert.Equal(t, "4", rec.NovaGroup)
	require.NotNil(t, rec.ProductQuantity)
	assert.Equal(t, "400", rec.ProductQuantity.String())
	require.NotNil(t, rec.EnergyKcal)
	assert.Equal(t, 539.0, *rec.EnergyKcal)
	require.NotNil(t, rec.Sugars100g)
	assert.Equal(t, 56.3, *rec.Sugars100g)
}

func TestFetchByCodeMissIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	svc := testOFFService(srv.URL)
	_, err := svc.FetchByCode("ip:test", "0000000000000")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestFetchByCodeStatusZeroIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": 0, "status_verbose": "product not found"}`))
	}))
	defer srv.Close()

	svc := testOFFService(srv.URL)
	_, err := svc.FetchByCode("ip:test", "0000000000000")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestFetchByCodeServerErrorIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := testOFFService(srv.URL)
	_, err := svc.FetchByCode("ip:test", "123")
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, opBarcode, terr.Op)
}

func TestFetchByCodeRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": 1, "product": {"code": "123", "product_name": "x"}}`))
	}))
	defer srv.Close()

	svc := testOFFService(srv.URL)
	svc.barcodeLimiter = newKeyedLimiter(1)

	_, err := svc.FetchByCode("ip:limited", "123")
	require.NoError(t, err)

	_, err = svc.FetchByCode("ip:limited", "123")
	var rerr *RateLimitedError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, opBarcode, rerr.Op)
	assert.Greater(t, rerr.RetryAfter, time.Duration(0))

	// budgets are per client key, another client is unaffected
	_, err = svc.FetchByCode("ip:other", "123")
	assert.NoError(t, err)
}

func TestSearchByNameSendsPaging(t *testing.T) {
	var query map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cgi/search.pl", r.URL.Path)
		query = r.URL.Query()
		json.NewEncoder(w).Encode(offSearchResponse{
			Products:  []offProduct{{Code: "1", ProductName: "Miso"}},
			Count:     1,
			Page:      2,
			PageSize:  21,
			PageCount: 1,
		})
	}))
	defer srv.Close()

	svc := testOFFService(srv.URL)
	res, err := svc.SearchByName("ip:test", "miso", "", 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"miso"}, query["search_terms"])
	assert.Equal(t, []string{"2"}, query["page"])
	assert.Equal(t, []string{"21"}, query["page_size"])

	require.Len(t, res.Records, 1)
	assert.Equal(t, "Miso", res.Records[0].ProductName)
	assert.Equal(t, 2, res.Page)
}

func TestAdvancedSearchBuildsTagTriples(t *testing.T) {
	var query map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		json.NewEncoder(w).Encode(offSearchResponse{})
	}))
	defer srv.Close()

	svc := testOFFService(srv.URL)
	_, err := svc.AdvancedSearch("ip:test", AdvancedSearchParams{
		SearchTerm: "pasta",
		Country:    "Italy",
		Category:   "Dried Pasta",
	}, "", 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"pasta"}, query["search_terms"])
	assert.Equal(t, []string{"countries"}, query["tagtype_0"])
	assert.Equal(t, []string{"exactly"}, query["tag_contains_0"])
	assert.Equal(t, []string{"Italy"}, query["tag_0"])
	// brand was empty, so categories takes the next slot
	assert.Equal(t, []string{"categories"}, query["tagtype_1"])
	assert.Equal(t, []string{"Dried Pasta"}, query["tag_1"])
	assert.Empty(t, query["tagtype_2"])
}

func TestFetchSuggestions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/taxonomy_suggestions", r.URL.Path)
		assert.Equal(t, "ingredients", r.URL.Query().Get("tagtype"))
		assert.Equal(t, "tom", r.URL.Query().Get("string"))
		w.Write([]byte(`{"suggestions": ["Tomato", "Tomato paste"]}`))
	}))
	defer srv.Close()

	svc := testOFFService(srv.URL)
	got, err := svc.FetchSuggestions("ip:test", "tom", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Tomato", "Tomato paste"}, got)
}

func TestFetchFacetParsesTags(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/facets/allergens.json", r.URL.Path)
		w.Write([]byte(`{"tags": [
			{"id": "en:milk", "name": "Milk", "known": 1},
			{"id": "en:mystery", "name": "mystery", "known": 0}
		]}`))
	}))
	defer srv.Close()

	svc := testOFFService(srv.URL)
	facet, err := svc.FetchFacet("allergens", "")
	require.NoError(t, err)
	require.Len(t, facet.Tags, 2)
	assert.Equal(t, "en:milk", facet.Tags[0].ID)
	assert.Equal(t, 1, facet.Tags[0].Known)
}

func TestFlexFloatTolerance(t *testing.T) {
	var out struct {
		A *flexFloat `json:"a"`
		B *flexFloat `json:"b"`
		C *flexFloat `json:"c"`
		D *flexFloat `json:"d"`
	}
	err := json.Unmarshal([]byte(`{"a": 1.5, "b": "2.25", "c": "", "d": "traces"}`), &out)
	require.NoError(t, err)

	require.NotNil(t, out.A)
	assert.Equal(t, flexFloat(1.5), *out.A)
	require.NotNil(t, out.B)
	assert.Equal(t, flexFloat(2.25), *out.B)
	// empty and unparseable values decode to the zero value instead of failing
	assert.Equal(t, flexFloat(0), *out.C)
	assert.Equal(t, flexFloat(0), *out.D)
}
