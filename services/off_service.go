package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Rate limit groups, one budget per operation kind keyed by client identity.
const (
	opBarcode     = "barcode_lookup"
	opNameSearch  = "name_search"
	opAdvSearch   = "advanced_search"
	opSuggestions = "suggestion_lookup"
	opFacet       = "facet_refresh"
)

const searchPageSize = 21

// OFFService wraps the OpenFoodFacts-compatible product catalog API.
type OFFService struct {
	baseURL        string
	userAgent      string
	useStagingAuth bool
	username       string
	password       string
	client         *http.Client

	barcodeLimiter     *keyedLimiter
	nameLimiter        *keyedLimiter
	advLimiter         *keyedLimiter
	suggestionsLimiter *keyedLimiter
	facetLimiter       *keyedLimiter
}

// NewOFFService initializes the adapter from environment credentials.
func NewOFFService() *OFFService {
	base := os.Getenv("OFF_BASE_URL")
	if base == "" {
		base = "https://world.openfoodfacts.net"
	}
	return &OFFService{
		baseURL:        base,
		userAgent:      os.Getenv("OFF_USER_AGENT"),
		useStagingAuth: os.Getenv("OFF_USE_STAGING_AUTH") == "true",
		username:       os.Getenv("OFF_USERNAME"),
		password:       os.Getenv("OFF_PASSWORD"),
		client:         &http.Client{Timeout: 10 * time.Second},

		barcodeLimiter:     newKeyedLimiter(100),
		nameLimiter:        newKeyedLimiter(10),
		advLimiter:         newKeyedLimiter(10),
		suggestionsLimiter: newKeyedLimiter(30),
		facetLimiter:       newKeyedLimiter(60),
	}
}

func (s *OFFService) checkLimit(l *keyedLimiter, op, clientKey string) error {
	ok, retryAfter := l.Allow(op + ":" + clientKey)
	if !ok {
		return &RateLimitedError{Op: op, RetryAfter: retryAfter}
	}
	return nil
}

// localisedHost returns the host for a language facet tag, or the default
// base URL when no localised host is known.
func (s *OFFService) localisedHost(languageTag string) string {
	if code, ok := LanguageCodeMap[languageTag]; ok && code != "" && code != "en" {
		return fmt.Sprintf("https://%s.openfoodfacts.net", code)
	}
	return s.baseURL
}

func (s *OFFService) newRequest(method, u string) (*http.Request, error) {
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		return nil, err
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	if s.useStagingAuth {
		req.SetBasicAuth(s.username, s.password)
	}
	return req, nil
}

func (s *OFFService) doJSON(op string, req *http.Request, out interface{}) (int, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, &TransportError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, nil
	}
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, &TransportError{Op: op, Err: fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, &TransportError{Op: op, Err: fmt.Errorf("failed to parse JSON: %w", err)}
	}
	return resp.StatusCode, nil
}

// flexFloat tolerates numeric fields the catalog serves as either JSON
// numbers or strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil // unparseable values are treated as absent
	}
	*f = flexFloat(v)
	return nil
}

type offNutriments struct {
	EnergyKj   *flexFloat `json:"energy-kj_100g"`
	EnergyKcal *flexFloat `json:"energy-kcal_100g"`

	Proteins100g      *flexFloat `json:"proteins_100g"`
	Fat100g           *flexFloat `json:"fat_100g"`
	SaturatedFat100g  *flexFloat `json:"saturated-fat_100g"`
	Carbohydrates100g *flexFloat `json:"carbohydrates_100g"`
	Sugars100g        *flexFloat `json:"sugars_100g"`
	Fiber100g         *flexFloat `json:"fiber_100g"`
	Sodium100g        *flexFloat `json:"sodium_100g"`

	ProteinsServing      *flexFloat `json:"proteins_serving"`
	FatServing           *flexFloat `json:"fat_serving"`
	SaturatedFatServing  *flexFloat `json:"saturated-fat_serving"`
	CarbohydratesServing *flexFloat `json:"carbohydrates_serving"`
	SugarsServing        *flexFloat `json:"sugars_serving"`
	FiberServing         *flexFloat `json:"fiber_serving"`
	SodiumServing        *flexFloat `json:"sodium_serving"`
}

type offProduct struct {
	Code                string     `json:"code"`
	ProductName         string     `json:"product_name"`
	Brands              string     `json:"brands"`
	ImageSmallURL       string     `json:"image_small_url"`
	Quantity            *flexFloat `json:"product_quantity"`
	QuantityUnit        string     `json:"product_quantity_unit"`
	ServingQuantity     *flexFloat `json:"serving_quantity"`
	IngredientsText     string     `json:"ingredients_text"`
	AllergensTags       []string   `json:"allergens_tags"`
	LabelsTags          []string   `json:"labels_tags"`
	Countries           string     `json:"countries"`
	Categories          string     `json:"categories"`
	NutriscoreScore     *flexFloat `json:"nutriscore_score"`
	NutriscoreGrade     string     `json:"nutriscore_grade"`
	EcoscoreScore       *flexFloat `json:"ecoscore_score"`
	EcoscoreGrade       string     `json:"ecoscore_grade"`
	NovaGroup           *flexFloat `json:"nova_group"`
	ManufacturingPlaces string     `json:"manufacturing_places"`
	Nutriments          offNutriments `json:"nutriments"`
}

func floatPtr(f *flexFloat) *float64 {
	if f == nil {
		return nil
	}
	v := float64(*f)
	return &v
}

func decimalPtr(f *flexFloat) *decimal.Decimal {
	if f == nil {
		return nil
	}
	d := decimal.NewFromFloat(float64(*f))
	return &d
}

func (p *offProduct) toRecord() ProductRecord {
	rec := ProductRecord{
		Code:                  p.Code,
		ProductName:           p.ProductName,
		Brands:                p.Brands,
		ImageURL:              p.ImageSmallURL,
		ProductQuantity:       decimalPtr(p.Quantity),
		ProductQuantityUnit:   p.QuantityUnit,
		ServingSize:           decimalPtr(p.ServingQuantity),
		Ingredients:           p.IngredientsText,
		AllergensTags:         p.AllergensTags,
		LabelsTags:            p.LabelsTags,
		CountriesEn:           p.Countries,
		CategoriesEn:          p.Categories,
		NutritionScore:        floatPtr(p.NutriscoreScore),
		NutritionGrade:        p.NutriscoreGrade,
		EcoscoreScore:         floatPtr(p.EcoscoreScore),
		EcoscoreGrade:         p.EcoscoreGrade,
		ManufacturingLocation: p.ManufacturingPlaces,

		EnergyKj:   floatPtr(p.Nutriments.EnergyKj),
		EnergyKcal: floatPtr(p.Nutriments.EnergyKcal),

		Protein100g:       floatPtr(p.Nutriments.Proteins100g),
		Fat100g:           floatPtr(p.Nutriments.Fat100g),
		SaturatedFat100g:  floatPtr(p.Nutriments.SaturatedFat100g),
		Carbohydrates100g: floatPtr(p.Nutriments.Carbohydrates100g),
		Sugars100g:        floatPtr(p.Nutriments.Sugars100g),
		Fiber100g:         floatPtr(p.Nutriments.Fiber100g),
		Sodium100g:        floatPtr(p.Nutriments.Sodium100g),

		ProteinServing:       floatPtr(p.Nutriments.ProteinsServing),
		FatServing:           floatPtr(p.Nutriments.FatServing),
		SaturatedFatServing:  floatPtr(p.Nutriments.SaturatedFatServing),
		CarbohydratesServing: floatPtr(p.Nutriments.CarbohydratesServing),
		SugarsServing:        floatPtr(p.Nutriments.SugarsServing),
		FiberServing:         floatPtr(p.Nutriments.FiberServing),
		SodiumServing:        floatPtr(p.Nutriments.SodiumServing),
	}
	if p.NovaGroup != nil {
		rec.NovaGroup = strconv.FormatFloat(float64(*p.NovaGroup), 'f', -1, 64)
	}
	return rec
}

// FetchByCode calls the barcode endpoint. A 404 from the source is a
// legitimate miss and surfaces as ErrProductNotFound, not a transport error.
func (s *OFFService) FetchByCode(clientKey, barcode string) (*ProductRecord, error) {
	if err := s.checkLimit(s.barcodeLimiter, opBarcode, clientKey); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/api/v2/product/%s.json", s.baseURL, url.PathEscape(barcode))
	req, err := s.newRequest("GET", u)
	if err != nil {
		return nil, fmt.Errorf("failed to create barcode request: %w", err)
	}

	var out struct {
		Status  int        `json:"status"`
		Product offProduct `json:"product"`
	}
	status, err := s.doJSON(opBarcode, req, &out)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound || out.Status == 0 || out.Product.Code == "" {
		return nil, ErrProductNotFound
	}
	rec := out.Product.toRecord()
	return &rec, nil
}

type offSearchResponse struct {
	Products  []offProduct `json:"products"`
	Count     int          `json:"count"`
	Page      int          `json:"page"`
	PageSize  int          `json:"page_size"`
	PageCount int          `json:"page_count"`
}

func (r *offSearchResponse) toResult() *SearchResult {
	records := make([]ProductRecord, 0, len(r.Products))
	for i := range r.Products {
		records = append(records, r.Products[i].toRecord())
	}
	return &SearchResult{
		Records:   records,
		Count:     r.Count,
		Page:      r.Page,
		PageSize:  r.PageSize,
		PageCount: r.PageCount,
	}
}

// SearchByName calls the free-text search endpoint.
func (s *OFFService) SearchByName(clientKey, name, languageTag string, page int) (*SearchResult, error) {
	if err := s.checkLimit(s.nameLimiter, opNameSearch, clientKey); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("search_terms", name)
	params.Set("search_simple", "1")
	params.Set("action", "process")
	params.Set("json", "1")
	params.Set("page_size", strconv.Itoa(searchPageSize))
	params.Set("page", strconv.Itoa(page))

	u := fmt.Sprintf("%s/cgi/search.pl?%s", s.localisedHost(languageTag), params.Encode())
	req, err := s.newRequest("GET", u)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}

	var out offSearchResponse
	if _, err := s.doJSON(opNameSearch, req, &out); err != nil {
		return nil, err
	}
	return out.toResult(), nil
}

// AdvancedSearchParams are the tag filters for the advanced search endpoint.
type AdvancedSearchParams struct {
	SearchTerm string
	Country    string
	Brand      string
	Category   string
}

// AdvancedSearch calls the tag-filtered search endpoint, translating the
// filters into the catalog's indexed tagtype/tag_contains/tag triples.
func (s *OFFService) AdvancedSearch(clientKey string, p AdvancedSearchParams, languageTag string, page int) (*SearchResult, error) {
	if err := s.checkLimit(s.advLimiter, opAdvSearch, clientKey); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("action", "process")
	params.Set("json", "1")
	params.Set("page_size", strconv.Itoa(searchPageSize))
	params.Set("page", strconv.Itoa(page))
	if p.SearchTerm != "" {
		params.Set("search_terms", p.SearchTerm)
	}

	tagIndex := 0
	addTag := func(tagType, value string) {
		if value == "" {
			return
		}
		params.Set(fmt.Sprintf("tagtype_%d", tagIndex), tagType)
		params.Set(fmt.Sprintf("tag_contains_%d", tagIndex), "exactly")
		params.Set(fmt.Sprintf("tag_%d", tagIndex), value)
		tagIndex++
	}
	addTag("countries", p.Country)
	addTag("brands", p.Brand)
	addTag("categories", p.Category)

	u := fmt.Sprintf("%s/cgi/search.pl?%s", s.localisedHost(languageTag), params.Encode())
	req, err := s.newRequest("GET", u)
	if err != nil {
		return nil, fmt.Errorf("failed to create advanced search request: %w", err)
	}

	var out offSearchResponse
	if _, err := s.doJSON(opAdvSearch, req, &out); err != nil {
		return nil, err
	}
	return out.toResult(), nil
}

// FetchSuggestions calls the taxonomy suggestions endpoint for search-as-you-type.
func (s *OFFService) FetchSuggestions(clientKey, query, languageTag string) ([]string, error) {
	if err := s.checkLimit(s.suggestionsLimiter, opSuggestions, clientKey); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("tagtype", "ingredients")
	params.Set("string", query)
	params.Set("limit", "5")

	u := fmt.Sprintf("%s/api/v3/taxonomy_suggestions?%s", s.localisedHost(languageTag), params.Encode())
	req, err := s.newRequest("GET", u)
	if err != nil {
		return nil, fmt.Errorf("failed to create suggestions request: %w", err)
	}

	var out struct {
		Suggestions []string `json:"suggestions"`
	}
	if _, err := s.doJSON(opSuggestions, req, &out); err != nil {
		return nil, err
	}
	return out.Suggestions, nil
}

// FacetTag is one entry of a facet listing (allergens, labels, countries, …).
type FacetTag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Known int    `json:"known"`
}

type FacetData struct {
	Tags []FacetTag `json:"tags"`
}

// FetchFacet fetches a facet listing, optionally from a localised host.
func (s *OFFService) FetchFacet(facetName, languageCode string) (*FacetData, error) {
	if err := s.checkLimit(s.facetLimiter, opFacet, "facet"); err != nil {
		return nil, err
	}

	host := s.baseURL
	if languageCode != "" && languageCode != "en" {
		host = fmt.Sprintf("https://world-%s.openfoodfacts.net", languageCode)
	}
	u := fmt.Sprintf("%s/facets/%s.json", host, url.PathEscape(facetName))
	req, err := s.newRequest("GET", u)
	if err != nil {
		return nil, fmt.Errorf("failed to create facet request: %w", err)
	}

	var out FacetData
	if _, err := s.doJSON(opFacet, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
