package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"budget-meal-planner/internal/nutrition"

	"go.uber.org/zap"
)

// ProductAPIAdapter looks up packaged products on an OpenFoodFacts-style
// REST endpoint. Nutrition comes from the per-100g nutriment keys.
type ProductAPIAdapter struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewProductAPIAdapter creates a new ProductAPIAdapter.
func NewProductAPIAdapter(baseURL string, logger *zap.Logger) *ProductAPIAdapter {
	return &ProductAPIAdapter{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 8 * time.Second,
		},
		logger: logger,
	}
}

// Search implements Adapter. Failures are logged and collapse to an
// empty result.
func (a *ProductAPIAdapter) Search(ctx context.Context, query string, c Constraints) []nutrition.MealCandidate {
	searchURL := fmt.Sprintf("%s/cgi/search.pl?search_terms=%s&search_simple=1&action=process&json=1&page_size=10",
		a.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, "GET", searchURL, nil)
	if err != nil {
		a.logger.Warn("product search: bad request", zap.Error(err))
		return nil
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Warn("product search failed", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		a.logger.Warn("product search: unexpected status", zap.Int("status", resp.StatusCode))
		return nil
	}

	var result struct {
		Products []struct {
			ProductName string                 `json:"product_name"`
			Brands      string                 `json:"brands"`
			Nutriments  map[string]interface{} `json:"nutriments"`
		} `json:"products"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		a.logger.Warn("product search: decode failed", zap.Error(err))
		return nil
	}

	var candidates []nutrition.MealCandidate
	for _, p := range result.Products {
		if p.ProductName == "" {
			continue
		}
		kcalPer100g := nutrimentValue(p.Nutriments, "energy-kcal_100g")
		if kcalPer100g <= 0 {
			continue
		}
		if foodBlocked(FoodItem{Name: p.ProductName}, c.Allergies) {
			continue
		}

		grams := 100.0
		if c.TargetCalories > 0 {
			grams = c.TargetCalories / kcalPer100g * 100
		}
		grams = nutrition.Clamp(grams, minPortionGrams, maxPortionGrams)
		factor := grams / 100

		candidates = append(candidates, nutrition.MealCandidate{
			Name:            p.ProductName,
			Description:     p.Brands,
			Calories:        math.Round(kcalPer100g * factor),
			Proteins:        math.Round(nutrimentValue(p.Nutriments, "proteins_100g") * factor),
			Carbs:           math.Round(nutrimentValue(p.Nutriments, "carbohydrates_100g") * factor),
			Fats:            math.Round(nutrimentValue(p.Nutriments, "fat_100g") * factor),
			PrepTimeMinutes: 5,
			Ingredients: []nutrition.Ingredient{
				{Name: p.ProductName, Amount: math.Round(grams), Unit: "g"},
			},
			SourceKind: nutrition.SourcePackagedProduct,
		})
	}
	return candidates
}

// nutrimentValue coerces a nutriment entry to float64. The API mixes
// JSON numbers and numeric strings.
func nutrimentValue(nutriments map[string]interface{}, key string) float64 {
	raw, ok := nutriments[key]
	if !ok {
		return 0
	}
	switch v := raw.(type) {
	case float64:
		return v
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
