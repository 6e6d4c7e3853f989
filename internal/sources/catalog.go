package sources

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"budget-meal-planner/internal/nutrition"

	"go.uber.org/zap"
)

// Portion sizes for generic foods, in grams.
const (
	minPortionGrams = 30
	maxPortionGrams = 500
)

// FoodItem is one generic food from the local catalog with per-100g
// nutrition facts.
type FoodItem struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Category        string  `json:"category"`
	CaloriesPer100g float64 `json:"calories_per_100g"`
	ProteinsPer100g float64 `json:"proteins_per_100g"`
	CarbsPer100g    float64 `json:"carbs_per_100g"`
	FatsPer100g     float64 `json:"fats_per_100g"`
}

// ToCandidate sizes a portion of the food to approach the calorie target
// and returns it as a meal candidate.
func (f FoodItem) ToCandidate(targetCalories float64) nutrition.MealCandidate {
	grams := 100.0
	if f.CaloriesPer100g > 0 && targetCalories > 0 {
		grams = targetCalories / f.CaloriesPer100g * 100
	}
	grams = nutrition.Clamp(grams, minPortionGrams, maxPortionGrams)
	factor := grams / 100

	return nutrition.MealCandidate{
		Name:            f.Name,
		Description:     f.Category,
		Calories:        math.Round(f.CaloriesPer100g * factor),
		Proteins:        math.Round(f.ProteinsPer100g * factor),
		Carbs:           math.Round(f.CarbsPer100g * factor),
		Fats:            math.Round(f.FatsPer100g * factor),
		PrepTimeMinutes: 10,
		Ingredients: []nutrition.Ingredient{
			{Name: f.Name, Amount: math.Round(grams), Unit: "g"},
		},
		SourceKind: nutrition.SourceGenericFood,
	}
}

// CatalogRepository provides access to the food_catalog table.
type CatalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// SeedFromJSON loads a JSON array of food items into the catalog and
// returns the number of rows inserted.
func (r *CatalogRepository) SeedFromJSON(ctx context.Context, src io.Reader) (int, error) {
	var items []FoodItem
	if err := json.NewDecoder(src).Decode(&items); err != nil {
		return 0, fmt.Errorf("failed to decode catalog JSON: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, item := range items {
		if item.Name == "" || item.CaloriesPer100g <= 0 {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO food_catalog (name, category, calories_per_100g, proteins_per_100g, carbs_per_100g, fats_per_100g)
			VALUES (?, ?, ?, ?, ?, ?)`,
			item.Name, item.Category, item.CaloriesPer100g, item.ProteinsPer100g, item.CarbsPer100g, item.FatsPer100g)
		if err != nil {
			return 0, fmt.Errorf("failed to insert food %q: %w", item.Name, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit catalog seed: %w", err)
	}
	return inserted, nil
}

// Search finds foods whose name or category contains the query,
// alphabetically. Matching the category lets slot-level queries such as
// "breakfast" hit foods tagged for that occasion.
func (r *CatalogRepository) Search(ctx context.Context, query string, limit int) ([]FoodItem, error) {
	pattern := "%" + query + "%"
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, category, calories_per_100g, proteins_per_100g, carbs_per_100g, fats_per_100g
		FROM food_catalog
		WHERE name LIKE ? OR category LIKE ?
		ORDER BY name
		LIMIT ?`,
		pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search catalog: %w", err)
	}
	defer rows.Close()

	var items []FoodItem
	for rows.Next() {
		var item FoodItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Category,
			&item.CaloriesPer100g, &item.ProteinsPer100g, &item.CarbsPer100g, &item.FatsPer100g); err != nil {
			return nil, fmt.Errorf("failed to scan food row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate foods: %w", err)
	}
	return items, nil
}

// GetByID returns one food item, or nil when absent.
func (r *CatalogRepository) GetByID(ctx context.Context, id int64) (*FoodItem, error) {
	var item FoodItem
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, category, calories_per_100g, proteins_per_100g, carbs_per_100g, fats_per_100g
		FROM food_catalog
		WHERE id = ?`, id).
		Scan(&item.ID, &item.Name, &item.Category,
			&item.CaloriesPer100g, &item.ProteinsPer100g, &item.CarbsPer100g, &item.FatsPer100g)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get food by ID: %w", err)
	}
	return &item, nil
}

// Count returns the number of foods in the catalog.
func (r *CatalogRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM food_catalog`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count foods: %w", err)
	}
	return count, nil
}

// CatalogAdapter serves generic foods from the local catalog with
// portions sized to the calorie target.
type CatalogAdapter struct {
	repo   *CatalogRepository
	logger *zap.Logger
}

// NewCatalogAdapter creates a new CatalogAdapter.
func NewCatalogAdapter(repo *CatalogRepository, logger *zap.Logger) *CatalogAdapter {
	return &CatalogAdapter{repo: repo, logger: logger}
}

// Search implements Adapter. Failures are logged and collapse to an
// empty result.
func (a *CatalogAdapter) Search(ctx context.Context, query string, c Constraints) []nutrition.MealCandidate {
	items, err := a.repo.Search(ctx, query, 10)
	if err != nil {
		a.logger.Warn("catalog search failed", zap.Error(err))
		return nil
	}

	var candidates []nutrition.MealCandidate
	for _, item := range items {
		if foodBlocked(item, c.Allergies) {
			continue
		}
		candidates = append(candidates, item.ToCandidate(c.TargetCalories))
	}
	return candidates
}

func foodBlocked(item FoodItem, allergies []string) bool {
	name := strings.ToLower(item.Name)
	for _, allergen := range allergies {
		if strings.Contains(name, strings.ToLower(allergen)) {
			return true
		}
	}
	return false
}
