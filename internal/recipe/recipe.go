package recipe

import (
	"fmt"
	"strings"

	"budget-meal-planner/internal/nutrition"
)

// PageData is the raw input handed to the extractor: a vault entry ID,
// its title and the cleaned HTML body.
type PageData struct {
	ID        string
	Title     string
	HTML      string
	UpdatedAt string
}

// Recipe is a structured recipe with per-serving nutrition facts.
type Recipe struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Ingredients     []string `json:"ingredients"`
	Instructions    string   `json:"instructions"`
	Tags            []string `json:"tags"`
	PrepTimeMinutes int      `json:"prep_time_minutes"`
	Servings        int      `json:"servings"`
	Calories        float64  `json:"calories"`
	Proteins        float64  `json:"proteins"`
	Carbs           float64  `json:"carbs"`
	Fats            float64  `json:"fats"`
	UpdatedAt       string   `json:"source_updated_at"`
}

// RecipeWithEmbedding pairs a recipe with its embedding vector.
type RecipeWithEmbedding struct {
	Recipe    Recipe
	Embedding []float32
}

// ToEmbeddingText renders the semantic string fed to the embedding model.
func (r Recipe) ToEmbeddingText() string {
	return fmt.Sprintf("Title: %s\nTags: %s\nIngredients: %s\nPrep Time: %d min",
		r.Title,
		strings.Join(r.Tags, ", "),
		strings.Join(r.Ingredients, ", "),
		r.PrepTimeMinutes,
	)
}

// ToCandidate converts one serving of the recipe into a meal candidate.
func (r Recipe) ToCandidate() nutrition.MealCandidate {
	ingredients := make([]nutrition.Ingredient, 0, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		ingredients = append(ingredients, nutrition.Ingredient{Name: ing})
	}
	return nutrition.MealCandidate{
		Name:            r.Title,
		Description:     r.Instructions,
		Calories:        r.Calories,
		Proteins:        r.Proteins,
		Carbs:           r.Carbs,
		Fats:            r.Fats,
		PrepTimeMinutes: r.PrepTimeMinutes,
		Ingredients:     ingredients,
		SourceKind:      nutrition.SourceStructuredRecipe,
	}
}
