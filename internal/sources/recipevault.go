package sources

import (
	"context"
	"strings"

	"budget-meal-planner/internal/llm"
	"budget-meal-planner/internal/nutrition"
	"budget-meal-planner/internal/recipe"

	"go.uber.org/zap"
)

const recipeSearchTopK = 5

// RecipeVaultAdapter serves structured recipes via semantic search:
// the query is embedded, matched against stored recipe embeddings by
// cosine similarity and the winning rows are hydrated into candidates.
type RecipeVaultAdapter struct {
	embGen  llm.EmbeddingGenerator
	vectors *llm.VectorRepository
	recipes *recipe.Repository
	logger  *zap.Logger
}

// NewRecipeVaultAdapter creates a new RecipeVaultAdapter.
func NewRecipeVaultAdapter(
	embGen llm.EmbeddingGenerator,
	vectors *llm.VectorRepository,
	recipes *recipe.Repository,
	logger *zap.Logger,
) *RecipeVaultAdapter {
	return &RecipeVaultAdapter{
		embGen:  embGen,
		vectors: vectors,
		recipes: recipes,
		logger:  logger,
	}
}

// Search implements Adapter. Failures are logged and collapse to an
// empty result.
func (a *RecipeVaultAdapter) Search(ctx context.Context, query string, c Constraints) []nutrition.MealCandidate {
	embedding, err := a.embGen.GenerateEmbedding(ctx, query)
	if err != nil {
		a.logger.Warn("recipe search: embedding failed", zap.Error(err))
		return nil
	}

	ids, err := a.vectors.FindSimilar(ctx, embedding, recipeSearchTopK, nil)
	if err != nil {
		a.logger.Warn("recipe search: similarity lookup failed", zap.Error(err))
		return nil
	}
	if len(ids) == 0 {
		return nil
	}

	recs, err := a.recipes.GetByIds(ctx, ids)
	if err != nil {
		a.logger.Warn("recipe search: hydration failed", zap.Error(err))
		return nil
	}

	var candidates []nutrition.MealCandidate
	for _, rec := range recs {
		if !recipeMatches(rec, c) {
			continue
		}
		candidates = append(candidates, rec.ToCandidate())
	}
	return candidates
}

func recipeMatches(rec recipe.Recipe, c Constraints) bool {
	if c.MaxPrepMinutes > 0 && rec.PrepTimeMinutes > c.MaxPrepMinutes {
		return false
	}
	if c.DietType != "" && c.DietType != "omnivore" && !containsFold(rec.Tags, c.DietType) {
		return false
	}
	for _, allergen := range c.Allergies {
		for _, ing := range rec.Ingredients {
			if strings.Contains(strings.ToLower(ing), strings.ToLower(allergen)) {
				return false
			}
		}
	}
	return true
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}
