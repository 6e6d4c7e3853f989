package app

import (
	"context"
	"fmt"

	"budget-meal-planner/internal/sources"
)

// SearchFoods looks up catalog foods by name or category.
func (a *App) SearchFoods(ctx context.Context, query string, limit int) ([]sources.FoodItem, error) {
	items, err := a.catalogRepo.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search foods: %w", err)
	}
	return items, nil
}

// FoodByID fetches one catalog food. A nil result means no such food.
func (a *App) FoodByID(ctx context.Context, id int64) (*sources.FoodItem, error) {
	item, err := a.catalogRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load food %d: %w", id, err)
	}
	return item, nil
}
