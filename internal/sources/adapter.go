// Package sources hosts the meal candidate adapters: structured recipes
// from the vault, generic foods from the local catalog and packaged
// products from a remote product API.
package sources

import (
	"context"

	"budget-meal-planner/internal/nutrition"
)

// Constraints narrows a candidate search.
type Constraints struct {
	TargetCalories float64
	MaxPrepMinutes int
	DietType       string
	Allergies      []string
	Slot           nutrition.MealSlot
}

// Adapter searches one candidate source. Implementations never return an
// error: lookup failures collapse to an empty slice so planning can move
// on to the next source.
type Adapter interface {
	Search(ctx context.Context, query string, c Constraints) []nutrition.MealCandidate
}

// Registry holds the configured adapters. Nil entries (e.g. a disabled
// product API) are skipped when ordering.
type Registry struct {
	Recipes  Adapter
	Catalog  Adapter
	Products Adapter
}

// OrderFor maps a source preference to a fixed adapter order. Callers
// concatenate results in that order. Unknown preferences fall back to
// "balanced".
func (r *Registry) OrderFor(preference string) []Adapter {
	var ordered []Adapter
	switch preference {
	case "recipes":
		ordered = []Adapter{r.Recipes, r.Catalog, r.Products}
	case "fresh":
		ordered = []Adapter{r.Catalog, r.Recipes, r.Products}
	case "quick":
		ordered = []Adapter{r.Products, r.Catalog, r.Recipes}
	default: // balanced
		ordered = []Adapter{r.Recipes, r.Products, r.Catalog}
	}

	var out []Adapter
	for _, a := range ordered {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}
