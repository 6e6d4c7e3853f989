// Package shopping derives a grocery list from a weekly plan by
// aggregating the ingredients of every allocated meal.
package shopping

import (
	"sort"
	"strconv"
	"strings"

	"budget-meal-planner/internal/planner"
)

// Item is one aggregated grocery line.
type Item struct {
	Name string `json:"name"`
	// Amount is the summed quantity for ingredients that carry one;
	// zero means the sources only listed the ingredient by name.
	Amount float64 `json:"amount,omitempty"`
	Unit   string  `json:"unit,omitempty"`
	// Meals counts how many meals of the week use the ingredient.
	Meals int `json:"meals"`
}

// List is the grocery list for one weekly plan.
type List struct {
	PlanID string `json:"plan_id"`
	Items  []Item `json:"items"`
}

// BuildList aggregates the ingredients of every meal in the plan.
// Ingredients sharing a name and unit are merged case-insensitively;
// fasting placeholders contribute nothing.
func BuildList(plan *planner.WeeklyPlan) List {
	type key struct{ name, unit string }
	merged := make(map[key]*Item)

	for _, day := range plan.Days {
		for _, sm := range day.Meals {
			if sm.Meal.IsFasting() {
				continue
			}
			for _, ing := range sm.Meal.Ingredients {
				name := strings.TrimSpace(ing.Name)
				if name == "" {
					continue
				}
				k := key{strings.ToLower(name), strings.ToLower(strings.TrimSpace(ing.Unit))}
				item, ok := merged[k]
				if !ok {
					item = &Item{Name: name, Unit: strings.TrimSpace(ing.Unit)}
					merged[k] = item
				}
				item.Amount += ing.Amount
				item.Meals++
			}
		}
	}

	items := make([]Item, 0, len(merged))
	for _, item := range merged {
		items = append(items, *item)
	}
	sort.Slice(items, func(i, j int) bool {
		a, b := strings.ToLower(items[i].Name), strings.ToLower(items[j].Name)
		if a != b {
			return a < b
		}
		return items[i].Unit < items[j].Unit
	})
	return List{PlanID: plan.ID, Items: items}
}

// Lines renders the list as one human-readable string per item.
func (l List) Lines() []string {
	lines := make([]string, 0, len(l.Items))
	for _, item := range l.Items {
		lines = append(lines, item.Line())
	}
	return lines
}

// Line formats a single item, e.g. "Chicken breast: 450 g" for
// quantified entries or "Fresh basil (2 meals)" for name-only ones.
func (it Item) Line() string {
	if it.Amount > 0 {
		amount := strconv.FormatFloat(it.Amount, 'f', -1, 64)
		if it.Unit != "" {
			return it.Name + ": " + amount + " " + it.Unit
		}
		return it.Name + ": " + amount
	}
	if it.Meals > 1 {
		return it.Name + " (" + strconv.Itoa(it.Meals) + " meals)"
	}
	return it.Name
}
