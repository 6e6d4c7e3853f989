package nutrition

import "math"

// Clamp bounds v to the closed interval [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// WithinTolerance reports whether value sits inside target ± frac*target.
func WithinTolerance(value, target, frac float64) bool {
	if target == 0 {
		return value == 0
	}
	return math.Abs(value-target) <= frac*target
}

// ScaleTo rescales a candidate so its calories land exactly on target.
// Every numeric field is multiplied by the same ratio and rounded
// independently, so a second scaling to the same target is a no-op.
// Zero-calorie candidates (fasting placeholders) are returned unchanged.
func ScaleTo(c MealCandidate, target float64) MealCandidate {
	if c.Calories == 0 {
		return c
	}
	ratio := target / c.Calories

	out := c
	out.Calories = math.Round(target)
	out.Proteins = math.Round(c.Proteins * ratio)
	out.Carbs = math.Round(c.Carbs * ratio)
	out.Fats = math.Round(c.Fats * ratio)
	if len(c.Ingredients) > 0 {
		out.Ingredients = make([]Ingredient, len(c.Ingredients))
		for i, ing := range c.Ingredients {
			ing.Amount = math.Round(ing.Amount * ratio)
			out.Ingredients[i] = ing
		}
	}
	return out
}
