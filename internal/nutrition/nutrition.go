// Package nutrition holds the meal vocabulary shared by the candidate
// sources, the generative fallback and the planner.
package nutrition

import "math"

// SourceKind records which pipeline produced a meal candidate.
type SourceKind string

const (
	SourceStructuredRecipe SourceKind = "structured-recipe"
	SourceGenericFood      SourceKind = "generic-food"
	SourcePackagedProduct  SourceKind = "packaged-product"
	SourceGenerated        SourceKind = "generated"
	SourceFasting          SourceKind = "fasting"
)

// MealSlot identifies one of the four eating occasions of a day.
type MealSlot string

const (
	SlotBreakfast MealSlot = "breakfast"
	SlotLunch     MealSlot = "lunch"
	SlotSnack     MealSlot = "snack"
	SlotDinner    MealSlot = "dinner"
)

// Slots is the fixed allocation order within a day.
var Slots = [4]MealSlot{SlotBreakfast, SlotLunch, SlotSnack, SlotDinner}

var slotRatios = map[MealSlot]float64{
	SlotBreakfast: 0.25,
	SlotLunch:     0.35,
	SlotSnack:     0.10,
	SlotDinner:    0.30,
}

// Ratio returns the share of the daily budget assigned to the slot.
func (s MealSlot) Ratio() float64 {
	return slotRatios[s]
}

// Macros groups the three tracked macronutrients, in grams.
type Macros struct {
	Proteins float64 `json:"proteins"`
	Carbs    float64 `json:"carbs"`
	Fats     float64 `json:"fats"`
}

// Ingredient is a single line of a meal's shopping-level breakdown.
type Ingredient struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

// MealCandidate is a concrete meal proposal, whatever source produced it.
// Calories and macros describe one serving.
type MealCandidate struct {
	Name            string       `json:"name"`
	Description     string       `json:"description,omitempty"`
	Calories        float64      `json:"calories"`
	Proteins        float64      `json:"proteins"`
	Carbs           float64      `json:"carbs"`
	Fats            float64      `json:"fats"`
	PrepTimeMinutes int          `json:"prep_time_minutes"`
	Ingredients     []Ingredient `json:"ingredients,omitempty"`
	SourceKind      SourceKind   `json:"source_kind"`
	Fallback        bool         `json:"fallback,omitempty"`
}

// MacroEnergy returns the energy implied by the macros alone
// (4 kcal/g protein, 4 kcal/g carbs, 9 kcal/g fat).
func (c MealCandidate) MacroEnergy() float64 {
	return 4*c.Proteins + 4*c.Carbs + 9*c.Fats
}

// IsFasting reports whether the candidate is a zero-calorie fasting placeholder.
func (c MealCandidate) IsFasting() bool {
	return c.SourceKind == SourceFasting
}

// FastingPlaceholder is the zero-calorie meal emitted for a slot skipped
// by an intermittent-fasting window.
func FastingPlaceholder() MealCandidate {
	return MealCandidate{
		Name:        "Fasting window",
		Description: "No meal scheduled inside the fasting window.",
		SourceKind:  SourceFasting,
	}
}

// EnergyFromMacros converts grams of macronutrients to kcal.
func EnergyFromMacros(m Macros) float64 {
	return 4*m.Proteins + 4*m.Carbs + 9*m.Fats
}

// DefaultMacroSplit derives macros for a calorie amount from the standard
// 25% protein / 45% carbs / 30% fats energy split.
func DefaultMacroSplit(calories float64) Macros {
	return Macros{
		Proteins: math.Round(calories * 0.25 / 4),
		Carbs:    math.Round(calories * 0.45 / 4),
		Fats:     math.Round(calories * 0.30 / 9),
	}
}
