// Package planner allocates a user's daily calorie budget across meal
// slots and orchestrates full weekly plans, including the reward-day
// budget redistribution backed by the ledger's savings model.
package planner

import (
	"math"
	"strings"
	"time"

	"budget-meal-planner/internal/nutrition"
)

// Preferences carries the user constraints a plan generation honors.
type Preferences struct {
	UserID        string  `json:"user_id"`
	DailyCalories float64 `json:"daily_calories"`
	// RewardDayIndex plans a reward day up front; nil generates a flat
	// week that can still receive one later via ProposeRewardDay.
	RewardDayIndex   *int     `json:"reward_day_index,omitempty"`
	SourcePreference string   `json:"source_preference,omitempty"`
	DietType         string   `json:"diet_type,omitempty"`
	Allergies        []string `json:"allergies,omitempty"`
	MaxPrepMinutes   int      `json:"max_prep_minutes,omitempty"`
	// EatingWindowStart is the hour the user starts eating; noon or
	// later turns breakfast into a fasting placeholder.
	EatingWindowStart int `json:"eating_window_start,omitempty"`
}

// SlotMeal pairs a slot with the meal allocated to it.
type SlotMeal struct {
	Slot nutrition.MealSlot      `json:"slot"`
	Meal nutrition.MealCandidate `json:"meal"`
}

// DayPlan is one fully allocated day.
type DayPlan struct {
	DayIndex      int        `json:"day_index"`
	Label         string     `json:"label"`
	Budget        float64    `json:"budget"`
	Meals         []SlotMeal `json:"meals"`
	TotalCalories float64    `json:"total_calories"`
	// OutOfTolerance marks a day whose total could not be reconciled to
	// within ±10% of its budget. The plan is still served.
	OutOfTolerance bool `json:"out_of_tolerance,omitempty"`
	RewardDay      bool `json:"reward_day,omitempty"`
}

// WeeklyPlan is a full seven-day plan.
type WeeklyPlan struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Days            [7]DayPlan `json:"days"`
	RewardDayIndex  *int       `json:"reward_day_index,omitempty"`
	RewardConfirmed bool       `json:"reward_confirmed"`
	CreatedAt       time.Time  `json:"created_at"`
}

var dayLabels = [7]string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

// usedNames collects the lower-cased meal names of the given days,
// skipping fasting placeholders.
func usedNames(days ...DayPlan) []string {
	var names []string
	for _, day := range days {
		for _, m := range day.Meals {
			if m.Meal.IsFasting() || m.Meal.Name == "" {
				continue
			}
			names = append(names, strings.ToLower(m.Meal.Name))
		}
	}
	return names
}

func mealTotal(meals []SlotMeal) float64 {
	total := 0.0
	for _, m := range meals {
		total += m.Meal.Calories
	}
	return total
}

func replaceSlotMeal(day *DayPlan, slot nutrition.MealSlot, meal nutrition.MealCandidate) {
	for i, m := range day.Meals {
		if m.Slot == slot {
			day.Meals[i].Meal = meal
			return
		}
	}
	day.Meals = append(day.Meals, SlotMeal{Slot: slot, Meal: meal})
}

// scaleDay shrinks or grows every non-fasting meal of a day by the same
// factor, keeping the day's budget in step.
func scaleDay(day *DayPlan, factor float64) {
	for i, m := range day.Meals {
		if m.Meal.IsFasting() || m.Meal.Calories == 0 {
			continue
		}
		day.Meals[i].Meal = nutrition.ScaleTo(m.Meal, math.Round(m.Meal.Calories*factor))
	}
	day.Budget = math.Round(day.Budget * factor)
	day.TotalCalories = mealTotal(day.Meals)
}
