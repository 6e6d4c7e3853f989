package planner

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"budget-meal-planner/internal/nutrition"
	"budget-meal-planner/internal/sources"

	"go.uber.org/zap"
)

func newTestPlanner(gen MealGenerator) *WeekPlanner {
	alloc := NewAllocator(&sources.Registry{}, gen, zap.NewNop())
	return NewWeekPlanner(alloc, zap.NewNop())
}

func allNames(plan *WeeklyPlan) []string {
	var names []string
	for _, day := range plan.Days {
		for _, m := range day.Meals {
			if m.Meal.IsFasting() {
				continue
			}
			names = append(names, strings.ToLower(m.Meal.Name))
		}
	}
	return names
}

func TestGenerateWeeklyPlan(t *testing.T) {
	ctx := context.Background()

	t.Run("AllDaysWithinToleranceWithEmptySources", func(t *testing.T) {
		gen := &countingGenerator{}
		p := newTestPlanner(gen)

		plan, _, err := p.GenerateWeeklyPlan(ctx, Preferences{
			UserID:        "user-1",
			DailyCalories: 2100,
		})
		if err != nil {
			t.Fatalf("GenerateWeeklyPlan failed: %v", err)
		}

		if plan.ID == "" {
			t.Error("Expected a plan ID")
		}
		if plan.RewardDayIndex != nil {
			t.Errorf("Expected no reward day, got %d", *plan.RewardDayIndex)
		}
		for i, day := range plan.Days {
			if len(day.Meals) != 4 {
				t.Errorf("Day %d: expected 4 meals, got %d", i, len(day.Meals))
			}
			if !nutrition.WithinTolerance(day.TotalCalories, 2100, 0.10) {
				t.Errorf("Day %d: total %f outside ±10%% of 2100", i, day.TotalCalories)
			}
			if day.OutOfTolerance {
				t.Errorf("Day %d flagged out of tolerance", i)
			}
			if day.Budget != 2100 {
				t.Errorf("Day %d: expected budget 2100, got %f", i, day.Budget)
			}
		}
	})

	t.Run("RewardDayBudgetsAndTreat", func(t *testing.T) {
		gen := &countingGenerator{}
		p := newTestPlanner(gen)

		r := 5
		plan, metas, err := p.GenerateWeeklyPlan(ctx, Preferences{
			UserID:         "user-1",
			DailyCalories:  2000,
			RewardDayIndex: &r,
		})
		if err != nil {
			t.Fatalf("GenerateWeeklyPlan failed: %v", err)
		}

		wantBudgets := [7]float64{1800, 1800, 1800, 1800, 1800, 3000, 2000}
		for i, day := range plan.Days {
			if day.Budget != wantBudgets[i] {
				t.Errorf("Day %d: expected budget %f, got %f", i, wantBudgets[i], day.Budget)
			}
		}
		if !plan.Days[5].RewardDay {
			t.Error("Expected day 5 marked as reward day")
		}

		treats := 0
		for _, req := range gen.requests {
			if req.Treat {
				treats++
				if req.Slot != nutrition.SlotDinner {
					t.Errorf("Expected the treat on dinner, got %s", req.Slot)
				}
			}
		}
		if treats != 1 {
			t.Errorf("Expected exactly 1 treat request, got %d", treats)
		}
		if len(metas) != 28 {
			t.Errorf("Expected 28 generative meta entries, got %d", len(metas))
		}
	})

	t.Run("NoDuplicateNamesAcrossWeek", func(t *testing.T) {
		gen := &countingGenerator{}
		p := newTestPlanner(gen)

		plan, _, err := p.GenerateWeeklyPlan(ctx, Preferences{UserID: "u", DailyCalories: 2000})
		if err != nil {
			t.Fatalf("GenerateWeeklyPlan failed: %v", err)
		}

		seen := map[string]bool{}
		for _, name := range allNames(plan) {
			if seen[name] {
				t.Errorf("Meal name %q used twice in the week", name)
			}
			seen[name] = true
		}

		// Later days must see the names picked earlier in the week.
		lastReq := gen.requests[len(gen.requests)-1]
		found := false
		for _, e := range lastReq.Exclusions {
			if e == "generated breakfast #1" {
				found = true
			}
		}
		if !found {
			t.Error("Expected the first meal's name in the final slot's exclusions")
		}
	})

	t.Run("InvalidDailyCalories", func(t *testing.T) {
		p := newTestPlanner(&countingGenerator{})
		if _, _, err := p.GenerateWeeklyPlan(ctx, Preferences{DailyCalories: 0}); err == nil {
			t.Error("Expected error for zero daily calories")
		}
	})
}

func TestRegenerateDay(t *testing.T) {
	ctx := context.Background()
	gen := &countingGenerator{}
	p := newTestPlanner(gen)

	plan, _, err := p.GenerateWeeklyPlan(ctx, Preferences{UserID: "u", DailyCalories: 2000})
	if err != nil {
		t.Fatalf("GenerateWeeklyPlan failed: %v", err)
	}

	var before [7]DayPlan
	for i, day := range plan.Days {
		before[i] = day
	}
	oldDay3Breakfast := strings.ToLower(mealBySlot(t, plan.Days[3], nutrition.SlotBreakfast).Name)
	day0Breakfast := strings.ToLower(mealBySlot(t, plan.Days[0], nutrition.SlotBreakfast).Name)
	regenStart := len(gen.requests)

	newDay, _, err := p.RegenerateDay(ctx, 3, Preferences{UserID: "u", DailyCalories: 2000}, plan)
	if err != nil {
		t.Fatalf("RegenerateDay failed: %v", err)
	}

	if !reflect.DeepEqual(plan.Days[3], newDay) {
		t.Error("Expected the regenerated day stored in the plan")
	}
	for i := range plan.Days {
		if i == 3 {
			continue
		}
		if !reflect.DeepEqual(plan.Days[i], before[i]) {
			t.Errorf("Day %d changed during regeneration", i)
		}
	}

	seen := map[string]bool{}
	for _, name := range allNames(plan) {
		if seen[name] {
			t.Errorf("Meal name %q appears twice after regeneration", name)
		}
		seen[name] = true
	}

	// Exclusions must cover the other days but not the day being replaced.
	for _, req := range gen.requests[regenStart:] {
		hasDay0 := false
		for _, e := range req.Exclusions {
			if e == day0Breakfast {
				hasDay0 = true
			}
			if e == oldDay3Breakfast {
				t.Errorf("Old day-3 meal %q should not be excluded", e)
			}
		}
		if !hasDay0 {
			t.Error("Expected other days' names in the regeneration exclusions")
		}
	}

	t.Run("InvalidArguments", func(t *testing.T) {
		if _, _, err := p.RegenerateDay(ctx, 7, Preferences{DailyCalories: 2000}, plan); err == nil {
			t.Error("Expected error for day index 7")
		}
		if _, _, err := p.RegenerateDay(ctx, -1, Preferences{DailyCalories: 2000}, plan); err == nil {
			t.Error("Expected error for day index -1")
		}
		if _, _, err := p.RegenerateDay(ctx, 3, Preferences{DailyCalories: 2000}, nil); err == nil {
			t.Error("Expected error for a nil plan")
		}
	})
}

func TestProposeRewardDay(t *testing.T) {
	ctx := context.Background()
	prefs := Preferences{UserID: "u", DailyCalories: 2000}

	newFlatPlan := func(t *testing.T, gen *countingGenerator) (*WeekPlanner, *WeeklyPlan) {
		t.Helper()
		p := newTestPlanner(gen)
		plan, _, err := p.GenerateWeeklyPlan(ctx, prefs)
		if err != nil {
			t.Fatalf("GenerateWeeklyPlan failed: %v", err)
		}
		return p, plan
	}

	t.Run("Saturday", func(t *testing.T) {
		gen := &countingGenerator{}
		p, plan := newFlatPlan(t, gen)

		updated, metas, err := p.ProposeRewardDay(ctx, plan, prefs, 5)
		if err != nil {
			t.Fatalf("ProposeRewardDay failed: %v", err)
		}

		if updated.RewardDayIndex == nil || *updated.RewardDayIndex != 5 {
			t.Fatal("Expected reward day index 5 on the plan")
		}
		if !updated.RewardConfirmed {
			t.Error("Expected the reward confirmed")
		}

		day := updated.Days[5]
		if !day.RewardDay {
			t.Error("Expected day 5 marked as reward day")
		}
		if day.Budget != 3000 {
			t.Errorf("Expected day budget 3000, got %f", day.Budget)
		}
		dinner := mealBySlot(t, day, nutrition.SlotDinner)
		if dinner.Calories != 1300 {
			t.Errorf("Expected treat dinner at 1300 kcal (40%% of target + half the savings), got %f", dinner.Calories)
		}
		treatReq := gen.requests[len(gen.requests)-1]
		if !treatReq.Treat {
			t.Error("Expected a treat generation request")
		}
		if len(metas) != 1 {
			t.Errorf("Expected 1 meta entry for the treat, got %d", len(metas))
		}
		if updated.Days[6].Budget != 2000 {
			t.Errorf("Expected Sunday untouched at 2000, got %f", updated.Days[6].Budget)
		}
	})

	t.Run("SundayScalesSaturdayDown", func(t *testing.T) {
		gen := &countingGenerator{}
		p, plan := newFlatPlan(t, gen)

		updated, _, err := p.ProposeRewardDay(ctx, plan, prefs, 6)
		if err != nil {
			t.Fatalf("ProposeRewardDay failed: %v", err)
		}

		saturday := updated.Days[5]
		if saturday.Budget != 1800 {
			t.Errorf("Expected Saturday scaled to 1800, got %f", saturday.Budget)
		}
		if got := mealBySlot(t, saturday, nutrition.SlotBreakfast).Calories; got != 450 {
			t.Errorf("Expected Saturday breakfast scaled to 450, got %f", got)
		}
		if saturday.TotalCalories != 1800 {
			t.Errorf("Expected Saturday total 1800, got %f", saturday.TotalCalories)
		}

		sunday := updated.Days[6]
		if sunday.Budget != 3200 {
			t.Errorf("Expected Sunday budget 3200, got %f", sunday.Budget)
		}
		dinner := mealBySlot(t, sunday, nutrition.SlotDinner)
		if dinner.Calories != 1400 {
			t.Errorf("Expected treat dinner at 1400 kcal, got %f", dinner.Calories)
		}
		if updated.RewardDayIndex == nil || *updated.RewardDayIndex != 6 {
			t.Fatal("Expected reward day index 6 on the plan")
		}
	})

	t.Run("InvalidArguments", func(t *testing.T) {
		gen := &countingGenerator{}
		p, plan := newFlatPlan(t, gen)

		if _, _, err := p.ProposeRewardDay(ctx, plan, prefs, 4); err == nil {
			t.Error("Expected error for day index 4")
		}
		if _, _, err := p.ProposeRewardDay(ctx, nil, prefs, 5); err == nil {
			t.Error("Expected error for a nil plan")
		}
		if _, _, err := p.ProposeRewardDay(ctx, plan, Preferences{DailyCalories: 0}, 5); err == nil {
			t.Error("Expected error for zero daily calories")
		}
	})
}
