package planner

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"budget-meal-planner/internal/genmeal"
	"budget-meal-planner/internal/nutrition"
	"budget-meal-planner/internal/shared"
	"budget-meal-planner/internal/sources"

	"go.uber.org/zap"
)

const (
	// slotTolerance is the band around a slot target inside which a
	// source candidate is accepted without scaling.
	slotTolerance = 0.20

	// rescueTolerance is the post-check band; anything further off the
	// slot target is rescaled before it enters the day.
	rescueTolerance = 0.15

	// dayTolerance is the band around the day budget the reconciled
	// total must land in.
	dayTolerance = 0.10

	// minMealCalories is the floor reconciliation may shrink a meal to.
	minMealCalories = 50

	// savingsFrac is the share of the daily target banked on each day
	// leading up to a reward day.
	savingsFrac = 0.10

	// fastingNoonHour: an eating window opening at or after noon skips
	// breakfast.
	fastingNoonHour = 12
)

// MealGenerator produces a last-resort meal for a slot. Implemented by
// *genmeal.Generator.
type MealGenerator interface {
	Generate(ctx context.Context, req genmeal.Request) (nutrition.MealCandidate, shared.AgentMeta)
}

// DayBudgets splits a week across seven days. Without a reward day every
// day gets the flat daily target. With one at index r, the days before
// it each bank 10% of the target, day r receives everything banked on
// top of the target, and the days after return to the flat target.
func DayBudgets(dailyTarget float64, rewardDayIndex *int) ([7]float64, error) {
	var budgets [7]float64
	if dailyTarget <= 0 {
		return budgets, fmt.Errorf("daily target must be positive, got %v", dailyTarget)
	}
	if rewardDayIndex != nil && (*rewardDayIndex < 0 || *rewardDayIndex >= len(budgets)) {
		return budgets, fmt.Errorf("reward day index out of range: %d", *rewardDayIndex)
	}

	for i := range budgets {
		budgets[i] = dailyTarget
	}
	if rewardDayIndex == nil {
		return budgets, nil
	}

	r := *rewardDayIndex
	saved := math.Round(dailyTarget * savingsFrac)
	for i := 0; i < r; i++ {
		budgets[i] = dailyTarget - saved
	}
	budgets[r] = dailyTarget + saved*float64(r)
	return budgets, nil
}

// DayRequest describes one day to allocate.
type DayRequest struct {
	DayIndex   int
	Label      string
	Budget     float64
	Prefs      Preferences
	Exclusions []string
	// RewardSlot routes one slot straight to the generative adapter for
	// a treat-style meal. Empty means a regular day.
	RewardSlot nutrition.MealSlot
}

// Allocator fills the four slots of a single day from the candidate
// sources, falling back to the generative adapter, and reconciles the
// day total against the budget.
type Allocator struct {
	registry  *sources.Registry
	generator MealGenerator
	logger    *zap.Logger
}

func NewAllocator(registry *sources.Registry, generator MealGenerator, logger *zap.Logger) *Allocator {
	return &Allocator{registry: registry, generator: generator, logger: logger}
}

// AllocateDay builds one day of meals. Slots run in fixed order and each
// chosen name extends the exclusion list for the slots after it. The
// returned metadata covers every generative call made for the day.
func (a *Allocator) AllocateDay(ctx context.Context, req DayRequest) (DayPlan, []shared.AgentMeta, error) {
	if req.Budget <= 0 {
		return DayPlan{}, nil, fmt.Errorf("day budget must be positive, got %v", req.Budget)
	}
	if req.DayIndex < 0 || req.DayIndex >= len(dayLabels) {
		return DayPlan{}, nil, fmt.Errorf("day index out of range: %d", req.DayIndex)
	}

	day := DayPlan{
		DayIndex:  req.DayIndex,
		Label:     req.Label,
		Budget:    req.Budget,
		RewardDay: req.RewardSlot != "",
	}

	fastingBreakfast := req.Prefs.EatingWindowStart >= fastingNoonHour
	lastActive := -1
	for i, slot := range nutrition.Slots {
		if slot == nutrition.SlotBreakfast && fastingBreakfast {
			continue
		}
		lastActive = i
	}

	exclusions := append([]string(nil), req.Exclusions...)
	used := 0.0
	var metas []shared.AgentMeta

	for i, slot := range nutrition.Slots {
		if slot == nutrition.SlotBreakfast && fastingBreakfast {
			day.Meals = append(day.Meals, SlotMeal{Slot: slot, Meal: nutrition.FastingPlaceholder()})
			continue
		}

		slotTarget := math.Round(req.Budget * slot.Ratio())
		if i == lastActive {
			// The last slot absorbs earlier drift so the day converges
			// on its budget, floored at half its nominal share.
			slotTarget = math.Round(math.Max(req.Budget-used, 0.5*slot.Ratio()*req.Budget))
		}

		meal, meta := a.fillSlot(ctx, slot, slotTarget, req, exclusions)
		if meta != nil {
			metas = append(metas, *meta)
		}

		if !nutrition.WithinTolerance(meal.Calories, slotTarget, rescueTolerance) {
			meal = nutrition.ScaleTo(meal, slotTarget)
		}

		used += meal.Calories
		if meal.Name != "" {
			exclusions = append(exclusions, strings.ToLower(meal.Name))
		}
		day.Meals = append(day.Meals, SlotMeal{Slot: slot, Meal: meal})
	}

	a.reconcileDay(&day)
	return day, metas, nil
}

// fillSlot picks a meal for one slot: candidate sources first, the
// generative adapter for reward slots or when no source delivers.
func (a *Allocator) fillSlot(
	ctx context.Context,
	slot nutrition.MealSlot,
	slotTarget float64,
	req DayRequest,
	exclusions []string,
) (nutrition.MealCandidate, *shared.AgentMeta) {
	if slot != req.RewardSlot {
		if meal, ok := a.fromSources(ctx, slot, slotTarget, req.Prefs, exclusions); ok {
			return meal, nil
		}
	}

	meal, meta := a.generator.Generate(ctx, genmeal.Request{
		Slot:           slot,
		CalorieTarget:  slotTarget,
		MaxPrepMinutes: req.Prefs.MaxPrepMinutes,
		DietType:       req.Prefs.DietType,
		Allergies:      req.Prefs.Allergies,
		Exclusions:     exclusions,
		Treat:          slot == req.RewardSlot,
	})
	return meal, &meta
}

// fromSources queries the adapters in preference order. The first
// candidate within ±20% of the slot target wins as-is; failing that, the
// nearest candidate by calorie distance is scaled exactly onto the
// target.
func (a *Allocator) fromSources(
	ctx context.Context,
	slot nutrition.MealSlot,
	slotTarget float64,
	prefs Preferences,
	exclusions []string,
) (nutrition.MealCandidate, bool) {
	constraints := sources.Constraints{
		TargetCalories: slotTarget,
		MaxPrepMinutes: prefs.MaxPrepMinutes,
		DietType:       prefs.DietType,
		Allergies:      prefs.Allergies,
		Slot:           slot,
	}
	query := slotQuery(prefs.DietType, slot)

	var nearest nutrition.MealCandidate
	nearestDist := math.MaxFloat64
	found := false

	for _, adapter := range a.registry.OrderFor(prefs.SourcePreference) {
		for _, candidate := range adapter.Search(ctx, query, constraints) {
			if candidate.Calories <= 0 || isExcluded(candidate.Name, exclusions) {
				continue
			}
			if nutrition.WithinTolerance(candidate.Calories, slotTarget, slotTolerance) {
				return candidate, true
			}
			if d := math.Abs(candidate.Calories - slotTarget); d < nearestDist {
				nearest, nearestDist, found = candidate, d, true
			}
		}
	}

	if !found {
		return nutrition.MealCandidate{}, false
	}
	return nutrition.ScaleTo(nearest, slotTarget), true
}

// reconcileDay nudges the day total inside ±10% of the budget by adding
// the signed difference to the last non-fasting meal, never shrinking it
// below 50 kcal. Macros stay untouched. A day that still cannot converge
// is flagged and logged, never rejected.
func (a *Allocator) reconcileDay(day *DayPlan) {
	total := mealTotal(day.Meals)

	if !nutrition.WithinTolerance(total, day.Budget, dayTolerance) {
		if idx := lastAdjustableMeal(day.Meals); idx >= 0 {
			meal := day.Meals[idx].Meal
			adjusted := math.Max(minMealCalories, math.Round(meal.Calories+day.Budget-total))
			total += adjusted - meal.Calories
			day.Meals[idx].Meal.Calories = adjusted
		}
	}

	day.TotalCalories = total
	if !nutrition.WithinTolerance(total, day.Budget, dayTolerance) {
		day.OutOfTolerance = true
		a.logger.Warn("day total outside tolerance",
			zap.String("day", day.Label),
			zap.Float64("budget", day.Budget),
			zap.Float64("total", total))
	}
}

func lastAdjustableMeal(meals []SlotMeal) int {
	for i := len(meals) - 1; i >= 0; i-- {
		if !meals[i].Meal.IsFasting() {
			return i
		}
	}
	return -1
}

func slotQuery(dietType string, slot nutrition.MealSlot) string {
	return strings.TrimSpace(dietType + " " + string(slot))
}

func isExcluded(name string, exclusions []string) bool {
	return slices.Contains(exclusions, strings.ToLower(name))
}
