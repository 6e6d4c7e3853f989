package planner

import (
	"context"
	"fmt"
	"math"
	"time"

	"budget-meal-planner/internal/genmeal"
	"budget-meal-planner/internal/nutrition"
	"budget-meal-planner/internal/shared"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WeekPlanner orchestrates seven day allocations, the reward-day budget
// redistribution and single-day regeneration.
type WeekPlanner struct {
	allocator *Allocator
	logger    *zap.Logger
}

func NewWeekPlanner(allocator *Allocator, logger *zap.Logger) *WeekPlanner {
	return &WeekPlanner{allocator: allocator, logger: logger}
}

// GenerateWeeklyPlan allocates all seven days in order. Days share one
// exclusion list so meal names picked early reduce repetition later in
// the week. When the preferences plan a reward day its dinner is routed
// to the generative adapter for a treat.
func (p *WeekPlanner) GenerateWeeklyPlan(ctx context.Context, prefs Preferences) (*WeeklyPlan, []shared.AgentMeta, error) {
	budgets, err := DayBudgets(prefs.DailyCalories, prefs.RewardDayIndex)
	if err != nil {
		return nil, nil, err
	}

	plan := &WeeklyPlan{
		ID:             uuid.NewString(),
		UserID:         prefs.UserID,
		RewardDayIndex: prefs.RewardDayIndex,
		CreatedAt:      time.Now().UTC(),
	}

	var metas []shared.AgentMeta
	var exclusions []string

	for i := range plan.Days {
		req := DayRequest{
			DayIndex:   i,
			Label:      dayLabels[i],
			Budget:     budgets[i],
			Prefs:      prefs,
			Exclusions: exclusions,
		}
		if prefs.RewardDayIndex != nil && *prefs.RewardDayIndex == i {
			req.RewardSlot = nutrition.SlotDinner
		}

		day, dayMetas, err := p.allocator.AllocateDay(ctx, req)
		if err != nil {
			return nil, metas, fmt.Errorf("failed to allocate %s: %w", dayLabels[i], err)
		}

		plan.Days[i] = day
		metas = append(metas, dayMetas...)
		exclusions = append(exclusions, usedNames(day)...)
	}

	return plan, metas, nil
}

// RegenerateDay reallocates a single day of an existing plan in place,
// excluding every meal name used by the other six days. The existing
// reward day index keeps steering the budget split.
func (p *WeekPlanner) RegenerateDay(ctx context.Context, dayIndex int, prefs Preferences, existing *WeeklyPlan) (DayPlan, []shared.AgentMeta, error) {
	if existing == nil {
		return DayPlan{}, nil, fmt.Errorf("existing plan is required")
	}
	if dayIndex < 0 || dayIndex >= len(existing.Days) {
		return DayPlan{}, nil, fmt.Errorf("day index out of range: %d", dayIndex)
	}

	budgets, err := DayBudgets(prefs.DailyCalories, existing.RewardDayIndex)
	if err != nil {
		return DayPlan{}, nil, err
	}

	var exclusions []string
	for i, day := range existing.Days {
		if i == dayIndex {
			continue
		}
		exclusions = append(exclusions, usedNames(day)...)
	}

	req := DayRequest{
		DayIndex:   dayIndex,
		Label:      dayLabels[dayIndex],
		Budget:     budgets[dayIndex],
		Prefs:      prefs,
		Exclusions: exclusions,
	}
	if existing.RewardDayIndex != nil && *existing.RewardDayIndex == dayIndex {
		req.RewardSlot = nutrition.SlotDinner
	}

	day, metas, err := p.allocator.AllocateDay(ctx, req)
	if err != nil {
		return DayPlan{}, metas, err
	}

	existing.Days[dayIndex] = day
	return day, metas, nil
}

// ProposeRewardDay converts one of the weekend days of a flat plan into
// a confirmed reward day. Choosing Sunday keeps Saturday a savings day
// by scaling it down first. The chosen day's dinner is replaced with a
// single generative treat sized to 40% of the daily target plus half the
// savings banked up to that day.
func (p *WeekPlanner) ProposeRewardDay(ctx context.Context, existing *WeeklyPlan, prefs Preferences, chosenIndex int) (*WeeklyPlan, []shared.AgentMeta, error) {
	if existing == nil {
		return nil, nil, fmt.Errorf("existing plan is required")
	}
	if chosenIndex != 5 && chosenIndex != 6 {
		return nil, nil, fmt.Errorf("reward day index must be 5 or 6, got %d", chosenIndex)
	}
	if prefs.DailyCalories <= 0 {
		return nil, nil, fmt.Errorf("daily target must be positive, got %v", prefs.DailyCalories)
	}

	saved := math.Round(prefs.DailyCalories * savingsFrac)

	if chosenIndex == 6 {
		factor := (prefs.DailyCalories - saved) / prefs.DailyCalories
		scaleDay(&existing.Days[5], factor)
	}

	treatTarget := math.Round(0.4*prefs.DailyCalories + 0.5*saved*float64(chosenIndex))
	treat, meta := p.allocator.generator.Generate(ctx, genmeal.Request{
		Slot:           nutrition.SlotDinner,
		CalorieTarget:  treatTarget,
		MaxPrepMinutes: prefs.MaxPrepMinutes,
		DietType:       prefs.DietType,
		Allergies:      prefs.Allergies,
		Exclusions:     usedNames(existing.Days[:]...),
		Treat:          true,
	})

	day := &existing.Days[chosenIndex]
	replaceSlotMeal(day, nutrition.SlotDinner, treat)
	day.Budget = prefs.DailyCalories + saved*float64(chosenIndex)
	day.RewardDay = true
	day.TotalCalories = mealTotal(day.Meals)
	// Reward days are not judged against the day tolerance.
	day.OutOfTolerance = false

	existing.RewardDayIndex = &chosenIndex
	existing.RewardConfirmed = true

	p.logger.Info("reward day confirmed",
		zap.Int("day_index", chosenIndex),
		zap.Float64("treat_calories", treat.Calories))

	return existing, []shared.AgentMeta{meta}, nil
}
