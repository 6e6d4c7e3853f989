package app

import (
	"context"
	"fmt"
	"time"

	"budget-meal-planner/internal/ledger"
	"budget-meal-planner/internal/planner"

	"go.uber.org/zap"
)

// GeneratePlan builds a fresh weekly plan for the user in prefs, persists
// it, and aligns the user's ledger cycle with the plan's day budgets.
func (a *App) GeneratePlan(ctx context.Context, prefs planner.Preferences) (*planner.WeeklyPlan, error) {
	a.applyPreferenceDefaults(&prefs)

	plan, metas, err := a.weekPlanner.GenerateWeeklyPlan(ctx, prefs)
	if err != nil {
		return nil, fmt.Errorf("failed to generate weekly plan: %w", err)
	}
	a.recordMetas(metas)

	if err := a.planRepo.Save(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to save weekly plan: %w", err)
	}

	// The plan is saved at this point; ledger trouble is logged, not
	// returned.
	if err := a.syncLedgerWithPlan(ctx, plan, prefs); err != nil {
		a.logger.Warn("failed to align ledger with plan",
			zap.String("user_id", prefs.UserID),
			zap.Error(err))
	}

	return plan, nil
}

// LatestPlan returns the most recently generated plan for the user.
func (a *App) LatestPlan(ctx context.Context, userID string) (*planner.WeeklyPlan, error) {
	plan, err := a.planRepo.LatestByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest plan: %w", err)
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}
	return plan, nil
}

// RegenerateDay replaces one day of a stored plan with freshly allocated
// meals, excluding everything already served elsewhere in the week.
func (a *App) RegenerateDay(ctx context.Context, planID string, dayIndex int, prefs planner.Preferences) (*planner.WeeklyPlan, error) {
	a.applyPreferenceDefaults(&prefs)

	plan, err := a.loadOwnedPlan(ctx, planID, prefs.UserID)
	if err != nil {
		return nil, err
	}

	_, metas, err := a.weekPlanner.RegenerateDay(ctx, dayIndex, prefs, plan)
	if err != nil {
		return nil, fmt.Errorf("failed to regenerate day %d: %w", dayIndex, err)
	}
	a.recordMetas(metas)

	if err := a.planRepo.Save(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to save weekly plan: %w", err)
	}
	return plan, nil
}

// ProposeRewardDay converts one weekend day of a stored plan into a
// reward day funded by the week's savings, then confirms the reward on
// the user's ledger.
func (a *App) ProposeRewardDay(ctx context.Context, planID string, chosenIndex int, prefs planner.Preferences) (*planner.WeeklyPlan, error) {
	a.applyPreferenceDefaults(&prefs)

	plan, err := a.loadOwnedPlan(ctx, planID, prefs.UserID)
	if err != nil {
		return nil, err
	}

	updated, metas, err := a.weekPlanner.ProposeRewardDay(ctx, plan, prefs, chosenIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to propose reward day: %w", err)
	}
	a.recordMetas(metas)

	if err := a.planRepo.Save(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to save weekly plan: %w", err)
	}

	if err := a.confirmRewardOnLedger(ctx, prefs.UserID, updated, chosenIndex); err != nil {
		a.logger.Warn("failed to confirm reward on ledger",
			zap.String("user_id", prefs.UserID),
			zap.Error(err))
	}

	return updated, nil
}

// loadOwnedPlan fetches a plan and hides its existence from other users.
func (a *App) loadOwnedPlan(ctx context.Context, planID, userID string) (*planner.WeeklyPlan, error) {
	plan, err := a.planRepo.Get(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	if plan == nil || plan.UserID != userID {
		return nil, ErrPlanNotFound
	}
	return plan, nil
}

// applyPreferenceDefaults fills unset preference fields from configuration.
func (a *App) applyPreferenceDefaults(prefs *planner.Preferences) {
	if prefs.DailyCalories <= 0 {
		prefs.DailyCalories = float64(a.cfg.DailyCalorieTarget)
	}
	if prefs.SourcePreference == "" {
		prefs.SourcePreference = a.cfg.SourcePreference
	}
	if prefs.EatingWindowStart == 0 {
		prefs.EatingWindowStart = a.cfg.EatingWindowStart
	}
}

// syncLedgerWithPlan starts a ledger cycle for the user if none exists
// and points its day targets at the plan's budgets, so savings are
// measured against what was actually planned.
func (a *App) syncLedgerWithPlan(ctx context.Context, plan *planner.WeeklyPlan, prefs planner.Preferences) error {
	now := time.Now().UTC()

	l, err := a.ledgerRepo.Load(ctx, prefs.UserID)
	if err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}
	if l == nil {
		rewardIdx := a.cfg.RewardDayIndex
		if plan.RewardDayIndex != nil {
			rewardIdx = *plan.RewardDayIndex
		}
		l, err = ledger.New(startOfWeek(now), prefs.DailyCalories, rewardIdx)
		if err != nil {
			return fmt.Errorf("failed to start ledger cycle: %w", err)
		}
	} else {
		l.RolloverIfExpired(now)
	}

	if err := l.SetDayTargets(dayBudgets(plan)); err != nil {
		return fmt.Errorf("failed to set ledger day targets: %w", err)
	}
	if err := a.ledgerRepo.Save(ctx, prefs.UserID, l); err != nil {
		return fmt.Errorf("failed to save ledger: %w", err)
	}
	return nil
}

// confirmRewardOnLedger re-aligns the ledger with the reworked budgets
// and marks the reward as accepted. Without a ledger there is nothing to
// confirm against.
func (a *App) confirmRewardOnLedger(ctx context.Context, userID string, plan *planner.WeeklyPlan, chosenIndex int) error {
	l, err := a.ledgerRepo.Load(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}
	if l == nil {
		return nil
	}

	if err := l.SetRewardDay(chosenIndex); err != nil {
		return err
	}
	if err := l.SetDayTargets(dayBudgets(plan)); err != nil {
		return fmt.Errorf("failed to set ledger day targets: %w", err)
	}
	l.ConfirmReward()

	if err := a.ledgerRepo.Save(ctx, userID, l); err != nil {
		return fmt.Errorf("failed to save ledger: %w", err)
	}
	return nil
}

func dayBudgets(plan *planner.WeeklyPlan) []float64 {
	targets := make([]float64, len(plan.Days))
	for i, day := range plan.Days {
		targets[i] = day.Budget
	}
	return targets
}

// startOfWeek returns the Monday midnight (UTC) of the week containing t.
func startOfWeek(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
