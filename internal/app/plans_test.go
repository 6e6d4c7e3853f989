package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"budget-meal-planner/internal/planner"
)

func TestGeneratePlan(t *testing.T) {
	ctx := context.Background()

	t.Run("SavesPlanAndStartsLedger", func(t *testing.T) {
		fx := newAppFixture(t)

		plan, err := fx.app.GeneratePlan(ctx, planner.Preferences{UserID: "user-1", DailyCalories: 2000})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if plan.ID == "" {
			t.Error("Expected the plan to get an ID")
		}
		for i, day := range plan.Days {
			if day.Budget != 2000 {
				t.Errorf("Day %d: expected flat budget 2000, got %v", i, day.Budget)
			}
			if len(day.Meals) != 4 {
				t.Errorf("Day %d: expected 4 slots, got %d", i, len(day.Meals))
			}
		}

		stored, err := fx.app.planRepo.LatestByUserID(ctx, "user-1")
		if err != nil {
			t.Fatalf("Expected no error loading stored plan, got %v", err)
		}
		if stored == nil || stored.ID != plan.ID {
			t.Error("Expected the generated plan to be persisted")
		}

		l, err := fx.app.ledgerRepo.Load(ctx, "user-1")
		if err != nil {
			t.Fatalf("Expected no error loading ledger, got %v", err)
		}
		if l == nil {
			t.Fatal("Expected plan generation to start a ledger cycle")
		}
		if want := startOfWeek(time.Now().UTC()); !l.CycleStart().Equal(want) {
			t.Errorf("Expected cycle start %v, got %v", want, l.CycleStart())
		}
		if l.RewardDayIndex() != 6 {
			t.Errorf("Expected configured reward day 6, got %d", l.RewardDayIndex())
		}
		for i, day := range l.Days() {
			if day.Target != 2000 {
				t.Errorf("Ledger day %d: expected target 2000, got %v", i, day.Target)
			}
		}
	})

	t.Run("AppliesConfiguredDefaults", func(t *testing.T) {
		fx := newAppFixture(t)

		plan, err := fx.app.GeneratePlan(ctx, planner.Preferences{UserID: "user-1"})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if got := plan.Days[0].Budget; got != 2000 {
			t.Errorf("Expected the configured 2000 kcal default, got %v", got)
		}
	})

	t.Run("PlansRewardDayUpFront", func(t *testing.T) {
		fx := newAppFixture(t)

		idx := 6
		plan, err := fx.app.GeneratePlan(ctx, planner.Preferences{
			UserID:         "user-1",
			DailyCalories:  2000,
			RewardDayIndex: &idx,
		})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		for i := 0; i < 6; i++ {
			if plan.Days[i].Budget != 1800 {
				t.Errorf("Day %d: expected savings budget 1800, got %v", i, plan.Days[i].Budget)
			}
		}
		if plan.Days[6].Budget != 3200 {
			t.Errorf("Expected reward day budget 3200, got %v", plan.Days[6].Budget)
		}
		if !plan.Days[6].RewardDay {
			t.Error("Expected day 6 to be flagged as the reward day")
		}
		if fx.generator.calls == 0 {
			t.Error("Expected the reward dinner to come from the generator")
		}

		l, err := fx.app.ledgerRepo.Load(ctx, "user-1")
		if err != nil {
			t.Fatalf("Expected no error loading ledger, got %v", err)
		}
		if got := l.Days()[6].Target; got != 3200 {
			t.Errorf("Expected ledger reward day target 3200, got %v", got)
		}
		if got := l.Days()[0].Target; got != 1800 {
			t.Errorf("Expected ledger savings day target 1800, got %v", got)
		}
	})
}

func TestLatestPlan(t *testing.T) {
	ctx := context.Background()

	t.Run("ReturnsNewest", func(t *testing.T) {
		fx := newAppFixture(t)

		if _, err := fx.app.GeneratePlan(ctx, planner.Preferences{UserID: "user-1", DailyCalories: 2000}); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		second, err := fx.app.GeneratePlan(ctx, planner.Preferences{UserID: "user-1", DailyCalories: 1800})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		latest, err := fx.app.LatestPlan(ctx, "user-1")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if latest.ID != second.ID {
			t.Errorf("Expected the second plan %s, got %s", second.ID, latest.ID)
		}
	})

	t.Run("NoPlanIsNotFound", func(t *testing.T) {
		fx := newAppFixture(t)

		_, err := fx.app.LatestPlan(ctx, "user-1")
		if !errors.Is(err, ErrPlanNotFound) {
			t.Errorf("Expected ErrPlanNotFound, got %v", err)
		}
	})
}

func TestRegenerateDay(t *testing.T) {
	ctx := context.Background()
	prefs := planner.Preferences{UserID: "user-1", DailyCalories: 2000}

	t.Run("ReplacesOnlyThatDay", func(t *testing.T) {
		fx := newAppFixture(t)

		plan, err := fx.app.GeneratePlan(ctx, prefs)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		before := plan.Days[3].Meals[0].Meal.Name
		untouched := plan.Days[2].Meals[0].Meal.Name

		updated, err := fx.app.RegenerateDay(ctx, plan.ID, 3, prefs)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if updated.Days[3].Meals[0].Meal.Name == before {
			t.Error("Expected day 3 to be reallocated with fresh meals")
		}
		if updated.Days[2].Meals[0].Meal.Name != untouched {
			t.Error("Expected the other days to stay untouched")
		}

		stored, err := fx.app.planRepo.Get(ctx, plan.ID)
		if err != nil {
			t.Fatalf("Expected no error loading stored plan, got %v", err)
		}
		if stored.Days[3].Meals[0].Meal.Name != updated.Days[3].Meals[0].Meal.Name {
			t.Error("Expected the regenerated day to be persisted")
		}
	})

	t.Run("UnknownPlan", func(t *testing.T) {
		fx := newAppFixture(t)

		_, err := fx.app.RegenerateDay(ctx, "missing-plan", 3, prefs)
		if !errors.Is(err, ErrPlanNotFound) {
			t.Errorf("Expected ErrPlanNotFound, got %v", err)
		}
	})

	t.Run("OtherUsersPlanStaysHidden", func(t *testing.T) {
		fx := newAppFixture(t)

		plan, err := fx.app.GeneratePlan(ctx, prefs)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		_, err = fx.app.RegenerateDay(ctx, plan.ID, 3, planner.Preferences{UserID: "intruder", DailyCalories: 2000})
		if !errors.Is(err, ErrPlanNotFound) {
			t.Errorf("Expected ErrPlanNotFound for foreign plan, got %v", err)
		}
	})
}

func TestProposeRewardDay(t *testing.T) {
	ctx := context.Background()
	prefs := planner.Preferences{UserID: "user-1", DailyCalories: 2000}

	t.Run("ConfirmsRewardAndRealignsLedger", func(t *testing.T) {
		fx := newAppFixture(t)

		plan, err := fx.app.GeneratePlan(ctx, prefs)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		updated, err := fx.app.ProposeRewardDay(ctx, plan.ID, 6, prefs)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if updated.RewardDayIndex == nil || *updated.RewardDayIndex != 6 {
			t.Error("Expected the plan to carry reward day 6")
		}
		if !updated.RewardConfirmed {
			t.Error("Expected the reward to be confirmed on the plan")
		}
		if updated.Days[6].Budget != 3200 {
			t.Errorf("Expected reward day budget 3200, got %v", updated.Days[6].Budget)
		}
		if updated.Days[5].Budget != 1800 {
			t.Errorf("Expected Saturday scaled down to 1800, got %v", updated.Days[5].Budget)
		}
		if !fx.generator.lastReq.Treat {
			t.Error("Expected the treat dinner to be requested from the generator")
		}

		l, err := fx.app.ledgerRepo.Load(ctx, "user-1")
		if err != nil {
			t.Fatalf("Expected no error loading ledger, got %v", err)
		}
		if !l.RewardConfirmed() {
			t.Error("Expected the reward confirmed on the ledger")
		}
		if l.RewardDayIndex() != 6 {
			t.Errorf("Expected ledger reward day 6, got %d", l.RewardDayIndex())
		}
		if got := l.Days()[6].Target; got != 3200 {
			t.Errorf("Expected ledger day 6 target 3200, got %v", got)
		}
		if got := l.Days()[5].Target; got != 1800 {
			t.Errorf("Expected ledger day 5 target 1800, got %v", got)
		}

		// The generative treat's token usage must land in the metrics store.
		usage, err := fx.app.UsageReport(1)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(usage) != 1 || usage[0].TotalExecution != 1 {
			t.Fatalf("Expected one recorded execution, got %+v", usage)
		}
		if usage[0].TotalPrompt != 42 {
			t.Errorf("Expected 42 prompt tokens recorded, got %d", usage[0].TotalPrompt)
		}
	})

	t.Run("SaturdayRewardUpdatesLedgerIndex", func(t *testing.T) {
		fx := newAppFixture(t)

		plan, err := fx.app.GeneratePlan(ctx, prefs)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		if _, err := fx.app.ProposeRewardDay(ctx, plan.ID, 5, prefs); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		l, err := fx.app.ledgerRepo.Load(ctx, "user-1")
		if err != nil {
			t.Fatalf("Expected no error loading ledger, got %v", err)
		}
		if l.RewardDayIndex() != 5 {
			t.Errorf("Expected ledger reward day moved to 5, got %d", l.RewardDayIndex())
		}
	})

	t.Run("WeekdayIndexRejected", func(t *testing.T) {
		fx := newAppFixture(t)

		plan, err := fx.app.GeneratePlan(ctx, prefs)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		_, err = fx.app.ProposeRewardDay(ctx, plan.ID, 3, prefs)
		if err == nil {
			t.Fatal("Expected error for weekday reward index")
		}
		if errors.Is(err, ErrPlanNotFound) {
			t.Error("Expected a validation error, not ErrPlanNotFound")
		}
	})

	t.Run("UnknownPlan", func(t *testing.T) {
		fx := newAppFixture(t)

		_, err := fx.app.ProposeRewardDay(ctx, "missing-plan", 6, prefs)
		if !errors.Is(err, ErrPlanNotFound) {
			t.Errorf("Expected ErrPlanNotFound, got %v", err)
		}
	})
}
