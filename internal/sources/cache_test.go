package sources

import (
	"context"
	"testing"
	"time"

	"budget-meal-planner/internal/nutrition"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// unreachableRedis returns a client whose every command fails fast.
func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		ReadTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestCachedAdapter(t *testing.T) {
	ctx := context.Background()

	t.Run("FallsThroughWhenCacheUnavailable", func(t *testing.T) {
		inner := &fakeAdapter{candidates: []nutrition.MealCandidate{
			{Name: "Oat Porridge", Calories: 320, SourceKind: nutrition.SourceStructuredRecipe},
		}}
		cached := NewCachedAdapter(inner, unreachableRedis(), "recipes", zap.NewNop())

		got := cached.Search(ctx, "breakfast", Constraints{TargetCalories: 350})
		if len(got) != 1 || got[0].Name != "Oat Porridge" {
			t.Fatalf("Expected the wrapped adapter's candidates, got %v", got)
		}
		if inner.calls != 1 {
			t.Errorf("Expected 1 call to the wrapped adapter, got %d", inner.calls)
		}

		// A second search still reaches the adapter: nothing was cached.
		cached.Search(ctx, "breakfast", Constraints{TargetCalories: 350})
		if inner.calls != 2 {
			t.Errorf("Expected 2 calls to the wrapped adapter, got %d", inner.calls)
		}
	})

	t.Run("EmptyResultsPassThrough", func(t *testing.T) {
		inner := &fakeAdapter{}
		cached := NewCachedAdapter(inner, unreachableRedis(), "recipes", zap.NewNop())

		got := cached.Search(ctx, "breakfast", Constraints{TargetCalories: 350})
		if len(got) != 0 {
			t.Errorf("Expected empty result, got %v", got)
		}
	})

	t.Run("KeyVariesWithConstraints", func(t *testing.T) {
		cached := NewCachedAdapter(&fakeAdapter{}, unreachableRedis(), "recipes", zap.NewNop())

		base := Constraints{TargetCalories: 350, Slot: nutrition.SlotBreakfast}
		k1 := cached.cacheKey("breakfast", base)

		other := base
		other.TargetCalories = 500
		if k2 := cached.cacheKey("breakfast", other); k1 == k2 {
			t.Error("Expected different keys for different calorie targets")
		}

		other = base
		other.Allergies = []string{"peanut"}
		if k2 := cached.cacheKey("breakfast", other); k1 == k2 {
			t.Error("Expected different keys for different allergy lists")
		}

		if k2 := cached.cacheKey("BREAKFAST", base); k1 != k2 {
			t.Error("Expected query casing not to change the key")
		}
	})
}
