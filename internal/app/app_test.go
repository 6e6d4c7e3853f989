package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"budget-meal-planner/internal/config"
	"budget-meal-planner/internal/database"
	"budget-meal-planner/internal/genmeal"
	"budget-meal-planner/internal/importer"
	"budget-meal-planner/internal/ledger"
	"budget-meal-planner/internal/llm"
	"budget-meal-planner/internal/metrics"
	"budget-meal-planner/internal/nutrition"
	"budget-meal-planner/internal/planner"
	"budget-meal-planner/internal/recipe"
	"budget-meal-planner/internal/shared"
	"budget-meal-planner/internal/sources"
	"budget-meal-planner/internal/storage"
	"budget-meal-planner/internal/vault"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// --- Mocks ---

// StubAdapter answers every search with one meal sized exactly to the
// slot target, under a name not used before.
type StubAdapter struct {
	Empty bool
	calls int
}

func (s *StubAdapter) Search(_ context.Context, _ string, c sources.Constraints) []nutrition.MealCandidate {
	if s.Empty {
		return nil
	}
	s.calls++
	return []nutrition.MealCandidate{{
		Name:       fmt.Sprintf("Stub meal %d", s.calls),
		Calories:   c.TargetCalories,
		Proteins:   20,
		Carbs:      40,
		Fats:       10,
		SourceKind: nutrition.SourceStructuredRecipe,
	}}
}

// StubGenerator stands in for the generative adapter and reports token
// usage so metrics recording can be asserted.
type StubGenerator struct {
	calls   int
	lastReq genmeal.Request
}

func (s *StubGenerator) Generate(_ context.Context, req genmeal.Request) (nutrition.MealCandidate, shared.AgentMeta) {
	s.calls++
	s.lastReq = req
	return nutrition.MealCandidate{
			Name:       fmt.Sprintf("Generated meal %d", s.calls),
			Calories:   req.CalorieTarget,
			SourceKind: nutrition.SourceGenerated,
		}, shared.AgentMeta{
			AgentName: "MealGenerator",
			Usage:     shared.TokenUsage{Model: "stub-model", PromptTokens: 42, CompletionTokens: 17},
			Latency:   10 * time.Millisecond,
		}
}

type MockVaultClient struct {
	Entries  []vault.Entry
	FetchErr error
}

func (m *MockVaultClient) FetchEntries() ([]vault.Entry, error) {
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	return m.Entries, nil
}

func (m *MockVaultClient) CreateEntry(title, html string, publish bool) (*vault.Entry, error) {
	return &vault.Entry{ID: "vault-123", Title: title, HTML: html, UpdatedAt: "2024-01-05T09:00:00Z"}, nil
}

type MockTextGenerator struct {
	Response string
	Err      error
	Calls    int
}

func (m *MockTextGenerator) GenerateContent(ctx context.Context, prompt string) (llm.ContentResponse, error) {
	m.Calls++
	if m.Err != nil {
		return llm.ContentResponse{}, m.Err
	}
	return llm.ContentResponse{
		Content: m.Response,
		Usage:   shared.TokenUsage{Model: "llama-test", PromptTokens: 100, CompletionTokens: 50},
	}, nil
}

type MockEmbeddingGenerator struct{}

func (m *MockEmbeddingGenerator) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.5, 0.5}, nil
}

const extractedRecipeJSON = `{
	"title": "Tasty Flatbread",
	"ingredients": ["200g flour", "120ml water"],
	"instructions": "Mix flour and water. Bake.",
	"tags": ["bread"],
	"prep_time_minutes": 20,
	"servings": 2,
	"calories": 310,
	"proteins": 9,
	"carbs": 62,
	"fats": 2
}`

// appFixture is an App wired against an on-disk SQLite database (real
// migrations) and in-memory fakes for everything that would leave the
// process.
type appFixture struct {
	app       *App
	adapter   *StubAdapter
	generator *StubGenerator
	textGen   *MockTextGenerator
	vaultFake *MockVaultClient
}

func newAppFixture(t *testing.T) *appFixture {
	t.Helper()

	cfg := &config.Config{
		DatabasePath:       filepath.Join(t.TempDir(), "data", "planner.db"),
		DailyCalorieTarget: 2000,
		RewardDayIndex:     6,
		SourcePreference:   "balanced",
		EatingWindowStart:  8,
	}
	logger := zap.NewNop()

	db, err := database.NewDB(cfg.DatabasePath, logger)
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	adapter := &StubAdapter{}
	generator := &StubGenerator{}
	registry := &sources.Registry{Recipes: adapter}
	weekPlanner := planner.NewWeekPlanner(planner.NewAllocator(registry, generator, logger), logger)

	recipeRepo := recipe.NewRepository(db.SQL)
	vectorRepo := llm.NewVectorRepository(db.SQL)
	planRepo := planner.NewPlanRepository(db.SQL)
	ledgerRepo := ledger.NewRepository(db.SQL)
	catalogRepo := sources.NewCatalogRepository(db.SQL)
	metricsStore := metrics.NewStore(db.SQL)

	recipeCache, err := storage.NewRecipeCache(filepath.Join(t.TempDir(), "recipe_cache"))
	if err != nil {
		t.Fatalf("Failed to create recipe cache: %v", err)
	}

	textGen := &MockTextGenerator{Response: extractedRecipeJSON}
	embedGen := &MockEmbeddingGenerator{}
	vaultFake := &MockVaultClient{}
	recipeImporter := importer.NewImporter(vaultFake, textGen, embedGen, recipeRepo, vectorRepo)

	a := NewApp(cfg, logger, db, weekPlanner, planRepo, ledgerRepo, catalogRepo,
		recipeImporter, vaultFake, textGen, embedGen, recipeRepo, vectorRepo,
		recipeCache, metricsStore)

	return &appFixture{
		app:       a,
		adapter:   adapter,
		generator: generator,
		textGen:   textGen,
		vaultFake: vaultFake,
	}
}

// --- Ledger operations ---

func TestLogConsumption(t *testing.T) {
	ctx := context.Background()

	t.Run("WithoutCycleReturnsErrNoLedger", func(t *testing.T) {
		fx := newAppFixture(t)

		_, err := fx.app.LogConsumption(ctx, "user-1", time.Now().UTC(), 500)
		if !errors.Is(err, ErrNoLedger) {
			t.Errorf("Expected ErrNoLedger, got %v", err)
		}
	})

	t.Run("RecordsIntoCurrentCycle", func(t *testing.T) {
		fx := newAppFixture(t)
		if _, err := fx.app.GeneratePlan(ctx, planner.Preferences{UserID: "user-1", DailyCalories: 2000}); err != nil {
			t.Fatalf("Expected no error generating plan, got %v", err)
		}

		now := time.Now().UTC()
		l, err := fx.app.LogConsumption(ctx, "user-1", now, 1500)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		idx := l.DayIndex(now)
		if got := l.Days()[idx].Consumed; got != 1500 {
			t.Errorf("Expected 1500 consumed on day %d, got %v", idx, got)
		}

		reloaded, err := fx.app.ledgerRepo.Load(ctx, "user-1")
		if err != nil {
			t.Fatalf("Expected no error reloading ledger, got %v", err)
		}
		if got := reloaded.Days()[idx].Consumed; got != 1500 {
			t.Errorf("Expected consumption persisted, got %v", got)
		}
	})

	t.Run("NegativeCaloriesRejected", func(t *testing.T) {
		fx := newAppFixture(t)
		if _, err := fx.app.GeneratePlan(ctx, planner.Preferences{UserID: "user-1", DailyCalories: 2000}); err != nil {
			t.Fatalf("Expected no error generating plan, got %v", err)
		}

		if _, err := fx.app.LogConsumption(ctx, "user-1", time.Now().UTC(), -50); err == nil {
			t.Error("Expected error for negative calories")
		}
	})
}

func TestCreditStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("WithoutCycleReturnsErrNoLedger", func(t *testing.T) {
		fx := newAppFixture(t)

		_, err := fx.app.CreditStatus(ctx, "user-1")
		if !errors.Is(err, ErrNoLedger) {
			t.Errorf("Expected ErrNoLedger, got %v", err)
		}
	})

	t.Run("RollsOverExpiredCycle", func(t *testing.T) {
		fx := newAppFixture(t)

		stale, err := ledger.New(startOfWeek(time.Now().UTC()).AddDate(0, 0, -14), 2000, 6)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if err := stale.RecordConsumption(stale.CycleStart(), 1500); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if err := fx.app.ledgerRepo.Save(ctx, "user-1", stale); err != nil {
			t.Fatalf("Expected no error saving, got %v", err)
		}

		l, err := fx.app.CreditStatus(ctx, "user-1")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		wantStart := startOfWeek(time.Now().UTC())
		if !l.CycleStart().Equal(wantStart) {
			t.Errorf("Expected rolled-over cycle start %v, got %v", wantStart, l.CycleStart())
		}
		if got := l.Days()[0].Consumed; got != 0 {
			t.Errorf("Expected a fresh cycle after rollover, got %v consumed", got)
		}

		// The rolled-over cycle must be the one persisted.
		reloaded, err := fx.app.ledgerRepo.Load(ctx, "user-1")
		if err != nil {
			t.Fatalf("Expected no error reloading, got %v", err)
		}
		if !reloaded.CycleStart().Equal(wantStart) {
			t.Errorf("Expected persisted cycle start %v, got %v", wantStart, reloaded.CycleStart())
		}
	})
}

// --- Food catalog operations ---

const seedJSON = `[
	{"name": "Chicken breast", "category": "poultry", "calories_per_100g": 165, "proteins_per_100g": 31, "carbs_per_100g": 0, "fats_per_100g": 3.6},
	{"name": "Brown rice", "category": "grains", "calories_per_100g": 112, "proteins_per_100g": 2.6, "carbs_per_100g": 23, "fats_per_100g": 0.9}
]`

func TestFoodOperations(t *testing.T) {
	ctx := context.Background()

	t.Run("SeedSearchAndGet", func(t *testing.T) {
		fx := newAppFixture(t)

		path := filepath.Join(t.TempDir(), "catalog.json")
		if err := os.WriteFile(path, []byte(seedJSON), 0644); err != nil {
			t.Fatalf("Expected no error writing seed file, got %v", err)
		}

		n, err := fx.app.SeedCatalog(ctx, path)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if n != 2 {
			t.Errorf("Expected 2 seeded items, got %d", n)
		}

		items, err := fx.app.SearchFoods(ctx, "chicken", 10)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(items) != 1 || items[0].Name != "Chicken breast" {
			t.Fatalf("Expected to find the chicken breast, got %+v", items)
		}

		item, err := fx.app.FoodByID(ctx, items[0].ID)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if item == nil || item.CaloriesPer100g != 165 {
			t.Errorf("Expected chicken breast at 165 kcal/100g, got %+v", item)
		}

		missing, err := fx.app.FoodByID(ctx, 99999)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if missing != nil {
			t.Errorf("Expected nil for unknown food, got %+v", missing)
		}
	})

	t.Run("SeedFileMissing", func(t *testing.T) {
		fx := newAppFixture(t)

		if _, err := fx.app.SeedCatalog(ctx, filepath.Join(t.TempDir(), "nope.json")); err == nil {
			t.Error("Expected error for missing seed file")
		}
	})
}

func TestStartOfWeek(t *testing.T) {
	cases := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"Monday", time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC), time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)},
		{"Wednesday", time.Date(2025, 3, 5, 23, 59, 0, 0, time.UTC), time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)},
		{"Sunday", time.Date(2025, 3, 9, 0, 0, 1, 0, time.UTC), time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := startOfWeek(tc.in); !got.Equal(tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, got)
			}
		})
	}
}
