// Package app hosts the application operations behind the CLI, the HTTP
// API, and the Telegram bot, and owns the production dependency graph.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"budget-meal-planner/internal/config"
	"budget-meal-planner/internal/database"
	"budget-meal-planner/internal/genmeal"
	"budget-meal-planner/internal/importer"
	"budget-meal-planner/internal/ledger"
	"budget-meal-planner/internal/llm"
	"budget-meal-planner/internal/metrics"
	"budget-meal-planner/internal/planner"
	"budget-meal-planner/internal/recipe"
	"budget-meal-planner/internal/shared"
	"budget-meal-planner/internal/sources"
	"budget-meal-planner/internal/storage"
	"budget-meal-planner/internal/vault"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// ErrPlanNotFound is returned when a plan does not exist or belongs
	// to a different user.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrNoLedger is returned when the user has no active ledger cycle.
	// Generating a plan starts one.
	ErrNoLedger = errors.New("no active ledger cycle")
)

// App holds the application's dependencies.
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *database.DB

	weekPlanner *planner.WeekPlanner
	planRepo    *planner.PlanRepository
	ledgerRepo  *ledger.Repository
	catalogRepo *sources.CatalogRepository

	recipeImporter *importer.Importer
	vaultClient    vault.Client
	textGen        llm.TextGenerator
	embedGen       llm.EmbeddingGenerator
	recipeRepo     *recipe.Repository
	vectorRepo     *llm.VectorRepository
	recipeCache    *storage.RecipeCache

	metricsStore *metrics.Store

	// Lifecycle handles, set by Bootstrap.
	gemini     *llm.GeminiClient
	embedCache *llm.EmbeddingCache
}

// NewApp creates a new App instance from already-constructed dependencies.
func NewApp(
	cfg *config.Config,
	logger *zap.Logger,
	db *database.DB,
	weekPlanner *planner.WeekPlanner,
	planRepo *planner.PlanRepository,
	ledgerRepo *ledger.Repository,
	catalogRepo *sources.CatalogRepository,
	recipeImporter *importer.Importer,
	vaultClient vault.Client,
	textGen llm.TextGenerator,
	embedGen llm.EmbeddingGenerator,
	recipeRepo *recipe.Repository,
	vectorRepo *llm.VectorRepository,
	recipeCache *storage.RecipeCache,
	metricsStore *metrics.Store,
) *App {
	return &App{
		cfg:            cfg,
		logger:         logger,
		db:             db,
		weekPlanner:    weekPlanner,
		planRepo:       planRepo,
		ledgerRepo:     ledgerRepo,
		catalogRepo:    catalogRepo,
		recipeImporter: recipeImporter,
		vaultClient:    vaultClient,
		textGen:        textGen,
		embedGen:       embedGen,
		recipeRepo:     recipeRepo,
		vectorRepo:     vectorRepo,
		recipeCache:    recipeCache,
		metricsStore:   metricsStore,
	}
}

// Bootstrap wires the full production dependency graph from configuration.
// All three binaries share it. The caller owns the returned App and must
// Close it.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	// 1. Database (runs migrations).
	db, err := database.NewDB(cfg.DatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// 2. LLM clients. Groq generates text, Gemini embeds; embeddings go
	// through a file-backed cache keyed by content.
	gemini, err := llm.NewGeminiClient(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	textGen := llm.NewGroqClient(cfg)
	embedCache, err := llm.NewEmbeddingCache(gemini, filepath.Join(cfg.DataDir(), "embedding_cache.json"))
	if err != nil {
		gemini.Close()
		db.Close()
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}

	// 3. Repositories and stores.
	recipeRepo := recipe.NewRepository(db.SQL)
	vectorRepo := llm.NewVectorRepository(db.SQL)
	planRepo := planner.NewPlanRepository(db.SQL)
	ledgerRepo := ledger.NewRepository(db.SQL)
	catalogRepo := sources.NewCatalogRepository(db.SQL)
	metricsStore := metrics.NewStore(db.SQL)

	recipeCache, err := storage.NewRecipeCache(filepath.Join(cfg.DataDir(), "recipe_cache"))
	if err != nil {
		gemini.Close()
		db.Close()
		return nil, fmt.Errorf("failed to create recipe cache: %w", err)
	}

	// 4. Meal sources. Redis is optional; without it every search hits
	// the adapters directly.
	registry := &sources.Registry{
		Recipes:  sources.NewRecipeVaultAdapter(embedCache, vectorRepo, recipeRepo, logger),
		Catalog:  sources.NewCatalogAdapter(catalogRepo, logger),
		Products: sources.NewProductAPIAdapter(cfg.ProductAPIURL, logger),
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		registry.Recipes = sources.NewCachedAdapter(registry.Recipes, rdb, "recipes", logger)
		registry.Catalog = sources.NewCachedAdapter(registry.Catalog, rdb, "catalog", logger)
		registry.Products = sources.NewCachedAdapter(registry.Products, rdb, "products", logger)
	}

	// 5. Planning pipeline.
	generator := genmeal.NewGenerator(textGen, logger)
	allocator := planner.NewAllocator(registry, generator, logger)
	weekPlanner := planner.NewWeekPlanner(allocator, logger)

	// 6. Vault ingestion.
	vaultClient := vault.NewClient(cfg)
	recipeImporter := importer.NewImporter(vaultClient, textGen, embedCache, recipeRepo, vectorRepo)

	a := NewApp(cfg, logger, db, weekPlanner, planRepo, ledgerRepo, catalogRepo,
		recipeImporter, vaultClient, textGen, embedCache, recipeRepo, vectorRepo,
		recipeCache, metricsStore)
	a.gemini = gemini
	a.embedCache = embedCache
	return a, nil
}

// Close flushes the embedding cache and releases the LLM and database
// handles. Safe to call on an App built directly with NewApp.
func (a *App) Close() {
	if a.embedCache != nil {
		if err := a.embedCache.Flush(); err != nil {
			a.logger.Warn("failed to persist embedding cache", zap.Error(err))
		}
	}
	if a.gemini != nil {
		if err := a.gemini.Close(); err != nil {
			a.logger.Warn("failed to close gemini client", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close database", zap.Error(err))
		}
	}
}

// DB exposes the underlying handle for health checks and session storage.
func (a *App) DB() *sql.DB {
	return a.db.SQL
}

// UsageReport aggregates LLM token usage per day for the last days.
func (a *App) UsageReport(days int) ([]metrics.DailyUsage, error) {
	return a.metricsStore.GetDailyUsage(days)
}

// CleanupMetrics deletes execution metrics older than the given number of
// days and returns how many rows were removed.
func (a *App) CleanupMetrics(olderThanDays int) (int64, error) {
	return a.metricsStore.Cleanup(olderThanDays)
}

// recordMeta persists the usage of one agent execution. Metrics are
// best-effort and never fail the operation that produced them.
func (a *App) recordMeta(meta shared.AgentMeta) {
	if err := a.metricsStore.RecordMeta(meta); err != nil {
		a.logger.Warn("failed to record llm usage",
			zap.String("agent", meta.AgentName),
			zap.Error(err))
	}
}

func (a *App) recordMetas(metas []shared.AgentMeta) {
	for _, meta := range metas {
		a.recordMeta(meta)
	}
}
