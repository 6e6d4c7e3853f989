package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"budget-meal-planner/internal/recipe"
	"budget-meal-planner/internal/vault"

	"go.uber.org/zap"
)

// vaultSyncPause spaces out extractions to stay under the Gemini free
// tier rate limits (15 RPM) when embedding uncached entries.
const vaultSyncPause = 5 * time.Second

// SyncVault walks every vault entry and runs extraction for the ones
// whose current version has not been processed before. A failed entry is
// logged and skipped; the sync keeps going.
func (a *App) SyncVault(ctx context.Context) error {
	entries, err := a.vaultClient.FetchEntries()
	if err != nil {
		return fmt.Errorf("failed to fetch vault entries: %w", err)
	}
	a.logger.Info("fetched vault entries", zap.Int("count", len(entries)))

	extracted := 0
	for _, entry := range entries {
		if a.recipeCache.Exists(entry.ID, entry.UpdatedAt) {
			a.logger.Debug("vault entry unchanged, skipping",
				zap.String("id", entry.ID),
				zap.String("title", entry.Title))
			continue
		}

		if extracted > 0 {
			time.Sleep(vaultSyncPause)
		}
		if err := a.extractAndStore(ctx, entry); err != nil {
			a.logger.Warn("failed to extract vault entry",
				zap.String("id", entry.ID),
				zap.String("title", entry.Title),
				zap.Error(err))
			continue
		}
		extracted++
	}

	a.logger.Info("vault sync complete",
		zap.Int("extracted", extracted),
		zap.Int("total", len(entries)))
	return nil
}

// extractAndStore runs the extraction pipeline for one vault entry.
func (a *App) extractAndStore(ctx context.Context, entry vault.Entry) error {
	// 1. Extract structured recipe data and embed it.
	result, meta, err := recipe.NormalizeHTML(ctx, a.textGen, a.embedGen, recipe.PageData{
		ID:        entry.ID,
		Title:     entry.Title,
		HTML:      entry.HTML,
		UpdatedAt: entry.UpdatedAt,
	})
	if err != nil {
		return err
	}
	a.recordMeta(meta)

	// 2. Persist the recipe and its embedding.
	if err := a.recipeRepo.Save(ctx, result.Recipe); err != nil {
		return fmt.Errorf("failed to save recipe: %w", err)
	}
	if err := a.vectorRepo.Save(ctx, result.Recipe.ID, result.Embedding); err != nil {
		return fmt.Errorf("failed to save embedding: %w", err)
	}

	// 3. Mark this vault version as processed so the next sync skips it.
	if err := a.recipeCache.Save(result.Recipe); err != nil {
		a.logger.Warn("failed to cache extracted recipe",
			zap.String("id", result.Recipe.ID),
			zap.Error(err))
	}

	a.logger.Info("extracted recipe",
		zap.String("title", result.Recipe.Title),
		zap.Float64("calories", result.Recipe.Calories))
	return nil
}

// ImportRecipe clips a recipe from an external URL into the vault and
// the local database, and returns the extracted recipe.
func (a *App) ImportRecipe(ctx context.Context, url string) (*recipe.Recipe, error) {
	rec, meta, err := a.recipeImporter.ImportURL(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to import recipe: %w", err)
	}
	a.recordMeta(meta)

	// Remember the vault version so the next sync does not re-extract it.
	if err := a.recipeCache.Save(*rec); err != nil {
		a.logger.Warn("failed to cache imported recipe",
			zap.String("id", rec.ID),
			zap.Error(err))
	}

	a.logger.Info("imported recipe",
		zap.String("title", rec.Title),
		zap.String("url", url))
	return rec, nil
}

// SeedCatalog loads branded food products from a JSON file into the
// catalog and reports how many items were written.
func (a *App) SeedCatalog(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	n, err := a.catalogRepo.SeedFromJSON(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("failed to seed catalog: %w", err)
	}

	a.logger.Info("seeded food catalog",
		zap.Int("items", n),
		zap.String("path", path))
	return n, nil
}
