package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"budget-meal-planner/internal/recipe"
)

// RecipeCache is a file-based cache of extracted recipes, versioned by
// the vault's updated-at stamp. A cache hit lets a vault sync skip the
// LLM extraction for entries that have not changed.
type RecipeCache struct {
	basePath string
}

// NewRecipeCache creates a RecipeCache and ensures the base directory exists.
func NewRecipeCache(basePath string) (*RecipeCache, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", basePath, err)
	}
	return &RecipeCache{basePath: basePath}, nil
}

// sanitizeTimestamp makes the timestamp safe for filenames.
func sanitizeTimestamp(ts string) string {
	return strings.ReplaceAll(ts, ":", "-")
}

// versionedPath returns the full path for a given recipe ID and version.
func (c *RecipeCache) versionedPath(recipeID, updatedAt string) string {
	filename := fmt.Sprintf("%s_%s.json", recipeID, sanitizeTimestamp(updatedAt))
	return filepath.Join(c.basePath, filename)
}

// Save stores an extracted recipe under its ID and source version. Older
// versions of the same recipe are removed so only the latest one exists.
func (c *RecipeCache) Save(rec recipe.Recipe) error {
	if rec.ID == "" {
		return fmt.Errorf("recipe has no id")
	}
	if err := c.RemoveStaleVersions(rec.ID); err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal recipe: %w", err)
	}
	if err := os.WriteFile(c.versionedPath(rec.ID, rec.UpdatedAt), data, 0644); err != nil {
		return fmt.Errorf("failed to write recipe file: %w", err)
	}
	return nil
}

// Load retrieves the cached extraction for a specific source version.
func (c *RecipeCache) Load(recipeID, updatedAt string) (*recipe.Recipe, error) {
	data, err := os.ReadFile(c.versionedPath(recipeID, updatedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe file: %w", err)
	}

	var rec recipe.Recipe
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipe: %w", err)
	}
	return &rec, nil
}

// Exists reports whether an extraction for this exact source version is
// already cached.
func (c *RecipeCache) Exists(recipeID, updatedAt string) bool {
	_, err := os.Stat(c.versionedPath(recipeID, updatedAt))
	return !os.IsNotExist(err)
}

// RemoveStaleVersions removes all cached versions of a recipe.
func (c *RecipeCache) RemoveStaleVersions(recipeID string) error {
	pattern := filepath.Join(c.basePath, fmt.Sprintf("%s_*.json", recipeID))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("failed to glob stale files: %w", err)
	}

	for _, match := range matches {
		if err := os.Remove(match); err != nil {
			return fmt.Errorf("failed to remove stale file %s: %w", match, err)
		}
	}
	return nil
}
