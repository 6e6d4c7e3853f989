package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// EmbeddingCache wraps an EmbeddingGenerator with a file-backed cache
// keyed by the exact input text. Slot queries and recipe titles repeat
// heavily across planning runs, so hits avoid paid embedding calls.
type EmbeddingCache struct {
	next EmbeddingGenerator
	path string

	mu      sync.RWMutex
	entries map[string][]float32
	dirty   bool
}

// NewEmbeddingCache loads the cache file at path if one exists. A missing
// file is a cold start, not an error.
func NewEmbeddingCache(next EmbeddingGenerator, path string) (*EmbeddingCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &EmbeddingCache{
		next:    next,
		path:    path,
		entries: make(map[string][]float32),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding cache %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		return nil, fmt.Errorf("failed to parse embedding cache %s: %w", path, err)
	}
	return c, nil
}

// GenerateEmbedding serves the embedding from the cache when present and
// delegates to the wrapped generator otherwise. New embeddings stay in
// memory until Flush.
func (c *EmbeddingCache) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	c.mu.RLock()
	embedding, ok := c.entries[text]
	c.mu.RUnlock()
	if ok {
		return embedding, nil
	}

	embedding, err := c.next.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	c.mu.Lock()
	c.entries[text] = embedding
	c.dirty = true
	c.mu.Unlock()
	return embedding, nil
}

// Flush persists the cache to disk. The write goes through a temp file
// and a rename so a crash never truncates the previous cache. A cache
// with no new entries is left untouched.
func (c *EmbeddingCache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}

	data, err := json.Marshal(c.entries)
	if err != nil {
		return fmt.Errorf("failed to encode embedding cache: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write embedding cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("failed to replace embedding cache: %w", err)
	}

	c.dirty = false
	return nil
}

// Len reports how many embeddings the cache holds.
func (c *EmbeddingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
