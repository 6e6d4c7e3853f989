package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"budget-meal-planner/internal/nutrition"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const searchCacheTTL = 30 * time.Minute

// CachedAdapter wraps an Adapter with a Redis read-through cache keyed by
// query and constraints. Cache trouble is never surfaced: reads fall
// through to the wrapped adapter and writes are best-effort.
type CachedAdapter struct {
	next   Adapter
	cache  *redis.Client
	prefix string
	logger *zap.Logger
}

// NewCachedAdapter creates a new CachedAdapter. The prefix keeps keys of
// different adapters apart.
func NewCachedAdapter(next Adapter, cache *redis.Client, prefix string, logger *zap.Logger) *CachedAdapter {
	return &CachedAdapter{
		next:   next,
		cache:  cache,
		prefix: prefix,
		logger: logger,
	}
}

func (a *CachedAdapter) cacheKey(query string, c Constraints) string {
	return fmt.Sprintf("search:%s:%s:%.0f:%d:%s:%s:%s",
		a.prefix,
		strings.ToLower(query),
		c.TargetCalories,
		c.MaxPrepMinutes,
		strings.ToLower(c.DietType),
		strings.ToLower(strings.Join(c.Allergies, ",")),
		c.Slot,
	)
}

// Search implements Adapter.
func (a *CachedAdapter) Search(ctx context.Context, query string, c Constraints) []nutrition.MealCandidate {
	key := a.cacheKey(query, c)

	val, err := a.cache.Get(ctx, key).Result()
	if err == nil {
		var candidates []nutrition.MealCandidate
		if err := json.Unmarshal([]byte(val), &candidates); err == nil {
			return candidates
		}

		a.logger.Warn("search cache: corrupted entry, cleaning up", zap.String("key", key))
		a.cache.Del(ctx, key)
	} else if err != redis.Nil {
		a.logger.Warn("search cache: read error", zap.Error(err))
	}

	candidates := a.next.Search(ctx, query, c)

	if len(candidates) > 0 {
		if data, err := json.Marshal(candidates); err == nil {
			if setErr := a.cache.Set(ctx, key, data, searchCacheTTL).Err(); setErr != nil {
				a.logger.Warn("search cache: write error", zap.Error(setErr))
			}
		}
	}

	return candidates
}
