package registry

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/Energy-Exe/energyexe-core-backend/internal/models"

	"go.uber.org/zap"
)

const cacheKeyPrefix = "harmonizer:phases:"

// CachedLoader serves phases from a KV cache and falls back to the wrapped
// loader on a miss. Cache errors never fail a load.
type CachedLoader struct {
	next   Loader
	kv     KVStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedLoader wraps next with a cache of the given TTL.
func NewCachedLoader(next Loader, kv KVStore, ttl time.Duration, logger *zap.Logger) *CachedLoader {
	return &CachedLoader{next: next, kv: kv, ttl: ttl, logger: logger}
}

// CacheKey is the cache key for a source set; order does not matter.
func CacheKey(sources []models.Source) string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = string(s)
	}
	sort.Strings(names)
	return cacheKeyPrefix + strings.Join(names, ",")
}

func (c *CachedLoader) ListPhases(ctx context.Context, sources []models.Source) ([]models.AssetPhase, error) {
	key := CacheKey(sources)

	raw, err := c.kv.Get(ctx, key)
	switch {
	case err == nil:
		var phases []models.AssetPhase
		jerr := json.Unmarshal([]byte(raw), &phases)
		if jerr == nil {
			c.logger.Debug("Asset phases served from cache", zap.String("key", key), zap.Int("count", len(phases)))
			return phases, nil
		}
		c.logger.Warn("Discarding unreadable asset phase cache entry", zap.String("key", key), zap.Error(jerr))
	case !errors.Is(err, ErrCacheMiss):
		c.logger.Warn("Asset phase cache unavailable", zap.String("key", key), zap.Error(err))
	}

	phases, err := c.next.ListPhases(ctx, sources)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(phases)
	if err != nil {
		return phases, nil
	}
	if err := c.kv.Set(ctx, key, string(payload), c.ttl); err != nil {
		c.logger.Warn("Failed to cache asset phases", zap.String("key", key), zap.Error(err))
	}
	return phases, nil
}

// Invalidate drops the cached entry for sources.
func (c *CachedLoader) Invalidate(ctx context.Context, sources []models.Source) error {
	return c.kv.Del(ctx, CacheKey(sources))
}
