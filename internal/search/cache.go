package search

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/logger"
)

// FacetCache caches facet metadata; facet queries scan the whole chunks
// table, so a short-lived cache keeps the browse page cheap. Ingest drops
// the cached entry so new content shows up without waiting out the TTL.
type FacetCache interface {
	Get(ctx context.Context) (Facets, bool)
	Set(ctx context.Context, f Facets)
	Del(ctx context.Context)
}

const (
	facetCacheKey = "athena:facets"
	facetCacheTTL = 5 * time.Minute
)

type RedisFacetCache struct {
	rdb *redis.Client
	log *logger.Logger
}

func NewRedisFacetCache(ctx context.Context, log *logger.Logger, addr string) (*RedisFacetCache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DialTimeout: 5 * time.Second})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &RedisFacetCache{rdb: rdb, log: log.With("component", "facet-cache")}, nil
}

func (c *RedisFacetCache) Get(ctx context.Context) (Facets, bool) {
	raw, err := c.rdb.Get(ctx, facetCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("facet cache read failed", "err", err)
		}
		return Facets{}, false
	}
	var f Facets
	if err := json.Unmarshal(raw, &f); err != nil {
		return Facets{}, false
	}
	return f, true
}

func (c *RedisFacetCache) Set(ctx context.Context, f Facets) {
	raw, err := json.Marshal(f)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, facetCacheKey, raw, facetCacheTTL).Err(); err != nil {
		c.log.Warn("facet cache write failed", "err", err)
	}
}

func (c *RedisFacetCache) Del(ctx context.Context) {
	if err := c.rdb.Del(ctx, facetCacheKey).Err(); err != nil {
		c.log.Warn("facet cache invalidate failed", "err", err)
	}
}

func (c *RedisFacetCache) Close() error { return c.rdb.Close() }
