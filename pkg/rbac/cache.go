package rbac

import (
	"context"
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/rsbst23/groundup/pkg/observability"
)

// ErrNoInvalidation is returned when a grant cache is requested without an
// invalidation channel
var ErrNoInvalidation = errors.New("rbac: grant cache requires an invalidation subscriber")

type cacheKey struct {
	tenantID int64
	userID   int64
}

// CacheConfig sizes the grant cache
type CacheConfig struct {
	Size int
	TTL  time.Duration
}

// CachingResolver memoizes successful resolutions per (tenant, user). Entries
// are dropped when a matching Invalidation arrives; the TTL only bounds how
// long a missed invalidation can go unnoticed.
type CachingResolver struct {
	next    GrantResolver
	cache   *lru.LRU[cacheKey, *GrantSet]
	metrics *observability.Metrics

	// generation changes on every invalidation so a resolution that raced
	// with one is not stored
	mu         sync.Mutex
	generation uint64

	unsubscribe func() error
}

// NewCachingResolver wraps next with a cache that subscribes to sub. A nil
// subscriber is rejected: without invalidation there is no caching.
func NewCachingResolver(ctx context.Context, next GrantResolver, sub Subscriber, cfg CacheConfig, metrics *observability.Metrics) (*CachingResolver, error) {
	if sub == nil {
		return nil, ErrNoInvalidation
	}
	if cfg.Size <= 0 {
		cfg.Size = 10000
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}

	c := &CachingResolver{
		next:    next,
		cache:   lru.NewLRU[cacheKey, *GrantSet](cfg.Size, nil, cfg.TTL),
		metrics: metrics,
	}

	unsubscribe, err := sub.Subscribe(ctx, c.Invalidate)
	if err != nil {
		return nil, err
	}
	c.unsubscribe = unsubscribe
	return c, nil
}

// Resolve serves from cache or delegates. Errors are never cached.
func (c *CachingResolver) Resolve(ctx context.Context, userID, tenantID int64) (*GrantSet, error) {
	key := cacheKey{tenantID: tenantID, userID: userID}

	if grants, ok := c.cache.Get(key); ok {
		c.metrics.RecordCacheEvent(observability.CacheHit)
		return grants, nil
	}
	c.metrics.RecordCacheEvent(observability.CacheMiss)

	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	grants, err := c.next.Resolve(ctx, userID, tenantID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.generation == gen {
		c.cache.Add(key, grants)
	}
	c.mu.Unlock()

	return grants, nil
}

// Invalidate drops every entry matched by event
func (c *CachingResolver) Invalidate(event Invalidation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++

	if event.UserID == nil && event.TenantID == nil {
		c.cache.Purge()
		c.metrics.RecordCacheEvent(observability.CachePurge)
		return
	}

	for _, key := range c.cache.Keys() {
		if event.Matches(key.userID, key.tenantID) {
			c.cache.Remove(key)
		}
	}
	c.metrics.RecordCacheEvent(observability.CacheInvalidate)
}

// Len reports the number of cached grant sets
func (c *CachingResolver) Len() int {
	return c.cache.Len()
}

// Close stops listening for invalidations
func (c *CachingResolver) Close() error {
	if c.unsubscribe == nil {
		return nil
	}
	return c.unsubscribe()
}
