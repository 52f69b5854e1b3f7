package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/procedure-suggest-server/internal/domain"
)

// CachedStore wraps a Store with an in-memory LRU for per-name lookups.
// Catalog contents change rarely, so entries carry a generous TTL.
type CachedStore struct {
	inner Store

	cache    *lru.Cache
	cacheTTL time.Duration

	logger  *logrus.Logger
	stats   CacheStats
	statsMu sync.RWMutex
}

// CacheStats represents cache performance statistics.
type CacheStats struct {
	Hits      int64     `json:"hits"`
	Misses    int64     `json:"misses"`
	Evictions int64     `json:"evictions"`
	LastReset time.Time `json:"last_reset"`
}

type cachedEntry struct {
	procedure domain.ProcedureDefinition
	cachedAt  time.Time
}

// CachedStoreConfig configures the cache wrapper.
type CachedStoreConfig struct {
	MaxEntries int
	TTL        time.Duration
}

// NewCachedStore wraps inner with an LRU lookup cache.
func NewCachedStore(inner Store, config CachedStoreConfig, logger *logrus.Logger) (*CachedStore, error) {
	if config.MaxEntries == 0 {
		config.MaxEntries = 1000
	}
	if config.TTL == 0 {
		config.TTL = 15 * time.Minute
	}

	cache, err := lru.New(config.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog cache: %w", err)
	}

	return &CachedStore{
		inner:    inner,
		cache:    cache,
		cacheTTL: config.TTL,
		logger:   logger,
		stats:    CacheStats{LastReset: time.Now()},
	}, nil
}

// AllProcedures passes through to the inner store.
func (c *CachedStore) AllProcedures(ctx context.Context) ([]domain.ProcedureDefinition, error) {
	return c.inner.AllProcedures(ctx)
}

// GetProcedure serves hot lookups from the LRU, falling back to the inner
// store on miss or expiry.
func (c *CachedStore) GetProcedure(ctx context.Context, controlName string) (*domain.ProcedureDefinition, error) {
	if value, ok := c.cache.Get(controlName); ok {
		entry := value.(cachedEntry)
		if time.Since(entry.cachedAt) < c.cacheTTL {
			c.bumpStat(func(s *CacheStats) { s.Hits++ })
			p := entry.procedure
			return &p, nil
		}
		c.cache.Remove(controlName)
		c.bumpStat(func(s *CacheStats) { s.Evictions++ })
	}
	c.bumpStat(func(s *CacheStats) { s.Misses++ })

	procedure, err := c.inner.GetProcedure(ctx, controlName)
	if err != nil {
		return nil, err
	}

	c.cache.Add(controlName, cachedEntry{procedure: *procedure, cachedAt: time.Now()})
	c.logger.WithFields(logrus.Fields{
		"control_name": controlName,
	}).Debug("Catalog cache populated")

	return procedure, nil
}

// Categories passes through to the inner store.
func (c *CachedStore) Categories(ctx context.Context) ([]domain.Category, error) {
	return c.inner.Categories(ctx)
}

// Invalidate drops a cached entry, e.g. after a catalog reload.
func (c *CachedStore) Invalidate(controlName string) {
	c.cache.Remove(controlName)
}

// Stats returns a snapshot of cache performance counters.
func (c *CachedStore) Stats() CacheStats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()
	return c.stats
}

// Close closes the inner store.
func (c *CachedStore) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}

func (c *CachedStore) bumpStat(fn func(*CacheStats)) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	fn(&c.stats)
}
