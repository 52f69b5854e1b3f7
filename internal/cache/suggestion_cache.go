// Package cache provides a two-tier response cache for suggestion queries.
// Tier 1 is an in-process LRU with TTL; tier 2 is an optional shared Redis.
// The engine itself stays cache-free; this sits in front of it in the
// service layer and keys on the prediction-data revision, so any counter
// mutation naturally invalidates all prior entries.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/procedure-suggest-server/internal/domain"
)

// SuggestionCacheConfig configures both tiers.
type SuggestionCacheConfig struct {
	MaxEntries int
	MemoryTTL  time.Duration
	RedisTTL   time.Duration

	// RedisURL enables tier 2 when non-empty.
	RedisURL string
}

// SuggestionCache caches ranked suggestion lists.
type SuggestionCache struct {
	memory *expirable.LRU[string, []domain.ProcedureSuggestion]

	redis    *redis.Client
	redisTTL time.Duration
	breaker  *gobreaker.CircuitBreaker

	logger *logrus.Logger
}

// NewSuggestionCache creates the cache. When config.RedisURL is empty the
// cache runs memory-only; Redis failures never propagate to callers, the
// breaker opens and lookups fall through.
func NewSuggestionCache(config SuggestionCacheConfig, logger *logrus.Logger) (*SuggestionCache, error) {
	if config.MaxEntries == 0 {
		config.MaxEntries = 512
	}
	if config.MemoryTTL == 0 {
		config.MemoryTTL = 5 * time.Minute
	}
	if config.RedisTTL == 0 {
		config.RedisTTL = time.Hour
	}

	memory := expirable.NewLRU[string, []domain.ProcedureSuggestion](config.MaxEntries, nil, config.MemoryTTL)

	c := &SuggestionCache{
		memory:   memory,
		redisTTL: config.RedisTTL,
		logger:   logger,
	}

	if config.RedisURL != "" {
		opts, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		c.redis = redis.NewClient(opts)
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "suggestion-cache-redis",
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Cache circuit breaker state change")
			},
		})
	}

	return c, nil
}

// Key derives the cache key for one suggestion query. Session order does
// not affect the result, so the ids are sorted before hashing. The
// revision folds every counter mutation into the key.
func Key(sessionIDs []string, threshold float64, maxResults int, revision int64) string {
	sorted := make([]string, len(sessionIDs))
	copy(sorted, sessionIDs)
	sort.Strings(sorted)

	payload := fmt.Sprintf("%s|%g|%d|%d", strings.Join(sorted, ","), threshold, maxResults, revision)
	hash := sha256.Sum256([]byte(payload))
	return fmt.Sprintf("suggestions:%x", hash[:12])
}

// Get returns a cached suggestion list, checking memory then Redis.
func (c *SuggestionCache) Get(ctx context.Context, key string) ([]domain.ProcedureSuggestion, bool) {
	if suggestions, ok := c.memory.Get(key); ok {
		return suggestions, true
	}

	if c.redis == nil {
		return nil, false
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.redis.Get(ctx, key).Result()
	})
	if err != nil {
		if err != redis.Nil && err != gobreaker.ErrOpenState && err != gobreaker.ErrTooManyRequests {
			c.logger.WithError(err).Debug("Redis cache lookup failed")
		}
		return nil, false
	}

	var suggestions []domain.ProcedureSuggestion
	if err := json.Unmarshal([]byte(result.(string)), &suggestions); err != nil {
		c.redis.Del(ctx, key)
		return nil, false
	}

	// Promote to tier 1 for subsequent lookups.
	c.memory.Add(key, suggestions)
	return suggestions, true
}

// Set stores a suggestion list in both tiers.
func (c *SuggestionCache) Set(ctx context.Context, key string, suggestions []domain.ProcedureSuggestion) {
	c.memory.Add(key, suggestions)

	if c.redis == nil {
		return
	}

	payload, err := json.Marshal(suggestions)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to encode suggestions for cache")
		return
	}

	if _, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.redis.Set(ctx, key, payload, c.redisTTL).Err()
	}); err != nil {
		if err != gobreaker.ErrOpenState && err != gobreaker.ErrTooManyRequests {
			c.logger.WithError(err).Debug("Redis cache store failed")
		}
	}
}

// Purge drops every tier-1 entry. Redis entries age out via TTL.
func (c *SuggestionCache) Purge() {
	c.memory.Purge()
}

// Close releases the Redis connection if one was configured.
func (c *SuggestionCache) Close() error {
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}
