package external

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prime-cvd-server/internal/domain"
)

// CitationCache wraps Redis with caching for resolved citation metadata.
// Entries carry their own expiry in addition to the Redis TTL so a restored
// dump never serves stale data.
type CitationCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewCitationCache creates a new citation cache client
func NewCitationCache(config domain.CacheConfig) (*CitationCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Apply cache-specific configurations
	opts.PoolSize = config.PoolSize
	opts.PoolTimeout = config.PoolTimeout
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	defaultTTL := config.DefaultTTL
	if defaultTTL == 0 {
		defaultTTL = 7 * 24 * time.Hour
	}

	return &CitationCache{
		redis:      client,
		defaultTTL: defaultTTL,
	}, nil
}

// CachedCitation represents cached citation metadata with expiry bookkeeping
type CachedCitation struct {
	Data      *domain.Citation `json:"data"`
	CachedAt  time.Time        `json:"cached_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// Get retrieves a cached citation. A miss returns (nil, nil).
func (c *CitationCache) Get(ctx context.Context, pmid string) (*domain.Citation, error) {
	key := citationKey(pmid)

	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil // Cache miss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get citation cache: %w", err)
	}

	var cached CachedCitation
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		// Remove corrupted cache entry
		c.redis.Del(ctx, key)
		return nil, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, nil
	}

	return cached.Data, nil
}

// Set caches a citation. A zero TTL uses the configured default.
func (c *CitationCache) Set(ctx context.Context, pmid string, citation *domain.Citation, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	cached := CachedCitation{
		Data:      citation,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}

	jsonData, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal citation cache data: %w", err)
	}

	return c.redis.Set(ctx, citationKey(pmid), jsonData, ttl).Err()
}

// Delete removes a cached citation.
func (c *CitationCache) Delete(ctx context.Context, pmid string) error {
	return c.redis.Del(ctx, citationKey(pmid)).Err()
}

// InvalidatePattern removes all cached citations matching a key pattern.
func (c *CitationCache) InvalidatePattern(ctx context.Context, pattern string) error {
	keys, err := c.redis.Keys(ctx, pattern).Result()
	if err != nil {
		return fmt.Errorf("failed to get keys for pattern %s: %w", pattern, err)
	}

	if len(keys) == 0 {
		return nil
	}

	return c.redis.Del(ctx, keys...).Err()
}

// GetStats returns cache statistics
func (c *CitationCache) GetStats(ctx context.Context) (map[string]interface{}, error) {
	info, err := c.redis.Info(ctx, "memory", "stats").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis info: %w", err)
	}

	keyspace, err := c.redis.Info(ctx, "keyspace").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis keyspace: %w", err)
	}

	stats := map[string]interface{}{
		"memory_info": info,
		"keyspace":    keyspace,
		"client_info": map[string]interface{}{
			"pool_stats": c.redis.PoolStats(),
		},
	}

	return stats, nil
}

// Ping checks if Redis connection is alive
func (c *CitationCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *CitationCache) Close() error {
	return c.redis.Close()
}

// citationKey creates the cache key for a PMID
func citationKey(pmid string) string {
	return fmt.Sprintf("citation:pmid:%s", pmid)
}
