package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToolResultCache(t *testing.T) {
	cache := NewToolResultCache(Config{Enabled: true})

	assert.NotNil(t, cache)
	assert.Equal(t, 15*time.Minute, cache.config.DefaultTTL)
	assert.Equal(t, 32*1024*1024, cache.config.MaxMemorySize)
}

func TestGenerateKey(t *testing.T) {
	cache := NewToolResultCache(Config{Enabled: true})

	params1 := map[string]interface{}{
		"age":     65.0,
		"sex":     "MALE",
		"variant": "COEFFICIENT_SUM",
	}

	params2 := map[string]interface{}{
		"variant": "COEFFICIENT_SUM",
		"sex":     "MALE",
		"age":     65.0,
	}

	key1 := cache.GenerateKey("assess_cvd_risk", params1)
	key2 := cache.GenerateKey("assess_cvd_risk", params2)

	// Keys should be identical regardless of parameter order
	assert.Equal(t, key1, key2)
	assert.Len(t, key1, 64) // SHA-256 hex string length

	// A different tool with the same parameters gets its own key
	key3 := cache.GenerateKey("project_treatment_effect", params1)
	assert.NotEqual(t, key1, key3)
}

func TestCacheSetAndGet(t *testing.T) {
	cache := NewToolResultCache(Config{
		Enabled:    true,
		DefaultTTL: time.Minute,
	})

	ctx := context.Background()
	toolName := "assess_cvd_risk"
	params := map[string]interface{}{
		"age": 65.0,
		"sex": "MALE",
	}

	result := map[string]interface{}{
		"baseline_risk": 10.8,
		"tier":          "MODERATE_RISK",
	}

	// Cache miss initially
	cached, found := cache.Get(ctx, toolName, params)
	assert.False(t, found)
	assert.Nil(t, cached)

	// Set result
	err := cache.Set(ctx, toolName, params, result, 100*time.Millisecond, 0)
	require.NoError(t, err)

	// Cache hit
	cached, found = cache.Get(ctx, toolName, params)
	assert.True(t, found)
	assert.NotNil(t, cached)
	assert.Equal(t, toolName, cached.ToolName)
	assert.Equal(t, result, cached.Result)
	assert.True(t, cached.Metadata.Success)
	assert.Equal(t, 100*time.Millisecond, cached.Metadata.ExecutionTime)
}

func TestCacheExpiration(t *testing.T) {
	cache := NewToolResultCache(Config{
		Enabled:    true,
		DefaultTTL: 50 * time.Millisecond,
	})

	ctx := context.Background()
	toolName := "classify_risk_tier"
	params := map[string]interface{}{"projected_risk": 25.0}
	result := "HIGH_RISK"

	// Set with short TTL
	err := cache.Set(ctx, toolName, params, result, time.Millisecond, 50*time.Millisecond)
	require.NoError(t, err)

	// Should be available immediately
	cached, found := cache.Get(ctx, toolName, params)
	assert.True(t, found)
	assert.Equal(t, result, cached.Result)

	// Wait for expiration
	time.Sleep(60 * time.Millisecond)

	// Should be expired
	cached, found = cache.Get(ctx, toolName, params)
	assert.False(t, found)
	assert.Nil(t, cached)
}

func TestCacheError(t *testing.T) {
	cache := NewToolResultCache(Config{
		Enabled:    true,
		DefaultTTL: time.Minute,
	})

	ctx := context.Background()
	toolName := "project_lipid_effect"
	params := map[string]interface{}{"ldl": -1.0}

	// Set error result
	err := cache.SetError(ctx, toolName, params, "DOMAIN_CONSTRAINT", 50*time.Millisecond)
	require.NoError(t, err)

	// Retrieve error result
	cached, found := cache.Get(ctx, toolName, params)
	assert.True(t, found)
	assert.NotNil(t, cached)
	assert.False(t, cached.Metadata.Success)
	assert.Equal(t, "DOMAIN_CONSTRAINT", cached.Metadata.ErrorCode)
	assert.Equal(t, 50*time.Millisecond, cached.Metadata.ExecutionTime)
}

func TestCacheStats(t *testing.T) {
	cache := NewToolResultCache(Config{Enabled: true})

	ctx := context.Background()
	params := map[string]interface{}{"age": 65.0}

	// Initial stats
	stats := cache.GetStats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)

	// Cache miss
	cache.Get(ctx, "assess_cvd_risk", params)
	stats = cache.GetStats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)

	// Set and hit
	cache.Set(ctx, "assess_cvd_risk", params, "result", time.Millisecond, 0)
	cache.Get(ctx, "assess_cvd_risk", params)
	stats = cache.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)

	// Hit ratio
	ratio := cache.GetHitRatio()
	assert.Equal(t, 0.5, ratio)
}

func TestInvalidateByTool(t *testing.T) {
	cache := NewToolResultCache(Config{Enabled: true})

	ctx := context.Background()
	params1 := map[string]interface{}{"age": 65.0}
	params2 := map[string]interface{}{"age": 72.0}

	// Set results for two tools
	cache.Set(ctx, "assess_cvd_risk", params1, "result1", time.Millisecond, 0)
	cache.Set(ctx, "get_evidence_table", params2, "result2", time.Millisecond, 0)

	// Verify both are cached
	_, found1 := cache.Get(ctx, "assess_cvd_risk", params1)
	_, found2 := cache.Get(ctx, "get_evidence_table", params2)
	assert.True(t, found1)
	assert.True(t, found2)

	// Invalidate one tool
	err := cache.InvalidateByTool(ctx, "assess_cvd_risk")
	require.NoError(t, err)

	// Verify only the targeted tool was invalidated
	_, found1 = cache.Get(ctx, "assess_cvd_risk", params1)
	cached2, found2 := cache.Get(ctx, "get_evidence_table", params2)
	assert.False(t, found1)
	assert.True(t, found2)
	assert.Equal(t, "result2", cached2.Result)
}

func TestCacheClear(t *testing.T) {
	cache := NewToolResultCache(Config{Enabled: true})

	ctx := context.Background()
	params := map[string]interface{}{"age": 65.0}

	// Set multiple results
	cache.Set(ctx, "assess_cvd_risk", params, "result1", time.Millisecond, 0)
	cache.Set(ctx, "classify_risk_tier", params, "result2", time.Millisecond, 0)

	// Verify they're cached
	_, found1 := cache.Get(ctx, "assess_cvd_risk", params)
	_, found2 := cache.Get(ctx, "classify_risk_tier", params)
	assert.True(t, found1)
	assert.True(t, found2)

	// Clear cache
	err := cache.Clear(ctx)
	require.NoError(t, err)

	// Verify cache is empty
	_, found1 = cache.Get(ctx, "assess_cvd_risk", params)
	_, found2 = cache.Get(ctx, "classify_risk_tier", params)
	assert.False(t, found1)
	assert.False(t, found2)
}

func TestCacheDisabled(t *testing.T) {
	cache := NewToolResultCache(Config{Enabled: false})

	ctx := context.Background()
	params := map[string]interface{}{"age": 65.0}

	// Operations should not error but should not cache
	err := cache.Set(ctx, "assess_cvd_risk", params, "result", time.Millisecond, 0)
	assert.NoError(t, err)

	cached, found := cache.Get(ctx, "assess_cvd_risk", params)
	assert.False(t, found)
	assert.Nil(t, cached)
}

func TestCacheHealth(t *testing.T) {
	// Enabled cache should be healthy
	cache := NewToolResultCache(Config{Enabled: true})
	assert.True(t, cache.IsHealthy(context.Background()))

	// Disabled cache should also be healthy
	disabledCache := NewToolResultCache(Config{Enabled: false})
	assert.True(t, disabledCache.IsHealthy(context.Background()))
}

func TestCacheWithRedis(t *testing.T) {
	// Skip if no Redis available (integration test)
	t.Skip("Redis integration test - requires Redis instance")

	redisClient := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	cache := NewToolResultCache(Config{
		Enabled:     true,
		RedisClient: redisClient,
	})

	ctx := context.Background()
	params := map[string]interface{}{"age": 65.0}

	err := cache.Set(ctx, "assess_cvd_risk", params, "test_result", time.Millisecond, time.Minute)
	require.NoError(t, err)

	// Clear memory cache to test Redis retrieval
	cache.memoryCache = make(map[string]*CachedResult)

	cached, found := cache.Get(ctx, "assess_cvd_risk", params)
	assert.True(t, found)
	assert.Equal(t, "test_result", cached.Result)

	redisClient.Close()
}

func TestCacheEviction(t *testing.T) {
	cache := NewToolResultCache(Config{
		Enabled:       true,
		MaxMemorySize: 100, // Very small limit to trigger eviction
	})

	ctx := context.Background()

	// Add multiple entries to exceed the budget
	for i := 0; i < 10; i++ {
		params := map[string]interface{}{"index": i}
		result := map[string]interface{}{"data": string(make([]byte, 50))}
		cache.Set(ctx, "assess_cvd_risk", params, result, time.Millisecond, 0)
		time.Sleep(time.Millisecond) // Ensure different timestamps
	}

	stats := cache.GetStats()
	assert.Greater(t, stats.Evictions, int64(0))
}

func TestCacheAccessMetrics(t *testing.T) {
	cache := NewToolResultCache(Config{Enabled: true})

	ctx := context.Background()
	params := map[string]interface{}{"age": 65.0}

	cache.Set(ctx, "assess_cvd_risk", params, "result", time.Millisecond, 0)

	// Access count climbs with each hit
	for i := 0; i < 3; i++ {
		cached, found := cache.Get(ctx, "assess_cvd_risk", params)
		assert.True(t, found)
		assert.Equal(t, int64(i+1), cached.Metadata.CacheHits)
	}
}
