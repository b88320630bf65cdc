// Package cache provides a two-tier result cache for MCP tool calls. Risk
// assessments are deterministic for identical inputs, so cached tool results
// stay valid until the evidence tables change.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const redisKeyPrefix = "cvd:cache:tool:"

// Config defines configuration for tool result caching
type Config struct {
	// Redis client for the optional distributed tier
	RedisClient *redis.Client
	// Default TTL for cached results
	DefaultTTL time.Duration
	// Maximum total payload size for the in-memory tier, in bytes
	MaxMemorySize int
	// Enable/disable caching
	Enabled bool
	// Logger for cache diagnostics
	Logger *logrus.Logger
}

// CachedResult represents a cached tool execution result
type CachedResult struct {
	ToolName   string                 `json:"tool_name"`
	Parameters map[string]interface{} `json:"parameters"`
	Result     interface{}            `json:"result"`
	Metadata   Metadata               `json:"metadata"`
	CreatedAt  time.Time              `json:"created_at"`
	ExpiresAt  time.Time              `json:"expires_at"`
}

// Metadata contains additional information about the cached result
type Metadata struct {
	ExecutionTime time.Duration `json:"execution_time"`
	Success       bool          `json:"success"`
	ErrorCode     string        `json:"error_code,omitempty"`
	CacheHits     int64         `json:"cache_hits"`
	LastAccessed  time.Time     `json:"last_accessed"`
	Size          int           `json:"size"`
	Version       string        `json:"version"`
}

// ToolResultCache manages caching of tool execution results
type ToolResultCache struct {
	config      Config
	logger      *logrus.Logger
	memoryCache map[string]*CachedResult
	memoryMutex sync.Mutex
	stats       Stats
	statsMutex  sync.RWMutex
}

// Stats tracks cache performance metrics
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Evictions   int64 `json:"evictions"`
	MemoryUsage int64 `json:"memory_usage"`
}

// NewToolResultCache creates a new tool result cache instance
func NewToolResultCache(config Config) *ToolResultCache {
	if config.DefaultTTL == 0 {
		config.DefaultTTL = 15 * time.Minute
	}
	if config.MaxMemorySize == 0 {
		config.MaxMemorySize = 32 * 1024 * 1024 // 32MB
	}

	logger := config.Logger
	if logger == nil {
		logger = logrus.New()
	}

	return &ToolResultCache{
		config:      config,
		logger:      logger,
		memoryCache: make(map[string]*CachedResult),
		stats:       Stats{},
	}
}

// GenerateKey creates a unique cache key for tool parameters
func (trc *ToolResultCache) GenerateKey(toolName string, parameters map[string]interface{}) string {
	// json.Marshal sorts map keys, so parameter order never changes the key
	paramBytes, _ := json.Marshal(parameters)
	hash := sha256.Sum256(append([]byte(toolName+"::"), paramBytes...))
	return hex.EncodeToString(hash[:])
}

// Get retrieves a cached result if available
func (trc *ToolResultCache) Get(ctx context.Context, toolName string, parameters map[string]interface{}) (*CachedResult, bool) {
	if !trc.config.Enabled {
		return nil, false
	}

	key := trc.GenerateKey(toolName, parameters)

	// Check memory cache first
	trc.memoryMutex.Lock()
	if cached, exists := trc.memoryCache[key]; exists {
		if time.Now().Before(cached.ExpiresAt) {
			cached.Metadata.CacheHits++
			cached.Metadata.LastAccessed = time.Now()
			trc.memoryMutex.Unlock()
			trc.updateStats(true, false)
			return cached, true
		}
		// Expired entry, remove it
		delete(trc.memoryCache, key)
	}
	trc.memoryMutex.Unlock()

	// Check Redis cache if available
	if trc.config.RedisClient != nil {
		data, err := trc.config.RedisClient.Get(ctx, redisKeyPrefix+key).Bytes()
		if err == nil {
			var cached CachedResult
			if err := json.Unmarshal(data, &cached); err == nil {
				if time.Now().Before(cached.ExpiresAt) {
					cached.Metadata.CacheHits++
					cached.Metadata.LastAccessed = time.Now()

					// Promote to memory cache for faster access
					trc.memoryMutex.Lock()
					trc.memoryCache[key] = &cached
					trc.memoryMutex.Unlock()

					trc.updateStats(true, false)
					return &cached, true
				}
				// Remove expired entry from Redis
				trc.config.RedisClient.Del(ctx, redisKeyPrefix+key)
			}
		}
	}

	trc.updateStats(false, false)
	return nil, false
}

// Set stores a result in the cache
func (trc *ToolResultCache) Set(ctx context.Context, toolName string, parameters map[string]interface{}, result interface{}, executionTime time.Duration, ttl time.Duration) error {
	if !trc.config.Enabled {
		return nil
	}

	if ttl == 0 {
		ttl = trc.config.DefaultTTL
	}

	key := trc.GenerateKey(toolName, parameters)

	resultBytes, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	cached := &CachedResult{
		ToolName:   toolName,
		Parameters: parameters,
		Result:     result,
		CreatedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(ttl),
		Metadata: Metadata{
			ExecutionTime: executionTime,
			Success:       true,
			CacheHits:     0,
			LastAccessed:  time.Now(),
			Size:          len(resultBytes),
			Version:       "1.0",
		},
	}

	// Store in memory cache
	trc.memoryMutex.Lock()
	trc.evictIfNeeded()
	trc.memoryCache[key] = cached
	trc.memoryMutex.Unlock()

	// Store in Redis cache if available
	if trc.config.RedisClient != nil {
		cachedBytes, err := json.Marshal(cached)
		if err == nil {
			if err := trc.config.RedisClient.Set(ctx, redisKeyPrefix+key, cachedBytes, ttl).Err(); err != nil {
				trc.logger.WithError(err).WithField("tool", toolName).Debug("Failed to store result in Redis cache")
			}
		}
	}

	return nil
}

// SetError stores an error result in the cache with a shorter TTL, so a bad
// request does not hammer the engine but recovers quickly after a fix.
func (trc *ToolResultCache) SetError(ctx context.Context, toolName string, parameters map[string]interface{}, errorCode string, executionTime time.Duration) error {
	if !trc.config.Enabled {
		return nil
	}

	key := trc.GenerateKey(toolName, parameters)

	errorTTL := trc.config.DefaultTTL / 4

	cached := &CachedResult{
		ToolName:   toolName,
		Parameters: parameters,
		Result:     nil,
		CreatedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(errorTTL),
		Metadata: Metadata{
			ExecutionTime: executionTime,
			Success:       false,
			ErrorCode:     errorCode,
			CacheHits:     0,
			LastAccessed:  time.Now(),
			Size:          0,
			Version:       "1.0",
		},
	}

	trc.memoryMutex.Lock()
	trc.evictIfNeeded()
	trc.memoryCache[key] = cached
	trc.memoryMutex.Unlock()

	if trc.config.RedisClient != nil {
		cachedBytes, err := json.Marshal(cached)
		if err == nil {
			trc.config.RedisClient.Set(ctx, redisKeyPrefix+key, cachedBytes, errorTTL)
		}
	}

	return nil
}

// InvalidateByTool removes all cached results for a specific tool
func (trc *ToolResultCache) InvalidateByTool(ctx context.Context, toolName string) error {
	// Remove from memory cache
	trc.memoryMutex.Lock()
	for key, cached := range trc.memoryCache {
		if cached.ToolName == toolName {
			delete(trc.memoryCache, key)
		}
	}
	trc.memoryMutex.Unlock()

	// Remove from Redis cache if available
	if trc.config.RedisClient != nil {
		keys, err := trc.config.RedisClient.Keys(ctx, redisKeyPrefix+"*").Result()
		if err == nil {
			for _, key := range keys {
				data, err := trc.config.RedisClient.Get(ctx, key).Bytes()
				if err == nil {
					var cached CachedResult
					if json.Unmarshal(data, &cached) == nil && cached.ToolName == toolName {
						trc.config.RedisClient.Del(ctx, key)
					}
				}
			}
		}
	}

	return nil
}

// Clear removes all cached results
func (trc *ToolResultCache) Clear(ctx context.Context) error {
	// Clear memory cache
	trc.memoryMutex.Lock()
	trc.memoryCache = make(map[string]*CachedResult)
	trc.memoryMutex.Unlock()

	// Clear Redis cache if available
	if trc.config.RedisClient != nil {
		keys, err := trc.config.RedisClient.Keys(ctx, redisKeyPrefix+"*").Result()
		if err == nil && len(keys) > 0 {
			trc.config.RedisClient.Del(ctx, keys...)
		}
	}

	// Reset stats
	trc.statsMutex.Lock()
	trc.stats = Stats{}
	trc.statsMutex.Unlock()

	return nil
}

// GetStats returns cache performance statistics
func (trc *ToolResultCache) GetStats() Stats {
	trc.memoryMutex.Lock()
	usage := trc.calculateMemoryUsage()
	trc.memoryMutex.Unlock()

	trc.statsMutex.RLock()
	defer trc.statsMutex.RUnlock()

	stats := trc.stats
	stats.MemoryUsage = usage
	return stats
}

// GetHitRatio calculates the cache hit ratio
func (trc *ToolResultCache) GetHitRatio() float64 {
	trc.statsMutex.RLock()
	defer trc.statsMutex.RUnlock()

	total := trc.stats.Hits + trc.stats.Misses
	if total == 0 {
		return 0.0
	}
	return float64(trc.stats.Hits) / float64(total)
}

// IsHealthy checks if the cache is functioning properly
func (trc *ToolResultCache) IsHealthy(ctx context.Context) bool {
	if !trc.config.Enabled {
		return true
	}

	testKey := "health_check_" + time.Now().Format("20060102150405")
	testCached := &CachedResult{
		ToolName:  "health_check",
		Result:    "ok",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Minute),
		Metadata: Metadata{
			Success: true,
			Size:    2,
			Version: "1.0",
		},
	}

	trc.memoryMutex.Lock()
	trc.memoryCache[testKey] = testCached
	_, exists := trc.memoryCache[testKey]
	delete(trc.memoryCache, testKey)
	trc.memoryMutex.Unlock()

	if !exists {
		return false
	}

	if trc.config.RedisClient != nil {
		if err := trc.config.RedisClient.Ping(ctx).Err(); err != nil {
			return false
		}
	}

	return true
}

// evictIfNeeded removes the least recently accessed entry when the memory
// tier is over budget. Caller must hold memoryMutex.
func (trc *ToolResultCache) evictIfNeeded() {
	currentUsage := trc.calculateMemoryUsage()
	if int(currentUsage) <= trc.config.MaxMemorySize {
		return
	}

	var oldestKey string
	oldestTime := time.Now()

	for key, cached := range trc.memoryCache {
		if cached.Metadata.LastAccessed.Before(oldestTime) {
			oldestTime = cached.Metadata.LastAccessed
			oldestKey = key
		}
	}

	if oldestKey != "" {
		delete(trc.memoryCache, oldestKey)
		trc.updateStats(false, true)
	}
}

// calculateMemoryUsage estimates current memory usage
func (trc *ToolResultCache) calculateMemoryUsage() int64 {
	var usage int64
	for _, cached := range trc.memoryCache {
		usage += int64(cached.Metadata.Size)
	}
	return usage
}

// updateStats updates cache performance statistics
func (trc *ToolResultCache) updateStats(hit bool, eviction bool) {
	trc.statsMutex.Lock()
	defer trc.statsMutex.Unlock()

	if eviction {
		trc.stats.Evictions++
		return
	}

	if hit {
		trc.stats.Hits++
	} else {
		trc.stats.Misses++
	}
}
