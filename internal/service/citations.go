package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/prime-cvd-server/internal/domain"
	"github.com/prime-cvd-server/pkg/external"
)

// CitationService resolves evidence-table PMIDs to full citation metadata with
// two cache tiers in front of the PubMed API. It satisfies
// domain.CitationResolver. Citation records never change once published, so
// long TTLs are safe.
type CitationService struct {
	pubmed external.PubMedAPI

	memoryCache *lru.Cache              // Tier 1: in-process hot entries
	redisCache  *external.CitationCache // Tier 2: shared distributed cache

	memoryCacheTTL time.Duration
	redisCacheTTL  time.Duration

	batchSemaphore chan struct{} // bounds concurrent PubMed calls
	maxConcurrency int

	logger  *logrus.Logger
	stats   *CitationCacheStats
	statsMu sync.RWMutex
}

// CitationCacheStats represents citation cache performance counters.
type CitationCacheStats struct {
	MemoryHits    int64     `json:"memory_hits"`
	MemoryMisses  int64     `json:"memory_misses"`
	RedisHits     int64     `json:"redis_hits"`
	RedisMisses   int64     `json:"redis_misses"`
	ExternalCalls int64     `json:"external_calls"`
	TotalRequests int64     `json:"total_requests"`
	ErrorCount    int64     `json:"error_count"`
	LastReset     time.Time `json:"last_reset"`
}

// CitationServiceConfig configures cache sizing and concurrency.
type CitationServiceConfig struct {
	MemoryCacheTTL time.Duration `json:"memory_cache_ttl"`
	RedisCacheTTL  time.Duration `json:"redis_cache_ttl"`
	MaxMemorySize  int           `json:"max_memory_size"`
	MaxConcurrency int           `json:"max_concurrency"`
}

// NewCitationService creates a citation service. The Redis tier may be nil;
// lookups then go straight from memory to PubMed.
func NewCitationService(
	config CitationServiceConfig,
	pubmed external.PubMedAPI,
	redisCache *external.CitationCache,
	logger *logrus.Logger,
) (*CitationService, error) {
	if config.MemoryCacheTTL == 0 {
		config.MemoryCacheTTL = 1 * time.Hour
	}
	if config.RedisCacheTTL == 0 {
		config.RedisCacheTTL = 7 * 24 * time.Hour
	}
	if config.MaxMemorySize == 0 {
		config.MaxMemorySize = 256
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 3 // NCBI etiquette: stay under their rate limit
	}

	memoryCache, err := lru.New(config.MaxMemorySize)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	return &CitationService{
		pubmed:         pubmed,
		memoryCache:    memoryCache,
		redisCache:     redisCache,
		memoryCacheTTL: config.MemoryCacheTTL,
		redisCacheTTL:  config.RedisCacheTTL,
		batchSemaphore: make(chan struct{}, config.MaxConcurrency),
		maxConcurrency: config.MaxConcurrency,
		logger:         logger,
		stats: &CitationCacheStats{
			LastReset: time.Now(),
		},
	}, nil
}

// Resolve fetches citation metadata for one PMID, checking the memory tier,
// then Redis, then PubMed.
func (s *CitationService) Resolve(ctx context.Context, pmid string) (*domain.Citation, error) {
	s.incrementStat("total_requests")

	pmid = normalizePMID(pmid)
	if pmid == "" {
		s.incrementStat("error_count")
		return nil, fmt.Errorf("citation lookup: pmid: %w", domain.ErrMissingInput)
	}

	if citation := s.getFromMemoryCache(pmid); citation != nil {
		s.incrementStat("memory_hits")
		return citation, nil
	}
	s.incrementStat("memory_misses")

	if citation := s.getFromRedisCache(ctx, pmid); citation != nil {
		s.incrementStat("redis_hits")
		s.setInMemoryCache(pmid, citation)
		return citation, nil
	}
	s.incrementStat("redis_misses")

	if s.pubmed == nil {
		s.incrementStat("error_count")
		return nil, fmt.Errorf("citation lookup for PMID %s: no citation source configured", pmid)
	}

	s.incrementStat("external_calls")
	citation, err := s.pubmed.GetCitation(ctx, pmid)
	if err != nil {
		s.incrementStat("error_count")
		return nil, fmt.Errorf("citation lookup for PMID %s: %w", pmid, err)
	}

	s.setInMemoryCache(pmid, citation)
	s.setInRedisCache(ctx, pmid, citation)

	s.logger.WithFields(logrus.Fields{
		"pmid":  pmid,
		"title": citation.Title,
	}).Debug("Resolved citation from PubMed")

	return citation, nil
}

// ResolveBatch resolves multiple PMIDs concurrently under the semaphore.
// Partial success is expected: the returned map holds whatever resolved, and
// callers fall back to bare references for the rest.
func (s *CitationService) ResolveBatch(ctx context.Context, pmids []string) (map[string]*domain.Citation, error) {
	if len(pmids) == 0 {
		return make(map[string]*domain.Citation), nil
	}

	results := make(map[string]*domain.Citation)
	failures := make(map[string]error)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, p := range pmids {
		wg.Add(1)
		go func(pmid string) {
			defer wg.Done()

			select {
			case s.batchSemaphore <- struct{}{}:
				defer func() { <-s.batchSemaphore }()
			case <-ctx.Done():
				mu.Lock()
				failures[pmid] = ctx.Err()
				mu.Unlock()
				return
			}

			citation, err := s.Resolve(ctx, pmid)

			mu.Lock()
			if err != nil {
				failures[pmid] = err
			} else {
				results[pmid] = citation
			}
			mu.Unlock()
		}(p)
	}

	wg.Wait()

	s.logger.WithFields(logrus.Fields{
		"batch_size": len(pmids),
		"resolved":   len(results),
		"failed":     len(failures),
	}).Debug("Completed batch citation resolution")

	return results, nil
}

// Prefetch warms both cache tiers with every PMID referenced by the evidence
// tables. Called once at startup; failures are tolerated.
func (s *CitationService) Prefetch(ctx context.Context) {
	pmids := domain.AllPMIDs()
	resolved, _ := s.ResolveBatch(ctx, pmids)
	s.logger.WithFields(logrus.Fields{
		"pmids":    len(pmids),
		"resolved": len(resolved),
	}).Info("Prefetched evidence citations")
}

// InvalidateCache drops a PMID from both cache tiers.
func (s *CitationService) InvalidateCache(ctx context.Context, pmid string) error {
	pmid = normalizePMID(pmid)
	if pmid == "" {
		return fmt.Errorf("citation invalidation: pmid: %w", domain.ErrMissingInput)
	}

	s.memoryCache.Remove(pmid)
	if s.redisCache != nil {
		if err := s.redisCache.Delete(ctx, pmid); err != nil {
			return fmt.Errorf("citation invalidation for PMID %s: %w", pmid, err)
		}
	}
	return nil
}

// GetCacheStats returns a snapshot of the cache counters.
func (s *CitationService) GetCacheStats() CitationCacheStats {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	return *s.stats
}

func (s *CitationService) getFromMemoryCache(pmid string) *domain.Citation {
	if value, ok := s.memoryCache.Get(pmid); ok {
		if entry, ok := value.(*citationEntry); ok && !entry.isExpired() {
			return entry.citation
		}
		s.memoryCache.Remove(pmid)
	}
	return nil
}

func (s *CitationService) getFromRedisCache(ctx context.Context, pmid string) *domain.Citation {
	if s.redisCache == nil {
		return nil
	}
	citation, err := s.redisCache.Get(ctx, pmid)
	if err != nil {
		s.logger.WithError(err).WithField("pmid", pmid).Debug("Redis citation lookup failed")
		return nil
	}
	return citation
}

func (s *CitationService) setInMemoryCache(pmid string, citation *domain.Citation) {
	s.memoryCache.Add(pmid, &citationEntry{
		citation: citation,
		expiry:   time.Now().Add(s.memoryCacheTTL),
	})
}

func (s *CitationService) setInRedisCache(ctx context.Context, pmid string, citation *domain.Citation) {
	if s.redisCache == nil {
		return
	}
	if err := s.redisCache.Set(ctx, pmid, citation, s.redisCacheTTL); err != nil {
		s.logger.WithError(err).WithField("pmid", pmid).Debug("Redis citation store failed")
	}
}

func (s *CitationService) incrementStat(statName string) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	switch statName {
	case "memory_hits":
		s.stats.MemoryHits++
	case "memory_misses":
		s.stats.MemoryMisses++
	case "redis_hits":
		s.stats.RedisHits++
	case "redis_misses":
		s.stats.RedisMisses++
	case "external_calls":
		s.stats.ExternalCalls++
	case "total_requests":
		s.stats.TotalRequests++
	case "error_count":
		s.stats.ErrorCount++
	}
}

type citationEntry struct {
	citation *domain.Citation
	expiry   time.Time
}

func (e *citationEntry) isExpired() bool {
	return time.Now().After(e.expiry)
}

// normalizePMID strips whitespace and an optional "PMID:" prefix.
func normalizePMID(pmid string) string {
	pmid = strings.TrimSpace(pmid)
	upper := strings.ToUpper(pmid)
	if strings.HasPrefix(upper, "PMID:") {
		pmid = strings.TrimSpace(pmid[5:])
	}
	return pmid
}
