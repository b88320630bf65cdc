package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/prime-cvd-server/internal/domain"
)

// MemoizedAssessor wraps a RiskAssessor with a content-addressed result cache.
// The engines are pure, so identical requests can safely share one result.
type MemoizedAssessor struct {
	inner  domain.RiskAssessor
	logger *logrus.Logger
	cache  *expirable.LRU[string, *domain.AssessmentResult]

	statsMu sync.RWMutex
	hits    uint64
	misses  uint64
}

// MemoStats reports cache effectiveness counters.
type MemoStats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Entries int    `json:"entries"`
}

// NewMemoizedAssessor creates a memoizing wrapper around an assessor.
func NewMemoizedAssessor(inner domain.RiskAssessor, logger *logrus.Logger, size int, ttl time.Duration) *MemoizedAssessor {
	return &MemoizedAssessor{
		inner:  inner,
		logger: logger,
		cache:  expirable.NewLRU[string, *domain.AssessmentResult](size, nil, ttl),
	}
}

// Assess returns the cached result for a previously seen request, otherwise
// delegates and stores the outcome. Cached results are shared, never mutated.
func (m *MemoizedAssessor) Assess(ctx context.Context, req *domain.AssessmentRequest) (*domain.AssessmentResult, error) {
	key, err := requestKey(req)
	if err != nil {
		// An unkeyable request is still assessable.
		m.logger.WithError(err).Debug("Request not cacheable, delegating")
		return m.inner.Assess(ctx, req)
	}

	if cached, ok := m.cache.Get(key); ok {
		m.incrementStat("hit")
		m.logger.WithField("key", key[:12]).Debug("Assessment cache hit")
		return cached, nil
	}
	m.incrementStat("miss")

	result, err := m.inner.Assess(ctx, req)
	if err != nil {
		return nil, err
	}

	m.cache.Add(key, result)
	return result, nil
}

// Stats returns a snapshot of the cache counters.
func (m *MemoizedAssessor) Stats() MemoStats {
	m.statsMu.RLock()
	defer m.statsMu.RUnlock()
	return MemoStats{
		Hits:    m.hits,
		Misses:  m.misses,
		Entries: m.cache.Len(),
	}
}

// Purge drops every cached assessment.
func (m *MemoizedAssessor) Purge() {
	m.cache.Purge()
}

// incrementStat updates a counter under the stats lock.
func (m *MemoizedAssessor) incrementStat(name string) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	switch name {
	case "hit":
		m.hits++
	case "miss":
		m.misses++
	}
}

// requestKey derives a stable digest of the request content. Struct fields
// marshal in declaration order, so equal requests produce equal keys.
func requestKey(req *domain.AssessmentRequest) (string, error) {
	if req == nil || req.Profile == nil {
		return "", fmt.Errorf("request key: profile: %w", domain.ErrMissingInput)
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("request key: %w", err)
	}
	digest := sha256.Sum256(payload)
	return hex.EncodeToString(digest[:]), nil
}

// BaselineRisk delegates to the wrapped assessor.
func (m *MemoizedAssessor) BaselineRisk(profile *domain.PatientProfile, variant domain.ModelVariant) (*domain.RiskResult, error) {
	return m.inner.BaselineRisk(profile, variant)
}

// AdjustHorizon delegates to the wrapped assessor.
func (m *MemoizedAssessor) AdjustHorizon(risk *domain.RiskResult, horizon domain.RiskHorizon) (*domain.RiskResult, error) {
	return m.inner.AdjustHorizon(risk, horizon)
}

// TreatmentEffect delegates to the wrapped assessor.
func (m *MemoizedAssessor) TreatmentEffect(baseline *domain.RiskResult, profile *domain.PatientProfile, plan *domain.TherapyPlan) (*domain.TreatmentEffectResult, error) {
	return m.inner.TreatmentEffect(baseline, profile, plan)
}

// LipidEffect delegates to the wrapped assessor.
func (m *MemoizedAssessor) LipidEffect(baseline *domain.RiskResult, profile *domain.PatientProfile, plan *domain.TherapyPlan) (*domain.LipidResult, error) {
	return m.inner.LipidEffect(baseline, profile, plan)
}

// ValidatePlan delegates to the wrapped assessor.
func (m *MemoizedAssessor) ValidatePlan(plan *domain.TherapyPlan) []domain.TherapyConflict {
	return m.inner.ValidatePlan(plan)
}

// ClassifyTier delegates to the wrapped assessor.
func (m *MemoizedAssessor) ClassifyTier(projectedRisk float64) (domain.RiskTier, []string) {
	return m.inner.ClassifyTier(projectedRisk)
}
