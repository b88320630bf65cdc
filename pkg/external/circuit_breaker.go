package external

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/prime-cvd-server/internal/domain"
)

// ResilientPubMedClient wraps a PubMed client with the circuit breaker pattern
// so a degraded NCBI endpoint cannot stall assessment requests that only want
// citation metadata.
type ResilientPubMedClient struct {
	inner   PubMedAPI
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

// NewResilientPubMedClient creates a circuit-breaker-protected PubMed client
func NewResilientPubMedClient(inner PubMedAPI, logger *logrus.Logger) *ResilientPubMedClient {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "PubMed",
		MaxRequests: 3, // Conservative for PubMed
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 2 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"service": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &ResilientPubMedClient{
		inner:   inner,
		breaker: breaker,
		logger:  logger,
	}
}

// GetCitation fetches a single citation through the circuit breaker
func (r *ResilientPubMedClient) GetCitation(ctx context.Context, pmid string) (*domain.Citation, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.inner.GetCitation(ctx, pmid)
	})

	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("PubMed service unavailable (circuit breaker open)")
		}
		return nil, fmt.Errorf("PubMed query failed: %w", err)
	}

	return result.(*domain.Citation), nil
}

// GetCitations fetches a batch of citations through the circuit breaker
func (r *ResilientPubMedClient) GetCitations(ctx context.Context, pmids []string) (map[string]*domain.Citation, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.inner.GetCitations(ctx, pmids)
	})

	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("PubMed service unavailable (circuit breaker open)")
		}
		return nil, fmt.Errorf("PubMed query failed: %w", err)
	}

	return result.(map[string]*domain.Citation), nil
}

// Counts returns the breaker's request counters for diagnostics
func (r *ResilientPubMedClient) Counts() gobreaker.Counts {
	return r.breaker.Counts()
}

// State returns the current circuit breaker state
func (r *ResilientPubMedClient) State() gobreaker.State {
	return r.breaker.State()
}
