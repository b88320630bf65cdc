package service

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/prime-cvd-server/internal/domain"
)

// Horizon scaling factors. These are heuristic multipliers applied to the
// 10-year score, not independently derived 5-year or lifetime models; results
// carry the same floor/ceiling policy as the baseline score.
const (
	fiveYearScale = 0.6
	lifetimeScale = 1.8
	lifetimeCapPc = 90.0
)

// HorizonAdjuster rescales a 10-year risk estimate to a requested horizon.
type HorizonAdjuster struct {
	logger *logrus.Logger
}

// NewHorizonAdjuster creates a new horizon adjuster.
func NewHorizonAdjuster(logger *logrus.Logger) *HorizonAdjuster {
	return &HorizonAdjuster{
		logger: logger,
	}
}

// Adjust rescales a 10-year risk to the requested horizon and re-rounds to one
// decimal. The 10-year horizon is the identity.
func (a *HorizonAdjuster) Adjust(risk *domain.RiskResult, horizon domain.RiskHorizon) (*domain.RiskResult, error) {
	if risk == nil {
		return nil, fmt.Errorf("horizon adjustment: baseline risk: %w", domain.ErrMissingInput)
	}

	var percent float64
	switch horizon {
	case domain.TEN_YEAR:
		percent = risk.Percent
	case domain.FIVE_YEAR:
		percent = risk.Percent * fiveYearScale
	case domain.LIFETIME:
		percent = math.Min(risk.Percent*lifetimeScale, lifetimeCapPc)
	default:
		return nil, fmt.Errorf("horizon adjustment: %w", domain.ErrInvalidHorizon)
	}

	percent = clampRisk(round1(percent))

	a.logger.WithFields(logrus.Fields{
		"horizon":       horizon.String(),
		"baseline_pc":   risk.Percent,
		"adjusted_pc":   percent,
		"model_variant": risk.Variant.String(),
	}).Debug("Adjusted risk horizon")

	return &domain.RiskResult{
		Percent: percent,
		Horizon: horizon,
		Variant: risk.Variant,
	}, nil
}
