package service

import (
	"github.com/sirupsen/logrus"

	"github.com/prime-cvd-server/internal/domain"
)

// Tier thresholds on the final projected 10-year risk, in percent.
const (
	veryHighRiskThresholdPc = 30.0
	highRiskThresholdPc     = 20.0
)

// RecommendationClassifier maps a projected risk to its guideline tier and the
// guidance block attached to that tier.
type RecommendationClassifier struct {
	logger *logrus.Logger
}

// NewRecommendationClassifier creates a new recommendation classifier.
func NewRecommendationClassifier(logger *logrus.Logger) *RecommendationClassifier {
	return &RecommendationClassifier{
		logger: logger,
	}
}

// Classify assigns the tier for a final risk percentage. Thresholds are
// inclusive at the lower bound of each tier.
func (c *RecommendationClassifier) Classify(riskPc float64) domain.RiskTier {
	switch {
	case riskPc >= veryHighRiskThresholdPc:
		return domain.VERY_HIGH_RISK
	case riskPc >= highRiskThresholdPc:
		return domain.HIGH_RISK
	default:
		return domain.MODERATE_RISK
	}
}

// ClassifyWithGuidance returns the tier together with its guidance block.
func (c *RecommendationClassifier) ClassifyWithGuidance(riskPc float64) (domain.RiskTier, []string) {
	tier := c.Classify(riskPc)

	c.logger.WithFields(logrus.Fields{
		"risk_pc": riskPc,
		"tier":    tier.String(),
	}).Debug("Classified risk tier")

	return tier, domain.GuidanceForTier(tier)
}
