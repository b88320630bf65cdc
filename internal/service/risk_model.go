package service

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/prime-cvd-server/internal/domain"
)

// Recalibrated coefficient model (COEFFICIENT_SUM): centred linear terms plus a
// fixed intercept, transformed through a Gompertz-type 10-year survival function.
const (
	csIntercept = -8.1937

	csAgeCoeff = 0.0635
	csAgeRef   = 60.0

	csLDLCoeff = 0.2436
	csLDLRef   = 2.5

	csSBPCoeff = 0.0083
	csSBPRef   = 120.0

	// Renal bands are mutually exclusive; at most one term ever applies.
	csEGFRBelow30   = 0.9235
	csEGFR30To59    = 0.5539
	csEGFRBandUpper = 60.0
	csEGFRBandLower = 30.0

	csFemale           = -0.3200
	csDiabetes         = 0.5034
	csSmoker           = 0.4419
	csPerVascTerritory = 0.2251
)

// hs-CRP extended model (LOG_CRP): uncentred weighted sum including ln(CRP+1),
// transformed through a baseline-survival power function.
const (
	crpAgeWeight      = 0.064
	crpMaleWeight     = 0.34
	crpSBPWeight      = 0.02
	crpTCWeight       = 0.25
	crpHDLWeight      = -0.25
	crpSmokerWeight   = 0.44
	crpDiabetesWeight = 0.51
	crpEGFRWeight     = -0.2 // per 10 mL/min/1.73m2
	crpLogCRPWeight   = 0.25
	crpVascWeight     = 0.4

	crpBaselineSurvival = 0.900
	crpLinearOffset     = 5.8
)

// Clinical floor/ceiling policy: a reported risk is never 0% or 100%.
const (
	riskFloorPc   = 1.0
	riskCeilingPc = 99.0
)

// RiskModelEngine computes 10-year baseline risk of recurrent cardiovascular
// events under one of the supported model variants. The variants are distinct
// published scores and are never interchangeable at the numeric level.
type RiskModelEngine struct {
	logger *logrus.Logger
}

// NewRiskModelEngine creates a new risk model engine.
func NewRiskModelEngine(logger *logrus.Logger) *RiskModelEngine {
	return &RiskModelEngine{
		logger: logger,
	}
}

// BaselineRisk computes the 10-year baseline risk for the requested variant.
// A validation failure means "insufficient data", never zero risk.
func (e *RiskModelEngine) BaselineRisk(profile *domain.PatientProfile, variant domain.ModelVariant) (*domain.RiskResult, error) {
	if profile == nil {
		return nil, fmt.Errorf("baseline risk: profile: %w", domain.ErrMissingInput)
	}
	if err := profile.ValidateForVariant(variant); err != nil {
		return nil, fmt.Errorf("baseline risk: %w", err)
	}

	var lp, raw float64
	switch variant {
	case domain.COEFFICIENT_SUM:
		lp = e.coefficientSumPredictor(profile)
		raw = 100 * (1 - math.Exp(-math.Exp(lp)*10))
	case domain.LOG_CRP:
		lp = e.logCRPPredictor(profile)
		raw = 100 * (1 - math.Pow(crpBaselineSurvival, math.Exp(lp-crpLinearOffset)))
	default:
		return nil, fmt.Errorf("baseline risk: %w", domain.ErrInvalidModelVariant)
	}

	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return nil, fmt.Errorf("baseline risk: non-finite model output for lp=%.4f: %w", lp, domain.ErrDomainConstraint)
	}

	percent := clampRisk(round1(raw))

	e.logger.WithFields(logrus.Fields{
		"variant":          variant.String(),
		"linear_predictor": lp,
		"risk_percent":     percent,
	}).Debug("Computed baseline risk")

	return &domain.RiskResult{
		Percent: percent,
		Horizon: domain.TEN_YEAR,
		Variant: variant,
	}, nil
}

// coefficientSumPredictor sums the active centred terms of the recalibrated model.
func (e *RiskModelEngine) coefficientSumPredictor(p *domain.PatientProfile) float64 {
	lp := csIntercept
	lp += csAgeCoeff * (p.Age - csAgeRef)
	lp += csLDLCoeff * (p.LDL - csLDLRef)
	lp += csSBPCoeff * (p.SystolicBP - csSBPRef)

	switch {
	case p.EGFR < csEGFRBandLower:
		lp += csEGFRBelow30
	case p.EGFR < csEGFRBandUpper:
		lp += csEGFR30To59
	}

	// Male is the reference category.
	if p.Sex == domain.FEMALE {
		lp += csFemale
	}
	if p.Diabetes {
		lp += csDiabetes
	}
	if p.Smoker {
		lp += csSmoker
	}
	lp += csPerVascTerritory * float64(p.VascularTerritoryCount())

	return lp
}

// logCRPPredictor computes the uncentred weighted sum of the hs-CRP model.
func (e *RiskModelEngine) logCRPPredictor(p *domain.PatientProfile) float64 {
	var male, smoker, diabetes float64
	if p.Sex == domain.MALE {
		male = 1
	}
	if p.Smoker {
		smoker = 1
	}
	if p.Diabetes {
		diabetes = 1
	}

	return crpAgeWeight*p.Age +
		crpMaleWeight*male +
		crpSBPWeight*p.SystolicBP +
		crpTCWeight*p.TotalCholesterol +
		crpHDLWeight*p.HDL +
		crpSmokerWeight*smoker +
		crpDiabetesWeight*diabetes +
		crpEGFRWeight*(p.EGFR/10) +
		crpLogCRPWeight*math.Log(p.CRP+1) +
		crpVascWeight*float64(p.VascularTerritoryCount())
}

// round1 rounds to one decimal place, the resolution of every reported risk.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// clampRisk applies the clinical floor/ceiling policy.
func clampRisk(v float64) float64 {
	return math.Max(riskFloorPc, math.Min(riskCeilingPc, v))
}
