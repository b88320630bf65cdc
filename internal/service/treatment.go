package service

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/prime-cvd-server/internal/domain"
)

// Stacked relative-risk reductions are sub-additive; the compression models
// diminishing returns and the cap bounds any combination claim.
const (
	rrrCompression  = 1.2
	effectiveRRRCap = 0.75
)

// Eligibility thresholds applied by the activation predicates.
const (
	pcsk9LDLGateMmolL     = 1.8
	bpStandardTargetMmHg  = 140.0
	bpIntensiveTargetMmHg = 130.0
)

// TreatmentEffectEngine projects the combined effect of a therapy plan on a
// baseline risk using the fixed RRR evidence table.
type TreatmentEffectEngine struct {
	logger *logrus.Logger
	rules  []*therapyRule
}

// therapyRule binds one evidence-table entry to its activation predicate.
// Eligibility gates (LDL threshold for PCSK9, current smoking for cessation)
// live here, not in the evidence table.
type therapyRule struct {
	EffectKey string
	Active    func(profile *domain.PatientProfile, plan *domain.TherapyPlan) bool
}

// NewTreatmentEffectEngine creates a new treatment effect engine.
func NewTreatmentEffectEngine(logger *logrus.Logger) *TreatmentEffectEngine {
	engine := &TreatmentEffectEngine{
		logger: logger,
	}

	engine.initializeRules()

	return engine
}

// initializeRules registers the therapy rules in reporting order.
func (e *TreatmentEffectEngine) initializeRules() {
	e.addRule(domain.EffectStatinModerate, func(_ *domain.PatientProfile, plan *domain.TherapyPlan) bool {
		return plan.StatinIntensity == domain.STATIN_MODERATE
	})
	e.addRule(domain.EffectStatinHigh, func(_ *domain.PatientProfile, plan *domain.TherapyPlan) bool {
		return plan.StatinIntensity == domain.STATIN_HIGH
	})
	e.addRule(domain.EffectEzetimibe, func(_ *domain.PatientProfile, plan *domain.TherapyPlan) bool {
		return plan.Ezetimibe
	})
	// The PCSK9 benefit only applies above the LDL gate; below it the selection
	// contributes nothing even when active.
	e.addRule(domain.EffectPCSK9, func(profile *domain.PatientProfile, plan *domain.TherapyPlan) bool {
		return plan.PCSK9Inhibitor && profile.LDL >= pcsk9LDLGateMmolL
	})
	e.addRule(domain.EffectBPIntensive, func(_ *domain.PatientProfile, plan *domain.TherapyPlan) bool {
		return plan.BPTarget > 0 && plan.BPTarget < bpIntensiveTargetMmHg
	})
	e.addRule(domain.EffectBPStandard, func(_ *domain.PatientProfile, plan *domain.TherapyPlan) bool {
		return plan.BPTarget >= bpIntensiveTargetMmHg && plan.BPTarget < bpStandardTargetMmHg
	})
	e.addRule(domain.EffectMedDiet, func(_ *domain.PatientProfile, plan *domain.TherapyPlan) bool {
		return plan.MediterraneanDiet
	})
	e.addRule(domain.EffectExercise, func(_ *domain.PatientProfile, plan *domain.TherapyPlan) bool {
		return plan.Exercise
	})
	// Cessation only benefits a current smoker.
	e.addRule(domain.EffectSmokingCessation, func(profile *domain.PatientProfile, plan *domain.TherapyPlan) bool {
		return plan.SmokingCessation && profile.Smoker
	})
}

// addRule is a helper to register a therapy rule.
func (e *TreatmentEffectEngine) addRule(effectKey string, active func(*domain.PatientProfile, *domain.TherapyPlan) bool) {
	e.rules = append(e.rules, &therapyRule{
		EffectKey: effectKey,
		Active:    active,
	})
}

// Project evaluates every therapy rule, sums the active RRRs and compresses the
// stack. Inactive therapies are omitted from the result, never listed.
func (e *TreatmentEffectEngine) Project(baseline *domain.RiskResult, profile *domain.PatientProfile, plan *domain.TherapyPlan) (*domain.TreatmentEffectResult, error) {
	if baseline == nil {
		return nil, fmt.Errorf("treatment projection: baseline risk: %w", domain.ErrMissingInput)
	}
	if profile == nil {
		return nil, fmt.Errorf("treatment projection: profile: %w", domain.ErrMissingInput)
	}
	if plan == nil {
		return nil, fmt.Errorf("treatment projection: therapy plan: %w", domain.ErrMissingInput)
	}
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("treatment projection: %w", err)
	}

	var totalRRR float64
	activeLabels := make([]string, 0, len(e.rules))

	for _, rule := range e.rules {
		if !rule.Active(profile, plan) {
			continue
		}
		effect, exists := domain.LookupTreatmentEffect(rule.EffectKey)
		if !exists {
			return nil, fmt.Errorf("treatment projection: no evidence entry for %s", rule.EffectKey)
		}
		totalRRR += effect.RRR
		activeLabels = append(activeLabels, effect.Label)
	}

	effectiveRRR := 1 - math.Exp(-rrrCompression*totalRRR)
	if effectiveRRR > effectiveRRRCap {
		effectiveRRR = effectiveRRRCap
	}

	projected := math.Max(riskFloorPc, round1(baseline.Percent*(1-effectiveRRR)))
	absoluteReduction := round1(baseline.Percent - projected)

	e.logger.WithFields(logrus.Fields{
		"active_therapies": len(activeLabels),
		"total_rrr":        totalRRR,
		"effective_rrr":    effectiveRRR,
		"baseline_pc":      baseline.Percent,
		"projected_pc":     projected,
	}).Debug("Projected treatment effect")

	return &domain.TreatmentEffectResult{
		TotalRRR:          totalRRR,
		EffectiveRRR:      effectiveRRR,
		BaselineRisk:      baseline.Percent,
		ProjectedRisk:     projected,
		AbsoluteReduction: absoluteReduction,
		ActiveTherapies:   activeLabels,
	}, nil
}
