package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/prime-cvd-server/internal/domain"
	"github.com/prime-cvd-server/pkg/therapy"
)

// LDL-to-risk dose response and lipid trajectory bounds.
const (
	rrrPerMmolLDL       = 0.22
	ldlRRRCap           = 0.60
	priorStatinDiscount = 0.5
	maxLDLReductionPc   = 97.0
)

// LipidEffectEngine projects the LDL-C trajectory under a lipid therapy plan
// and converts the achieved reduction into a risk effect via the per-mmol/L
// dose response.
type LipidEffectEngine struct {
	logger *logrus.Logger
	parser *therapy.Parser
}

// NewLipidEffectEngine creates a new lipid effect engine.
func NewLipidEffectEngine(logger *logrus.Logger) *LipidEffectEngine {
	return &LipidEffectEngine{
		logger: logger,
		parser: therapy.NewParser(),
	}
}

// HasLipidTherapy reports whether the plan selects any LDL-lowering agent.
func HasLipidTherapy(plan *domain.TherapyPlan) bool {
	if plan == nil {
		return false
	}
	statin := strings.ToLower(strings.TrimSpace(plan.DischargeStatin))
	if statin != "" && statin != "none" {
		return true
	}
	return plan.Ezetimibe || plan.PCSK9Inhibitor || plan.Inclisiran
}

// Project computes the projected LDL-C and the attributable risk reduction.
// A named regimen outside the evidence table parses cleanly but contributes
// zero reduction; only a malformed regimen string is an error.
func (e *LipidEffectEngine) Project(baseline *domain.RiskResult, profile *domain.PatientProfile, plan *domain.TherapyPlan) (*domain.LipidResult, error) {
	if baseline == nil {
		return nil, fmt.Errorf("lipid projection: baseline risk: %w", domain.ErrMissingInput)
	}
	if profile == nil {
		return nil, fmt.Errorf("lipid projection: profile: %w", domain.ErrMissingInput)
	}
	if plan == nil {
		return nil, fmt.Errorf("lipid projection: therapy plan: %w", domain.ErrMissingInput)
	}
	if profile.LDL <= 0 {
		return nil, fmt.Errorf("lipid projection: ldl: %w", domain.ErrMissingInput)
	}
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("lipid projection: %w", err)
	}

	statinReduction, err := e.statinReductionPc(plan)
	if err != nil {
		return nil, fmt.Errorf("lipid projection: %w", err)
	}

	totalReduction := statinReduction
	if plan.Ezetimibe {
		totalReduction += domain.EzetimibeLDLReductionPc
	}
	if plan.PCSK9Inhibitor {
		totalReduction += domain.PCSK9LDLReductionPc
	}
	if plan.Inclisiran {
		totalReduction += domain.InclisiranLDLReductionPc
	}
	// Additive percentages can exceed physiology; cap before projecting.
	if totalReduction > maxLDLReductionPc {
		totalReduction = maxLDLReductionPc
	}

	projectedLDL := round2(profile.LDL * (1 - totalReduction/100))
	deltaLDL := profile.LDL - projectedLDL

	riskReduction := math.Min(rrrPerMmolLDL*deltaLDL, ldlRRRCap)
	projectedRisk := math.Max(riskFloorPc, round1(baseline.Percent*(1-riskReduction)))

	e.logger.WithFields(logrus.Fields{
		"current_ldl":    profile.LDL,
		"projected_ldl":  projectedLDL,
		"reduction_pc":   totalReduction,
		"risk_reduction": riskReduction,
		"projected_risk": projectedRisk,
	}).Debug("Projected lipid effect")

	return &domain.LipidResult{
		CurrentLDL:       profile.LDL,
		ProjectedLDL:     projectedLDL,
		TotalReductionPc: totalReduction,
		TargetLDL:        plan.LDLTarget,
		RiskReduction:    riskReduction,
		ProjectedRisk:    projectedRisk,
	}, nil
}

// statinReductionPc resolves the named discharge statin to its expected LDL
// reduction. Pre-existing statin therapy halves the incremental effect.
func (e *LipidEffectEngine) statinReductionPc(plan *domain.TherapyPlan) (float64, error) {
	name := strings.TrimSpace(plan.DischargeStatin)
	if name == "" || strings.EqualFold(name, "none") {
		return 0, nil
	}

	regimen, err := e.parser.ParseStatin(name)
	if err != nil {
		return 0, fmt.Errorf("discharge statin %q: %w", name, err)
	}

	reduction := 0.0
	if entry, ok := domain.LookupLDLTherapy(regimen.Canonical); ok {
		reduction = entry.ReductionPc
	} else {
		e.logger.WithField("regimen", regimen.Canonical).Debug("Statin regimen not in evidence table, no effect applied")
	}

	if plan.OnStatinAtBaseline {
		reduction *= priorStatinDiscount
	}

	return reduction, nil
}

// round2 rounds to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
