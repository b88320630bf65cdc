package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/prime-cvd-server/internal/domain"
)

// Assessor implements the complete risk and treatment-effect workflow on top of
// the individual engines. It satisfies domain.RiskAssessor.
type Assessor struct {
	logger     *logrus.Logger
	riskModel  *RiskModelEngine
	horizons   *HorizonAdjuster
	treatment  *TreatmentEffectEngine
	lipid      *LipidEffectEngine
	conflicts  *ConflictValidator
	classifier *RecommendationClassifier
	citations  domain.CitationResolver
}

// NewAssessor creates a new assessor. The citation resolver may be nil; results
// then carry no citation metadata.
func NewAssessor(logger *logrus.Logger, citations domain.CitationResolver) *Assessor {
	return &Assessor{
		logger:     logger,
		riskModel:  NewRiskModelEngine(logger),
		horizons:   NewHorizonAdjuster(logger),
		treatment:  NewTreatmentEffectEngine(logger),
		lipid:      NewLipidEffectEngine(logger),
		conflicts:  NewConflictValidator(logger),
		classifier: NewRecommendationClassifier(logger),
		citations:  citations,
	}
}

// Assess runs the complete assessment workflow
func (a *Assessor) Assess(ctx context.Context, req *domain.AssessmentRequest) (*domain.AssessmentResult, error) {
	startTime := time.Now()

	if req == nil || req.Profile == nil {
		return nil, fmt.Errorf("assessment: profile: %w", domain.ErrMissingInput)
	}

	variant := req.Variant
	if variant == "" {
		variant = domain.COEFFICIENT_SUM
	}
	horizon := req.Horizon
	if horizon == "" {
		horizon = domain.TEN_YEAR
	}

	a.logger.WithFields(logrus.Fields{
		"variant":  variant.String(),
		"horizon":  horizon.String(),
		"has_plan": req.Plan != nil,
	}).Info("Starting risk assessment")

	// Step 1: Baseline 10-year risk under the chosen model variant
	baseline, err := a.riskModel.BaselineRisk(req.Profile, variant)
	if err != nil {
		return nil, fmt.Errorf("assessment: %w", err)
	}

	// Step 2: Horizon adjustment
	horizonRisk, err := a.horizons.Adjust(baseline, horizon)
	if err != nil {
		return nil, fmt.Errorf("assessment: %w", err)
	}

	result := &domain.AssessmentResult{
		ID:            uuid.New().String(),
		BaselineRisk:  baseline,
		HorizonRisk:   horizonRisk,
		EngineVersion: domain.EngineVersion,
		CalculatedAt:  time.Now().UTC(),
	}

	if req.Plan != nil {
		// Step 3: Advisory drug-class conflict check; never blocks
		result.Conflicts = a.conflicts.ValidatePlan(req.Plan)

		// Step 4: Combined treatment effect on the horizon-adjusted risk
		treatment, err := a.treatment.Project(horizonRisk, req.Profile, req.Plan)
		if err != nil {
			return nil, fmt.Errorf("assessment: %w", err)
		}
		result.Treatment = treatment

		// Step 5: LDL trajectory, only when the plan selects lipid therapy and
		// the profile carries an LDL measurement
		if HasLipidTherapy(req.Plan) && req.Profile.LDL > 0 {
			lipid, err := a.lipid.Project(horizonRisk, req.Profile, req.Plan)
			if err != nil {
				return nil, fmt.Errorf("assessment: %w", err)
			}
			result.Lipid = lipid
		}
	}

	// Step 6: Tier classification on the final projected risk
	tier, guidance := a.classifier.ClassifyWithGuidance(result.FinalRisk())
	result.Tier = tier
	result.TierLabel = tier.DisplayName()
	result.Guidance = guidance

	result.Citations = a.resolveCitations(ctx)
	result.ProcessingTime = time.Since(startTime)

	a.logger.WithFields(logrus.Fields{
		"assessment_id":   result.ID,
		"baseline_pc":     baseline.Percent,
		"final_pc":        result.FinalRisk(),
		"tier":            tier.String(),
		"conflicts":       len(result.Conflicts),
		"processing_time": result.ProcessingTime,
	}).Info("Risk assessment completed")

	return result, nil
}

// resolveCitations fetches metadata for every PMID in the evidence tables.
// Resolution is best effort: unresolved PMIDs degrade to bare references and a
// missing resolver yields none at all.
func (a *Assessor) resolveCitations(ctx context.Context) []domain.Citation {
	if a.citations == nil {
		return nil
	}

	pmids := domain.AllPMIDs()
	resolved, err := a.citations.ResolveBatch(ctx, pmids)
	if err != nil {
		a.logger.WithError(err).Warn("Citation resolution failed, attaching bare references")
		resolved = nil
	}

	citations := make([]domain.Citation, 0, len(pmids))
	for _, pmid := range pmids {
		if c, ok := resolved[pmid]; ok && c != nil {
			citations = append(citations, *c)
			continue
		}
		citations = append(citations, domain.Citation{PMID: pmid})
	}
	return citations
}

// BaselineRisk computes the 10-year baseline risk under the chosen variant.
func (a *Assessor) BaselineRisk(profile *domain.PatientProfile, variant domain.ModelVariant) (*domain.RiskResult, error) {
	return a.riskModel.BaselineRisk(profile, variant)
}

// AdjustHorizon rescales a 10-year estimate to the requested horizon.
func (a *Assessor) AdjustHorizon(risk *domain.RiskResult, horizon domain.RiskHorizon) (*domain.RiskResult, error) {
	return a.horizons.Adjust(risk, horizon)
}

// TreatmentEffect projects the combined effect of a therapy bundle.
func (a *Assessor) TreatmentEffect(baseline *domain.RiskResult, profile *domain.PatientProfile, plan *domain.TherapyPlan) (*domain.TreatmentEffectResult, error) {
	return a.treatment.Project(baseline, profile, plan)
}

// LipidEffect projects the LDL-C trajectory and its attributable risk effect.
func (a *Assessor) LipidEffect(baseline *domain.RiskResult, profile *domain.PatientProfile, plan *domain.TherapyPlan) (*domain.LipidResult, error) {
	return a.lipid.Project(baseline, profile, plan)
}

// ValidatePlan reports advisory drug-class conflicts.
func (a *Assessor) ValidatePlan(plan *domain.TherapyPlan) []domain.TherapyConflict {
	return a.conflicts.ValidatePlan(plan)
}

// ClassifyTier maps a projected risk to its tier and guidance block.
func (a *Assessor) ClassifyTier(projectedRisk float64) (domain.RiskTier, []string) {
	return a.classifier.ClassifyWithGuidance(projectedRisk)
}
