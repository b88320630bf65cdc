package domain

import (
	"context"
)

// RiskAssessor runs the risk and treatment-effect workflow. Implementations are
// pure with respect to their inputs: identical requests yield identical results.
type RiskAssessor interface {
	// Assess runs the complete workflow: baseline risk, horizon adjustment,
	// conflict validation, treatment and lipid projection, tier classification.
	Assess(ctx context.Context, req *AssessmentRequest) (*AssessmentResult, error)

	// BaselineRisk computes the 10-year baseline risk under the chosen variant.
	BaselineRisk(profile *PatientProfile, variant ModelVariant) (*RiskResult, error)

	// AdjustHorizon rescales a 10-year estimate to the requested horizon.
	AdjustHorizon(risk *RiskResult, horizon RiskHorizon) (*RiskResult, error)

	// TreatmentEffect projects the combined effect of a therapy bundle.
	TreatmentEffect(baseline *RiskResult, profile *PatientProfile, plan *TherapyPlan) (*TreatmentEffectResult, error)

	// LipidEffect projects the LDL-C trajectory and its attributable risk effect.
	LipidEffect(baseline *RiskResult, profile *PatientProfile, plan *TherapyPlan) (*LipidResult, error)

	// ValidatePlan reports advisory drug-class conflicts; it never blocks.
	ValidatePlan(plan *TherapyPlan) []TherapyConflict

	// ClassifyTier maps a projected risk to its tier and guidance block.
	ClassifyTier(projectedRisk float64) (RiskTier, []string)
}

// CitationResolver resolves PMIDs from the evidence tables to full citation
// metadata. Resolution failures degrade to the static table entry; the engine
// never depends on a resolver being reachable.
type CitationResolver interface {
	Resolve(ctx context.Context, pmid string) (*Citation, error)
	ResolveBatch(ctx context.Context, pmids []string) (map[string]*Citation, error)
}
