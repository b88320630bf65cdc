package domain

import (
	"time"
)

// EngineVersion identifies the calculation engine release recorded on every
// assessment result.
const EngineVersion = "1.0.0"

// RiskResult represents a baseline absolute risk estimate. Percent is always
// within [1.0, 99.0] and rounded to one decimal; extreme linear-predictor values
// never yield 0% or 100%.
type RiskResult struct {
	Percent float64      `json:"percent"`
	Horizon RiskHorizon  `json:"horizon"`
	Variant ModelVariant `json:"variant"`
}

// TreatmentEffectResult represents the combined effect of a therapy bundle.
type TreatmentEffectResult struct {
	TotalRRR          float64  `json:"total_rrr"`
	EffectiveRRR      float64  `json:"effective_rrr"`
	BaselineRisk      float64  `json:"baseline_risk"`
	ProjectedRisk     float64  `json:"projected_risk"`
	AbsoluteReduction float64  `json:"absolute_reduction"`
	ActiveTherapies   []string `json:"active_therapies"`
}

// LipidResult represents the LDL-C trajectory and its attributable risk effect.
type LipidResult struct {
	CurrentLDL       float64 `json:"current_ldl"`
	ProjectedLDL     float64 `json:"projected_ldl"`
	TotalReductionPc float64 `json:"total_reduction_percent"`
	TargetLDL        float64 `json:"target_ldl,omitempty"`
	RiskReduction    float64 `json:"risk_reduction"`
	ProjectedRisk    float64 `json:"projected_risk"`
}

// TherapyConflict reports two or more active agents in the same drug class.
// Conflicts are advisory; calculation always proceeds.
type TherapyConflict struct {
	DrugClass string   `json:"drug_class"`
	Agents    []string `json:"agents"`
	Message   string   `json:"message"`
}

// AssessmentRequest is the full input tuple for one assessment.
type AssessmentRequest struct {
	Profile *PatientProfile `json:"profile"`
	Plan    *TherapyPlan    `json:"plan,omitempty"`
	Horizon RiskHorizon     `json:"horizon,omitempty"`
	Variant ModelVariant    `json:"variant,omitempty"`
}

// AssessmentResult is the complete output of one assessment run.
type AssessmentResult struct {
	ID string `json:"id"`

	BaselineRisk *RiskResult            `json:"baseline_risk"`
	HorizonRisk  *RiskResult            `json:"horizon_risk"`
	Treatment    *TreatmentEffectResult `json:"treatment,omitempty"`
	Lipid        *LipidResult           `json:"lipid,omitempty"`
	Conflicts    []TherapyConflict      `json:"conflicts,omitempty"`

	Tier      RiskTier   `json:"tier"`
	TierLabel string     `json:"tier_label"`
	Guidance  []string   `json:"guidance"`
	Citations []Citation `json:"citations,omitempty"`

	EngineVersion  string        `json:"engine_version"`
	CalculatedAt   time.Time     `json:"calculated_at"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// FinalRisk returns the risk the recommendation tier was derived from: the
// treatment-projected risk when a plan was evaluated, otherwise the
// horizon-adjusted baseline.
func (r *AssessmentResult) FinalRisk() float64 {
	if r.Treatment != nil {
		return r.Treatment.ProjectedRisk
	}
	if r.HorizonRisk != nil {
		return r.HorizonRisk.Percent
	}
	return 0
}

// Citation is a literature reference resolved from the evidence tables.
type Citation struct {
	PMID    string `json:"pmid"`
	Title   string `json:"title,omitempty"`
	Authors string `json:"authors,omitempty"`
	Journal string `json:"journal,omitempty"`
	Year    int    `json:"year,omitempty"`
	URL     string `json:"url,omitempty"`
}

// AssessmentRecord is the persisted audit row for one assessment run. Top-level
// columns carry the queryable summary; the full input and output travel as JSON.
type AssessmentRecord struct {
	ID            string            `json:"id"`
	CaseID        string            `json:"case_id,omitempty"`
	ModelVariant  ModelVariant      `json:"model_variant"`
	Horizon       RiskHorizon       `json:"horizon"`
	Tier          RiskTier          `json:"tier"`
	BaselineRisk  float64           `json:"baseline_risk"`
	ProjectedRisk *float64          `json:"projected_risk,omitempty"`
	Profile       *PatientProfile   `json:"profile"`
	Plan          *TherapyPlan      `json:"plan,omitempty"`
	Result        *AssessmentResult `json:"result"`
	CreatedAt     time.Time         `json:"created_at"`
}

// NewAssessmentRecord builds the audit row for a completed assessment.
// caseID may be empty for ad hoc assessments.
func NewAssessmentRecord(caseID string, req *AssessmentRequest, res *AssessmentResult) *AssessmentRecord {
	record := &AssessmentRecord{
		ID:      res.ID,
		CaseID:  caseID,
		Tier:    res.Tier,
		Profile: req.Profile,
		Plan:    req.Plan,
		Result:  res,
	}
	if res.BaselineRisk != nil {
		record.ModelVariant = res.BaselineRisk.Variant
	}
	if res.HorizonRisk != nil {
		record.Horizon = res.HorizonRisk.Horizon
		record.BaselineRisk = res.HorizonRisk.Percent
	}
	if res.Treatment != nil {
		projected := res.Treatment.ProjectedRisk
		record.ProjectedRisk = &projected
	}
	return record
}
