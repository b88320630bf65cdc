// Package domain contains core business entities and types for cardiovascular risk
// estimation and treatment-effect projection in secondary-prevention patients.
//
// Risk estimation follows the SMART secondary-prevention score family:
// Dorresteijn et al. (2013) Development and validation of a prediction rule for recurrent
// vascular events based on a cohort study of patients with arterial disease: the SMART
// risk score. Heart 99(12):866-72. doi: 10.1136/heartjnl-2013-303640
//
// Treatment effects derive from the CTT meta-analysis of statin trials:
// Lancet 2010;376(9753):1670-81. doi: 10.1016/S0140-6736(10)61350-5
package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sex represents the biological sex used by the risk models. Both models were
// derived with male as the reference category.
type Sex string

const (
	MALE   Sex = "MALE"
	FEMALE Sex = "FEMALE"
)

// ModelVariant selects which published risk score computes the baseline risk.
// The two variants are distinct scores with distinct coefficient sets; they are
// never interchangeable at the numeric level.
type ModelVariant string

const (
	// COEFFICIENT_SUM is the recalibrated coefficient model: centred linear terms
	// plus an intercept, transformed through a Gompertz-type 10-year survival function.
	COEFFICIENT_SUM ModelVariant = "COEFFICIENT_SUM"
	// LOG_CRP is the hs-CRP extended model: uncentred weighted sum including
	// ln(CRP+1), transformed through a baseline-survival power function.
	LOG_CRP ModelVariant = "LOG_CRP"
)

// RiskHorizon represents the projection window for a risk estimate.
type RiskHorizon string

const (
	FIVE_YEAR RiskHorizon = "FIVE_YEAR"
	TEN_YEAR  RiskHorizon = "TEN_YEAR"
	LIFETIME  RiskHorizon = "LIFETIME"
)

// RiskTier represents the guideline risk category assigned to a projected risk.
type RiskTier string

const (
	VERY_HIGH_RISK RiskTier = "VERY_HIGH_RISK"
	HIGH_RISK      RiskTier = "HIGH_RISK"
	MODERATE_RISK  RiskTier = "MODERATE_RISK"
)

// StatinIntensity represents the intensity bracket of statin therapy in a plan.
type StatinIntensity string

const (
	STATIN_NONE     StatinIntensity = "NONE"
	STATIN_MODERATE StatinIntensity = "MODERATE"
	STATIN_HIGH     StatinIntensity = "HIGH"
)

// Validation errors for clinical data integrity
var (
	ErrNotFound               = errors.New("not found")
	ErrMissingInput           = errors.New("required input missing")
	ErrDomainConstraint       = errors.New("input outside model domain")
	ErrInvalidSex             = errors.New("invalid sex")
	ErrInvalidModelVariant    = errors.New("invalid risk model variant")
	ErrInvalidHorizon         = errors.New("invalid risk horizon")
	ErrInvalidRiskTier        = errors.New("invalid risk tier")
	ErrInvalidStatinIntensity = errors.New("invalid statin intensity")
)

// IsValid validates the sex value.
func (s Sex) IsValid() bool {
	switch s {
	case MALE, FEMALE:
		return true
	default:
		return false
	}
}

// String returns the string representation of the sex value.
func (s Sex) String() string {
	return string(s)
}

// IsValid validates the model variant.
func (v ModelVariant) IsValid() bool {
	switch v {
	case COEFFICIENT_SUM, LOG_CRP:
		return true
	default:
		return false
	}
}

// String returns the string representation of the model variant.
func (v ModelVariant) String() string {
	return string(v)
}

// DisplayName returns a human-readable name for clinical reporting.
func (v ModelVariant) DisplayName() string {
	switch v {
	case COEFFICIENT_SUM:
		return "Recalibrated coefficient model"
	case LOG_CRP:
		return "hs-CRP extended model"
	default:
		return "Unknown model"
	}
}

// IsValid validates the risk horizon.
func (h RiskHorizon) IsValid() bool {
	switch h {
	case FIVE_YEAR, TEN_YEAR, LIFETIME:
		return true
	default:
		return false
	}
}

// String returns the string representation of the horizon.
func (h RiskHorizon) String() string {
	return string(h)
}

// DisplayName returns a human-readable horizon label.
func (h RiskHorizon) DisplayName() string {
	switch h {
	case FIVE_YEAR:
		return "5-year"
	case TEN_YEAR:
		return "10-year"
	case LIFETIME:
		return "Lifetime"
	default:
		return "Unknown horizon"
	}
}

// IsValid validates that the RiskTier is one of the three guideline categories.
// Only valid tiers may drive treatment recommendations.
func (t RiskTier) IsValid() bool {
	switch t {
	case VERY_HIGH_RISK, HIGH_RISK, MODERATE_RISK:
		return true
	default:
		return false
	}
}

// String returns the string representation of the risk tier.
// Required for proper logging and audit trails.
func (t RiskTier) String() string {
	return string(t)
}

// DisplayName returns the tier label used in clinical reports.
func (t RiskTier) DisplayName() string {
	switch t {
	case VERY_HIGH_RISK:
		return "Very High Risk"
	case HIGH_RISK:
		return "High Risk"
	case MODERATE_RISK:
		return "Moderate Risk"
	default:
		return "Unknown risk tier"
	}
}

// LogFields returns structured logging fields for audit trails.
func (t RiskTier) LogFields() map[string]any {
	return map[string]any{
		"risk_tier":               string(t),
		"display_name":            t.DisplayName(),
		"is_valid":                t.IsValid(),
		"requires_intensification": t.RequiresIntensification(),
	}
}

// RequiresIntensification reports whether the tier calls for escalating therapy
// rather than maintaining the current regimen.
func (t RiskTier) RequiresIntensification() bool {
	switch t {
	case VERY_HIGH_RISK, HIGH_RISK:
		return true
	case MODERATE_RISK:
		return false
	default:
		return true // Conservative default for unknown tiers
	}
}

// IsValid validates the statin intensity bracket.
func (si StatinIntensity) IsValid() bool {
	switch si {
	case STATIN_NONE, STATIN_MODERATE, STATIN_HIGH:
		return true
	default:
		return false
	}
}

// String returns the string representation of the statin intensity.
func (si StatinIntensity) String() string {
	return string(si)
}

// PatientProfile is the immutable clinical input to the risk models. Concentrations
// are mmol/L, blood pressure is mmHg, eGFR is mL/min/1.73m2, CRP is mg/L.
// A zero value in a required numeric field is treated as a missing input, never
// as a measured zero.
type PatientProfile struct {
	Age      float64 `json:"age" validate:"required"`
	Sex      Sex     `json:"sex" validate:"required"`
	Diabetes bool    `json:"diabetes"`
	Smoker   bool    `json:"smoker"`

	SystolicBP       float64 `json:"systolic_bp"`
	LDL              float64 `json:"ldl"`
	TotalCholesterol float64 `json:"total_cholesterol"`
	HDL              float64 `json:"hdl"`
	EGFR             float64 `json:"egfr"`
	CRP              float64 `json:"crp"`

	// Vascular disease territories. The territory count used by the models is
	// always derived from these flags, never stored separately.
	CAD    bool `json:"cad"`
	Stroke bool `json:"stroke"`
	PAD    bool `json:"pad"`

	// HbA1c (%) is recorded for reporting in diabetic patients but enters
	// neither risk model.
	HbA1c float64 `json:"hba1c,omitempty"`
}

// VascularTerritoryCount returns the number of affected vascular territories (0-3).
func (p *PatientProfile) VascularTerritoryCount() int {
	count := 0
	if p.CAD {
		count++
	}
	if p.Stroke {
		count++
	}
	if p.PAD {
		count++
	}
	return count
}

// Validate checks the fields required by every model variant.
func (p *PatientProfile) Validate() error {
	if p.Age <= 0 {
		return fmt.Errorf("profile validation: age: %w", ErrMissingInput)
	}
	if !p.Sex.IsValid() {
		return fmt.Errorf("profile validation: %w", ErrInvalidSex)
	}
	if p.SystolicBP <= 0 {
		return fmt.Errorf("profile validation: systolic_bp: %w", ErrMissingInput)
	}
	if p.EGFR <= 0 {
		return fmt.Errorf("profile validation: egfr: %w", ErrMissingInput)
	}
	return nil
}

// ValidateForVariant checks the additional fields a specific model variant requires.
// Callers must treat a returned error as "insufficient data", not as zero risk.
func (p *PatientProfile) ValidateForVariant(variant ModelVariant) error {
	if err := p.Validate(); err != nil {
		return err
	}

	switch variant {
	case COEFFICIENT_SUM:
		if p.LDL <= 0 {
			return fmt.Errorf("profile validation: ldl: %w", ErrMissingInput)
		}
	case LOG_CRP:
		if p.TotalCholesterol == 0 {
			return fmt.Errorf("profile validation: total_cholesterol: %w", ErrMissingInput)
		}
		if p.HDL == 0 {
			return fmt.Errorf("profile validation: hdl: %w", ErrMissingInput)
		}
		if p.TotalCholesterol < 0 || p.HDL < 0 {
			return fmt.Errorf("profile validation: cholesterol concentrations must be positive: %w", ErrDomainConstraint)
		}
		if p.CRP == 0 {
			return fmt.Errorf("profile validation: crp: %w", ErrMissingInput)
		}
		// The log term requires strictly positive CRP.
		if p.CRP < 0 {
			return fmt.Errorf("profile validation: crp must be positive: %w", ErrDomainConstraint)
		}
	default:
		return fmt.Errorf("profile validation: %w", ErrInvalidModelVariant)
	}

	return nil
}

// TherapyPlan describes the selected drug and lifestyle interventions to project.
// At most one agent may be active per drug class; violations are reported as
// advisory conflicts and never block calculation.
type TherapyPlan struct {
	StatinIntensity StatinIntensity `json:"statin_intensity"`

	// DischargeStatin names the statin and dose for the lipid trajectory model,
	// e.g. "Atorvastatin 80mg". Empty when no named statin is modelled.
	DischargeStatin string `json:"discharge_statin,omitempty"`
	// OnStatinAtBaseline marks pre-existing statin therapy; the newly added
	// statin's LDL reduction is then discounted by half.
	OnStatinAtBaseline bool `json:"on_statin_at_baseline"`

	Ezetimibe      bool `json:"ezetimibe"`
	PCSK9Inhibitor bool `json:"pcsk9_inhibitor"`
	Inclisiran     bool `json:"inclisiran"`
	// BempedoicAcid is accepted and conflict-checked but carries no effect entry
	// in the current evidence tables.
	BempedoicAcid bool `json:"bempedoic_acid"`

	// BPTarget is the systolic target in mmHg; zero means no BP intervention.
	BPTarget float64 `json:"bp_target,omitempty"`

	MediterraneanDiet bool `json:"mediterranean_diet"`
	Exercise          bool `json:"exercise"`
	SmokingCessation  bool `json:"smoking_cessation"`

	// LDLTarget is the goal LDL-C in mmol/L, reported alongside the projection.
	LDLTarget float64 `json:"ldl_target,omitempty"`

	// TherapyNames lists free-text agent names for drug-class conflict checking.
	TherapyNames []string `json:"therapy_names,omitempty"`
}

// Validate ensures the plan fields are well-formed.
func (tp *TherapyPlan) Validate() error {
	if tp.StatinIntensity != "" && !tp.StatinIntensity.IsValid() {
		return fmt.Errorf("therapy plan validation: %w", ErrInvalidStatinIntensity)
	}
	if tp.BPTarget < 0 {
		return fmt.Errorf("therapy plan validation: bp_target must be non-negative: %w", ErrDomainConstraint)
	}
	if tp.LDLTarget < 0 {
		return fmt.Errorf("therapy plan validation: ldl_target must be non-negative: %w", ErrDomainConstraint)
	}
	return nil
}

// Case is a saved snapshot of a patient profile, round-trippable to the same
// structure. Therapy selections are deliberately not part of a case: they
// describe a modelled scenario, not the patient.
type Case struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	Demographics CaseDemographics `json:"demographics"`
	RiskFactors  CaseRiskFactors  `json:"risk_factors"`
	Biomarkers   CaseBiomarkers   `json:"biomarkers"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CaseDemographics holds the identity-free demographic fields of a saved case.
type CaseDemographics struct {
	Age float64 `json:"age"`
	Sex Sex     `json:"sex"`
}

// CaseRiskFactors holds the categorical risk factors of a saved case.
type CaseRiskFactors struct {
	Diabetes bool `json:"diabetes"`
	Smoker   bool `json:"smoker"`
	CAD      bool `json:"cad"`
	Stroke   bool `json:"stroke"`
	PAD      bool `json:"pad"`
}

// CaseBiomarkers holds the laboratory values of a saved case.
type CaseBiomarkers struct {
	LDL              float64 `json:"ldl"`
	SystolicBP       float64 `json:"systolic_bp"`
	HDL              float64 `json:"hdl"`
	TotalCholesterol float64 `json:"total_cholesterol"`
	EGFR             float64 `json:"egfr"`
	CRP              float64 `json:"crp"`
	HbA1c            float64 `json:"hba1c,omitempty"`
}

// Profile reconstructs the patient profile captured by the case.
func (c *Case) Profile() *PatientProfile {
	return &PatientProfile{
		Age:              c.Demographics.Age,
		Sex:              c.Demographics.Sex,
		Diabetes:         c.RiskFactors.Diabetes,
		Smoker:           c.RiskFactors.Smoker,
		CAD:              c.RiskFactors.CAD,
		Stroke:           c.RiskFactors.Stroke,
		PAD:              c.RiskFactors.PAD,
		LDL:              c.Biomarkers.LDL,
		SystolicBP:       c.Biomarkers.SystolicBP,
		HDL:              c.Biomarkers.HDL,
		TotalCholesterol: c.Biomarkers.TotalCholesterol,
		EGFR:             c.Biomarkers.EGFR,
		CRP:              c.Biomarkers.CRP,
		HbA1c:            c.Biomarkers.HbA1c,
	}
}

// NewCaseFromProfile snapshots a profile into a named case.
func NewCaseFromProfile(id, name string, p *PatientProfile) *Case {
	now := time.Now().UTC()
	return &Case{
		ID:   id,
		Name: name,
		Demographics: CaseDemographics{
			Age: p.Age,
			Sex: p.Sex,
		},
		RiskFactors: CaseRiskFactors{
			Diabetes: p.Diabetes,
			Smoker:   p.Smoker,
			CAD:      p.CAD,
			Stroke:   p.Stroke,
			PAD:      p.PAD,
		},
		Biomarkers: CaseBiomarkers{
			LDL:              p.LDL,
			SystolicBP:       p.SystolicBP,
			HDL:              p.HDL,
			TotalCholesterol: p.TotalCholesterol,
			EGFR:             p.EGFR,
			CRP:              p.CRP,
			HbA1c:            p.HbA1c,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate ensures a case snapshot can be stored and later reloaded into a
// usable profile.
func (c *Case) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("case validation: %w", errors.New("ID is required"))
	}
	if c.Name == "" {
		return fmt.Errorf("case validation: %w", errors.New("name is required"))
	}
	if c.Demographics.Age <= 0 {
		return fmt.Errorf("case validation: age: %w", ErrMissingInput)
	}
	if !c.Demographics.Sex.IsValid() {
		return fmt.Errorf("case validation: %w", ErrInvalidSex)
	}
	return nil
}
