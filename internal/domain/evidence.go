package domain

// EvidenceSource cites the trial or meta-analysis behind a modelled effect.
type EvidenceSource struct {
	Source string `json:"source"`
	PMID   string `json:"pmid"`
}

// TreatmentEffect is one entry of the relative-risk-reduction evidence table.
// RRR is a fraction, not a percentage.
type TreatmentEffect struct {
	Key    string         `json:"key"`
	Label  string         `json:"label"`
	RRR    float64        `json:"rrr"`
	Source EvidenceSource `json:"source"`
}

// Treatment effect table keys.
const (
	EffectStatinModerate   = "statin_moderate"
	EffectStatinHigh       = "statin_high"
	EffectEzetimibe        = "ezetimibe"
	EffectPCSK9            = "pcsk9_inhibitor"
	EffectBPStandard       = "bp_standard"
	EffectBPIntensive      = "bp_intensive"
	EffectMedDiet          = "mediterranean_diet"
	EffectExercise         = "exercise"
	EffectSmokingCessation = "smoking_cessation"
)

// treatmentEffects is the fixed RRR evidence table. Eligibility conditions
// (LDL gate for PCSK9, smoker gate for cessation, BP target thresholds) are
// applied by the treatment engine, not encoded here.
var treatmentEffects = map[string]TreatmentEffect{
	EffectStatinModerate: {
		Key:    EffectStatinModerate,
		Label:  "Moderate-intensity statin",
		RRR:    0.25,
		Source: EvidenceSource{Source: "CTT Collaboration, Lancet 2010", PMID: "21067804"},
	},
	EffectStatinHigh: {
		Key:    EffectStatinHigh,
		Label:  "High-intensity statin",
		RRR:    0.35,
		Source: EvidenceSource{Source: "CTT Collaboration, Lancet 2010", PMID: "21067804"},
	},
	EffectEzetimibe: {
		Key:    EffectEzetimibe,
		Label:  "Ezetimibe",
		RRR:    0.06,
		Source: EvidenceSource{Source: "IMPROVE-IT, NEJM 2015", PMID: "26039521"},
	},
	EffectPCSK9: {
		Key:    EffectPCSK9,
		Label:  "PCSK9 inhibitor",
		RRR:    0.15,
		Source: EvidenceSource{Source: "FOURIER, NEJM 2017", PMID: "28304224"},
	},
	EffectBPStandard: {
		Key:    EffectBPStandard,
		Label:  "Blood pressure control (<140 mmHg)",
		RRR:    0.10,
		Source: EvidenceSource{Source: "SPRINT, NEJM 2015", PMID: "26551272"},
	},
	EffectBPIntensive: {
		Key:    EffectBPIntensive,
		Label:  "Intensive blood pressure control (<130 mmHg)",
		RRR:    0.25,
		Source: EvidenceSource{Source: "SPRINT, NEJM 2015", PMID: "26551272"},
	},
	EffectMedDiet: {
		Key:    EffectMedDiet,
		Label:  "Mediterranean diet",
		RRR:    0.15,
		Source: EvidenceSource{Source: "PREDIMED, NEJM 2018", PMID: "29897866"},
	},
	EffectExercise: {
		Key:    EffectExercise,
		Label:  "Regular exercise",
		RRR:    0.10,
		Source: EvidenceSource{Source: "Cochrane Review 2016", PMID: "26730878"},
	},
	EffectSmokingCessation: {
		Key:    EffectSmokingCessation,
		Label:  "Smoking cessation",
		RRR:    0.30,
		Source: EvidenceSource{Source: "Haberstick, BMJ 2018", PMID: "29367388"},
	},
}

// LookupTreatmentEffect returns the table entry for a key.
func LookupTreatmentEffect(key string) (TreatmentEffect, bool) {
	e, ok := treatmentEffects[key]
	return e, ok
}

// TreatmentEffects returns a copy of the full RRR table.
func TreatmentEffects() map[string]TreatmentEffect {
	out := make(map[string]TreatmentEffect, len(treatmentEffects))
	for k, v := range treatmentEffects {
		out[k] = v
	}
	return out
}

// LDLTherapy is one entry of the named-statin LDL-reduction table.
// ReductionPc is the expected percent LDL-C reduction from that regimen.
type LDLTherapy struct {
	Name        string         `json:"name"`
	ReductionPc float64        `json:"reduction_percent"`
	Source      EvidenceSource `json:"source"`
}

var ldlTherapies = []LDLTherapy{
	{Name: "Atorvastatin 20 mg", ReductionPc: 40, Source: EvidenceSource{Source: "STELLAR, JAMA 2003", PMID: "14699082"}},
	{Name: "Atorvastatin 80 mg", ReductionPc: 50, Source: EvidenceSource{Source: "TNT, NEJM 2005", PMID: "15930428"}},
	{Name: "Rosuvastatin 10 mg", ReductionPc: 45, Source: EvidenceSource{Source: "JUPITER, NEJM 2008", PMID: "18997196"}},
	{Name: "Rosuvastatin 20 mg", ReductionPc: 55, Source: EvidenceSource{Source: "SATURN, NEJM 2011", PMID: "22010916"}},
}

// LDLTherapies returns the named-statin table in display order.
func LDLTherapies() []LDLTherapy {
	out := make([]LDLTherapy, len(ldlTherapies))
	copy(out, ldlTherapies)
	return out
}

// LookupLDLTherapy returns the named-statin entry for a canonical regimen name.
func LookupLDLTherapy(name string) (LDLTherapy, bool) {
	for _, t := range ldlTherapies {
		if t.Name == name {
			return t, true
		}
	}
	return LDLTherapy{}, false
}

// Add-on LDL reduction percentages, additive on top of the statin effect.
const (
	EzetimibeLDLReductionPc  = 20.0
	PCSK9LDLReductionPc      = 60.0
	InclisiranLDLReductionPc = 50.0
)

// LifestyleIntervention describes a non-drug intervention with its absolute
// risk reductions over two horizons. ARR values are percentage points.
type LifestyleIntervention struct {
	Name        string  `json:"name"`
	ARR5Year    float64 `json:"arr_5yr"`
	ARRLifetime float64 `json:"arr_lifetime"`
	Mechanism   string  `json:"mechanism"`
	Source      string  `json:"source"`
}

var lifestyleInterventions = []LifestyleIntervention{
	{
		Name:        "Smoking cessation",
		ARR5Year:    5,
		ARRLifetime: 17,
		Mechanism:   "Reduces endothelial dysfunction and thrombotic risk",
		Source:      "Haberstick BMJ 2018 (PMID: 29367388)",
	},
	{
		Name:        "Mediterranean diet",
		ARR5Year:    3,
		ARRLifetime: 10,
		Mechanism:   "Improves lipid profile and reduces inflammation",
		Source:      "PREDIMED NEJM 2018 (PMID: 29897866)",
	},
}

// LifestyleInterventions returns the intervention table in display order.
func LifestyleInterventions() []LifestyleIntervention {
	out := make([]LifestyleIntervention, len(lifestyleInterventions))
	copy(out, lifestyleInterventions)
	return out
}

// EvidenceSummary is a headline dose-response relationship shown on reports.
type EvidenceSummary struct {
	Effect string         `json:"effect"`
	Source EvidenceSource `json:"source"`
}

// KeyEvidence returns the headline relationships backing the lipid and blood
// pressure models.
func KeyEvidence() []EvidenceSummary {
	return []EvidenceSummary{
		{
			Effect: "22% RRR per 1 mmol/L LDL reduction",
			Source: EvidenceSource{Source: "CTT Collaboration, Lancet 2010", PMID: "21067804"},
		},
		{
			Effect: "10% RRR per 10 mmHg reduction",
			Source: EvidenceSource{Source: "SPRINT, NEJM 2015", PMID: "26551272"},
		},
	}
}

// tierGuidance maps each risk tier to its fixed guidance block. Content is
// data, not logic; updating guidance never touches calculation code.
var tierGuidance = map[RiskTier][]string{
	VERY_HIGH_RISK: {
		"High-intensity statin (atorvastatin 80mg or rosuvastatin 20-40mg)",
		"Consider PCSK9 inhibitor if LDL ≥1.8 mmol/L after statin",
		"Target SBP <130 mmHg if tolerated",
		"Comprehensive lifestyle modification",
		"Consider colchicine 0.5mg daily for inflammation",
	},
	HIGH_RISK: {
		"At least moderate-intensity statin",
		"Target SBP <130 mmHg",
		"Address all modifiable risk factors",
		"Consider ezetimibe if LDL >1.8 mmol/L",
	},
	MODERATE_RISK: {
		"Maintain current therapies",
		"Focus on lifestyle adherence",
		"Annual risk reassessment",
	},
}

// GuidanceForTier returns the guidance block for a tier.
func GuidanceForTier(tier RiskTier) []string {
	guidance, ok := tierGuidance[tier]
	if !ok {
		return nil
	}
	out := make([]string, len(guidance))
	copy(out, guidance)
	return out
}

// AllPMIDs returns the distinct PMIDs referenced across every evidence table,
// in stable order. Used to prefetch citation metadata.
func AllPMIDs() []string {
	seen := make(map[string]bool)
	var pmids []string

	add := func(pmid string) {
		if pmid != "" && !seen[pmid] {
			seen[pmid] = true
			pmids = append(pmids, pmid)
		}
	}

	for _, key := range []string{
		EffectStatinModerate, EffectStatinHigh, EffectEzetimibe, EffectPCSK9,
		EffectBPStandard, EffectBPIntensive, EffectMedDiet, EffectExercise,
		EffectSmokingCessation,
	} {
		add(treatmentEffects[key].Source.PMID)
	}
	for _, t := range ldlTherapies {
		add(t.Source.PMID)
	}
	return pmids
}
