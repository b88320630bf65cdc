// Package report assembles clinician-facing markdown summaries of completed
// risk assessments. Output is plain markdown so callers can render it in a
// terminal, a chat client, or a document pipeline without this package taking
// a position on presentation.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/prime-cvd-server/internal/domain"
)

// Input bundles everything a report draws from. Profile and Result are
// required; Plan and CaseName enrich the report when present.
type Input struct {
	Profile  *domain.PatientProfile   `json:"profile"`
	Plan     *domain.TherapyPlan      `json:"plan,omitempty"`
	Result   *domain.AssessmentResult `json:"result"`
	CaseName string                   `json:"case_name,omitempty"`
}

// Builder renders assessment results as markdown reports.
type Builder struct {
	logger *logrus.Logger
}

// NewBuilder creates a report builder.
func NewBuilder(logger *logrus.Logger) *Builder {
	return &Builder{logger: logger}
}

// Build renders the full report. It never fails on missing optional sections;
// only an absent profile or result is an error.
func (b *Builder) Build(in *Input) (string, error) {
	if in == nil || in.Profile == nil || in.Result == nil {
		return "", fmt.Errorf("report: profile and result: %w", domain.ErrMissingInput)
	}

	var sb strings.Builder

	b.writeHeader(&sb, in)
	b.writePatientSummary(&sb, in.Profile)
	b.writeRiskSection(&sb, in.Result)
	if in.Result.Treatment != nil {
		b.writeTherapySection(&sb, in.Result.Treatment)
	}
	if in.Result.Lipid != nil {
		b.writeLipidSection(&sb, in.Result.Lipid)
	}
	if len(in.Result.Conflicts) > 0 {
		b.writeConflictSection(&sb, in.Result.Conflicts)
	}
	b.writeGuidanceSection(&sb, in.Result)
	b.writeEvidenceSection(&sb, in.Result.Citations)
	b.writeDisclaimer(&sb)

	b.logger.WithFields(logrus.Fields{
		"assessment_id": in.Result.ID,
		"tier":          in.Result.Tier.String(),
		"bytes":         sb.Len(),
	}).Info("Report generated")

	return sb.String(), nil
}

func (b *Builder) writeHeader(sb *strings.Builder, in *Input) {
	sb.WriteString("# Cardiovascular Risk Assessment Report\n\n")
	if in.CaseName != "" {
		sb.WriteString(fmt.Sprintf("**Case:** %s\n\n", in.CaseName))
	}
	sb.WriteString(fmt.Sprintf("**Assessment ID:** %s  \n", in.Result.ID))
	sb.WriteString(fmt.Sprintf("**Generated:** %s  \n", time.Now().UTC().Format("2006-01-02 15:04 UTC")))
	sb.WriteString(fmt.Sprintf("**Engine version:** %s\n\n", in.Result.EngineVersion))
}

func (b *Builder) writePatientSummary(sb *strings.Builder, p *domain.PatientProfile) {
	sb.WriteString("## Patient Summary\n\n")
	sb.WriteString(fmt.Sprintf("- Age: %.0f years\n", p.Age))
	sb.WriteString(fmt.Sprintf("- Sex: %s\n", sexLabel(p.Sex)))
	sb.WriteString(fmt.Sprintf("- Diabetes: %s\n", yesNo(p.Diabetes)))
	sb.WriteString(fmt.Sprintf("- Current smoker: %s\n", yesNo(p.Smoker)))
	if p.SystolicBP > 0 {
		sb.WriteString(fmt.Sprintf("- Systolic BP: %.0f mmHg\n", p.SystolicBP))
	}
	if p.LDL > 0 {
		sb.WriteString(fmt.Sprintf("- LDL-C: %.1f mmol/L\n", p.LDL))
	}
	if p.TotalCholesterol > 0 {
		sb.WriteString(fmt.Sprintf("- Total cholesterol: %.1f mmol/L\n", p.TotalCholesterol))
	}
	if p.HDL > 0 {
		sb.WriteString(fmt.Sprintf("- HDL-C: %.1f mmol/L\n", p.HDL))
	}
	if p.EGFR > 0 {
		sb.WriteString(fmt.Sprintf("- eGFR: %.0f mL/min/1.73m²\n", p.EGFR))
	}
	if p.CRP > 0 {
		sb.WriteString(fmt.Sprintf("- hs-CRP: %.1f mg/L\n", p.CRP))
	}
	if p.HbA1c > 0 {
		sb.WriteString(fmt.Sprintf("- HbA1c: %.1f%%\n", p.HbA1c))
	}
	if n := p.VascularTerritoryCount(); n > 0 {
		sb.WriteString(fmt.Sprintf("- Established vascular disease: %s (%d territor%s)\n",
			territoryList(p), n, pluralY(n)))
	}
	sb.WriteString("\n")
}

func (b *Builder) writeRiskSection(sb *strings.Builder, res *domain.AssessmentResult) {
	sb.WriteString("## Risk Assessment\n\n")
	if res.BaselineRisk != nil {
		sb.WriteString(fmt.Sprintf("- Baseline 10-year risk (%s model): **%.1f%%**\n",
			variantLabel(res.BaselineRisk.Variant), res.BaselineRisk.Percent))
	}
	if res.HorizonRisk != nil && res.HorizonRisk.Horizon != domain.TEN_YEAR {
		sb.WriteString(fmt.Sprintf("- %s risk: **%.1f%%**\n",
			horizonLabel(res.HorizonRisk.Horizon), res.HorizonRisk.Percent))
	}
	if res.Treatment != nil {
		sb.WriteString(fmt.Sprintf("- Projected risk on selected therapy: **%.1f%%**\n",
			res.Treatment.ProjectedRisk))
	}
	sb.WriteString(fmt.Sprintf("- Risk tier: **%s**\n\n", res.TierLabel))
}

func (b *Builder) writeTherapySection(sb *strings.Builder, t *domain.TreatmentEffectResult) {
	sb.WriteString("## Treatment Effect\n\n")
	if len(t.ActiveTherapies) > 0 {
		sb.WriteString("Active therapies:\n\n")
		for _, name := range t.ActiveTherapies {
			sb.WriteString(fmt.Sprintf("- %s\n", name))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("| Metric | Value |\n|---|---|\n")
	sb.WriteString(fmt.Sprintf("| Combined relative risk reduction | %.1f%% |\n", t.TotalRRR*100))
	sb.WriteString(fmt.Sprintf("| Effective RRR (diminishing returns) | %.1f%% |\n", t.EffectiveRRR*100))
	sb.WriteString(fmt.Sprintf("| Baseline risk | %.1f%% |\n", t.BaselineRisk))
	sb.WriteString(fmt.Sprintf("| Projected risk | %.1f%% |\n", t.ProjectedRisk))
	sb.WriteString(fmt.Sprintf("| Absolute risk reduction | %.1f percentage points |\n\n", t.AbsoluteReduction))
}

func (b *Builder) writeLipidSection(sb *strings.Builder, l *domain.LipidResult) {
	sb.WriteString("## LDL-C Trajectory\n\n")
	sb.WriteString(fmt.Sprintf("- Current LDL-C: %.1f mmol/L\n", l.CurrentLDL))
	sb.WriteString(fmt.Sprintf("- Projected LDL-C on therapy: %.1f mmol/L (%.0f%% reduction)\n",
		l.ProjectedLDL, l.TotalReductionPc))
	if l.TargetLDL > 0 {
		marker := "not yet at target"
		if l.ProjectedLDL <= l.TargetLDL {
			marker = "target met"
		}
		sb.WriteString(fmt.Sprintf("- Target LDL-C: %.1f mmol/L (%s)\n", l.TargetLDL, marker))
	}
	sb.WriteString(fmt.Sprintf("- Attributable risk reduction: %.1f%% relative\n", l.RiskReduction*100))
	sb.WriteString(fmt.Sprintf("- Projected risk via lipid pathway: %.1f%%\n\n", l.ProjectedRisk))
}

func (b *Builder) writeConflictSection(sb *strings.Builder, conflicts []domain.TherapyConflict) {
	sb.WriteString("## Therapy Advisories\n\n")
	for _, c := range conflicts {
		sb.WriteString(fmt.Sprintf("- **%s** (%s): %s\n",
			c.DrugClass, strings.Join(c.Agents, ", "), c.Message))
	}
	sb.WriteString("\n")
}

func (b *Builder) writeGuidanceSection(sb *strings.Builder, res *domain.AssessmentResult) {
	if len(res.Guidance) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("## Guidance (%s)\n\n", res.TierLabel))
	for _, g := range res.Guidance {
		sb.WriteString(fmt.Sprintf("- %s\n", g))
	}
	sb.WriteString("\n")
}

func (b *Builder) writeEvidenceSection(sb *strings.Builder, citations []domain.Citation) {
	if len(citations) == 0 {
		return
	}
	sb.WriteString("## Evidence\n\n")
	for _, c := range citations {
		if c.Title != "" {
			sb.WriteString(fmt.Sprintf("- %s. *%s* (%d). PMID: %s\n",
				c.Authors, c.Title, c.Year, c.PMID))
			continue
		}
		// Unresolved PMIDs degrade to a bare reference
		sb.WriteString(fmt.Sprintf("- PMID: %s\n", c.PMID))
	}
	sb.WriteString("\n")
}

func (b *Builder) writeDisclaimer(sb *strings.Builder) {
	sb.WriteString("---\n\n")
	sb.WriteString("*This report is a modelling aid for clinical decision support. ")
	sb.WriteString("It does not replace clinical judgement, and the projections assume ")
	sb.WriteString("full adherence to the selected therapies.*\n")
}

func sexLabel(s domain.Sex) string {
	switch s {
	case domain.MALE:
		return "Male"
	case domain.FEMALE:
		return "Female"
	default:
		return string(s)
	}
}

func variantLabel(v domain.ModelVariant) string {
	switch v {
	case domain.COEFFICIENT_SUM:
		return "coefficient-sum"
	case domain.LOG_CRP:
		return "log-CRP"
	default:
		return string(v)
	}
}

func horizonLabel(h domain.RiskHorizon) string {
	switch h {
	case domain.FIVE_YEAR:
		return "5-year"
	case domain.TEN_YEAR:
		return "10-year"
	case domain.LIFETIME:
		return "Lifetime (30-year)"
	default:
		return string(h)
	}
}

func territoryList(p *domain.PatientProfile) string {
	var parts []string
	if p.CAD {
		parts = append(parts, "CAD")
	}
	if p.Stroke {
		parts = append(parts, "stroke/TIA")
	}
	if p.PAD {
		parts = append(parts, "PAD")
	}
	return strings.Join(parts, ", ")
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
