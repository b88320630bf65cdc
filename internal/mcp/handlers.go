package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/prime-cvd-server/internal/cache"
	"github.com/prime-cvd-server/internal/domain"
	"github.com/prime-cvd-server/internal/report"
)

// List defaults shared by the case tools.
const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// AssessRiskParams defines parameters for the assess_cvd_risk tool.
type AssessRiskParams struct {
	Profile *domain.PatientProfile `json:"profile"`
	Plan    *domain.TherapyPlan    `json:"plan,omitempty"`
	Variant domain.ModelVariant    `json:"variant,omitempty"`
	Horizon domain.RiskHorizon     `json:"horizon,omitempty"`
}

// ProjectTreatmentParams defines parameters for the project_treatment_effect tool.
type ProjectTreatmentParams struct {
	Profile *domain.PatientProfile `json:"profile"`
	Plan    *domain.TherapyPlan    `json:"plan"`
	Variant domain.ModelVariant    `json:"variant,omitempty"`
	Horizon domain.RiskHorizon     `json:"horizon,omitempty"`
}

// ProjectTreatmentResult defines the result structure for project_treatment_effect.
type ProjectTreatmentResult struct {
	Baseline  *domain.RiskResult            `json:"baseline"`
	Treatment *domain.TreatmentEffectResult `json:"treatment"`
	Conflicts []domain.TherapyConflict      `json:"conflicts"`
}

// ProjectLipidParams defines parameters for the project_lipid_effect tool.
type ProjectLipidParams struct {
	Profile *domain.PatientProfile `json:"profile"`
	Plan    *domain.TherapyPlan    `json:"plan"`
	Variant domain.ModelVariant    `json:"variant,omitempty"`
	Horizon domain.RiskHorizon     `json:"horizon,omitempty"`
}

// ProjectLipidResult defines the result structure for project_lipid_effect.
type ProjectLipidResult struct {
	Baseline *domain.RiskResult  `json:"baseline"`
	Lipid    *domain.LipidResult `json:"lipid"`
}

// ValidatePlanParams defines parameters for the validate_therapy_plan tool.
type ValidatePlanParams struct {
	Plan *domain.TherapyPlan `json:"plan"`
}

// ValidatePlanResult defines the result structure for validate_therapy_plan.
type ValidatePlanResult struct {
	Valid     bool                     `json:"valid"`
	Conflicts []domain.TherapyConflict `json:"conflicts"`
}

// ClassifyTierParams defines parameters for the classify_risk_tier tool.
type ClassifyTierParams struct {
	RiskPc float64 `json:"risk_pc"`
}

// ClassifyTierResult defines the result structure for classify_risk_tier.
type ClassifyTierResult struct {
	RiskPc    float64         `json:"risk_pc"`
	Tier      domain.RiskTier `json:"tier"`
	TierLabel string          `json:"tier_label"`
	Guidance  []string        `json:"guidance"`
}

// SaveCaseParams defines parameters for the save_case tool.
type SaveCaseParams struct {
	Case *domain.Case `json:"case"`
}

// GetCaseParams defines parameters for the get_case tool.
type GetCaseParams struct {
	CaseID string `json:"case_id"`
}

// ListCasesParams defines parameters for the list_cases tool.
type ListCasesParams struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// ListCasesResult defines the result structure for list_cases.
type ListCasesResult struct {
	Cases  []*domain.Case `json:"cases"`
	Count  int64          `json:"count"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// DeleteCaseParams defines parameters for the delete_case tool.
type DeleteCaseParams struct {
	CaseID string `json:"case_id"`
}

// DeleteCaseResult defines the result structure for delete_case.
type DeleteCaseResult struct {
	Deleted bool   `json:"deleted"`
	CaseID  string `json:"case_id"`
}

// EvidenceTableResult defines the result structure for get_evidence_table.
type EvidenceTableResult struct {
	TreatmentEffects       map[string]domain.TreatmentEffect `json:"treatment_effects"`
	LDLTherapies           []domain.LDLTherapy               `json:"ldl_therapies"`
	LifestyleInterventions []domain.LifestyleIntervention    `json:"lifestyle_interventions"`
	KeyEvidence            []domain.EvidenceSummary          `json:"key_evidence"`
	Citations              map[string]*domain.Citation       `json:"citations,omitempty"`
}

// GenerateReportParams defines parameters for the generate_report tool.
type GenerateReportParams struct {
	Profile    *domain.PatientProfile `json:"profile"`
	Plan       *domain.TherapyPlan    `json:"plan,omitempty"`
	Variant    domain.ModelVariant    `json:"variant,omitempty"`
	Horizon    domain.RiskHorizon     `json:"horizon,omitempty"`
	CaseName   string                 `json:"case_name,omitempty"`
	SaveToFile bool                   `json:"save_to_file,omitempty"`
}

// GenerateReportResult defines the result structure for generate_report.
type GenerateReportResult struct {
	AssessmentID string `json:"assessment_id"`
	TierLabel    string `json:"tier_label"`
	Report       string `json:"report"`
	FilePath     string `json:"file_path,omitempty"`
}

// ServerStatsResult defines the result structure for get_server_stats.
type ServerStatsResult struct {
	Name            string      `json:"name"`
	Version         string      `json:"version"`
	UptimeSeconds   float64     `json:"uptime_seconds"`
	DataDir         string      `json:"data_dir"`
	SavedCases      int64       `json:"saved_cases"`
	CitationLookups bool        `json:"citation_lookups"`
	Cache           cache.Stats `json:"cache"`
	CacheHitRatio   float64     `json:"cache_hit_ratio"`
}

// handleAssessRisk handles the assess_cvd_risk tool invocation
func (s *Server) handleAssessRisk(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", toolAssessRisk).Info("Tool invoked")

	var params AssessRiskParams
	if err := unmarshalParams(req, &params); err != nil {
		return s.createErrorResult("Invalid parameters", err), nil
	}
	if params.Profile == nil {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("profile is required")), nil
	}

	args := cacheArgs(req)
	if text, ok := s.cachedText(ctx, toolAssessRisk, args); ok {
		return textResult(text), nil
	}

	start := time.Now()
	result, err := s.assessor.Assess(ctx, &domain.AssessmentRequest{
		Profile: params.Profile,
		Plan:    params.Plan,
		Variant: params.Variant,
		Horizon: params.Horizon,
	})
	if err != nil {
		return s.createErrorResult("Assessment failed", err), nil
	}

	return s.cacheAndRespond(ctx, toolAssessRisk, args, result, start)
}

// handleProjectTreatment handles the project_treatment_effect tool invocation
func (s *Server) handleProjectTreatment(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", toolProjectTreatment).Info("Tool invoked")

	var params ProjectTreatmentParams
	if err := unmarshalParams(req, &params); err != nil {
		return s.createErrorResult("Invalid parameters", err), nil
	}
	if params.Profile == nil {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("profile is required")), nil
	}
	if params.Plan == nil {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("plan is required")), nil
	}

	args := cacheArgs(req)
	if text, ok := s.cachedText(ctx, toolProjectTreatment, args); ok {
		return textResult(text), nil
	}

	start := time.Now()
	baseline, err := s.baselineAtHorizon(params.Profile, params.Variant, params.Horizon)
	if err != nil {
		return s.createErrorResult("Risk calculation failed", err), nil
	}

	treatment, err := s.assessor.TreatmentEffect(baseline, params.Profile, params.Plan)
	if err != nil {
		return s.createErrorResult("Treatment projection failed", err), nil
	}

	conflicts := s.assessor.ValidatePlan(params.Plan)
	if conflicts == nil {
		conflicts = []domain.TherapyConflict{}
	}

	return s.cacheAndRespond(ctx, toolProjectTreatment, args, ProjectTreatmentResult{
		Baseline:  baseline,
		Treatment: treatment,
		Conflicts: conflicts,
	}, start)
}

// handleProjectLipid handles the project_lipid_effect tool invocation
func (s *Server) handleProjectLipid(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", toolProjectLipid).Info("Tool invoked")

	var params ProjectLipidParams
	if err := unmarshalParams(req, &params); err != nil {
		return s.createErrorResult("Invalid parameters", err), nil
	}
	if params.Profile == nil {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("profile is required")), nil
	}
	if params.Plan == nil {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("plan is required")), nil
	}

	args := cacheArgs(req)
	if text, ok := s.cachedText(ctx, toolProjectLipid, args); ok {
		return textResult(text), nil
	}

	start := time.Now()
	baseline, err := s.baselineAtHorizon(params.Profile, params.Variant, params.Horizon)
	if err != nil {
		return s.createErrorResult("Risk calculation failed", err), nil
	}

	lipid, err := s.assessor.LipidEffect(baseline, params.Profile, params.Plan)
	if err != nil {
		return s.createErrorResult("Lipid projection failed", err), nil
	}

	return s.cacheAndRespond(ctx, toolProjectLipid, args, ProjectLipidResult{
		Baseline: baseline,
		Lipid:    lipid,
	}, start)
}

// handleValidatePlan handles the validate_therapy_plan tool invocation
func (s *Server) handleValidatePlan(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", toolValidatePlan).Info("Tool invoked")

	var params ValidatePlanParams
	if err := unmarshalParams(req, &params); err != nil {
		return s.createErrorResult("Invalid parameters", err), nil
	}
	if params.Plan == nil {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("plan is required")), nil
	}

	conflicts := s.assessor.ValidatePlan(params.Plan)
	if conflicts == nil {
		conflicts = []domain.TherapyConflict{}
	}

	return s.jsonResult(ValidatePlanResult{
		Valid:     len(conflicts) == 0,
		Conflicts: conflicts,
	}), nil
}

// handleClassifyTier handles the classify_risk_tier tool invocation
func (s *Server) handleClassifyTier(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", toolClassifyTier).Info("Tool invoked")

	var params ClassifyTierParams
	if err := unmarshalParams(req, &params); err != nil {
		return s.createErrorResult("Invalid parameters", err), nil
	}
	if params.RiskPc < 0 {
		return s.createErrorResult("Invalid parameters", fmt.Errorf("risk_pc must be non-negative")), nil
	}

	tier, guidance := s.assessor.ClassifyTier(params.RiskPc)

	return s.jsonResult(ClassifyTierResult{
		RiskPc:    params.RiskPc,
		Tier:      tier,
		TierLabel: tier.DisplayName(),
		Guidance:  guidance,
	}), nil
}

// handleSaveCase handles the save_case tool invocation
func (s *Server) handleSaveCase(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", toolSaveCase).Info("Tool invoked")

	var params SaveCaseParams
	if err := unmarshalParams(req, &params); err != nil {
		return s.createErrorResult("Invalid parameters", err), nil
	}
	if params.Case == nil {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("case is required")), nil
	}

	if params.Case.ID == "" {
		params.Case.ID = uuid.New().String()
	}
	if err := params.Case.Validate(); err != nil {
		return s.createErrorResult("Invalid parameters", err), nil
	}

	if err := s.cases.Save(ctx, params.Case); err != nil {
		return s.createErrorResult("Case save failed", err), nil
	}

	s.logger.WithField("case_id", params.Case.ID).Info("Case saved")
	return s.jsonResult(params.Case), nil
}

// handleGetCase handles the get_case tool invocation
func (s *Server) handleGetCase(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", toolGetCase).Info("Tool invoked")

	var params GetCaseParams
	if err := unmarshalParams(req, &params); err != nil {
		return s.createErrorResult("Invalid parameters", err), nil
	}
	if params.CaseID == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("case_id is required")), nil
	}

	c, err := s.cases.Get(ctx, params.CaseID)
	if err != nil {
		return s.createErrorResult("Case lookup failed", err), nil
	}
	if c == nil {
		return s.createErrorResult("Case not found", fmt.Errorf("no saved case with id %q", params.CaseID)), nil
	}

	return s.jsonResult(c), nil
}

// handleListCases handles the list_cases tool invocation
func (s *Server) handleListCases(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", toolListCases).Info("Tool invoked")

	var params ListCasesParams
	if err := unmarshalParams(req, &params); err != nil {
		return s.createErrorResult("Invalid parameters", err), nil
	}
	if params.Limit <= 0 {
		params.Limit = defaultListLimit
	}
	if params.Limit > maxListLimit {
		params.Limit = maxListLimit
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	cases, err := s.cases.List(ctx, params.Limit, params.Offset)
	if err != nil {
		return s.createErrorResult("Case listing failed", err), nil
	}
	count, err := s.cases.Count(ctx)
	if err != nil {
		return s.createErrorResult("Case listing failed", err), nil
	}

	return s.jsonResult(ListCasesResult{
		Cases:  cases,
		Count:  count,
		Limit:  params.Limit,
		Offset: params.Offset,
	}), nil
}

// handleDeleteCase handles the delete_case tool invocation
func (s *Server) handleDeleteCase(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", toolDeleteCase).Info("Tool invoked")

	var params DeleteCaseParams
	if err := unmarshalParams(req, &params); err != nil {
		return s.createErrorResult("Invalid parameters", err), nil
	}
	if params.CaseID == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("case_id is required")), nil
	}

	c, err := s.cases.Get(ctx, params.CaseID)
	if err != nil {
		return s.createErrorResult("Case lookup failed", err), nil
	}
	if c == nil {
		return s.createErrorResult("Case not found", fmt.Errorf("no saved case with id %q", params.CaseID)), nil
	}

	if err := s.cases.Delete(ctx, params.CaseID); err != nil {
		return s.createErrorResult("Case deletion failed", err), nil
	}

	s.logger.WithField("case_id", params.CaseID).Info("Case deleted")
	return s.jsonResult(DeleteCaseResult{Deleted: true, CaseID: params.CaseID}), nil
}

// handleGetEvidenceTable handles the get_evidence_table tool invocation.
// Citation resolution is best effort: the static tables always come back,
// enriched with full references only when a resolver is configured.
func (s *Server) handleGetEvidenceTable(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", toolEvidenceTable).Info("Tool invoked")

	result := EvidenceTableResult{
		TreatmentEffects:       domain.TreatmentEffects(),
		LDLTherapies:           domain.LDLTherapies(),
		LifestyleInterventions: domain.LifestyleInterventions(),
		KeyEvidence:            domain.KeyEvidence(),
	}

	if s.citations != nil {
		resolved, err := s.citations.ResolveBatch(ctx, domain.AllPMIDs())
		if err != nil {
			s.logger.WithError(err).Warn("Citation resolution failed for evidence table")
		} else {
			result.Citations = resolved
		}
	}

	return s.jsonResult(result), nil
}

// handleGenerateReport handles the generate_report tool invocation
func (s *Server) handleGenerateReport(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", toolGenerateReport).Info("Tool invoked")

	var params GenerateReportParams
	if err := unmarshalParams(req, &params); err != nil {
		return s.createErrorResult("Invalid parameters", err), nil
	}
	if params.Profile == nil {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("profile is required")), nil
	}

	res, err := s.assessor.Assess(ctx, &domain.AssessmentRequest{
		Profile: params.Profile,
		Plan:    params.Plan,
		Variant: params.Variant,
		Horizon: params.Horizon,
	})
	if err != nil {
		return s.createErrorResult("Assessment failed", err), nil
	}

	markdown, err := s.reports.Build(&report.Input{
		Profile:  params.Profile,
		Plan:     params.Plan,
		Result:   res,
		CaseName: params.CaseName,
	})
	if err != nil {
		return s.createErrorResult("Report generation failed", err), nil
	}

	result := GenerateReportResult{
		AssessmentID: res.ID,
		TierLabel:    res.TierLabel,
		Report:       markdown,
	}

	if params.SaveToFile {
		path := filepath.Join(s.config.ReportDir(), fmt.Sprintf("report-%s.md", res.ID))
		if err := os.WriteFile(path, []byte(markdown), 0644); err != nil {
			return s.createErrorResult("Failed to write report file", err), nil
		}
		result.FilePath = path
		s.logger.WithField("path", path).Info("Report written to disk")
	}

	return s.jsonResult(result), nil
}

// handleGetServerStats handles the get_server_stats tool invocation
func (s *Server) handleGetServerStats(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", toolServerStats).Info("Tool invoked")

	result := ServerStatsResult{
		Name:            serverName,
		Version:         serverVersion,
		UptimeSeconds:   time.Since(s.started).Round(time.Second).Seconds(),
		DataDir:         s.config.DataDir,
		CitationLookups: s.citations != nil,
		Cache:           s.toolCache.GetStats(),
		CacheHitRatio:   s.toolCache.GetHitRatio(),
	}

	if count, err := s.cases.Count(ctx); err != nil {
		s.logger.WithError(err).Warn("Failed to count saved cases")
	} else {
		result.SavedCases = count
	}

	return s.jsonResult(result), nil
}

// baselineAtHorizon computes the baseline risk under the chosen variant,
// rescaled when a non-default horizon is requested.
func (s *Server) baselineAtHorizon(profile *domain.PatientProfile, variant domain.ModelVariant, horizon domain.RiskHorizon) (*domain.RiskResult, error) {
	if variant == "" {
		variant = domain.COEFFICIENT_SUM
	}

	baseline, err := s.assessor.BaselineRisk(profile, variant)
	if err != nil {
		return nil, err
	}
	if horizon == "" {
		return baseline, nil
	}
	return s.assessor.AdjustHorizon(baseline, horizon)
}

// unmarshalParams decodes the raw tool arguments into params. Absent
// arguments leave params at its zero value; required-field checks belong to
// the individual handlers.
func unmarshalParams(req *mcp.CallToolRequest, v interface{}) error {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return nil
	}
	return json.Unmarshal(req.Params.Arguments, v)
}

// cacheArgs re-decodes the raw arguments as a generic map for cache keying.
func cacheArgs(req *mcp.CallToolRequest) map[string]interface{} {
	args := map[string]interface{}{}
	if req != nil && req.Params != nil && len(req.Params.Arguments) > 0 {
		_ = json.Unmarshal(req.Params.Arguments, &args)
	}
	return args
}

// cachedText returns the cached rendering for identical arguments, if any.
func (s *Server) cachedText(ctx context.Context, tool string, args map[string]interface{}) (string, bool) {
	cached, ok := s.toolCache.Get(ctx, tool, args)
	if !ok {
		return "", false
	}
	text, ok := cached.Result.(string)
	return text, ok
}

// cacheAndRespond renders v as the tool result and stores the rendered JSON
// for replay on identical arguments.
func (s *Server) cacheAndRespond(ctx context.Context, tool string, args map[string]interface{}, v interface{}, start time.Time) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return s.createErrorResult("Failed to encode result", err), nil
	}
	text := string(data)

	if err := s.toolCache.Set(ctx, tool, args, text, time.Since(start), 0); err != nil {
		s.logger.WithError(err).WithField("tool", tool).Debug("Failed to cache tool result")
	}
	return textResult(text), nil
}

// jsonResult renders v as pretty-printed JSON text content.
func (s *Server) jsonResult(v interface{}) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return s.createErrorResult("Failed to encode result", err)
	}
	return textResult(string(data))
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// createErrorResult creates a standardized error result for tool calls
func (s *Server) createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}
