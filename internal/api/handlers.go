package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/prime-cvd-server/internal/domain"
	"github.com/prime-cvd-server/internal/report"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// assessRequest is the full-workflow request body. The optional case_id links
// the persisted audit record to a saved case.
type assessRequest struct {
	domain.AssessmentRequest
	CaseID string `json:"case_id,omitempty"`
}

// projectionRequest feeds the single-projection endpoints (/risk, /treatment,
// /lipid). Variant and Horizon fall back to the engine defaults.
type projectionRequest struct {
	Profile *domain.PatientProfile `json:"profile"`
	Plan    *domain.TherapyPlan    `json:"plan,omitempty"`
	Variant domain.ModelVariant    `json:"variant,omitempty"`
	Horizon domain.RiskHorizon     `json:"horizon,omitempty"`
}

// reportRequest drives a complete assessment and renders it as markdown.
type reportRequest struct {
	domain.AssessmentRequest
	CaseName string `json:"case_name,omitempty"`
}

// handleAssess runs the complete assessment workflow
func (s *Server) handleAssess(c *gin.Context) {
	var req assessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondInvalid(c, err)
		return
	}

	result, err := s.assessor.Assess(c.Request.Context(), &req.AssessmentRequest)
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.recordAssessment(c.Request.Context(), req.CaseID, &req.AssessmentRequest, result)
	c.JSON(http.StatusOK, result)
}

// recordAssessment writes the audit record when a history repository is
// configured. Failures are logged and never surface to the caller; the
// assessment itself already succeeded.
func (s *Server) recordAssessment(ctx context.Context, caseID string, req *domain.AssessmentRequest, result *domain.AssessmentResult) {
	if s.history == nil {
		return
	}
	record := domain.NewAssessmentRecord(caseID, req, result)
	if err := s.history.Create(ctx, record); err != nil {
		s.logger.WithError(err).WithField("assessment_id", result.ID).
			Warn("Failed to persist assessment record")
	}
}

// handleRisk computes a baseline risk estimate without any therapy modelling
func (s *Server) handleRisk(c *gin.Context) {
	var req projectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondInvalid(c, err)
		return
	}

	variant := req.Variant
	if variant == "" {
		variant = domain.COEFFICIENT_SUM
	}

	risk, err := s.assessor.BaselineRisk(req.Profile, variant)
	if err != nil {
		s.respondError(c, err)
		return
	}

	if req.Horizon != "" {
		risk, err = s.assessor.AdjustHorizon(risk, req.Horizon)
		if err != nil {
			s.respondError(c, err)
			return
		}
	}

	tier, guidance := s.assessor.ClassifyTier(risk.Percent)
	c.JSON(http.StatusOK, gin.H{
		"risk":       risk,
		"tier":       tier,
		"tier_label": tier.DisplayName(),
		"guidance":   guidance,
	})
}

// handleTreatment projects the combined effect of a therapy bundle
func (s *Server) handleTreatment(c *gin.Context) {
	var req projectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondInvalid(c, err)
		return
	}

	baseline, err := s.projectionBaseline(&req)
	if err != nil {
		s.respondError(c, err)
		return
	}

	treatment, err := s.assessor.TreatmentEffect(baseline, req.Profile, req.Plan)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"treatment": treatment,
		"conflicts": s.assessor.ValidatePlan(req.Plan),
	})
}

// handleLipid projects the LDL-C trajectory under the selected lipid therapy
func (s *Server) handleLipid(c *gin.Context) {
	var req projectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondInvalid(c, err)
		return
	}

	baseline, err := s.projectionBaseline(&req)
	if err != nil {
		s.respondError(c, err)
		return
	}

	lipid, err := s.assessor.LipidEffect(baseline, req.Profile, req.Plan)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, lipid)
}

// projectionBaseline computes the horizon-adjusted baseline the projection
// endpoints start from.
func (s *Server) projectionBaseline(req *projectionRequest) (*domain.RiskResult, error) {
	variant := req.Variant
	if variant == "" {
		variant = domain.COEFFICIENT_SUM
	}

	baseline, err := s.assessor.BaselineRisk(req.Profile, variant)
	if err != nil {
		return nil, err
	}
	if req.Horizon == "" {
		return baseline, nil
	}
	return s.assessor.AdjustHorizon(baseline, req.Horizon)
}

// handleValidateTherapies reports advisory drug-class conflicts for a plan
func (s *Server) handleValidateTherapies(c *gin.Context) {
	var req struct {
		Plan *domain.TherapyPlan `json:"plan"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondInvalid(c, err)
		return
	}
	if req.Plan == nil {
		s.respondError(c, fmt.Errorf("therapy plan: %w", domain.ErrMissingInput))
		return
	}

	conflicts := s.assessor.ValidatePlan(req.Plan)
	if conflicts == nil {
		conflicts = []domain.TherapyConflict{}
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":     len(conflicts) == 0,
		"conflicts": conflicts,
	})
}

// handleEvidence returns the evidence tables, with resolved citation metadata
// when a resolver is configured
func (s *Server) handleEvidence(c *gin.Context) {
	resp := gin.H{
		"treatment_effects": domain.TreatmentEffects(),
		"ldl_therapies":     domain.LDLTherapies(),
		"key_evidence":      domain.KeyEvidence(),
	}

	if s.citations != nil {
		resolved, err := s.citations.ResolveBatch(c.Request.Context(), domain.AllPMIDs())
		if err != nil {
			s.logger.WithError(err).Warn("Citation resolution failed for evidence endpoint")
		} else {
			resp["citations"] = resolved
		}
	}

	c.JSON(http.StatusOK, resp)
}

// handleInterventions returns the lifestyle intervention table and the fixed
// guidance blocks per risk tier
func (s *Server) handleInterventions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"lifestyle_interventions": domain.LifestyleInterventions(),
		"tier_guidance": map[string][]string{
			string(domain.VERY_HIGH_RISK): domain.GuidanceForTier(domain.VERY_HIGH_RISK),
			string(domain.HIGH_RISK):      domain.GuidanceForTier(domain.HIGH_RISK),
			string(domain.MODERATE_RISK):  domain.GuidanceForTier(domain.MODERATE_RISK),
		},
	})
}

// handleSaveCase creates or updates a saved case
func (s *Server) handleSaveCase(c *gin.Context) {
	if s.cases == nil {
		s.respondUnavailable(c, "case store not configured")
		return
	}

	var cs domain.Case
	if err := c.ShouldBindJSON(&cs); err != nil {
		s.respondInvalid(c, err)
		return
	}
	if cs.ID == "" {
		cs.ID = uuid.New().String()
	}
	if err := cs.Validate(); err != nil {
		s.respondInvalid(c, err)
		return
	}

	if err := s.cases.Save(c.Request.Context(), &cs); err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, cs)
}

// handleListCases lists saved cases, newest first
func (s *Server) handleListCases(c *gin.Context) {
	if s.cases == nil {
		s.respondUnavailable(c, "case store not configured")
		return
	}

	limit, offset := listParams(c)
	cases, err := s.cases.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}
	count, err := s.cases.Count(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cases":  cases,
		"count":  count,
		"limit":  limit,
		"offset": offset,
	})
}

// handleGetCase retrieves one saved case by ID
func (s *Server) handleGetCase(c *gin.Context) {
	if s.cases == nil {
		s.respondUnavailable(c, "case store not configured")
		return
	}

	id := c.Param("id")
	cs, err := s.cases.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if cs == nil {
		s.respondError(c, notFoundErr("case", id))
		return
	}

	c.JSON(http.StatusOK, cs)
}

// handleDeleteCase removes a saved case
func (s *Server) handleDeleteCase(c *gin.Context) {
	if s.cases == nil {
		s.respondUnavailable(c, "case store not configured")
		return
	}

	id := c.Param("id")
	cs, err := s.cases.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if cs == nil {
		s.respondError(c, notFoundErr("case", id))
		return
	}

	if err := s.cases.Delete(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// handleExportCases streams all saved cases as a JSON export document
func (s *Server) handleExportCases(c *gin.Context) {
	if s.cases == nil {
		s.respondUnavailable(c, "case store not configured")
		return
	}

	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", `attachment; filename="cases-export.json"`)
	c.Status(http.StatusOK)

	if err := s.cases.ExportJSON(c.Request.Context(), c.Writer); err != nil {
		// Headers are already on the wire; all we can do is log
		s.logger.WithError(err).Error("Case export failed mid-stream")
	}
}

// handleImportCases imports a previously exported case document, skipping
// cases whose IDs already exist
func (s *Server) handleImportCases(c *gin.Context) {
	if s.cases == nil {
		s.respondUnavailable(c, "case store not configured")
		return
	}

	imported, skipped, err := s.cases.ImportJSON(c.Request.Context(), c.Request.Body)
	if err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
			s.respondInvalid(c, err)
			return
		}
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"imported": imported,
		"skipped":  skipped,
	})
}

// handleReport runs a full assessment and renders it as a markdown report.
// With ?format=markdown the raw document is returned; otherwise the report
// travels inside a JSON envelope together with the assessment it describes.
func (s *Server) handleReport(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondInvalid(c, err)
		return
	}

	result, err := s.assessor.Assess(c.Request.Context(), &req.AssessmentRequest)
	if err != nil {
		s.respondError(c, err)
		return
	}

	markdown, err := s.reports.Build(&report.Input{
		Profile:  req.Profile,
		Plan:     req.Plan,
		Result:   result,
		CaseName: req.CaseName,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	if c.Query("format") == "markdown" {
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(markdown))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"report":     markdown,
		"assessment": result,
	})
}

// handleListAssessments lists persisted assessment records, newest first.
// With ?case_id= only that case's history is returned.
func (s *Server) handleListAssessments(c *gin.Context) {
	if s.history == nil {
		s.respondUnavailable(c, "assessment history not configured")
		return
	}

	limit, offset := listParams(c)

	var (
		records []*domain.AssessmentRecord
		err     error
	)
	if caseID := c.Query("case_id"); caseID != "" {
		records, err = s.history.ListByCase(c.Request.Context(), caseID, limit, offset)
	} else {
		records, err = s.history.ListRecent(c.Request.Context(), limit, offset)
	}
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"assessments": records,
		"limit":       limit,
		"offset":      offset,
	})
}

// handleGetAssessment retrieves one persisted assessment record
func (s *Server) handleGetAssessment(c *gin.Context) {
	if s.history == nil {
		s.respondUnavailable(c, "assessment history not configured")
		return
	}

	record, err := s.history.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// handleAssessmentStats summarizes the persisted assessments by risk tier
func (s *Server) handleAssessmentStats(c *gin.Context) {
	if s.history == nil {
		s.respondUnavailable(c, "assessment history not configured")
		return
	}

	byTier, err := s.history.CountByTier(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}

	var total int64
	for _, n := range byTier {
		total += n
	}

	c.JSON(http.StatusOK, gin.H{
		"by_tier": byTier,
		"total":   total,
	})
}

// listParams reads limit/offset query parameters with bounds applied.
func listParams(c *gin.Context) (limit, offset int) {
	limit = defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if raw := c.Query("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}
