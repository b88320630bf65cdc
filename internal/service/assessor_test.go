package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prime-cvd-server/internal/domain"
)

// MockCitationResolver is a mock implementation of the CitationResolver interface
type MockCitationResolver struct {
	mock.Mock
}

func (m *MockCitationResolver) Resolve(ctx context.Context, pmid string) (*domain.Citation, error) {
	args := m.Called(ctx, pmid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Citation), args.Error(1)
}

func (m *MockCitationResolver) ResolveBatch(ctx context.Context, pmids []string) (map[string]*domain.Citation, error) {
	args := m.Called(ctx, pmids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*domain.Citation), args.Error(1)
}

// createHighRiskProfile mirrors the multi-territory profile the engine tests
// pin at a 10.8% baseline.
func createHighRiskProfile() *domain.PatientProfile {
	profile := createTestProfile()
	profile.Age = 75
	profile.LDL = 4.5
	profile.SystolicBP = 160
	profile.EGFR = 45
	profile.Diabetes = true
	profile.Smoker = true
	profile.CAD = true
	profile.PAD = true
	return profile
}

func TestAssessor_Assess(t *testing.T) {
	ctx := context.Background()
	logger := createTestLogger()

	t.Run("Full_Workflow_With_Plan", func(t *testing.T) {
		assessor := NewAssessor(logger, nil)

		req := &domain.AssessmentRequest{
			Profile: createHighRiskProfile(),
			Plan: &domain.TherapyPlan{
				StatinIntensity: domain.STATIN_MODERATE,
				Ezetimibe:       true,
				BPTarget:        135,
			},
		}

		result, err := assessor.Assess(ctx, req)
		require.NoError(t, err)

		assert.NotEmpty(t, result.ID)
		assert.Equal(t, domain.EngineVersion, result.EngineVersion)
		assert.False(t, result.CalculatedAt.IsZero())

		require.NotNil(t, result.BaselineRisk)
		assert.Equal(t, 10.8, result.BaselineRisk.Percent)
		require.NotNil(t, result.HorizonRisk)
		assert.Equal(t, domain.TEN_YEAR, result.HorizonRisk.Horizon)

		require.NotNil(t, result.Treatment)
		assert.Equal(t, 6.6, result.Treatment.ProjectedRisk)
		assert.Equal(t, 6.6, result.FinalRisk())

		// Ezetimibe is a lipid therapy, so the LDL trajectory is projected too.
		require.NotNil(t, result.Lipid)
		assert.Equal(t, 4.5, result.Lipid.CurrentLDL)

		assert.Equal(t, domain.MODERATE_RISK, result.Tier)
		assert.Equal(t, "Moderate Risk", result.TierLabel)
		assert.NotEmpty(t, result.Guidance)
		assert.Empty(t, result.Conflicts)
		assert.Nil(t, result.Citations)
	})

	t.Run("Assessment_Without_Plan", func(t *testing.T) {
		assessor := NewAssessor(logger, nil)

		req := &domain.AssessmentRequest{
			Profile: createHighRiskProfile(),
			Horizon: domain.LIFETIME,
		}

		result, err := assessor.Assess(ctx, req)
		require.NoError(t, err)

		assert.Nil(t, result.Treatment)
		assert.Nil(t, result.Lipid)
		assert.Equal(t, 19.4, result.HorizonRisk.Percent)
		assert.Equal(t, 19.4, result.FinalRisk())
		assert.Equal(t, domain.MODERATE_RISK, result.Tier)
	})

	t.Run("Defaults_Applied", func(t *testing.T) {
		assessor := NewAssessor(logger, nil)

		result, err := assessor.Assess(ctx, &domain.AssessmentRequest{Profile: createHighRiskProfile()})
		require.NoError(t, err)

		assert.Equal(t, domain.COEFFICIENT_SUM, result.BaselineRisk.Variant)
		assert.Equal(t, domain.TEN_YEAR, result.HorizonRisk.Horizon)
	})

	t.Run("Conflicts_Are_Advisory", func(t *testing.T) {
		assessor := NewAssessor(logger, nil)

		req := &domain.AssessmentRequest{
			Profile: createHighRiskProfile(),
			Plan: &domain.TherapyPlan{
				DischargeStatin: "Atorvastatin 80mg",
				TherapyNames:    []string{"Rosuvastatin 20 mg"},
			},
		}

		result, err := assessor.Assess(ctx, req)
		require.NoError(t, err)

		require.Len(t, result.Conflicts, 1)
		assert.Equal(t, "statins", result.Conflicts[0].DrugClass)
		assert.NotNil(t, result.Treatment)
	})

	t.Run("Citations_Attached_When_Resolver_Present", func(t *testing.T) {
		resolver := new(MockCitationResolver)
		resolver.On("ResolveBatch", mock.Anything, mock.Anything).Return(map[string]*domain.Citation{
			"21067804": {PMID: "21067804", Title: "Efficacy and safety of more intensive lowering of LDL cholesterol", Year: 2010},
		}, nil)

		assessor := NewAssessor(logger, resolver)

		result, err := assessor.Assess(ctx, &domain.AssessmentRequest{Profile: createHighRiskProfile()})
		require.NoError(t, err)

		require.Len(t, result.Citations, len(domain.AllPMIDs()))

		byPMID := make(map[string]domain.Citation)
		for _, c := range result.Citations {
			byPMID[c.PMID] = c
		}
		assert.Equal(t, 2010, byPMID["21067804"].Year)
		// Unresolved PMIDs degrade to bare references.
		assert.Empty(t, byPMID["26039521"].Title)

		resolver.AssertExpectations(t)
	})

	t.Run("Citation_Failure_Does_Not_Block", func(t *testing.T) {
		resolver := new(MockCitationResolver)
		resolver.On("ResolveBatch", mock.Anything, mock.Anything).Return(nil, assert.AnError)

		assessor := NewAssessor(logger, resolver)

		result, err := assessor.Assess(ctx, &domain.AssessmentRequest{Profile: createHighRiskProfile()})
		require.NoError(t, err)

		assert.Len(t, result.Citations, len(domain.AllPMIDs()))
	})

	t.Run("Missing_Profile", func(t *testing.T) {
		assessor := NewAssessor(logger, nil)

		_, err := assessor.Assess(ctx, nil)
		assert.ErrorIs(t, err, domain.ErrMissingInput)

		_, err = assessor.Assess(ctx, &domain.AssessmentRequest{})
		assert.ErrorIs(t, err, domain.ErrMissingInput)
	})

	t.Run("Invalid_Profile_Propagates", func(t *testing.T) {
		assessor := NewAssessor(logger, nil)

		profile := createTestProfile()
		profile.Age = 0

		_, err := assessor.Assess(ctx, &domain.AssessmentRequest{Profile: profile})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrMissingInput)
	})
}

func TestAssessor_ImplementsRiskAssessor(t *testing.T) {
	var _ domain.RiskAssessor = NewAssessor(createTestLogger(), nil)
	var _ domain.RiskAssessor = &MemoizedAssessor{}
}
