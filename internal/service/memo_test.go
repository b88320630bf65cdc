package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prime-cvd-server/internal/domain"
)

// MockRiskAssessor is a mock implementation of the RiskAssessor interface
type MockRiskAssessor struct {
	mock.Mock
}

func (m *MockRiskAssessor) Assess(ctx context.Context, req *domain.AssessmentRequest) (*domain.AssessmentResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AssessmentResult), args.Error(1)
}

func (m *MockRiskAssessor) BaselineRisk(profile *domain.PatientProfile, variant domain.ModelVariant) (*domain.RiskResult, error) {
	args := m.Called(profile, variant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RiskResult), args.Error(1)
}

func (m *MockRiskAssessor) AdjustHorizon(risk *domain.RiskResult, horizon domain.RiskHorizon) (*domain.RiskResult, error) {
	args := m.Called(risk, horizon)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RiskResult), args.Error(1)
}

func (m *MockRiskAssessor) TreatmentEffect(baseline *domain.RiskResult, profile *domain.PatientProfile, plan *domain.TherapyPlan) (*domain.TreatmentEffectResult, error) {
	args := m.Called(baseline, profile, plan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TreatmentEffectResult), args.Error(1)
}

func (m *MockRiskAssessor) LipidEffect(baseline *domain.RiskResult, profile *domain.PatientProfile, plan *domain.TherapyPlan) (*domain.LipidResult, error) {
	args := m.Called(baseline, profile, plan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LipidResult), args.Error(1)
}

func (m *MockRiskAssessor) ValidatePlan(plan *domain.TherapyPlan) []domain.TherapyConflict {
	args := m.Called(plan)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]domain.TherapyConflict)
}

func (m *MockRiskAssessor) ClassifyTier(projectedRisk float64) (domain.RiskTier, []string) {
	args := m.Called(projectedRisk)
	return args.Get(0).(domain.RiskTier), args.Get(1).([]string)
}

func TestMemoizedAssessor_Assess(t *testing.T) {
	ctx := context.Background()
	logger := createTestLogger()

	request := func() *domain.AssessmentRequest {
		return &domain.AssessmentRequest{Profile: createTestProfile()}
	}

	t.Run("Repeated_Request_Hits_Cache", func(t *testing.T) {
		inner := new(MockRiskAssessor)
		inner.On("Assess", mock.Anything, mock.Anything).Return(&domain.AssessmentResult{ID: "a-1"}, nil).Once()

		memo := NewMemoizedAssessor(inner, logger, 16, time.Minute)

		first, err := memo.Assess(ctx, request())
		require.NoError(t, err)

		second, err := memo.Assess(ctx, request())
		require.NoError(t, err)

		assert.Same(t, first, second)
		inner.AssertNumberOfCalls(t, "Assess", 1)

		stats := memo.Stats()
		assert.Equal(t, uint64(1), stats.Hits)
		assert.Equal(t, uint64(1), stats.Misses)
		assert.Equal(t, 1, stats.Entries)
	})

	t.Run("Distinct_Requests_Miss", func(t *testing.T) {
		inner := new(MockRiskAssessor)
		inner.On("Assess", mock.Anything, mock.Anything).Return(&domain.AssessmentResult{ID: "a-1"}, nil)

		memo := NewMemoizedAssessor(inner, logger, 16, time.Minute)

		_, err := memo.Assess(ctx, request())
		require.NoError(t, err)

		changed := request()
		changed.Profile.LDL = 5.0
		_, err = memo.Assess(ctx, changed)
		require.NoError(t, err)

		inner.AssertNumberOfCalls(t, "Assess", 2)
		assert.Equal(t, uint64(2), memo.Stats().Misses)
	})

	t.Run("Errors_Are_Not_Cached", func(t *testing.T) {
		inner := new(MockRiskAssessor)
		inner.On("Assess", mock.Anything, mock.Anything).Return(nil, assert.AnError)

		memo := NewMemoizedAssessor(inner, logger, 16, time.Minute)

		_, err := memo.Assess(ctx, request())
		require.Error(t, err)
		_, err = memo.Assess(ctx, request())
		require.Error(t, err)

		inner.AssertNumberOfCalls(t, "Assess", 2)
		assert.Equal(t, 0, memo.Stats().Entries)
	})

	t.Run("Unkeyable_Request_Delegates", func(t *testing.T) {
		inner := new(MockRiskAssessor)
		inner.On("Assess", mock.Anything, mock.Anything).Return(nil, assert.AnError)

		memo := NewMemoizedAssessor(inner, logger, 16, time.Minute)

		_, err := memo.Assess(ctx, nil)
		require.Error(t, err)
		inner.AssertNumberOfCalls(t, "Assess", 1)
	})

	t.Run("Purge_Empties_Cache", func(t *testing.T) {
		inner := new(MockRiskAssessor)
		inner.On("Assess", mock.Anything, mock.Anything).Return(&domain.AssessmentResult{ID: "a-1"}, nil)

		memo := NewMemoizedAssessor(inner, logger, 16, time.Minute)

		_, err := memo.Assess(ctx, request())
		require.NoError(t, err)
		memo.Purge()

		_, err = memo.Assess(ctx, request())
		require.NoError(t, err)

		inner.AssertNumberOfCalls(t, "Assess", 2)
	})
}

func TestMemoizedAssessor_Delegation(t *testing.T) {
	logger := createTestLogger()

	inner := new(MockRiskAssessor)
	inner.On("ClassifyTier", 25.0).Return(domain.HIGH_RISK, []string{"At least moderate-intensity statin"})
	inner.On("ValidatePlan", mock.Anything).Return(nil)

	memo := NewMemoizedAssessor(inner, logger, 16, time.Minute)

	tier, guidance := memo.ClassifyTier(25.0)
	assert.Equal(t, domain.HIGH_RISK, tier)
	assert.NotEmpty(t, guidance)

	assert.Nil(t, memo.ValidatePlan(&domain.TherapyPlan{}))
	inner.AssertExpectations(t)
}
