package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prime-cvd-server/internal/domain"
)

func createTestBaseline(percent float64) *domain.RiskResult {
	return &domain.RiskResult{
		Percent: percent,
		Horizon: domain.TEN_YEAR,
		Variant: domain.COEFFICIENT_SUM,
	}
}

func TestTreatmentEffectEngine_Project(t *testing.T) {
	engine := NewTreatmentEffectEngine(createTestLogger())

	t.Run("Moderate_Statin_BP_Ezetimibe_Stack", func(t *testing.T) {
		plan := &domain.TherapyPlan{
			StatinIntensity: domain.STATIN_MODERATE,
			Ezetimibe:       true,
			BPTarget:        135,
		}

		result, err := engine.Project(createTestBaseline(40.0), createTestProfile(), plan)
		require.NoError(t, err)

		// 0.25 + 0.06 + 0.10 compressed: 1 - exp(-1.2 * 0.41)
		assert.InDelta(t, 0.41, result.TotalRRR, 1e-9)
		assert.InDelta(t, 0.3886, result.EffectiveRRR, 0.0001)
		assert.Equal(t, 40.0, result.BaselineRisk)
		assert.Equal(t, 24.5, result.ProjectedRisk)
		assert.Equal(t, 15.5, result.AbsoluteReduction)
		assert.Equal(t, []string{
			"Moderate-intensity statin",
			"Ezetimibe",
			"Blood pressure control (<140 mmHg)",
		}, result.ActiveTherapies)
	})

	t.Run("Full_Stack_Hits_Cap", func(t *testing.T) {
		profile := createTestProfile()
		profile.Smoker = true

		plan := &domain.TherapyPlan{
			StatinIntensity:   domain.STATIN_HIGH,
			Ezetimibe:         true,
			PCSK9Inhibitor:    true,
			BPTarget:          125,
			MediterraneanDiet: true,
			Exercise:          true,
			SmokingCessation:  true,
		}

		result, err := engine.Project(createTestBaseline(40.0), profile, plan)
		require.NoError(t, err)

		// 0.35+0.06+0.15+0.25+0.15+0.10+0.30 = 1.36 compresses past the cap.
		assert.InDelta(t, 1.36, result.TotalRRR, 1e-9)
		assert.Equal(t, 0.75, result.EffectiveRRR)
		assert.Equal(t, 10.0, result.ProjectedRisk)
		assert.Equal(t, 30.0, result.AbsoluteReduction)
		assert.Len(t, result.ActiveTherapies, 7)
	})

	t.Run("Empty_Plan_Is_Identity", func(t *testing.T) {
		result, err := engine.Project(createTestBaseline(40.0), createTestProfile(), &domain.TherapyPlan{})
		require.NoError(t, err)

		assert.Zero(t, result.TotalRRR)
		assert.Zero(t, result.EffectiveRRR)
		assert.Equal(t, 40.0, result.ProjectedRisk)
		assert.Zero(t, result.AbsoluteReduction)
		assert.Empty(t, result.ActiveTherapies)
	})

	t.Run("PCSK9_Requires_LDL_Above_Gate", func(t *testing.T) {
		profile := createTestProfile()
		profile.LDL = 1.5

		plan := &domain.TherapyPlan{PCSK9Inhibitor: true}

		result, err := engine.Project(createTestBaseline(40.0), profile, plan)
		require.NoError(t, err)

		assert.Zero(t, result.TotalRRR)
		assert.Empty(t, result.ActiveTherapies)

		// At the gate the selection counts.
		profile.LDL = 1.8
		result, err = engine.Project(createTestBaseline(40.0), profile, plan)
		require.NoError(t, err)

		assert.InDelta(t, 0.15, result.TotalRRR, 1e-9)
		assert.Equal(t, []string{"PCSK9 inhibitor"}, result.ActiveTherapies)
	})

	t.Run("Smoking_Cessation_Requires_Current_Smoker", func(t *testing.T) {
		plan := &domain.TherapyPlan{SmokingCessation: true}

		result, err := engine.Project(createTestBaseline(40.0), createTestProfile(), plan)
		require.NoError(t, err)
		assert.Zero(t, result.TotalRRR)

		smoker := createTestProfile()
		smoker.Smoker = true

		result, err = engine.Project(createTestBaseline(40.0), smoker, plan)
		require.NoError(t, err)
		assert.InDelta(t, 0.30, result.TotalRRR, 1e-9)
	})

	t.Run("BP_Target_Thresholds", func(t *testing.T) {
		atTarget := func(target float64) *domain.TreatmentEffectResult {
			result, err := engine.Project(createTestBaseline(40.0), createTestProfile(), &domain.TherapyPlan{BPTarget: target})
			require.NoError(t, err)
			return result
		}

		assert.Equal(t, []string{"Intensive blood pressure control (<130 mmHg)"}, atTarget(125).ActiveTherapies)
		assert.Equal(t, []string{"Intensive blood pressure control (<130 mmHg)"}, atTarget(129.9).ActiveTherapies)
		assert.Equal(t, []string{"Blood pressure control (<140 mmHg)"}, atTarget(130).ActiveTherapies)
		assert.Equal(t, []string{"Blood pressure control (<140 mmHg)"}, atTarget(139.9).ActiveTherapies)
		assert.Empty(t, atTarget(140).ActiveTherapies)
		assert.Empty(t, atTarget(0).ActiveTherapies)
	})

	t.Run("Projection_Floor", func(t *testing.T) {
		plan := &domain.TherapyPlan{
			StatinIntensity: domain.STATIN_HIGH,
			PCSK9Inhibitor:  true,
			BPTarget:        125,
		}

		result, err := engine.Project(createTestBaseline(1.0), createTestProfile(), plan)
		require.NoError(t, err)

		assert.Equal(t, 1.0, result.ProjectedRisk)
		assert.Zero(t, result.AbsoluteReduction)
	})

	t.Run("Missing_Inputs", func(t *testing.T) {
		plan := &domain.TherapyPlan{}

		_, err := engine.Project(nil, createTestProfile(), plan)
		assert.ErrorIs(t, err, domain.ErrMissingInput)

		_, err = engine.Project(createTestBaseline(40.0), nil, plan)
		assert.ErrorIs(t, err, domain.ErrMissingInput)

		_, err = engine.Project(createTestBaseline(40.0), createTestProfile(), nil)
		assert.ErrorIs(t, err, domain.ErrMissingInput)
	})

	t.Run("Invalid_Plan", func(t *testing.T) {
		plan := &domain.TherapyPlan{StatinIntensity: domain.StatinIntensity("EXTREME")}

		_, err := engine.Project(createTestBaseline(40.0), createTestProfile(), plan)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidStatinIntensity)
	})
}
