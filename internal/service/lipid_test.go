package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prime-cvd-server/internal/domain"
)

func TestLipidEffectEngine_Project(t *testing.T) {
	engine := NewLipidEffectEngine(createTestLogger())

	t.Run("Rosuvastatin_With_PCSK9_Caps_Reduction", func(t *testing.T) {
		plan := &domain.TherapyPlan{
			DischargeStatin: "Rosuvastatin 20mg",
			PCSK9Inhibitor:  true,
		}

		result, err := engine.Project(createTestBaseline(40.0), createTestProfile(), plan)
		require.NoError(t, err)

		// 55% + 60% is capped at 97%, and the LDL delta saturates the RRR cap.
		assert.Equal(t, 97.0, result.TotalReductionPc)
		assert.Equal(t, 3.5, result.CurrentLDL)
		assert.Equal(t, 0.11, result.ProjectedLDL)
		assert.Equal(t, 0.6, result.RiskReduction)
		assert.Equal(t, 16.0, result.ProjectedRisk)
	})

	t.Run("Prior_Statin_Halves_Statin_Effect", func(t *testing.T) {
		plan := &domain.TherapyPlan{
			DischargeStatin:    "Atorvastatin 80mg",
			OnStatinAtBaseline: true,
		}

		result, err := engine.Project(createTestBaseline(40.0), createTestProfile(), plan)
		require.NoError(t, err)

		assert.Equal(t, 25.0, result.TotalReductionPc)
		assert.Equal(t, 2.63, result.ProjectedLDL)
		assert.InDelta(t, 0.1914, result.RiskReduction, 1e-4)
		assert.Equal(t, 32.3, result.ProjectedRisk)
	})

	t.Run("Regimen_Outside_Table_Has_No_Effect", func(t *testing.T) {
		plan := &domain.TherapyPlan{DischargeStatin: "Simvastatin 40mg"}

		result, err := engine.Project(createTestBaseline(40.0), createTestProfile(), plan)
		require.NoError(t, err)

		assert.Zero(t, result.TotalReductionPc)
		assert.Equal(t, 3.5, result.ProjectedLDL)
		assert.Equal(t, 40.0, result.ProjectedRisk)
	})

	t.Run("Ezetimibe_Without_Statin", func(t *testing.T) {
		plan := &domain.TherapyPlan{
			DischargeStatin: "none",
			Ezetimibe:       true,
			LDLTarget:       1.4,
		}

		result, err := engine.Project(createTestBaseline(40.0), createTestProfile(), plan)
		require.NoError(t, err)

		assert.Equal(t, 20.0, result.TotalReductionPc)
		assert.Equal(t, 2.8, result.ProjectedLDL)
		assert.InDelta(t, 0.154, result.RiskReduction, 1e-4)
		assert.Equal(t, 33.8, result.ProjectedRisk)
		assert.Equal(t, 1.4, result.TargetLDL)
	})

	t.Run("Inclisiran_Stacks_On_Statin", func(t *testing.T) {
		plan := &domain.TherapyPlan{
			DischargeStatin: "Atorvastatin 20mg",
			Inclisiran:      true,
		}

		result, err := engine.Project(createTestBaseline(40.0), createTestProfile(), plan)
		require.NoError(t, err)

		// 40% + 50% stays under the cap.
		assert.Equal(t, 90.0, result.TotalReductionPc)
		assert.Equal(t, 0.35, result.ProjectedLDL)
	})

	t.Run("Malformed_Regimen", func(t *testing.T) {
		tests := []string{
			"Rosuvastatin",
			"Atorvastatin mg",
			"20mg Atorvastatin",
		}

		for _, regimen := range tests {
			plan := &domain.TherapyPlan{DischargeStatin: regimen}
			_, err := engine.Project(createTestBaseline(40.0), createTestProfile(), plan)
			assert.Error(t, err, "regimen %q should not parse", regimen)
		}
	})

	t.Run("Missing_LDL", func(t *testing.T) {
		profile := createTestProfile()
		profile.LDL = 0

		plan := &domain.TherapyPlan{Ezetimibe: true}

		_, err := engine.Project(createTestBaseline(40.0), profile, plan)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrMissingInput)
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
}

func TestHasLipidTherapy(t *testing.T) {
	tests := []struct {
		name string
		plan *domain.TherapyPlan
		want bool
	}{
		{"nil plan", nil, false},
		{"empty plan", &domain.TherapyPlan{}, false},
		{"explicit none", &domain.TherapyPlan{DischargeStatin: "None"}, false},
		{"named statin", &domain.TherapyPlan{DischargeStatin: "Atorvastatin 80mg"}, true},
		{"ezetimibe only", &domain.TherapyPlan{Ezetimibe: true}, true},
		{"pcsk9 only", &domain.TherapyPlan{PCSK9Inhibitor: true}, true},
		{"inclisiran only", &domain.TherapyPlan{Inclisiran: true}, true},
		{"bp only", &domain.TherapyPlan{BPTarget: 130}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasLipidTherapy(tt.plan))
		})
	}
}
