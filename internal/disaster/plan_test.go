package disaster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stepIndex(steps []RecoveryStep) map[string]int {
	index := make(map[string]int, len(steps))
	for i, step := range steps {
		index[step.ID] = i
	}
	return index
}

func TestCreateRecoveryPlanOrdersDependencies(t *testing.T) {
	svc := newDisasterService(t, &recordingDirector{})

	scenarios := []ScenarioType{
		ScenarioSiteOutage,
		ScenarioDataCorruption,
		ScenarioHardwareFailure,
		ScenarioNetworkPartition,
	}
	for _, scenarioType := range scenarios {
		t.Run(string(scenarioType), func(t *testing.T) {
			plan, err := svc.CreateRecoveryPlan(Scenario{Type: scenarioType})
			require.NoError(t, err)
			require.NotEmpty(t, plan.Steps)

			index := stepIndex(plan.Steps)
			for _, step := range plan.Steps {
				for _, dep := range step.Dependencies {
					assert.Less(t, index[dep], index[step.ID],
						"step %s must follow its dependency %s", step.ID, dep)
				}
			}
		})
	}
}

func TestCreateRecoveryPlanDeterministicOrder(t *testing.T) {
	svc := newDisasterService(t, &recordingDirector{})

	first, err := svc.CreateRecoveryPlan(Scenario{Type: ScenarioSiteOutage})
	require.NoError(t, err)
	second, err := svc.CreateRecoveryPlan(Scenario{Type: ScenarioSiteOutage})
	require.NoError(t, err)

	assert.Equal(t, first.Steps, second.Steps)
}

func TestCreateRecoveryPlanUnknownScenario(t *testing.T) {
	svc := newDisasterService(t, &recordingDirector{})

	_, err := svc.CreateRecoveryPlan(Scenario{Type: "meteor_strike"})
	assert.Error(t, err)
}

func TestCreateRecoveryPlanRPOCappedAtTarget(t *testing.T) {
	svc := newDisasterService(t, &recordingDirector{})

	// Estimated loss below the target passes through unchanged
	plan, err := svc.CreateRecoveryPlan(Scenario{
		Type:              ScenarioSiteOutage,
		EstimatedDataLoss: 30 * time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, plan.EstimatedRPO)
	assert.False(t, plan.RiskAssessment.HighDataLossRisk)

	// Loss beyond the target is capped and flagged
	plan, err = svc.CreateRecoveryPlan(Scenario{
		Type:              ScenarioSiteOutage,
		EstimatedDataLoss: 6 * time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, time.Hour, plan.EstimatedRPO)
	assert.True(t, plan.RiskAssessment.HighDataLossRisk)
	assert.NotEmpty(t, plan.RiskAssessment.Notes)
}

func TestCreateRecoveryPlanRTOIsSumOfSteps(t *testing.T) {
	svc := newDisasterService(t, &recordingDirector{})

	plan, err := svc.CreateRecoveryPlan(Scenario{Type: ScenarioHardwareFailure})
	require.NoError(t, err)

	var total time.Duration
	for _, step := range plan.Steps {
		total += step.EstimatedDuration
	}
	assert.Equal(t, total, plan.EstimatedRTO)
}

func TestTopologicalOrderDetectsCycle(t *testing.T) {
	_, err := topologicalOrder([]RecoveryStep{
		{ID: "a", Dependencies: []string{"b"}},
		{ID: "b", Dependencies: []string{"a"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestTopologicalOrderRejectsUnknownDependency(t *testing.T) {
	_, err := topologicalOrder([]RecoveryStep{
		{ID: "a", Dependencies: []string{"ghost"}},
	})
	assert.Error(t, err)
}
