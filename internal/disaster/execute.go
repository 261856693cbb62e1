package disaster

import (
	"context"
	"fmt"
	"time"

	"dataguard/internal/metrics"
)

// StepOutcome records how one plan step went
type StepOutcome struct {
	StepID   string        `json:"step_id"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// ExecutionResult is the outcome of executing a disaster recovery plan.
// On failure it lists the steps that did complete; there is no silent
// partial success.
type ExecutionResult struct {
	Success            bool          `json:"success"`
	CompletedSteps     []string      `json:"completed_steps"`
	FailedStep         string        `json:"failed_step,omitempty"`
	Error              string        `json:"error,omitempty"`
	Outcomes           []StepOutcome `json:"outcomes"`
	ActualRTO          time.Duration `json:"actual_rto"`
	ActualRPO          time.Duration `json:"actual_rpo"`
	DataIntegrityScore float64       `json:"data_integrity_score"`
}

// LogExecutor satisfies StepExecutor by logging each step. Manual steps
// are logged as requiring operator action; it performs no side effects.
type LogExecutor struct {
	Log interface {
		Info(msg string, args ...any)
	}
}

func (e LogExecutor) Execute(_ context.Context, step RecoveryStep) error {
	if step.Automated {
		e.Log.Info("Executing automated recovery step", "step", step.ID, "name", step.Name)
	} else {
		e.Log.Info("Recovery step requires operator action", "step", step.ID, "name", step.Name)
	}
	return nil
}

// ExecuteRecovery runs the plan's steps in order. The plan is already
// dependency-ordered, so a failed step means every remaining step is
// missing a prerequisite: execution halts immediately.
func (s *Service) ExecuteRecovery(ctx context.Context, plan *RecoveryPlan) *ExecutionResult {
	start := time.Now()
	op := s.log.StartOperation("Disaster Recovery")

	recoveryID := fmt.Sprintf("dr_%s_%d", plan.ScenarioType, start.Unix())
	s.audit.RecoveryStarted(recoveryID, string(plan.ScenarioType))

	result := &ExecutionResult{ActualRPO: plan.EstimatedRPO}

	for _, step := range plan.Steps {
		stepStart := time.Now()

		err := ctx.Err()
		if err == nil {
			err = s.executor.Execute(ctx, step)
		}

		outcome := StepOutcome{
			StepID:   step.ID,
			Success:  err == nil,
			Duration: time.Since(stepStart),
		}
		if err != nil {
			outcome.Error = err.Error()
			result.Outcomes = append(result.Outcomes, outcome)
			result.FailedStep = step.ID
			result.Error = fmt.Sprintf("step %s failed: %v", step.ID, err)
			result.ActualRTO = time.Since(start)

			op.Fail("Recovery halted", "step", step.ID, "completed", len(result.CompletedSteps))
			s.audit.RecoveryFailed(recoveryID, err)
			s.recordMetrics(start, false)
			return result
		}

		result.Outcomes = append(result.Outcomes, outcome)
		result.CompletedSteps = append(result.CompletedSteps, step.ID)
		op.Update("Step complete", "step", step.ID, "duration", outcome.Duration.String())
	}

	result.Success = true
	result.ActualRTO = time.Since(start)
	result.DataIntegrityScore = 1.0

	s.audit.RecoveryCompleted(recoveryID, result.ActualRTO)
	s.recordMetrics(start, true)
	op.Complete("Disaster recovery finished",
		"scenario", string(plan.ScenarioType),
		"steps", len(result.CompletedSteps),
		"actual_rto", result.ActualRTO.String())

	return result
}

func (s *Service) recordMetrics(start time.Time, success bool) {
	if metrics.GlobalMetrics != nil {
		metrics.GlobalMetrics.RecordRecovery("disaster", s.cfg.SecondarySite, start, success)
	}
}
