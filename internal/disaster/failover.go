package disaster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dataguard/internal/health"
)

// ErrFailoverRefused guards against failover without an authorizing
// decision
var ErrFailoverRefused = errors.New("failover refused: decision does not authorize failover")

// Site labels used in health checks
const (
	SitePrimary   = "primary"
	SiteSecondary = "secondary"
)

// failoverThreshold is the primary failure ratio above which failover is
// recommended
const failoverThreshold = 0.5

// FailoverDecision is the outcome of evaluating whether to fail over
type FailoverDecision struct {
	ShouldFailover      bool           `json:"should_failover"`
	Reason              string         `json:"reason"`
	Confidence          float64        `json:"confidence"`
	PrimaryFailureRatio float64        `json:"primary_failure_ratio"`
	PrimaryChecks       []health.Check `json:"primary_checks"`
	SecondaryChecks     []health.Check `json:"secondary_checks"`
	EvaluatedAt         time.Time      `json:"evaluated_at"`
}

// EvaluateFailoverNeed recommends failover iff more than half the primary
// services are down AND every secondary service is healthy. A degraded
// secondary reduces confidence rather than changing the recommendation
// logic: failing over to an unhealthy site trades one outage for another.
func (s *Service) EvaluateFailoverNeed(checks []health.Check) *FailoverDecision {
	decision := &FailoverDecision{EvaluatedAt: time.Now()}

	var primaryDown, secondaryHealthy int
	for _, check := range checks {
		switch check.Site {
		case SiteSecondary:
			decision.SecondaryChecks = append(decision.SecondaryChecks, check)
			if check.Healthy() {
				secondaryHealthy++
			}
		default:
			decision.PrimaryChecks = append(decision.PrimaryChecks, check)
			if check.Status == health.StatusDown {
				primaryDown++
			}
		}
	}

	if len(decision.PrimaryChecks) == 0 {
		decision.Reason = "no primary services monitored"
		decision.Confidence = 0
		return decision
	}

	decision.PrimaryFailureRatio = float64(primaryDown) / float64(len(decision.PrimaryChecks))
	secondaryReady := len(decision.SecondaryChecks) > 0 &&
		secondaryHealthy == len(decision.SecondaryChecks)

	switch {
	case decision.PrimaryFailureRatio <= failoverThreshold:
		decision.Reason = fmt.Sprintf(
			"primary failure ratio %.2f does not exceed threshold %.2f",
			decision.PrimaryFailureRatio, failoverThreshold)
		decision.Confidence = 0.9
	case !secondaryReady:
		decision.Reason = fmt.Sprintf(
			"primary failure ratio %.2f exceeds threshold but secondary site is not fully healthy (%d/%d)",
			decision.PrimaryFailureRatio, secondaryHealthy, len(decision.SecondaryChecks))
		decision.Confidence = 0.5
	default:
		decision.ShouldFailover = true
		decision.Reason = fmt.Sprintf(
			"primary failure ratio %.2f exceeds threshold %.2f and secondary site is fully healthy",
			decision.PrimaryFailureRatio, failoverThreshold)
		decision.Confidence = 0.9
		// Total primary outage is the clearest possible signal
		if decision.PrimaryFailureRatio == 1 {
			decision.Confidence = 0.95
		}
	}

	s.log.Info("Failover evaluation",
		"should_failover", decision.ShouldFailover,
		"primary_failure_ratio", fmt.Sprintf("%.2f", decision.PrimaryFailureRatio),
		"confidence", decision.Confidence,
		"reason", decision.Reason)

	return decision
}

// TrafficDirector redirects client traffic between sites. Production
// implementations update DNS or a load-balancer pool.
type TrafficDirector interface {
	RedirectTraffic(ctx context.Context, targetSite string) error
}

// RollbackDescriptor captures what a failover changed, so it can be
// undone once the primary site recovers
type RollbackDescriptor struct {
	PreviousPrimary string    `json:"previous_primary"`
	NewPrimary      string    `json:"new_primary"`
	RedirectedAt    time.Time `json:"redirected_at"`
}

// FailoverResult is the outcome of an executed failover
type FailoverResult struct {
	Success         bool                `json:"success"`
	TargetSite      string              `json:"target_site"`
	TargetChecks    []health.Check      `json:"target_checks"`
	ConsistencyOK   bool                `json:"consistency_ok"`
	Rollback        *RollbackDescriptor `json:"rollback,omitempty"`
	Duration        time.Duration       `json:"duration"`
	WarningMessages []string            `json:"warnings,omitempty"`
}

// ExecuteAutomatedFailover redirects traffic to the secondary site. It
// refuses outright unless the decision authorizes failover; the guard
// keeps a mistakenly constructed decision from flipping sites.
func (s *Service) ExecuteAutomatedFailover(ctx context.Context, decision *FailoverDecision) (*FailoverResult, error) {
	start := time.Now()
	op := s.log.StartOperation("Automated Failover")

	if decision == nil || !decision.ShouldFailover {
		reason := "no decision supplied"
		if decision != nil {
			reason = decision.Reason
		}
		op.Fail("Failover refused")
		s.audit.FailoverRefused(reason)
		return nil, fmt.Errorf("%w: %s", ErrFailoverRefused, reason)
	}

	target := s.cfg.SecondarySite
	if err := s.director.RedirectTraffic(ctx, target); err != nil {
		op.Fail("Traffic redirect failed")
		s.audit.FailoverRefused(fmt.Sprintf("traffic redirect failed: %v", err))
		return nil, fmt.Errorf("failed to redirect traffic to %s: %w", target, err)
	}
	redirectedAt := time.Now()
	op.Update("Traffic redirected", "target", target)

	result := &FailoverResult{
		TargetSite:   target,
		TargetChecks: s.monitor.CheckAll(ctx, s.secondary),
		Rollback: &RollbackDescriptor{
			PreviousPrimary: SitePrimary,
			NewPrimary:      target,
			RedirectedAt:    redirectedAt,
		},
	}

	for _, check := range result.TargetChecks {
		if !check.Healthy() {
			result.WarningMessages = append(result.WarningMessages,
				fmt.Sprintf("service %s on %s is %s after failover", check.Service, target, check.Status))
		}
	}

	// The target must report fully healthy before it takes writes
	result.ConsistencyOK = len(result.WarningMessages) == 0
	result.Success = true
	result.Duration = time.Since(start)

	s.audit.FailoverExecuted(target, decision.Reason)
	op.Complete("Failover executed",
		"target", target,
		"consistency_ok", result.ConsistencyOK,
		"warnings", len(result.WarningMessages))

	return result, nil
}

// RollbackFailover redirects traffic back to the site recorded in the
// descriptor
func (s *Service) RollbackFailover(ctx context.Context, rollback *RollbackDescriptor) error {
	if rollback == nil {
		return fmt.Errorf("no rollback descriptor supplied")
	}

	op := s.log.StartOperation("Failover Rollback")
	if err := s.director.RedirectTraffic(ctx, rollback.PreviousPrimary); err != nil {
		op.Fail("Rollback failed")
		return fmt.Errorf("failed to redirect traffic back to %s: %w", rollback.PreviousPrimary, err)
	}

	s.audit.FailoverExecuted(rollback.PreviousPrimary,
		fmt.Sprintf("rollback of failover executed %s", rollback.RedirectedAt.Format(time.RFC3339)))
	op.Complete("Failover rolled back", "target", rollback.PreviousPrimary)
	return nil
}
