package disaster

import (
	"context"
	"fmt"
	"sort"
	"time"

	"dataguard/internal/audit"
	"dataguard/internal/config"
	"dataguard/internal/health"
	"dataguard/internal/integrity"
	"dataguard/internal/logger"
)

// ScenarioType classifies a site-level disaster
type ScenarioType string

const (
	ScenarioSiteOutage       ScenarioType = "site_outage"
	ScenarioDataCorruption   ScenarioType = "data_corruption"
	ScenarioHardwareFailure  ScenarioType = "hardware_failure"
	ScenarioNetworkPartition ScenarioType = "network_partition"
)

// Scenario describes a disaster the service must plan recovery for
type Scenario struct {
	Type              ScenarioType  `json:"type"`
	Description       string        `json:"description"`
	EstimatedDataLoss time.Duration `json:"estimated_data_loss"`
	AffectedServices  []string      `json:"affected_services,omitempty"`
}

// RecoveryStep is one unit of work in a disaster recovery plan. Steps
// declare dependencies by id; execution order must respect them.
type RecoveryStep struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
	Dependencies      []string      `json:"dependencies,omitempty"`
	Automated         bool          `json:"automated"`
}

// RiskAssessment flags plan-level risks before execution starts
type RiskAssessment struct {
	HighDataLossRisk bool     `json:"high_data_loss_risk"`
	Notes            []string `json:"notes,omitempty"`
}

// RecoveryPlan is an ordered, dependency-consistent sequence of recovery
// steps with its RTO/RPO estimates
type RecoveryPlan struct {
	ScenarioType   ScenarioType   `json:"scenario_type"`
	Steps          []RecoveryStep `json:"steps"`
	EstimatedRTO   time.Duration  `json:"estimated_rto"`
	EstimatedRPO   time.Duration  `json:"estimated_rpo"`
	RiskAssessment RiskAssessment `json:"risk_assessment"`
}

// StepExecutor carries out one recovery step. Implementations range from
// operator-confirmed runbooks to fully scripted automation.
type StepExecutor interface {
	Execute(ctx context.Context, step RecoveryStep) error
}

// Service plans and executes site-level disaster recovery, evaluates
// failover need from health checks, and certifies recovered data.
type Service struct {
	cfg       *config.Config
	log       logger.Logger
	audit     *audit.Logger
	validator *integrity.Validator
	monitor   *health.Monitor
	executor  StepExecutor
	director  TrafficDirector
	secondary []health.ServiceEndpoint
}

// NewService creates a disaster recovery service
func NewService(cfg *config.Config, log logger.Logger, auditLog *audit.Logger,
	validator *integrity.Validator, monitor *health.Monitor,
	executor StepExecutor, director TrafficDirector,
	secondary []health.ServiceEndpoint) *Service {

	return &Service{
		cfg:       cfg,
		log:       log,
		audit:     auditLog,
		validator: validator,
		monitor:   monitor,
		executor:  executor,
		director:  director,
		secondary: secondary,
	}
}

// scenarioSteps maps each scenario type to its recovery runbook
func scenarioSteps(scenarioType ScenarioType) []RecoveryStep {
	switch scenarioType {
	case ScenarioSiteOutage:
		return []RecoveryStep{
			{ID: "assess_damage", Name: "Assess primary site damage", EstimatedDuration: 10 * time.Minute, Automated: false},
			{ID: "activate_secondary", Name: "Activate secondary site", EstimatedDuration: 15 * time.Minute, Dependencies: []string{"assess_damage"}, Automated: true},
			{ID: "restore_data", Name: "Restore latest backup chain to secondary", EstimatedDuration: 30 * time.Minute, Dependencies: []string{"activate_secondary"}, Automated: true},
			{ID: "redirect_traffic", Name: "Redirect traffic to secondary site", EstimatedDuration: 5 * time.Minute, Dependencies: []string{"activate_secondary"}, Automated: true},
			{ID: "verify_services", Name: "Verify services on secondary site", EstimatedDuration: 10 * time.Minute, Dependencies: []string{"restore_data", "redirect_traffic"}, Automated: true},
			{ID: "resume_operations", Name: "Resume normal operations", EstimatedDuration: 5 * time.Minute, Dependencies: []string{"verify_services"}, Automated: false},
		}
	case ScenarioDataCorruption:
		return []RecoveryStep{
			{ID: "isolate_corruption", Name: "Isolate corrupted data sets", EstimatedDuration: 15 * time.Minute, Automated: true},
			{ID: "identify_clean_backup", Name: "Identify last verified clean backup", EstimatedDuration: 10 * time.Minute, Automated: true},
			{ID: "restore_clean_data", Name: "Restore clean full backup", EstimatedDuration: 30 * time.Minute, Dependencies: []string{"isolate_corruption", "identify_clean_backup"}, Automated: true},
			{ID: "replay_incrementals", Name: "Replay incremental chain up to corruption point", EstimatedDuration: 20 * time.Minute, Dependencies: []string{"restore_clean_data"}, Automated: true},
			{ID: "verify_integrity", Name: "Verify restored data integrity", EstimatedDuration: 15 * time.Minute, Dependencies: []string{"replay_incrementals"}, Automated: true},
			{ID: "resume_operations", Name: "Resume normal operations", EstimatedDuration: 5 * time.Minute, Dependencies: []string{"verify_integrity"}, Automated: false},
		}
	case ScenarioHardwareFailure:
		return []RecoveryStep{
			{ID: "provision_replacement", Name: "Provision replacement hardware", EstimatedDuration: 45 * time.Minute, Automated: false},
			{ID: "restore_data", Name: "Restore latest backup to replacement", EstimatedDuration: 30 * time.Minute, Dependencies: []string{"provision_replacement"}, Automated: true},
			{ID: "verify_services", Name: "Verify services on replacement hardware", EstimatedDuration: 10 * time.Minute, Dependencies: []string{"restore_data"}, Automated: true},
			{ID: "resume_operations", Name: "Resume normal operations", EstimatedDuration: 5 * time.Minute, Dependencies: []string{"verify_services"}, Automated: false},
		}
	case ScenarioNetworkPartition:
		return []RecoveryStep{
			{ID: "diagnose_partition", Name: "Diagnose network partition boundary", EstimatedDuration: 10 * time.Minute, Automated: true},
			{ID: "reroute_traffic", Name: "Reroute traffic around the partition", EstimatedDuration: 10 * time.Minute, Dependencies: []string{"diagnose_partition"}, Automated: true},
			{ID: "verify_connectivity", Name: "Verify cross-site connectivity", EstimatedDuration: 5 * time.Minute, Dependencies: []string{"reroute_traffic"}, Automated: true},
		}
	default:
		return nil
	}
}

// CreateRecoveryPlan maps the scenario to its runbook, orders steps
// consistently with their declared dependencies, and estimates RTO and
// RPO. RPO is capped at the configured target; data loss beyond that
// target is flagged as high risk.
func (s *Service) CreateRecoveryPlan(scenario Scenario) (*RecoveryPlan, error) {
	steps := scenarioSteps(scenario.Type)
	if steps == nil {
		return nil, fmt.Errorf("unknown disaster scenario type: %s", scenario.Type)
	}

	ordered, err := topologicalOrder(steps)
	if err != nil {
		return nil, err
	}

	plan := &RecoveryPlan{
		ScenarioType: scenario.Type,
		Steps:        ordered,
	}
	for _, step := range ordered {
		plan.EstimatedRTO += step.EstimatedDuration
	}

	plan.EstimatedRPO = scenario.EstimatedDataLoss
	if plan.EstimatedRPO > s.cfg.RPOTarget {
		plan.EstimatedRPO = s.cfg.RPOTarget
	}

	if scenario.EstimatedDataLoss > s.cfg.RPOTarget {
		plan.RiskAssessment.HighDataLossRisk = true
		plan.RiskAssessment.Notes = append(plan.RiskAssessment.Notes,
			fmt.Sprintf("estimated data loss %s exceeds RPO target %s",
				scenario.EstimatedDataLoss, s.cfg.RPOTarget))
	}
	if plan.EstimatedRTO > s.cfg.RTOTarget {
		plan.RiskAssessment.Notes = append(plan.RiskAssessment.Notes,
			fmt.Sprintf("estimated RTO %s exceeds RTO target %s", plan.EstimatedRTO, s.cfg.RTOTarget))
	}

	s.log.Info("Disaster recovery plan created",
		"scenario", string(scenario.Type),
		"steps", len(ordered),
		"estimated_rto", plan.EstimatedRTO.String(),
		"estimated_rpo", plan.EstimatedRPO.String())

	return plan, nil
}

// topologicalOrder sorts steps so every step follows its dependencies.
// Ties break on step id, keeping plans deterministic.
func topologicalOrder(steps []RecoveryStep) ([]RecoveryStep, error) {
	byID := make(map[string]RecoveryStep, len(steps))
	indegree := make(map[string]int, len(steps))
	dependents := make(map[string][]string, len(steps))

	for _, step := range steps {
		byID[step.ID] = step
		indegree[step.ID] = 0
	}
	for _, step := range steps {
		for _, dep := range step.Dependencies {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("step %s depends on unknown step %s", step.ID, dep)
			}
			indegree[step.ID]++
			dependents[dep] = append(dependents[dep], step.ID)
		}
	}

	var ready []string
	for id, degree := range indegree {
		if degree == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	ordered := make([]RecoveryStep, 0, len(steps))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		ordered = append(ordered, byID[id])

		for _, dependent := range dependents[id] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
		sort.Strings(ready)
	}

	if len(ordered) != len(steps) {
		return nil, fmt.Errorf("recovery steps contain a dependency cycle")
	}
	return ordered, nil
}
