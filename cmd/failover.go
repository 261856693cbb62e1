package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dataguard/internal/disaster"
	"dataguard/internal/health"
)

var (
	failoverPrimary   []string
	failoverSecondary []string
	failoverScenario  string
	failoverDataLoss  time.Duration
	failoverExecute   bool
)

// dnsDirector redirects traffic by updating DNS. The CLI build logs the
// redirect; production deployments supply a real resolver integration.
type dnsDirector struct{}

func (dnsDirector) RedirectTraffic(_ context.Context, targetSite string) error {
	fmt.Printf("Traffic redirected to site %q\n", targetSite)
	return nil
}

// failoverCmd groups disaster recovery and failover commands
var failoverCmd = &cobra.Command{
	Use:   "failover",
	Short: "Evaluate and execute site failover",
	Long: `Evaluate whether the primary site should fail over to the secondary,
and execute the failover when authorized.

Service endpoints are given as name=host:port pairs.

Examples:
  # Evaluate failover need from live health checks
  dataguard failover evaluate \
    --primary api=10.0.0.1:443,db=10.0.0.2:5432,queue=10.0.0.3:5672 \
    --secondary api=10.1.0.1:443,db=10.1.0.2:5432,queue=10.1.0.3:5672

  # Evaluate and execute if failover is recommended
  dataguard failover evaluate --execute --primary ... --secondary ...

  # Build a disaster recovery plan
  dataguard failover plan --scenario site_outage --data-loss 30m`,
}

var failoverEvaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate failover need from service health checks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		primary, err := parseEndpoints(failoverPrimary, disaster.SitePrimary)
		if err != nil {
			return err
		}
		secondary, err := parseEndpoints(failoverSecondary, disaster.SiteSecondary)
		if err != nil {
			return err
		}
		if len(primary) == 0 {
			return fmt.Errorf("no primary endpoints given (use --primary)")
		}

		rt, err := buildRuntime(cmd.Context())
		if err != nil {
			return err
		}
		dr := rt.buildDisasterService(secondary)

		checks := rt.monitor.CheckAll(cmd.Context(), append(primary, secondary...))
		decision := dr.EvaluateFailoverNeed(checks)

		fmt.Printf("Failover recommended: %v (confidence %.2f)\n", decision.ShouldFailover, decision.Confidence)
		fmt.Printf("  Primary failure ratio: %.2f\n", decision.PrimaryFailureRatio)
		fmt.Printf("  Reason: %s\n", decision.Reason)
		for _, check := range checks {
			fmt.Printf("  [%s] %-12s %s\n", check.Site, check.Service, check.Status)
		}

		if !failoverExecute {
			return nil
		}

		result, err := dr.ExecuteAutomatedFailover(cmd.Context(), decision)
		if err != nil {
			return err
		}
		fmt.Printf("Failover to %s complete in %s (consistency ok: %v)\n",
			result.TargetSite, result.Duration.Round(time.Millisecond), result.ConsistencyOK)
		for _, warning := range result.WarningMessages {
			fmt.Printf("  WARNING: %s\n", warning)
		}
		return nil
	},
}

var failoverPlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Build a disaster recovery plan for a scenario",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd.Context())
		if err != nil {
			return err
		}
		dr := rt.buildDisasterService(nil)

		plan, err := dr.CreateRecoveryPlan(disaster.Scenario{
			Type:              disaster.ScenarioType(failoverScenario),
			EstimatedDataLoss: failoverDataLoss,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Recovery plan for %s:\n", plan.ScenarioType)
		for i, step := range plan.Steps {
			mode := "manual"
			if step.Automated {
				mode = "automated"
			}
			deps := ""
			if len(step.Dependencies) > 0 {
				deps = fmt.Sprintf(" (after %s)", strings.Join(step.Dependencies, ", "))
			}
			fmt.Printf("  %d. [%s] %s%s\n", i+1, mode, step.Name, deps)
		}
		fmt.Printf("  Estimated RTO: %s\n", plan.EstimatedRTO)
		fmt.Printf("  Estimated RPO: %s\n", plan.EstimatedRPO)
		if plan.RiskAssessment.HighDataLossRisk {
			fmt.Println("  RISK: estimated data loss exceeds the configured RPO target")
		}
		for _, note := range plan.RiskAssessment.Notes {
			fmt.Printf("  Note: %s\n", note)
		}
		return nil
	},
}

// parseEndpoints parses name=host:port pairs into service endpoints
func parseEndpoints(specs []string, site string) ([]health.ServiceEndpoint, error) {
	endpoints := make([]health.ServiceEndpoint, 0, len(specs))
	for _, spec := range specs {
		name, address, found := strings.Cut(spec, "=")
		if !found || name == "" || address == "" {
			return nil, fmt.Errorf("invalid endpoint %q (want name=host:port)", spec)
		}
		endpoints = append(endpoints, health.ServiceEndpoint{
			Name:    name,
			Site:    site,
			Address: address,
		})
	}
	return endpoints, nil
}

func init() {
	failoverCmd.AddCommand(failoverEvaluateCmd)
	failoverCmd.AddCommand(failoverPlanCmd)

	failoverEvaluateCmd.Flags().StringSliceVar(&failoverPrimary, "primary", nil, "Primary site endpoints (name=host:port)")
	failoverEvaluateCmd.Flags().StringSliceVar(&failoverSecondary, "secondary", nil, "Secondary site endpoints (name=host:port)")
	failoverEvaluateCmd.Flags().BoolVar(&failoverExecute, "execute", false, "Execute failover if the evaluation recommends it")

	failoverPlanCmd.Flags().StringVar(&failoverScenario, "scenario", "site_outage",
		"Disaster scenario (site_outage|data_corruption|hardware_failure|network_partition)")
	failoverPlanCmd.Flags().DurationVar(&failoverDataLoss, "data-loss", 0, "Estimated data loss for the scenario")
}
