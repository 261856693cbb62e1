package disaster

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataguard/internal/audit"
	"dataguard/internal/config"
	"dataguard/internal/health"
	"dataguard/internal/integrity"
	"dataguard/internal/logger"
)

// recordingDirector records redirect calls and can be told to fail
type recordingDirector struct {
	targets []string
	fail    bool
}

func (d *recordingDirector) RedirectTraffic(_ context.Context, targetSite string) error {
	if d.fail {
		return errors.New("dns update rejected")
	}
	d.targets = append(d.targets, targetSite)
	return nil
}

// okProber reports every endpoint reachable
type okProber struct{}

func (okProber) Probe(context.Context, health.ServiceEndpoint) error { return nil }

func newDisasterService(t *testing.T, director TrafficDirector) *Service {
	t.Helper()

	nullLog := logger.NewNullLogger()
	cfg := &config.Config{
		RPOTarget:          time.Hour,
		RTOTarget:          4 * time.Hour,
		HealthCheckTimeout: time.Second,
		SecondarySite:      "secondary",
	}
	monitor := health.NewMonitor(nullLog, okProber{}, time.Second)
	return NewService(cfg, nullLog, audit.NewLogger(nullLog, false),
		integrity.NewValidator(nullLog), monitor, LogExecutor{Log: nullLog}, director, nil)
}

func check(service, site string, status health.Status) health.Check {
	return health.Check{Service: service, Site: site, Status: status, CheckedAt: time.Now()}
}

func TestEvaluateFailoverNeedAllPrimaryDown(t *testing.T) {
	svc := newDisasterService(t, &recordingDirector{})

	decision := svc.EvaluateFailoverNeed([]health.Check{
		check("api", SitePrimary, health.StatusDown),
		check("db", SitePrimary, health.StatusDown),
		check("queue", SitePrimary, health.StatusDown),
		check("api", SiteSecondary, health.StatusHealthy),
		check("db", SiteSecondary, health.StatusHealthy),
		check("queue", SiteSecondary, health.StatusHealthy),
	})

	assert.True(t, decision.ShouldFailover)
	assert.InDelta(t, 1.0, decision.PrimaryFailureRatio, 1e-9)
	assert.GreaterOrEqual(t, decision.Confidence, 0.9)
}

func TestEvaluateFailoverNeedMinorOutage(t *testing.T) {
	svc := newDisasterService(t, &recordingDirector{})

	decision := svc.EvaluateFailoverNeed([]health.Check{
		check("api", SitePrimary, health.StatusDown),
		check("db", SitePrimary, health.StatusHealthy),
		check("queue", SitePrimary, health.StatusHealthy),
		check("api", SiteSecondary, health.StatusHealthy),
	})

	assert.False(t, decision.ShouldFailover)
	assert.InDelta(t, 1.0/3.0, decision.PrimaryFailureRatio, 1e-9)
}

func TestEvaluateFailoverNeedUnhealthySecondary(t *testing.T) {
	svc := newDisasterService(t, &recordingDirector{})

	decision := svc.EvaluateFailoverNeed([]health.Check{
		check("api", SitePrimary, health.StatusDown),
		check("db", SitePrimary, health.StatusDown),
		check("queue", SitePrimary, health.StatusDown),
		check("api", SiteSecondary, health.StatusHealthy),
		check("db", SiteSecondary, health.StatusDown),
	})

	// Failing over to a broken secondary trades one outage for another
	assert.False(t, decision.ShouldFailover)
	assert.Less(t, decision.Confidence, 0.9)
}

func TestExecuteAutomatedFailoverRefusesUnauthorized(t *testing.T) {
	director := &recordingDirector{}
	svc := newDisasterService(t, director)

	_, err := svc.ExecuteAutomatedFailover(context.Background(),
		&FailoverDecision{ShouldFailover: false, Reason: "primary healthy"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFailoverRefused)
	assert.Empty(t, director.targets)

	_, err = svc.ExecuteAutomatedFailover(context.Background(), nil)
	assert.ErrorIs(t, err, ErrFailoverRefused)
}

func TestExecuteAutomatedFailover(t *testing.T) {
	director := &recordingDirector{}
	svc := newDisasterService(t, director)

	result, err := svc.ExecuteAutomatedFailover(context.Background(),
		&FailoverDecision{ShouldFailover: true, Reason: "primary down"})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"secondary"}, director.targets)
	require.NotNil(t, result.Rollback)
	assert.Equal(t, "secondary", result.Rollback.NewPrimary)
}

func TestRollbackFailover(t *testing.T) {
	director := &recordingDirector{}
	svc := newDisasterService(t, director)

	err := svc.RollbackFailover(context.Background(), &RollbackDescriptor{
		PreviousPrimary: SitePrimary,
		NewPrimary:      "secondary",
		RedirectedAt:    time.Now(),
	})

	require.NoError(t, err)
	assert.Equal(t, []string{SitePrimary}, director.targets)
}

func TestExecuteAutomatedFailoverRedirectFailure(t *testing.T) {
	svc := newDisasterService(t, &recordingDirector{fail: true})

	_, err := svc.ExecuteAutomatedFailover(context.Background(),
		&FailoverDecision{ShouldFailover: true, Reason: "primary down"})

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrFailoverRefused)
	assert.Contains(t, err.Error(), "redirect")
}

func TestErrFailoverRefusedWrapping(t *testing.T) {
	err := fmt.Errorf("%w: reason", ErrFailoverRefused)
	assert.True(t, errors.Is(err, ErrFailoverRefused))
}
