package health

import (
	"context"
	"net"
	"time"

	"golang.org/x/time/rate"

	"dataguard/internal/logger"
)

// Status classifies one service health probe
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// ServiceEndpoint names one probed service and where it runs
type ServiceEndpoint struct {
	Name    string `json:"name"`
	Site    string `json:"site"`
	Address string `json:"address"`
}

// Check is the outcome of probing one service
type Check struct {
	Service   string        `json:"service"`
	Site      string        `json:"site"`
	Status    Status        `json:"status"`
	Latency   time.Duration `json:"latency"`
	Error     string        `json:"error,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Healthy reports whether the check found the service fully healthy
func (c Check) Healthy() bool {
	return c.Status == StatusHealthy
}

// Prober performs one health probe against a service endpoint
type Prober interface {
	Probe(ctx context.Context, endpoint ServiceEndpoint) error
}

// TCPProber probes by opening a TCP connection to the endpoint address
type TCPProber struct{}

func (TCPProber) Probe(ctx context.Context, endpoint ServiceEndpoint) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", endpoint.Address)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Slow but successful probes are degraded rather than healthy
const degradedLatency = 2 * time.Second

// probeInterval paces probes so a large endpoint list does not flood the
// network in one burst
const probeInterval = 100 * time.Millisecond

// Monitor probes service endpoints with a hard per-check timeout, so a
// hung service can never stall a failover decision, and rate-paced
// dispatch across endpoints.
type Monitor struct {
	log     logger.Logger
	prober  Prober
	limiter *rate.Limiter
	timeout time.Duration
}

// NewMonitor creates a health monitor. A zero timeout falls back to 5s.
func NewMonitor(log logger.Logger, prober Prober, timeout time.Duration) *Monitor {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Monitor{
		log:     log,
		prober:  prober,
		limiter: rate.NewLimiter(rate.Every(probeInterval), 1),
		timeout: timeout,
	}
}

// CheckAll probes every endpoint and reports one check per service. A
// probe that errors or exceeds the timeout reports the service down.
func (m *Monitor) CheckAll(ctx context.Context, endpoints []ServiceEndpoint) []Check {
	checks := make([]Check, 0, len(endpoints))
	for _, endpoint := range endpoints {
		if err := m.limiter.Wait(ctx); err != nil {
			checks = append(checks, Check{
				Service:   endpoint.Name,
				Site:      endpoint.Site,
				Status:    StatusDown,
				Error:     err.Error(),
				CheckedAt: time.Now(),
			})
			continue
		}
		checks = append(checks, m.checkOne(ctx, endpoint))
	}
	return checks
}

func (m *Monitor) checkOne(ctx context.Context, endpoint ServiceEndpoint) Check {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	err := m.prober.Probe(probeCtx, endpoint)
	check := Check{
		Service:   endpoint.Name,
		Site:      endpoint.Site,
		Latency:   time.Since(start),
		CheckedAt: time.Now(),
	}

	switch {
	case err != nil:
		check.Status = StatusDown
		check.Error = err.Error()
		m.log.Warn("Service check failed",
			"service", endpoint.Name, "site", endpoint.Site, "error", err.Error())
	case check.Latency > degradedLatency:
		check.Status = StatusDegraded
		m.log.Warn("Service responding slowly",
			"service", endpoint.Name, "site", endpoint.Site, "latency", check.Latency.String())
	default:
		check.Status = StatusHealthy
	}

	return check
}
