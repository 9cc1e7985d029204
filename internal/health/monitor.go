package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/DealAppSeo/hyperdag-router/internal/core/domain"
	"github.com/DealAppSeo/hyperdag-router/internal/infra/provider"
	"github.com/DealAppSeo/hyperdag-router/internal/routing"
)

const probeTimeout = 3 * time.Second

// Monitor aggregates health status from the registry and live provider probes.
// Probe results are advisory only: they mark a provider degraded in reports
// but never open its circuit. Circuit state changes only on real attempts.
type Monitor struct {
	registry  *routing.Registry
	providers map[string]provider.Provider
	interval  time.Duration
	log       *slog.Logger

	lastCheck  time.Time
	lastReport Report
	mu         sync.Mutex

	stop chan struct{}
	done chan struct{}
}

// NewMonitor creates a new health monitor.
func NewMonitor(registry *routing.Registry, providers map[string]provider.Provider, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		registry:  registry,
		providers: providers,
		interval:  interval,
		log:       slog.Default().With("component", "health"),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the background probe loop.
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				m.CheckHealth(ctx)
			}
		}
	}()
}

// Stop terminates the background loop and waits for it to exit.
func (m *Monitor) Stop() {
	close(m.stop)
	<-m.done
}

// CheckHealth probes all providers concurrently and assembles a report.
// Checks are rate limited to avoid hammering provider APIs.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastCheck) < 10*time.Second && len(m.lastReport.Providers) > 0 {
		return m.lastReport
	}

	type probeResult struct {
		id  string
		err error
	}

	results := make(chan probeResult, len(m.providers))
	var wg sync.WaitGroup
	for id, prov := range m.providers {
		wg.Add(1)
		go func(id string, prov provider.Provider) {
			defer wg.Done()
			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()
			results <- probeResult{id: id, err: prov.Ping(probeCtx)}
		}(id, prov)
	}
	wg.Wait()
	close(results)

	probes := make(map[string]error, len(m.providers))
	for res := range results {
		probes[res.id] = res.err
	}

	report := Report{
		SystemStatus: StatusHealthy,
		Providers:    make(map[string]ProviderHealth, len(m.providers)),
	}

	healthyCount := 0
	for _, status := range m.registry.Statuses() {
		probeErr, probed := probes[status.ID]

		ph := ProviderHealth{
			CandidateID:         status.ID,
			Status:              StatusHealthy,
			State:               status.State,
			Reachable:           !probed || probeErr == nil,
			ConsecutiveFailures: status.ConsecutiveFailures,
			Load:                status.Load,
		}
		if probed && probeErr != nil {
			ph.ProbeError = probeErr.Error()
			ph.Status = StatusDegraded
			m.log.Warn("provider probe failed", "candidate", status.ID, "error", probeErr)
		}
		switch status.State {
		case domain.StateCircuitOpen:
			ph.Status = StatusCritical
		case domain.StateDegraded:
			ph.Status = StatusDegraded
		}

		if ph.Status == StatusHealthy {
			healthyCount++
		}
		report.Providers[status.ID] = ph
	}

	// Worst case wins: no usable providers is critical, any degraded
	// provider degrades the system.
	if len(report.Providers) > 0 && healthyCount == 0 {
		report.SystemStatus = StatusCritical
	} else {
		for _, ph := range report.Providers {
			if ph.Status != StatusHealthy {
				report.SystemStatus = StatusDegraded
				break
			}
		}
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}
