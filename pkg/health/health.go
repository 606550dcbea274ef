// Package health tracks cycle success/failure and per-source API status,
// escalating to a logged alert once failures cross a threshold.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

const defaultMaxFailuresBeforeAlert = 3

// Status is the running health record. Unlike types.HealthStatus (the
// serializable snapshot handed to callers), Status owns its mutation
// methods and is safe to call from a single tick loop goroutine.
type Status struct {
	LastSuccessfulCycle time.Time
	ConsecutiveFailures int
	TotalCycles         int
	TotalFailures       int
	APIStatus           map[string]bool
	UptimeStart         time.Time
}

// Monitor wraps a Status with alerting behaviour. The engine tick loop is
// its only writer; Snapshot is additionally safe to call concurrently from
// the read API's HTTP handler goroutines.
type Monitor struct {
	mu                     sync.Mutex
	status                 Status
	maxFailuresBeforeAlert int
	now                    func() time.Time
}

// New constructs a Monitor with the retailer/weather/wholesale sources
// assumed healthy until reported otherwise.
func New(now func() time.Time) *Monitor {
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		status: Status{
			APIStatus:   map[string]bool{"retailer": true, "weather": true, "wholesale": true},
			UptimeStart: now(),
		},
		maxFailuresBeforeAlert: defaultMaxFailuresBeforeAlert,
		now:                    now,
	}
}

// RecordSuccess marks a tick as having completed without a fatal error.
func (m *Monitor) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.LastSuccessfulCycle = m.now()
	m.status.ConsecutiveFailures = 0
	m.status.TotalCycles++
}

// RecordFailure marks a tick as having failed, alerting once the
// consecutive-failure threshold is crossed.
func (m *Monitor) RecordFailure(ctx context.Context, err error) {
	m.mu.Lock()
	m.status.ConsecutiveFailures++
	m.status.TotalFailures++
	m.status.TotalCycles++
	alert := m.status.ConsecutiveFailures >= m.maxFailuresBeforeAlert
	m.mu.Unlock()
	if alert {
		m.alert(ctx, err)
	}
}

// RecordAPIStatus sets the health of a single named source.
func (m *Monitor) RecordAPIStatus(ctx context.Context, name string, healthy bool) {
	m.mu.Lock()
	m.status.APIStatus[name] = healthy
	m.mu.Unlock()
	if !healthy {
		slog.WarnContext(ctx, "api degraded", slog.String("source", name))
	}
}

func (m *Monitor) alert(ctx context.Context, err error) {
	slog.ErrorContext(ctx, "ALERT: consecutive cycle failures",
		slog.Int("consecutive_failures", m.status.ConsecutiveFailures),
		slog.Any("last_error", err),
	)
}

// Snapshot returns the current status by value.
func (m *Monitor) Snapshot() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	apiStatus := make(map[string]bool, len(m.status.APIStatus))
	for k, v := range m.status.APIStatus {
		apiStatus[k] = v
	}
	s := m.status
	s.APIStatus = apiStatus
	return s
}

// UptimeSeconds returns elapsed seconds since the monitor was created.
func (s Status) UptimeSeconds(now time.Time) float64 {
	return now.Sub(s.UptimeStart).Seconds()
}

// IsDegraded reports whether any tracked source is currently unhealthy.
func (s Status) IsDegraded() bool {
	for _, ok := range s.APIStatus {
		if !ok {
			return true
		}
	}
	return false
}

// IsCritical reports whether the loop has failed repeatedly or the
// retailer source itself is down.
func (s Status) IsCritical() bool {
	return s.ConsecutiveFailures >= 3 || !s.APIStatus["retailer"]
}

// Summary renders a one-line human-readable status, the Go equivalent of
// the original prototype's HealthMonitor.summary().
func (s Status) Summary(now time.Time) string {
	names := make([]string, 0, len(s.APIStatus))
	for name := range s.APIStatus {
		names = append(names, name)
	}
	sort.Strings(names)

	apis := ""
	for _, name := range names {
		if apis != "" {
			apis += ", "
		}
		state := "DOWN"
		if s.APIStatus[name] {
			state = "OK"
		}
		apis += name + ":" + state
	}

	return fmt.Sprintf("uptime=%.1fh cycles=%d failures=%d consecutive_fail=%d apis=[%s]",
		s.UptimeSeconds(now)/3600, s.TotalCycles, s.TotalFailures, s.ConsecutiveFailures, apis)
}
