package types

import "time"

// HealthStatus is the supervisor loop's running health record.
type HealthStatus struct {
	LastSuccessfulCycle time.Time       `json:"lastSuccessfulCycle"`
	ConsecutiveFailures int             `json:"consecutiveFailures"`
	TotalCycles         int             `json:"totalCycles"`
	TotalFailures       int             `json:"totalFailures"`
	APIStatus           map[string]bool `json:"apiStatus"`
	UptimeStart         time.Time       `json:"uptimeStart"`
}

// UptimeSeconds returns elapsed seconds since the monitor was created.
func (s HealthStatus) UptimeSeconds(now time.Time) float64 {
	return now.Sub(s.UptimeStart).Seconds()
}

// IsDegraded reports whether any tracked source is currently unhealthy.
func (s HealthStatus) IsDegraded() bool {
	for _, ok := range s.APIStatus {
		if !ok {
			return true
		}
	}
	return false
}

// IsCritical reports whether the loop has failed repeatedly or the
// retailer source itself is down.
func (s HealthStatus) IsCritical() bool {
	if s.ConsecutiveFailures >= 3 {
		return true
	}
	return !s.APIStatus["retailer"]
}
