package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jameshartig/gridpilot/pkg/health"
	"github.com/jameshartig/gridpilot/pkg/types"
)

// toHealthStatus adapts the engine's internal health.Status into the
// serializable types.HealthStatus the read API exposes.
func toHealthStatus(s health.Status) types.HealthStatus {
	apiStatus := make(map[string]bool, len(s.APIStatus))
	for k, v := range s.APIStatus {
		apiStatus[k] = v
	}
	return types.HealthStatus{
		LastSuccessfulCycle: s.LastSuccessfulCycle,
		ConsecutiveFailures: s.ConsecutiveFailures,
		TotalCycles:         s.TotalCycles,
		TotalFailures:       s.TotalFailures,
		APIStatus:           apiStatus,
		UptimeStart:         s.UptimeStart,
	}
}

// handleHealth reports the engine's running health record, the JSON
// counterpart of the human-readable summary the engine loop logs every
// healthLogEveryNCycles ticks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := toHealthStatus(s.engine.Health().Snapshot())

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start, end, err := parseTimeRange(r)
	if err != nil {
		http.Error(w, "invalid time range: "+err.Error(), http.StatusBadRequest)
		return
	}

	decisions, err := s.store.DecisionHistory(ctx, start, end)
	if err != nil {
		slog.ErrorContext(ctx, "failed to get decision history", "error", err)
		http.Error(w, "failed to get decisions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	setHistoryCacheControl(w, end)

	if err := json.NewEncoder(w).Encode(decisions); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=60")
	if err := json.NewEncoder(w).Encode(s.engine.CurrentPlan()); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	if err := json.NewEncoder(w).Encode(s.engine.CurrentProfile()); err != nil {
		panic(http.ErrAbortHandler)
	}
}

// setHistoryCacheControl mirrors the teacher's history.go: ranges that end
// before today are immutable and cache for a day, anything touching today
// caches for a minute.
func setHistoryCacheControl(w http.ResponseWriter, end time.Time) {
	today := time.Now().Truncate(24 * time.Hour)
	if end.Before(today) {
		w.Header().Set("Cache-Control", "public, max-age=86400")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=60")
	}
}

func parseTimeRange(r *http.Request) (time.Time, time.Time, error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" || endStr == "" {
		end := time.Now()
		start := end.Add(-24 * time.Hour)
		return start, end, nil
	}

	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start time: %w", err)
	}

	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end time: %w", err)
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("start time must be before end time")
	}

	if end.Sub(start) > 7*24*time.Hour {
		return time.Time{}, time.Time{}, fmt.Errorf("time range cannot exceed 7 days")
	}

	return start, end, nil
}
