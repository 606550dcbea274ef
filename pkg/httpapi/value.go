package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jameshartig/gridpilot/pkg/types"
)

// ValueSummary aggregates the expected value of every decision recorded
// in a time range, broken out by action — the domain counterpart of the
// teacher's savings.go, which accumulated dollar totals by category
// (battery savings, solar savings, avoided cost) over energy history this
// controller doesn't meter directly.
type ValueSummary struct {
	TotalExpectedValueCents float64            `json:"totalExpectedValueCents"`
	ByActionCents           map[string]float64 `json:"byActionCents"`
	ByActionCount           map[string]int     `json:"byActionCount"`
	DecisionCount           int                `json:"decisionCount"`
}

func (s *Server) handleValueSummary(w http.ResponseWriter, r *http.Request) {
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

	summary := summarizeValue(decisions)

	w.Header().Set("Content-Type", "application/json")
	setHistoryCacheControl(w, end)
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func summarizeValue(decisions []types.Decision) ValueSummary {
	summary := ValueSummary{
		ByActionCents: make(map[string]float64),
		ByActionCount: make(map[string]int),
	}
	for _, d := range decisions {
		action := d.Action.String()
		summary.TotalExpectedValueCents += d.ExpectedValueCents
		summary.ByActionCents[action] += d.ExpectedValueCents
		summary.ByActionCount[action]++
		summary.DecisionCount++
	}
	return summary
}
