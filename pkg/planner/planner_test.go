package planner

import (
	"testing"
	"time"

	"github.com/jameshartig/gridpilot/pkg/analyser"
	"github.com/jameshartig/gridpilot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() types.Config {
	cfg := types.DefaultConfig()
	return cfg
}

func TestBuildEmptyWindowsYieldsEmptyPlan(t *testing.T) {
	p := New(testConfig())
	plan := p.Build(nil, nil, types.UsageProfile{}, time.Now())
	assert.Empty(t, plan.Schedule)
	assert.Equal(t, 0, plan.Summary.ArbitragePairs)
}

func TestBuildArbitragePair(t *testing.T) {
	// Monday so isWeekday resolves true/false consistently; doesn't matter here.
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	offPeak := types.TariffOffPeak
	chargeAt0230 := analyser.Window{
		Slot: "02:30", Start: base.Add(150 * time.Minute), End: base.Add(180 * time.Minute),
		TimeIdx: 5, ImportCents: 6, TariffPeriod: offPeak,
	}
	sellAt1830 := analyser.Window{
		Slot: "18:30", Start: base.Add((18*60 + 30) * time.Minute), End: base.Add(19 * 60 * time.Minute),
		TimeIdx: 37, ExportCents: 45,
	}

	p := New(testConfig())
	plan := p.Build([]analyser.Window{chargeAt0230, sellAt1830}, nil, types.UsageProfile{}, base)

	require.GreaterOrEqual(t, plan.Summary.ArbitragePairs, 1)

	var gotCharge, gotSell bool
	for _, a := range plan.Schedule {
		if a.Action == types.PlanChargeGrid {
			gotCharge = true
			assert.Equal(t, 6.0, a.ImportCents)
		}
		if a.Action == types.PlanSellGrid {
			gotSell = true
			assert.Equal(t, 45.0, a.ExportCents)
		}
	}
	assert.True(t, gotCharge)
	assert.True(t, gotSell)

	// margin check: 45 - (6/0.9 + 5/13.5) >= 5
	efficiency := 0.9
	cycleCost := 5.0 / 13.5
	margin := 45.0 - (6.0/efficiency + cycleCost)
	assert.GreaterOrEqual(t, margin, 5.0)
}

func TestBuildRejectsPairBelowMinMargin(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	chargeW := analyser.Window{Slot: "01:00", Start: base.Add(time.Hour), End: base.Add(90 * time.Minute), TimeIdx: 0, ImportCents: 20}
	sellW := analyser.Window{Slot: "02:00", Start: base.Add(2 * time.Hour), End: base.Add(150 * time.Minute), TimeIdx: 1, ExportCents: 21}

	p := New(testConfig())
	plan := p.Build([]analyser.Window{chargeW, sellW}, nil, types.UsageProfile{}, base)
	assert.Equal(t, 0, plan.Summary.ArbitragePairs)
}

func TestBuildCannotChargeAfterSelling(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// charge window is chronologically after the sell window -> must be rejected
	sellW := analyser.Window{Slot: "01:00", Start: base.Add(time.Hour), End: base.Add(90 * time.Minute), TimeIdx: 0, ExportCents: 45}
	chargeW := analyser.Window{Slot: "02:00", Start: base.Add(2 * time.Hour), End: base.Add(150 * time.Minute), TimeIdx: 1, ImportCents: 6}

	p := New(testConfig())
	plan := p.Build([]analyser.Window{sellW, chargeW}, nil, types.UsageProfile{}, base)
	assert.Equal(t, 0, plan.Summary.ArbitragePairs)
}

func TestBuildSolarChargeOverlay(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	w := analyser.Window{Slot: "10:00", Start: base, End: base.Add(30 * time.Minute), TimeIdx: 0}
	solar := []types.SolarForecast{{Timestamp: base, GenerationKW: 4}}

	p := New(testConfig())
	plan := p.Build([]analyser.Window{w}, solar, types.UsageProfile{}, base)
	require.Equal(t, 1, plan.Summary.SolarCharge)
	assert.Equal(t, types.PlanChargeSolar, plan.Schedule[0].Action)
}

func TestBuildIsDeterministic(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	windows := []analyser.Window{
		{Slot: "00:00", Start: base, End: base.Add(30 * time.Minute), TimeIdx: 0, ImportCents: 5},
		{Slot: "18:00", Start: base.Add(18 * time.Hour), End: base.Add(18*time.Hour + 30*time.Minute), TimeIdx: 36, ExportCents: 40},
	}
	p := New(testConfig())
	p1 := p.Build(windows, nil, types.UsageProfile{}, base)
	p2 := p.Build(windows, nil, types.UsageProfile{}, base)
	assert.Equal(t, p1.Summary, p2.Summary)
	assert.Equal(t, len(p1.Schedule), len(p2.Schedule))
}

func TestDayPlanActionForTime(t *testing.T) {
	base := time.Date(2024, 1, 1, 2, 30, 0, 0, time.UTC)
	plan := types.DayPlan{
		Schedule: []types.ScheduledAction{
			{Start: base, End: base.Add(30 * time.Minute), Action: types.PlanChargeGrid},
		},
	}
	action, ok := plan.ActionForTime(base.Add(10 * time.Minute))
	require.True(t, ok)
	assert.Equal(t, types.PlanChargeGrid, action.Action)

	_, ok = plan.ActionForTime(base.Add(40 * time.Minute))
	assert.False(t, ok)
}
