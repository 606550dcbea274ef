package supervisor

import (
	"testing"
	"time"

	"github.com/jameshartig/gridpilot/pkg/analyser"
	"github.com/jameshartig/gridpilot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseSnapshot(now time.Time) types.Snapshot {
	return types.Snapshot{
		Timestamp: now,
		CurrentImportPrice: &types.PriceInterval{
			Timestamp: now, PerKWHCents: 20, Channel: types.ChannelGeneral,
		},
		CurrentExportPrice: &types.PriceInterval{
			Timestamp: now, PerKWHCents: 10, Channel: types.ChannelFeedIn,
		},
		Battery: types.BatteryState{
			SOCPct: 50, SOCKWH: 6.75, CapacityKWH: 13.5,
			MaxChargeKW: 5, MaxDischargeKW: 5, RoundTripEfficiency: 0.9,
			CycleCostCents: 5, MinSOCPct: 20,
		},
		PredictedLoadKW: 1.0,
	}
}

func TestDecideVPPOverrideTakesPriority(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	snap := baseSnapshot(now)
	snap.VPPEventActive = true
	snap.CurrentImportPrice.SpikeStatus = types.SpikeActual // would otherwise win

	s := New(types.DefaultConfig())
	d := s.Decide(snap, types.DayPlan{}, types.UsageProfile{}, analyser.Stats{}, now)

	assert.Equal(t, types.ActionDischargeGrid, d.Action)
	assert.Equal(t, snap.Battery.MaxDischargeKW, d.PowerKW)
}

func TestDecideActualSpikeProtectsHouseLoad(t *testing.T) {
	now := time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)
	snap := baseSnapshot(now)
	snap.CurrentImportPrice.SpikeStatus = types.SpikeActual
	snap.PredictedLoadKW = 2.0

	s := New(types.DefaultConfig())
	d := s.Decide(snap, types.DayPlan{}, types.UsageProfile{}, analyser.Stats{}, now)

	assert.Equal(t, types.ActionDischargeHouse, d.Action)
	assert.Equal(t, 2.0, d.PowerKW)
	assert.GreaterOrEqual(t, d.Confidence, 0.9)
}

func TestDecidePotentialSpikeBuildsReserve(t *testing.T) {
	now := time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)
	snap := baseSnapshot(now)
	snap.CurrentImportPrice.SpikeStatus = types.SpikePotential
	snap.Battery.SOCPct = 10 // below SpikeReserveSOCPct (40)

	s := New(types.DefaultConfig())
	d := s.Decide(snap, types.DayPlan{}, types.UsageProfile{}, analyser.Stats{}, now)

	assert.Equal(t, types.ActionChargeGrid, d.Action)
}

func TestDecideNegativePriceCharges(t *testing.T) {
	now := time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC)
	snap := baseSnapshot(now)
	snap.CurrentImportPrice.PerKWHCents = -2
	snap.Battery.SOCKWH = 5 // headroom available

	s := New(types.DefaultConfig())
	d := s.Decide(snap, types.DayPlan{}, types.UsageProfile{}, analyser.Stats{}, now)

	assert.Equal(t, types.ActionChargeGrid, d.Action)
	assert.GreaterOrEqual(t, d.Confidence, 0.9)
}

func TestDecideExtremeExportSellsEverything(t *testing.T) {
	now := time.Date(2024, 1, 1, 17, 0, 0, 0, time.UTC)
	snap := baseSnapshot(now)
	snap.CurrentExportPrice.PerKWHCents = 600

	s := New(types.DefaultConfig())
	d := s.Decide(snap, types.DayPlan{}, types.UsageProfile{}, analyser.Stats{}, now)

	assert.Equal(t, types.ActionDischargeGrid, d.Action)
}

func TestDecideFollowsPlanWhenNoOverride(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	snap := baseSnapshot(now)
	plan := types.DayPlan{
		Schedule: []types.ScheduledAction{
			{Start: now.Add(-time.Minute), End: now.Add(29 * time.Minute), Action: types.PlanSellGrid, Reason: "arbitrage sell", ExportCents: 45},
		},
	}

	s := New(types.DefaultConfig())
	d := s.Decide(snap, plan, types.UsageProfile{}, analyser.Stats{}, now)

	assert.Equal(t, types.ActionDischargeGrid, d.Action)
	assert.Contains(t, d.Reason, "plan:")
	assert.Equal(t, 0.8, d.Confidence)
}

func TestDecideHeuristicChargesOnCheapInterval(t *testing.T) {
	now := time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)
	snap := baseSnapshot(now)
	snap.CurrentImportPrice.PerKWHCents = 3
	snap.CurrentImportPrice.Descriptor = types.DescriptorVeryLow
	snap.Battery.SOCKWH = 5

	s := New(types.DefaultConfig())
	stats := analyser.Stats{ForecastMax: 40}
	d := s.Decide(snap, types.DayPlan{}, types.UsageProfile{}, stats, now)

	assert.Equal(t, types.ActionChargeGrid, d.Action)
}

func TestDecideHeuristicIdlesWhenNothingCompelling(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	snap := baseSnapshot(now)
	snap.CurrentImportPrice.PerKWHCents = 20
	snap.CurrentExportPrice.PerKWHCents = 5
	snap.Battery.SOCKWH = 2.7 // at min SOC: nothing usable, headroom remains
	snap.CurrentSolarKW = 0

	s := New(types.DefaultConfig())
	stats := analyser.Stats{ForecastAvg: 20, ForecastMax: 20}
	d := s.Decide(snap, types.DayPlan{}, types.UsageProfile{}, stats, now)

	assert.Equal(t, types.ActionIdle, d.Action)
}

func TestDecideFallbackWhenNoPriceData(t *testing.T) {
	s := New(types.DefaultConfig())

	evening := time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)
	snap := types.Snapshot{Timestamp: evening, Battery: types.BatteryState{MaxDischargeKW: 5}, PredictedLoadKW: 1.5}
	d := s.Decide(snap, types.DayPlan{}, types.UsageProfile{}, analyser.Stats{}, evening)
	assert.Equal(t, types.ActionDischargeHouse, d.Action)
	assert.Contains(t, d.Reason, "FALLBACK:")
	assert.LessOrEqual(t, d.Confidence, 0.5)

	daytime := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	snap2 := types.Snapshot{Timestamp: daytime, Battery: types.BatteryState{MaxChargeKW: 5}}
	d2 := s.Decide(snap2, types.DayPlan{}, types.UsageProfile{}, analyser.Stats{}, daytime)
	assert.Equal(t, types.ActionChargeSolar, d2.Action)
	assert.Equal(t, 2.5, d2.PowerKW)

	night := time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC)
	snap3 := types.Snapshot{Timestamp: night}
	d3 := s.Decide(snap3, types.DayPlan{}, types.UsageProfile{}, analyser.Stats{}, night)
	assert.Equal(t, types.ActionIdle, d3.Action)
}

func TestDecideFactorsIncludeSOCAndPrice(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	snap := baseSnapshot(now)

	snap.CurrentSolarKW = 3.2

	s := New(types.DefaultConfig())
	d := s.Decide(snap, types.DayPlan{}, types.UsageProfile{}, analyser.Stats{ForecastAvg: 20, ForecastMax: 20}, now)

	require.Contains(t, d.Factors, "soc_pct")
	assert.Equal(t, snap.Battery.SOCPct, d.Factors["soc_pct"])
	assert.Equal(t, snap.CurrentImportPrice.PerKWHCents, d.Factors["import_cents"])
	assert.Equal(t, 20.0, d.Factors["forecast_avg"])
	assert.Equal(t, 20.0, d.Factors["forecast_max"])
	assert.Equal(t, 3.2, d.Factors["solar_kw"])
}
