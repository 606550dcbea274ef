// Package supervisor implements the real-time, per-tick decision maker:
// an override cascade for anomalous conditions, plan-following when the
// day-ahead plan covers the current time, a per-interval heuristic when
// neither applies, and a time-of-day fallback when price data is
// unavailable.
package supervisor

import (
	"time"

	"github.com/jameshartig/gridpilot/pkg/analyser"
	"github.com/jameshartig/gridpilot/pkg/types"
)

// Supervisor evaluates each tick's Snapshot against the active DayPlan
// and usage profile to emit exactly one Decision.
type Supervisor struct {
	cfg types.Config
}

// New constructs a Supervisor from static config.
func New(cfg types.Config) *Supervisor {
	return &Supervisor{cfg: cfg}
}

// Decide is the single decision entry point: time-of-day fallback when
// there is no current import price; otherwise override cascade, then plan
// follow, then per-interval heuristic.
func (s *Supervisor) Decide(snap types.Snapshot, plan types.DayPlan, profile types.UsageProfile, stats analyser.Stats, now time.Time) types.Decision {
	factors := baseFactors(snap, stats)

	if snap.CurrentImportPrice == nil {
		return s.fallback(snap, now, factors)
	}

	if d, ok := s.override(snap, factors); ok {
		return d
	}

	if action, ok := plan.ActionForTime(now); ok {
		return s.followPlan(snap, action, factors)
	}

	return s.heuristic(snap, stats, factors)
}

func baseFactors(snap types.Snapshot, stats analyser.Stats) map[string]interface{} {
	f := map[string]interface{}{
		"soc_pct":           snap.Battery.SOCPct,
		"usable_kwh":        snap.Battery.UsableKWH(),
		"headroom_kwh":      snap.Battery.HeadroomKWH(),
		"predicted_load_kw": snap.PredictedLoadKW,
		"vpp_event_active":  snap.VPPEventActive,
		"solar_kw":          snap.CurrentSolarKW,
		"forecast_avg":      stats.ForecastAvg,
		"forecast_max":      stats.ForecastMax,
	}
	if snap.CurrentImportPrice != nil {
		f["import_cents"] = snap.CurrentImportPrice.PerKWHCents
		f["spike_status"] = snap.CurrentImportPrice.SpikeStatus.String()
	}
	if snap.CurrentExportPrice != nil {
		f["export_cents"] = snap.CurrentExportPrice.PerKWHCents
	}
	return f
}

// override evaluates the five-step cascade in strict priority order.
func (s *Supervisor) override(snap types.Snapshot, factors map[string]interface{}) (types.Decision, bool) {
	battery := snap.Battery

	// 1. VPP event active
	if snap.VPPEventActive && battery.UsableKWH() > 0 {
		return decision(snap, types.ActionDischargeGrid, battery.MaxDischargeKW, 0.95, "VPP event active", factors), true
	}

	// 2. Actual spike on import
	if snap.CurrentImportPrice != nil && snap.CurrentImportPrice.SpikeStatus == types.SpikeActual && battery.UsableKWH() > 0 {
		power := min(snap.PredictedLoadKW, battery.MaxDischargeKW)
		return decision(snap, types.ActionDischargeHouse, power, 0.99, "ACTUAL SPIKE — protect house load", factors), true
	}

	// 3. Potential spike, reserve not yet built
	if snap.CurrentImportPrice != nil && snap.CurrentImportPrice.SpikeStatus == types.SpikePotential && battery.SOCPct < s.cfg.SpikeReserveSOCPct {
		return decision(snap, types.ActionChargeGrid, battery.MaxChargeKW, 0.7, "POTENTIAL SPIKE — building reserve", factors), true
	}

	// 4. Negative import price
	if snap.CurrentImportPrice != nil && snap.CurrentImportPrice.PerKWHCents <= 0 && battery.HeadroomKWH() > 0 {
		return decision(snap, types.ActionChargeGrid, battery.MaxChargeKW, 0.99, "NEGATIVE import price — free energy", factors), true
	}

	// 5. Extreme export price
	if snap.CurrentExportPrice != nil && snap.CurrentExportPrice.PerKWHCents > 500 && battery.UsableKWH() > 0 {
		return decision(snap, types.ActionDischargeGrid, battery.MaxDischargeKW, 0.95, "EXTREME export price — sell everything", factors), true
	}

	return types.Decision{}, false
}

func (s *Supervisor) followPlan(snap types.Snapshot, action types.ScheduledAction, factors map[string]interface{}) types.Decision {
	battery := snap.Battery
	factors["plan_action"] = action.Action.String()

	var batteryAction types.BatteryAction
	var power float64
	switch action.Action {
	case types.PlanChargeGrid, types.PlanChargeSolar:
		batteryAction = types.ActionChargeGrid
		if action.Action == types.PlanChargeSolar {
			batteryAction = types.ActionChargeSolar
		}
		power = battery.MaxChargeKW
	case types.PlanSellGrid:
		batteryAction = types.ActionDischargeGrid
		power = battery.MaxDischargeKW
	case types.PlanSelfConsume:
		batteryAction = types.ActionDischargeHouse
		power = min(snap.PredictedLoadKW, battery.MaxDischargeKW)
	default:
		batteryAction = types.ActionIdle
	}

	return types.Decision{
		Timestamp:          snap.Timestamp,
		Action:             batteryAction,
		PowerKW:            power,
		Reason:             "plan: " + action.Reason,
		Confidence:         0.8,
		ExpectedValueCents: power / 12 * (action.ImportCents + action.ExportCents),
		Factors:            factors,
	}
}

func (s *Supervisor) heuristic(snap types.Snapshot, stats analyser.Stats, factors map[string]interface{}) types.Decision {
	battery := snap.Battery
	price := snap.CurrentImportPrice
	export := snap.CurrentExportPrice

	efficiency := battery.RoundTripEfficiency
	if efficiency <= 0 {
		efficiency = 1
	}
	cycleCost := battery.CycleCostCents / maxFloat(battery.CapacityKWH, 1)

	if price.Descriptor == types.DescriptorExtremelyLow || price.Descriptor == types.DescriptorVeryLow {
		margin := stats.ForecastMax - (price.PerKWHCents/efficiency + cycleCost)
		if margin >= 5 && battery.HeadroomKWH() > 0 {
			return decision(snap, types.ActionChargeGrid, battery.MaxChargeKW, 0.8, "cheap interval, margin to forecast peak", factors)
		}
	}

	if price.PerKWHCents < s.cfg.ChargePriceThresholdCents && battery.HeadroomKWH() > 0 {
		margin := stats.ForecastMax - (price.PerKWHCents/efficiency + cycleCost)
		if margin >= 8 {
			return decision(snap, types.ActionChargeGrid, battery.MaxChargeKW, 0.75, "below charge threshold, good margin", factors)
		}
	}

	if export != nil && export.PerKWHCents > s.cfg.SellPriceThresholdCents && battery.UsableKWH() > 0 {
		if !forecastExceeds(stats.ExpensiveWindows, export.PerKWHCents*1.3, snap.Timestamp) {
			return decision(snap, types.ActionDischargeGrid, battery.MaxDischargeKW, 0.85, "above sell threshold, no better window ahead", factors)
		}
	}

	if snap.CurrentSolarKW-snap.PredictedLoadKW > 0.3 && battery.HeadroomKWH() > 0 {
		return decision(snap, types.ActionChargeSolar, battery.MaxChargeKW, 0.9, "solar excess over load", factors)
	}

	avgPrice := stats.ForecastAvg
	if (snap.TariffPeriod == types.TariffPeak || price.PerKWHCents > avgPrice*1.2) && battery.UsableKWH() > 0 {
		power := min(snap.PredictedLoadKW, battery.MaxDischargeKW)
		value := price.PerKWHCents*power - cycleCost*power/maxFloat(battery.CapacityKWH, 1)
		if value > 0 {
			return decision(snap, types.ActionDischargeHouse, power, 0.7, "peak tariff or above-average price", factors)
		}
	}

	return decision(snap, types.ActionIdle, 0, 0.6, "no condition met", factors)
}

func forecastExceeds(windows []types.PriceInterval, threshold float64, now time.Time) bool {
	for _, w := range windows {
		if w.Timestamp.Sub(now) > 3*time.Hour {
			continue
		}
		if w.PerKWHCents > threshold {
			return true
		}
	}
	return false
}

func (s *Supervisor) fallback(snap types.Snapshot, now time.Time, factors map[string]interface{}) types.Decision {
	battery := snap.Battery
	hour := now.Hour()

	var action types.BatteryAction
	var power float64
	var reason string

	switch {
	case hour >= 16 && hour < 21:
		action = types.ActionDischargeHouse
		power = min(snap.PredictedLoadKW, battery.MaxDischargeKW)
		reason = "evening peak, battery alone"
	case hour >= 9 && hour < 16:
		action = types.ActionChargeSolar
		power = battery.MaxChargeKW * 0.5
		reason = "daytime, battery alone"
	default:
		action = types.ActionIdle
		reason = "no data, no clear fallback signal"
	}

	return types.Decision{
		Timestamp:  snap.Timestamp,
		Action:     action,
		PowerKW:    power,
		Reason:     "FALLBACK: " + reason,
		Confidence: 0.5,
		Factors:    factors,
	}
}

func decision(snap types.Snapshot, action types.BatteryAction, power, confidence float64, reason string, factors map[string]interface{}) types.Decision {
	return types.Decision{
		Timestamp:  snap.Timestamp,
		Action:     action,
		PowerKW:    power,
		Reason:     reason,
		Confidence: confidence,
		Factors:    factors,
	}
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
