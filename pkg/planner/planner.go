// Package planner builds a day-ahead schedule pairing charge windows with
// sell windows for arbitrage, then overlays self-consume and solar-charge
// windows over whatever capacity remains.
package planner

import (
	"fmt"
	"sort"
	"time"

	"github.com/jameshartig/gridpilot/pkg/analyser"
	"github.com/jameshartig/gridpilot/pkg/types"
)

// minMarginCents is the minimum arbitrage margin, net of efficiency and
// cycle cost, required to schedule a charge→sell pair.
const minMarginCents = 5.0

var chargeTariffPenalty = map[types.TariffPeriod]float64{
	types.TariffOffPeak: 0,
	types.TariffShoulder: 3,
	types.TariffPeak:     10,
}

var selfConsumeBonus = map[types.TariffPeriod]float64{
	types.TariffOffPeak: 0,
	types.TariffShoulder: 5,
	types.TariffPeak:     15,
}

// Planner builds DayPlans from annotated windows.
type Planner struct {
	batteryCapacityKWH float64
	efficiency         float64
	cycleCostPerKWH    float64
	maxChargeKW        float64
	maxDischargeKW     float64
	minSOCPct          float64
}

// New constructs a Planner from battery config.
func New(cfg types.Config) *Planner {
	cycleCost := 0.0
	if cfg.BatteryCapacityKWH > 0 {
		cycleCost = cfg.BatteryCycleCostCents / cfg.BatteryCapacityKWH
	}
	return &Planner{
		batteryCapacityKWH: cfg.BatteryCapacityKWH,
		efficiency:         cfg.BatteryRoundTripEfficiency,
		cycleCostPerKWH:    cycleCost,
		maxChargeKW:        cfg.BatteryMaxChargeKW,
		maxDischargeKW:     cfg.BatteryMaxDischargeKW,
		minSOCPct:          cfg.BatteryMinSOCPct,
	}
}

type annotatedWindow struct {
	analyser.Window
	solarKW          float64
	loadKW           float64
	expectedExportKW float64
	netKW            float64
}

// Build constructs a DayPlan from 30-minute windows, the solar forecast,
// and the learned usage profile. now determines weekday/weekend lookup
// and the plan's created_at timestamp.
func (p *Planner) Build(windows []analyser.Window, solar []types.SolarForecast, profile types.UsageProfile, now time.Time) types.DayPlan {
	if len(windows) == 0 {
		return emptyPlan(now)
	}

	isWeekday := now.Weekday() != time.Sunday && now.Weekday() != time.Saturday

	annotated := make([]annotatedWindow, len(windows))
	for i, w := range windows {
		aw := annotatedWindow{Window: w}
		aw.solarKW = solarForHour(solar, w.Start.Hour())
		aw.loadKW = profile.PredictedImportKW(w.Start.Hour(), isWeekday)
		if aw.loadKW == 0 {
			aw.loadKW = 0.3
		}
		aw.expectedExportKW = profile.PredictedExportKW(w.Start.Hour(), isWeekday)
		aw.netKW = aw.loadKW - aw.solarKW
		annotated[i] = aw
	}

	chargeCandidates := make([]annotatedWindow, 0, len(annotated))
	for _, w := range annotated {
		if w.ImportCents > 0 {
			chargeCandidates = append(chargeCandidates, w)
		}
	}
	sort.Slice(chargeCandidates, func(i, j int) bool {
		return effectiveChargeCost(chargeCandidates[i], p.efficiency, p.cycleCostPerKWH) <
			effectiveChargeCost(chargeCandidates[j], p.efficiency, p.cycleCostPerKWH)
	})

	sellCandidates := make([]annotatedWindow, 0, len(annotated))
	for _, w := range annotated {
		if w.ExportCents > 0 {
			sellCandidates = append(sellCandidates, w)
		}
	}
	sort.Slice(sellCandidates, func(i, j int) bool {
		return sellCandidates[i].ExportCents > sellCandidates[j].ExportCents
	})

	usableKWH := p.batteryCapacityKWH * (1 - p.minSOCPct/100)
	remaining := usableKWH
	charged := map[string]bool{}
	sold := map[string]bool{}

	var schedule []types.ScheduledAction
	arbitragePairs := 0

	for _, sellW := range sellCandidates {
		if remaining <= 0 {
			break
		}
		for _, chargeW := range chargeCandidates {
			if charged[chargeW.Slot] {
				continue
			}
			if chargeW.TimeIdx >= sellW.TimeIdx {
				continue
			}

			buyCost := chargeW.ImportCents/p.efficiency + p.cycleCostPerKWH
			margin := sellW.ExportCents - buyCost
			if margin < minMarginCents {
				continue
			}

			windowKWH := min(p.maxChargeKW*0.5, remaining)

			schedule = append(schedule, types.ScheduledAction{
				Start:              chargeW.Start,
				End:                chargeW.End,
				Action:             types.PlanChargeGrid,
				Reason:             "arbitrage charge, margin " + formatCents(margin) + "c",
				ImportCents:        chargeW.ImportCents,
				ExpectedValueCents: margin * windowKWH,
				Priority:           1,
			})
			charged[chargeW.Slot] = true

			if !sold[sellW.Slot] {
				schedule = append(schedule, types.ScheduledAction{
					Start:              sellW.Start,
					End:                sellW.End,
					Action:             types.PlanSellGrid,
					Reason:             "arbitrage sell at " + formatCents(sellW.ExportCents) + "c",
					ExportCents:        sellW.ExportCents,
					ExpectedValueCents: sellW.ExportCents * windowKWH,
					Priority:           1,
				})
				sold[sellW.Slot] = true
			}

			arbitragePairs++
			remaining -= windowKWH
			break
		}
	}

	medianImport := medianImportCents(annotated)

	var selfConsumeCandidates []annotatedWindow
	for _, w := range annotated {
		if sold[w.Slot] || charged[w.Slot] {
			continue
		}
		if w.netKW > 0 {
			selfConsumeCandidates = append(selfConsumeCandidates, w)
		}
	}
	sort.Slice(selfConsumeCandidates, func(i, j int) bool {
		return selfConsumeValue(selfConsumeCandidates[i]) > selfConsumeValue(selfConsumeCandidates[j])
	})

	selfConsumeCount := 0
	for _, w := range selfConsumeCandidates {
		if w.TariffPeriod == types.TariffPeak || w.TariffPeriod == types.TariffShoulder ||
			w.ImportCents > medianImport || w.SpikeRisk {
			schedule = append(schedule, types.ScheduledAction{
				Start:              w.Start,
				End:                w.End,
				Action:             types.PlanSelfConsume,
				Reason:             "self-consume at " + formatCents(w.ImportCents) + "c",
				ImportCents:        w.ImportCents,
				ExpectedValueCents: w.ImportCents * min(w.loadKW, p.maxDischargeKW) * 0.5,
				Priority:           2,
			})
			selfConsumeCount++
		}
	}

	solarChargeCount := 0
	for _, w := range annotated {
		if charged[w.Slot] {
			continue
		}
		if w.solarKW > w.loadKW+0.3 {
			excess := w.solarKW - w.loadKW
			schedule = append(schedule, types.ScheduledAction{
				Start:              w.Start,
				End:                w.End,
				Action:             types.PlanChargeSolar,
				Reason:             "solar excess stored for later",
				ExportCents:        w.ExportCents,
				ExpectedValueCents: w.ExportCents * min(excess, p.maxChargeKW) * 0.5,
				Priority:           3,
			})
			solarChargeCount++
		}
	}

	sort.Slice(schedule, func(i, j int) bool { return schedule[i].Start.Before(schedule[j].Start) })

	return types.DayPlan{
		CreatedAt: now,
		Schedule:  schedule,
		Summary: types.DayPlanSummary{
			ArbitragePairs: arbitragePairs,
			SelfConsume:    selfConsumeCount,
			SolarCharge:    solarChargeCount,
		},
	}
}

func effectiveChargeCost(w annotatedWindow, efficiency, cycleCost float64) float64 {
	return w.ImportCents/efficiency + cycleCost + chargeTariffPenalty[w.TariffPeriod]
}

func selfConsumeValue(w annotatedWindow) float64 {
	return w.ImportCents + selfConsumeBonus[w.TariffPeriod]
}

func solarForHour(solar []types.SolarForecast, hour int) float64 {
	for _, s := range solar {
		if s.Timestamp.Hour() == hour {
			return s.GenerationKW
		}
	}
	return 0
}

func medianImportCents(windows []annotatedWindow) float64 {
	if len(windows) == 0 {
		return 0
	}
	values := make([]float64, len(windows))
	for i, w := range windows {
		values[i] = w.ImportCents
	}
	sort.Float64s(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func emptyPlan(now time.Time) types.DayPlan {
	return types.DayPlan{CreatedAt: now}
}

func formatCents(v float64) string {
	return fmt.Sprintf("%.1f", v)
}
