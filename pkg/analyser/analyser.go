// Package analyser reduces raw 5-minute forecast price intervals into
// summary statistics and 30-minute windows consumed by the day-ahead
// planner and real-time supervisor.
package analyser

import (
	"sort"
	"time"

	"github.com/jameshartig/gridpilot/pkg/types"
)

const (
	defaultForecastAvg = 30
	defaultExportAvg   = 5
	topN               = 5
	windowMinutes      = 30
)

// Stats is the reduced summary of a price forecast.
type Stats struct {
	ForecastMin, ForecastAvg, ForecastMax float64
	ExportAvg, ExportMax                  float64
	CheapestWindows                       []types.PriceInterval
	ExpensiveWindows                      []types.PriceInterval
	BestSellWindows                       []types.PriceInterval
	NegativeIntervals                     int
	SpikeIntervals                        int
}

// Analyse is a pure function over a forecast's general and feed-in
// channel intervals.
func Analyse(forecast []types.PriceInterval) Stats {
	var general, feedin []types.PriceInterval
	for _, p := range forecast {
		switch p.Channel {
		case types.ChannelGeneral:
			general = append(general, p)
		case types.ChannelFeedIn:
			feedin = append(feedin, p)
		}
	}

	stats := Stats{
		ForecastMin: defaultForecastAvg,
		ForecastAvg: defaultForecastAvg,
		ForecastMax: defaultForecastAvg,
		ExportAvg:   defaultExportAvg,
		ExportMax:   0,
	}

	if len(general) > 0 {
		min, max, sum := general[0].PerKWHCents, general[0].PerKWHCents, 0.0
		for _, p := range general {
			if p.PerKWHCents < min {
				min = p.PerKWHCents
			}
			if p.PerKWHCents > max {
				max = p.PerKWHCents
			}
			sum += p.PerKWHCents
			if p.PerKWHCents <= 0 {
				stats.NegativeIntervals++
			}
			if p.SpikeStatus != types.SpikeNone {
				stats.SpikeIntervals++
			}
		}
		stats.ForecastMin = min
		stats.ForecastMax = max
		stats.ForecastAvg = sum / float64(len(general))
	}

	if len(feedin) > 0 {
		max, sum := feedin[0].PerKWHCents, 0.0
		for _, p := range feedin {
			if p.PerKWHCents > max {
				max = p.PerKWHCents
			}
			sum += p.PerKWHCents
			if p.SpikeStatus != types.SpikeNone {
				stats.SpikeIntervals++
			}
		}
		stats.ExportMax = max
		stats.ExportAvg = sum / float64(len(feedin))
	}

	stats.CheapestWindows = topByImport(general, true)
	stats.ExpensiveWindows = topByImport(general, false)
	stats.BestSellWindows = topByExport(feedin)

	return stats
}

func topByImport(general []types.PriceInterval, ascending bool) []types.PriceInterval {
	sorted := append([]types.PriceInterval(nil), general...)
	sort.Slice(sorted, func(i, j int) bool {
		if ascending {
			return sorted[i].PerKWHCents < sorted[j].PerKWHCents
		}
		return sorted[i].PerKWHCents > sorted[j].PerKWHCents
	})
	if len(sorted) > topN {
		sorted = sorted[:topN]
	}
	return sorted
}

func topByExport(feedin []types.PriceInterval) []types.PriceInterval {
	sorted := append([]types.PriceInterval(nil), feedin...)
	sort.Slice(sorted, func(i, j int) bool {
		return abs(sorted[i].PerKWHCents) > abs(sorted[j].PerKWHCents)
	})
	if len(sorted) > topN {
		sorted = sorted[:topN]
	}
	return sorted
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Window is a 30-minute aggregation of six 5-minute intervals used by the
// planner.
type Window struct {
	Slot         string
	Start, End   time.Time
	TimeIdx      int
	ImportCents  float64
	ExportCents  float64
	TariffPeriod types.TariffPeriod
	SpikeRisk    bool
}

type windowAccumulator struct {
	Window
	importSum, exportSum     float64
	importCount, exportCount int
}

// BuildWindows groups general and feed-in 5-minute intervals into
// chronologically ordered 30-minute windows. Undefined (returns nil) when
// both inputs are empty.
func BuildWindows(general, feedin []types.PriceInterval) []Window {
	if len(general) == 0 && len(feedin) == 0 {
		return nil
	}

	buckets := map[int64]*windowAccumulator{}
	var order []int64

	addTo := func(p types.PriceInterval, setImport bool) {
		start := p.Timestamp.Truncate(windowMinutes * time.Minute)
		key := start.Unix()
		w, ok := buckets[key]
		if !ok {
			w = &windowAccumulator{Window: Window{
				Slot:  start.Format("15:04"),
				Start: start,
				End:   start.Add(windowMinutes * time.Minute),
			}}
			if p.Tariff != nil {
				w.TariffPeriod = *p.Tariff
			}
			buckets[key] = w
			order = append(order, key)
		}
		if p.SpikeStatus != types.SpikeNone {
			w.SpikeRisk = true
		}
		if setImport {
			w.importSum += p.PerKWHCents
			w.importCount++
		} else {
			w.exportSum += p.PerKWHCents
			w.exportCount++
		}
	}

	for _, p := range general {
		addTo(p, true)
	}
	for _, p := range feedin {
		addTo(p, false)
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	windows := make([]Window, 0, len(order))
	for idx, key := range order {
		w := buckets[key]
		if w.importCount > 0 {
			w.ImportCents = w.importSum / float64(w.importCount)
		}
		if w.exportCount > 0 {
			w.ExportCents = w.exportSum / float64(w.exportCount)
		}
		w.TimeIdx = idx
		windows = append(windows, w.Window)
	}
	return windows
}
