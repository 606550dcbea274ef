// Package learner builds the learned usage profile: an hour-of-day,
// weekday/weekend load and export curve distilled from historical
// 5-minute usage intervals.
package learner

import (
	"sort"
	"time"

	"github.com/jameshartig/gridpilot/pkg/types"
)

// Learner turns historical usage intervals into a UsageProfile.
type Learner struct {
	basePercentile  float64
	solarPercentile float64
}

// New constructs a Learner with the configured percentile choices for
// base load and solar peak (defaults 10th/90th per config).
func New(basePercentile, solarPercentile float64) *Learner {
	if basePercentile <= 0 {
		basePercentile = 10
	}
	if solarPercentile <= 0 {
		solarPercentile = 90
	}
	return &Learner{basePercentile: basePercentile, solarPercentile: solarPercentile}
}

type hourAccumulator struct {
	importSum, exportSum     float64
	importCount, exportCount int
}

// Learn distills history (5-minute UsageInterval rows, general + feed_in
// channels) into a UsageProfile. history does not need to be sorted.
func (l *Learner) Learn(history []types.UsageInterval, now time.Time) types.UsageProfile {
	var weekday, weekend [24]hourAccumulator

	daysSeen := map[string]bool{}

	for _, u := range history {
		local := u.Timestamp.Local()
		hour := local.Hour()
		daysSeen[local.Format("2006-01-02")] = true

		intervalMinutes := u.EndTime.Sub(u.Timestamp).Minutes()
		if intervalMinutes <= 0 {
			intervalMinutes = 5
		}
		kw := u.KWH * (60 / intervalMinutes)

		isWeekday := int(local.Weekday()) != 0 && int(local.Weekday()) < 6
		// isoweekday < 6 means Mon(1)..Fri(5); Go's Weekday has Sunday=0.
		bucket := &weekend
		if isWeekday {
			bucket = &weekday
		}

		switch u.Channel {
		case types.ChannelGeneral:
			bucket[hour].importSum += kw
			bucket[hour].importCount++
		case types.ChannelFeedIn:
			bucket[hour].exportSum += kw
			bucket[hour].exportCount++
		}
	}

	var profile types.UsageProfile
	var allImportMeans, allExportMeans []float64

	for h := 0; h < 24; h++ {
		if weekday[h].importCount > 0 {
			profile.Hours[h].WeekdayImportKW = weekday[h].importSum / float64(weekday[h].importCount)
			allImportMeans = append(allImportMeans, profile.Hours[h].WeekdayImportKW)
		}
		if weekend[h].importCount > 0 {
			profile.Hours[h].WeekendImportKW = weekend[h].importSum / float64(weekend[h].importCount)
			allImportMeans = append(allImportMeans, profile.Hours[h].WeekendImportKW)
		}
		if weekday[h].exportCount > 0 {
			profile.Hours[h].WeekdayExportKW = weekday[h].exportSum / float64(weekday[h].exportCount)
			allExportMeans = append(allExportMeans, profile.Hours[h].WeekdayExportKW)
		}
		if weekend[h].exportCount > 0 {
			profile.Hours[h].WeekendExportKW = weekend[h].exportSum / float64(weekend[h].exportCount)
			allExportMeans = append(allExportMeans, profile.Hours[h].WeekendExportKW)
		}
	}

	profile.BaseLoadKW = percentile(nonZero(allImportMeans), l.basePercentile)
	profile.SolarPeakKW = percentile(nonZero(allExportMeans), l.solarPercentile)

	profile.PeakImportHour = argmaxHour(profile.Hours, func(h types.HourProfile) float64 { return h.WeekdayImportKW })
	profile.PeakExportHour = argmaxHour(profile.Hours, func(h types.HourProfile) float64 { return h.WeekdayExportKW })

	profile.DaysAnalysed = len(daysSeen)
	profile.LastUpdated = now

	return profile
}

func nonZero(vs []float64) []float64 {
	out := make([]float64, 0, len(vs))
	for _, v := range vs {
		if v != 0 {
			out = append(out, v)
		}
	}
	return out
}

// percentile computes the p-th percentile (0..100) using linear
// interpolation between closest ranks.
func percentile(vs []float64, p float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vs...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(rank)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func argmaxHour(hours [24]types.HourProfile, sel func(types.HourProfile) float64) int {
	best, bestVal := 0, sel(hours[0])
	for h := 1; h < 24; h++ {
		if v := sel(hours[h]); v > bestVal {
			best, bestVal = h, v
		}
	}
	return best
}
