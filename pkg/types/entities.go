package types

import "time"

// PriceInterval is a single 5-minute retail price record on one channel.
type PriceInterval struct {
	Timestamp       time.Time       `json:"timestamp"`
	EndTime         time.Time       `json:"endTime"`
	PerKWHCents     float64         `json:"perKwhCents"`
	SpotPerKWHCents float64         `json:"spotPerKwhCents"`
	Channel         PriceChannel    `json:"channel"`
	SpikeStatus     SpikeStatus     `json:"spikeStatus"`
	Descriptor      PriceDescriptor `json:"descriptor"`
	RenewablesPct   float64         `json:"renewablesPct"`
	Tariff          *TariffPeriod   `json:"tariff,omitempty"`
	DurationMinutes int             `json:"durationMinutes"`
	IntervalType    IntervalType    `json:"intervalType"`
	IsEstimate      bool            `json:"isEstimate"`
}

// UsageInterval is a single 5-minute metered usage record on one channel.
type UsageInterval struct {
	Timestamp       time.Time       `json:"timestamp"`
	EndTime         time.Time       `json:"endTime"`
	Channel         PriceChannel    `json:"channel"`
	ChannelID       string          `json:"channelId"`
	KWH             float64         `json:"kwh"`
	CostCents       float64         `json:"costCents"`
	PerKWHCents     float64         `json:"perKwhCents"`
	SpotPerKWHCents float64         `json:"spotPerKwhCents"`
	SpikeStatus     SpikeStatus     `json:"spikeStatus"`
	Descriptor      PriceDescriptor `json:"descriptor"`
	RenewablesPct   float64         `json:"renewablesPct"`
	Tariff          *TariffPeriod   `json:"tariff,omitempty"`
	Quality         UsageQuality    `json:"quality"`
}

// BatteryState is the most recent known state of the home battery.
type BatteryState struct {
	SOCPct               float64 `json:"socPct"`
	SOCKWH               float64 `json:"socKwh"`
	CapacityKWH          float64 `json:"capacityKwh"`
	MaxChargeKW          float64 `json:"maxChargeKw"`
	MaxDischargeKW       float64 `json:"maxDischargeKw"`
	RoundTripEfficiency  float64 `json:"roundTripEfficiency"`
	CycleCostCents       float64 `json:"cycleCostCents"`
	MinSOCPct            float64 `json:"minSocPct"`
}

// UsableKWH is the energy above the configured minimum SOC reserve that can
// be discharged.
func (b BatteryState) UsableKWH() float64 {
	reserve := b.CapacityKWH * b.MinSOCPct / 100
	if u := b.SOCKWH - reserve; u > 0 {
		return u
	}
	return 0
}

// HeadroomKWH is the remaining capacity available to charge into.
func (b BatteryState) HeadroomKWH() float64 {
	if h := b.CapacityKWH - b.SOCKWH; h > 0 {
		return h
	}
	return 0
}

// SolarForecast is a single hourly solar generation forecast point.
type SolarForecast struct {
	Timestamp      time.Time `json:"timestamp"`
	GenerationKW   float64   `json:"generationKw"`
	CloudCoverPct  float64   `json:"cloudCoverPct"`
	TemperatureC   float64   `json:"temperatureC"`
}

// GridState is a snapshot of wholesale market conditions for one region.
type GridState struct {
	Timestamp             time.Time `json:"timestamp"`
	Region                string    `json:"region"`
	DemandMW              float64   `json:"demandMw"`
	WholesalePriceAUDPerMWH float64 `json:"wholesalePriceAudPerMwh"`
	RenewablesPct         float64   `json:"renewablesPct"`
	InterconnectorFlowMW  float64   `json:"interconnectorFlowMw"`
}

// Snapshot is the complete, immutable view of system state built by the
// collector at the start of a tick.
type Snapshot struct {
	Timestamp          time.Time        `json:"timestamp"`
	CurrentImportPrice *PriceInterval   `json:"currentImportPrice,omitempty"`
	CurrentExportPrice *PriceInterval   `json:"currentExportPrice,omitempty"`
	PriceForecast      []PriceInterval  `json:"priceForecast"`
	PriceHistory       []PriceInterval  `json:"priceHistory"`
	Battery            BatteryState     `json:"battery"`
	SolarForecast      []SolarForecast  `json:"solarForecast"`
	CurrentSolarKW     float64          `json:"currentSolarKw"`
	GridState          GridState        `json:"gridState"`
	PredictedLoadKW    float64          `json:"predictedLoadKw"`
	VPPEventActive     bool             `json:"vppEventActive"`
	IntervalMinutes    int              `json:"intervalMinutes"`
	TariffPeriod       TariffPeriod     `json:"tariffPeriod"`
	TariffSeason       TariffSeason     `json:"tariffSeason"`
	Descriptor         PriceDescriptor  `json:"descriptor"`
}

// HourProfile is the learned load/export behaviour for a single hour of day.
type HourProfile struct {
	WeekdayImportKW float64 `json:"weekdayImportKw"`
	WeekendImportKW float64 `json:"weekendImportKw"`
	WeekdayExportKW float64 `json:"weekdayExportKw"`
	WeekendExportKW float64 `json:"weekendExportKw"`
}

// UsageProfile is the household's learned 24-hour load/export profile,
// split by weekday/weekend.
type UsageProfile struct {
	Hours          [24]HourProfile `json:"hours"`
	BaseLoadKW     float64         `json:"baseLoadKw"`
	SolarPeakKW    float64         `json:"solarPeakKw"`
	PeakImportHour int             `json:"peakImportHour"`
	PeakExportHour int             `json:"peakExportHour"`
	DaysAnalysed   int             `json:"daysAnalysed"`
	LastUpdated    time.Time       `json:"lastUpdated"`
}

// Stale reports whether the profile is older than the given max age.
func (p UsageProfile) Stale(now time.Time, maxAge time.Duration) bool {
	if p.LastUpdated.IsZero() {
		return true
	}
	return now.Sub(p.LastUpdated) >= maxAge
}

// PredictedImportKW returns the learned import load for the given hour and
// weekday flag.
func (p UsageProfile) PredictedImportKW(hour int, weekday bool) float64 {
	if hour < 0 || hour > 23 {
		return 0
	}
	if weekday {
		return p.Hours[hour].WeekdayImportKW
	}
	return p.Hours[hour].WeekendImportKW
}

// PredictedExportKW returns the learned export rate for the given hour and
// weekday flag.
func (p UsageProfile) PredictedExportKW(hour int, weekday bool) float64 {
	if hour < 0 || hour > 23 {
		return 0
	}
	if weekday {
		return p.Hours[hour].WeekdayExportKW
	}
	return p.Hours[hour].WeekendExportKW
}

// ScheduledAction is a single entry in a DayPlan covering a fixed time
// window.
type ScheduledAction struct {
	Start               time.Time           `json:"start"`
	End                 time.Time           `json:"end"`
	Action              ScheduledActionKind `json:"action"`
	Reason              string              `json:"reason"`
	ImportCents         float64             `json:"importCents"`
	ExportCents         float64             `json:"exportCents"`
	ExpectedValueCents  float64             `json:"expectedValueCents"`
	Priority            int                 `json:"priority"`
}

// Covers reports whether the given local time falls within [Start, End).
func (a ScheduledAction) Covers(t time.Time) bool {
	return !t.Before(a.Start) && t.Before(a.End)
}

// DayPlanSummary holds aggregate counts over a DayPlan's schedule.
type DayPlanSummary struct {
	ArbitragePairs int `json:"arbitragePairs"`
	SelfConsume    int `json:"selfConsume"`
	SolarCharge    int `json:"solarCharge"`
}

// DayPlan is the day-ahead schedule built by the planner.
type DayPlan struct {
	CreatedAt time.Time         `json:"createdAt"`
	Schedule  []ScheduledAction `json:"schedule"`
	Summary   DayPlanSummary    `json:"summary"`
}

// ActionForTime returns the scheduled action, if any, whose window covers
// the given time.
func (p DayPlan) ActionForTime(t time.Time) (ScheduledAction, bool) {
	for _, a := range p.Schedule {
		if a.Covers(t) {
			return a, true
		}
	}
	return ScheduledAction{}, false
}

// Stale reports whether the plan should be rebuilt: a new wall-clock hour,
// or older than maxAge.
func (p DayPlan) Stale(now time.Time, maxAge time.Duration) bool {
	if p.CreatedAt.IsZero() {
		return true
	}
	if p.CreatedAt.Hour() != now.Hour() || p.CreatedAt.Day() != now.Day() {
		return true
	}
	return now.Sub(p.CreatedAt) >= maxAge
}

// Decision is a single emitted battery instruction, with the factors that
// led to it recorded for audit.
type Decision struct {
	Timestamp          time.Time              `json:"timestamp"`
	Action             BatteryAction          `json:"action"`
	PowerKW            float64                `json:"powerKw"`
	Reason             string                 `json:"reason"`
	Confidence         float64                `json:"confidence"`
	ExpectedValueCents float64                `json:"expectedValueCents"`
	Factors            map[string]interface{} `json:"factors,omitempty"`
}
