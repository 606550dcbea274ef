// Package collector gathers prices, battery state, solar forecast, and
// grid state from every external source into a single immutable Snapshot,
// isolating any one source's failure from the rest.
package collector

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jameshartig/gridpilot/pkg/types"
)

const forecastHours = 48

// Retailer is the subset of clients.Retailer the collector depends on.
type Retailer interface {
	GetCurrentPrices(ctx context.Context) ([]types.PriceInterval, error)
	GetPriceForecast(ctx context.Context, forecastHours int) ([]types.PriceInterval, error)
}

// Weather is the subset of clients.Weather the collector depends on.
type Weather interface {
	GetSolarForecast(ctx context.Context, forecastHours int) ([]types.SolarForecast, error)
}

// Wholesale is the subset of clients.Wholesale the collector depends on.
type Wholesale interface {
	GetGridState(ctx context.Context) (types.GridState, error)
}

// BatterySource reports the current physical battery state. In the
// absence of a real inverter integration this is backed by a synthesized
// default.
type BatterySource interface {
	GetBatteryState(ctx context.Context) (types.BatteryState, error)
}

// ConfigBattery is a BatterySource that reports the configured nameplate
// battery specs at 50% state of charge. Used until a real inverter
// integration exists.
type ConfigBattery struct {
	cfg types.Config
}

// NewConfigBattery constructs a ConfigBattery from static config.
func NewConfigBattery(cfg types.Config) ConfigBattery {
	return ConfigBattery{cfg: cfg}
}

// GetBatteryState always succeeds, returning the synthesized default.
func (b ConfigBattery) GetBatteryState(ctx context.Context) (types.BatteryState, error) {
	return defaultBattery(b.cfg), nil
}

// Collector fans out to every data source and merges the results into a
// Snapshot, substituting a typed default for any source that fails rather
// than failing the whole tick.
type Collector struct {
	retailer  Retailer
	weather   Weather
	wholesale Wholesale
	battery   BatterySource
	cfg       types.Config
	profile   func() types.UsageProfile
}

// New constructs a Collector with no learned-profile lookup, so predicted
// load comes from the time-of-day table until WithProfile attaches one.
func New(retailer Retailer, weather Weather, wholesale Wholesale, battery BatterySource, cfg types.Config) *Collector {
	return &Collector{retailer: retailer, weather: weather, wholesale: wholesale, battery: battery, cfg: cfg}
}

// Collect gathers all five sources concurrently and merges them. It never
// returns an error: a failing source degrades to a typed default and is
// reflected only in the returned Snapshot's contents.
func (c *Collector) Collect(ctx context.Context) types.Snapshot {
	var (
		prices   []types.PriceInterval
		forecast []types.PriceInterval
		battery  types.BatteryState
		solar    []types.SolarForecast
		grid     types.GridState
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := c.retailer.GetCurrentPrices(gctx)
		if err != nil {
			prices = nil
			return nil
		}
		prices = p
		return nil
	})

	g.Go(func() error {
		f, err := c.retailer.GetPriceForecast(gctx, forecastHours)
		if err != nil {
			forecast = nil
			return nil
		}
		forecast = f
		return nil
	})

	g.Go(func() error {
		b, err := c.battery.GetBatteryState(gctx)
		if err != nil {
			battery = defaultBattery(c.cfg)
			return nil
		}
		battery = b
		return nil
	})

	g.Go(func() error {
		s, err := c.weather.GetSolarForecast(gctx, 24)
		if err != nil {
			solar = nil
			return nil
		}
		solar = s
		return nil
	})

	g.Go(func() error {
		gs, err := c.wholesale.GetGridState(gctx)
		if err != nil {
			grid = types.GridState{Timestamp: time.Now(), Region: c.cfg.NEMRegion}
			return nil
		}
		grid = gs
		return nil
	})

	// Every goroutine above always returns nil; errgroup.Wait never
	// surfaces an error, but we still call it to join the fan-out.
	_ = g.Wait()

	now := time.Now()

	var importPrice, exportPrice *types.PriceInterval
	for i := range prices {
		switch prices[i].Channel {
		case types.ChannelGeneral:
			if importPrice == nil {
				importPrice = &prices[i]
			}
		case types.ChannelFeedIn:
			if exportPrice == nil {
				exportPrice = &prices[i]
			}
		}
	}

	currentSolarKW := 0.0
	if len(solar) > 0 {
		currentSolarKW = solar[0].GenerationKW
	}

	vppActive := false
	for _, p := range prices {
		if p.Channel == types.ChannelFeedIn && p.SpikeStatus == types.SpikeActual {
			vppActive = true
			break
		}
	}

	tariff := types.TariffOffPeak
	season := types.SeasonSummer
	descriptor := types.DescriptorNeutral
	if importPrice != nil {
		if importPrice.Tariff != nil {
			tariff = *importPrice.Tariff
		}
		descriptor = importPrice.Descriptor
	}

	priceForecast, priceHistory := splitByIntervalType(forecast)

	return types.Snapshot{
		Timestamp:          now,
		CurrentImportPrice: importPrice,
		CurrentExportPrice: exportPrice,
		PriceForecast:      priceForecast,
		PriceHistory:       priceHistory,
		Battery:            battery,
		SolarForecast:      solar,
		CurrentSolarKW:     currentSolarKW,
		GridState:          grid,
		PredictedLoadKW:    c.predictedLoad(now),
		VPPEventActive:     vppActive,
		IntervalMinutes:    5,
		TariffPeriod:       tariff,
		TariffSeason:       season,
		Descriptor:         descriptor,
	}
}

// splitByIntervalType divides the raw 48-hour series by interval_type:
// actual intervals become price history, forecast intervals become the
// price forecast. current intervals are dropped here — they're already
// surfaced as CurrentImportPrice/CurrentExportPrice above.
func splitByIntervalType(intervals []types.PriceInterval) (forecast, history []types.PriceInterval) {
	for _, p := range intervals {
		switch p.IntervalType {
		case types.IntervalActual:
			history = append(history, p)
		case types.IntervalForecast:
			forecast = append(forecast, p)
		}
	}
	return forecast, history
}

// predictedLoad falls back to a time-of-day table when no learned profile
// is available.
func (c *Collector) predictedLoad(now time.Time) float64 {
	if c.profile != nil {
		profile := c.profile()
		if !profile.Stale(now, time.Duration(c.cfg.ProfileMaxAgeHours)*time.Hour) {
			weekday := now.Weekday() != time.Sunday && now.Weekday() != time.Saturday
			return profile.PredictedImportKW(now.Hour(), weekday)
		}
	}
	return timeOfDayLoad(now.Hour())
}

// WithProfile attaches a learned-profile lookup used instead of the
// time-of-day fallback table once a profile exists.
func (c *Collector) WithProfile(fn func() types.UsageProfile) *Collector {
	c.profile = fn
	return c
}

func timeOfDayLoad(hour int) float64 {
	switch {
	case hour >= 6 && hour < 9:
		return 2.0
	case hour >= 9 && hour < 16:
		return 0.8
	case hour >= 16 && hour < 21:
		return 3.5
	case hour >= 21 && hour < 24:
		return 1.5
	default:
		return 0.5
	}
}

func defaultBattery(cfg types.Config) types.BatteryState {
	return types.BatteryState{
		SOCPct:              50,
		SOCKWH:              cfg.BatteryCapacityKWH * 0.5,
		CapacityKWH:         cfg.BatteryCapacityKWH,
		MaxChargeKW:         cfg.BatteryMaxChargeKW,
		MaxDischargeKW:      cfg.BatteryMaxDischargeKW,
		RoundTripEfficiency: cfg.BatteryRoundTripEfficiency,
		CycleCostCents:      cfg.BatteryCycleCostCents,
		MinSOCPct:           cfg.BatteryMinSOCPct,
	}
}
