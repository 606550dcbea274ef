package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jameshartig/gridpilot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRetailer struct {
	prices, forecast []types.PriceInterval
	pricesErr, forecastErr error
}

func (s stubRetailer) GetCurrentPrices(ctx context.Context) ([]types.PriceInterval, error) {
	return s.prices, s.pricesErr
}

func (s stubRetailer) GetPriceForecast(ctx context.Context, hours int) ([]types.PriceInterval, error) {
	return s.forecast, s.forecastErr
}

type stubWeather struct {
	forecast []types.SolarForecast
	err      error
}

func (s stubWeather) GetSolarForecast(ctx context.Context, hours int) ([]types.SolarForecast, error) {
	return s.forecast, s.err
}

type stubWholesale struct {
	state types.GridState
	err   error
}

func (s stubWholesale) GetGridState(ctx context.Context) (types.GridState, error) {
	return s.state, s.err
}

type stubBattery struct {
	state types.BatteryState
	err   error
}

func (s stubBattery) GetBatteryState(ctx context.Context) (types.BatteryState, error) {
	return s.state, s.err
}

func TestCollectMergesAllSources(t *testing.T) {
	now := time.Now()
	tariff := types.TariffPeak
	prices := []types.PriceInterval{
		{Channel: types.ChannelGeneral, PerKWHCents: 25, Tariff: &tariff, Descriptor: types.DescriptorHigh},
		{Channel: types.ChannelFeedIn, PerKWHCents: 8},
	}
	c := New(
		stubRetailer{prices: prices, forecast: []types.PriceInterval{{PerKWHCents: 10}}},
		stubWeather{forecast: []types.SolarForecast{{Timestamp: now, GenerationKW: 3.2}}},
		stubWholesale{state: types.GridState{Region: "NSW1", DemandMW: 8000}},
		stubBattery{state: types.BatteryState{SOCPct: 70, SOCKWH: 9.45, CapacityKWH: 13.5}},
		types.DefaultConfig(),
	)

	snap := c.Collect(context.Background())

	require.NotNil(t, snap.CurrentImportPrice)
	require.NotNil(t, snap.CurrentExportPrice)
	assert.Equal(t, 25.0, snap.CurrentImportPrice.PerKWHCents)
	assert.Equal(t, 8.0, snap.CurrentExportPrice.PerKWHCents)
	assert.Equal(t, types.TariffPeak, snap.TariffPeriod)
	assert.Equal(t, types.DescriptorHigh, snap.Descriptor)
	assert.Equal(t, 3.2, snap.CurrentSolarKW)
	assert.Equal(t, "NSW1", snap.GridState.Region)
	assert.Equal(t, 70.0, snap.Battery.SOCPct)
	assert.False(t, snap.VPPEventActive)
}

func TestCollectDetectsVPPFromActualFeedInSpike(t *testing.T) {
	prices := []types.PriceInterval{
		{Channel: types.ChannelGeneral, PerKWHCents: 20},
		{Channel: types.ChannelFeedIn, PerKWHCents: 90, SpikeStatus: types.SpikeActual},
	}
	c := New(
		stubRetailer{prices: prices},
		stubWeather{},
		stubWholesale{},
		stubBattery{state: types.BatteryState{}},
		types.DefaultConfig(),
	)
	snap := c.Collect(context.Background())
	assert.True(t, snap.VPPEventActive)
}

func TestCollectIsolatesFailingSources(t *testing.T) {
	cfg := types.DefaultConfig()
	c := New(
		stubRetailer{pricesErr: errors.New("amber down"), forecastErr: errors.New("amber down")},
		stubWeather{err: errors.New("weather down")},
		stubWholesale{err: errors.New("aemo down")},
		stubBattery{err: errors.New("inverter unreachable")},
		cfg,
	)

	snap := c.Collect(context.Background())

	assert.Nil(t, snap.CurrentImportPrice)
	assert.Nil(t, snap.CurrentExportPrice)
	assert.Empty(t, snap.PriceForecast)
	assert.Empty(t, snap.SolarForecast)
	assert.Equal(t, cfg.NEMRegion, snap.GridState.Region)
	assert.Equal(t, cfg.BatteryCapacityKWH, snap.Battery.CapacityKWH)
	assert.Equal(t, cfg.BatteryCapacityKWH*0.5, snap.Battery.SOCKWH)
}

func TestCollectSplitsForecastByIntervalType(t *testing.T) {
	forecast := []types.PriceInterval{
		{Channel: types.ChannelGeneral, PerKWHCents: 15, IntervalType: types.IntervalActual},
		{Channel: types.ChannelGeneral, PerKWHCents: 20, IntervalType: types.IntervalForecast},
		{Channel: types.ChannelGeneral, PerKWHCents: 18, IntervalType: types.IntervalCurrent},
	}
	c := New(
		stubRetailer{forecast: forecast},
		stubWeather{},
		stubWholesale{},
		stubBattery{},
		types.DefaultConfig(),
	)

	snap := c.Collect(context.Background())

	require.Len(t, snap.PriceHistory, 1)
	assert.Equal(t, 15.0, snap.PriceHistory[0].PerKWHCents)
	require.Len(t, snap.PriceForecast, 1)
	assert.Equal(t, 20.0, snap.PriceForecast[0].PerKWHCents)
}

func TestPredictedLoadFallsBackToTimeOfDay(t *testing.T) {
	c := New(stubRetailer{}, stubWeather{}, stubWholesale{}, stubBattery{}, types.DefaultConfig())
	assert.Equal(t, 2.0, c.predictedLoad(time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0.8, c.predictedLoad(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, 3.5, c.predictedLoad(time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1.5, c.predictedLoad(time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0.5, c.predictedLoad(time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)))
}

func TestPredictedLoadUsesFreshProfileOverFallback(t *testing.T) {
	now := time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC) // Monday
	profile := types.UsageProfile{LastUpdated: now}
	profile.Hours[18].WeekdayImportKW = 4.2

	c := New(stubRetailer{}, stubWeather{}, stubWholesale{}, stubBattery{}, types.DefaultConfig()).
		WithProfile(func() types.UsageProfile { return profile })

	assert.Equal(t, 4.2, c.predictedLoad(now))
}

func TestConfigBatteryReturnsConfiguredSpecs(t *testing.T) {
	cfg := types.DefaultConfig()
	b := NewConfigBattery(cfg)
	state, err := b.GetBatteryState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cfg.BatteryCapacityKWH, state.CapacityKWH)
	assert.Equal(t, 50.0, state.SOCPct)
}
