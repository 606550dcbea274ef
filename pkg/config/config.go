// Package config declares the process's command-line flags and resolves
// them into a single types.Config, following the teacher's
// ess.Configured()/utility.Configured() shape.
package config

import (
	"strings"

	"github.com/levenlabs/go-lflag"

	"github.com/jameshartig/gridpilot/pkg/types"
)

// Configured declares every flag backing types.Config, defaulting each to
// types.DefaultConfig(), and returns a pointer that lflag.Do fills in once
// lflag.Configure() parses flags — the same deferred-fill shape as the
// teacher's ess.Configured()/utility.Configured(), which return a struct
// wrapping their result rather than the result itself, since the flags
// haven't been parsed yet when Configured() returns. Callers must not
// dereference the result until after lflag.Configure() runs. Panics
// (inside lflag.Do) if the retailer credentials are missing, the one
// fatal startup condition this process has.
func Configured() *types.Config {
	defaults := types.DefaultConfig()

	retailerAPIURL := lflag.String("retailer-api-url", defaults.RetailerAPIURL, "Base URL of the retail energy provider's API")
	retailerToken := lflag.String("retailer-api-token", "", "API token for the retail energy provider")
	retailerSiteID := lflag.String("retailer-site-id", "", "Site ID registered with the retail energy provider")

	weatherAPIURL := lflag.String("weather-api-url", defaults.WeatherAPIURL, "Base URL of the solar irradiance forecast API")
	wholesaleAPIURL := lflag.String("wholesale-api-url", defaults.WholesaleAPIURL, "Base URL of the wholesale market dispatch-price API")

	latitude := lflag.Float64("location-latitude", defaults.Latitude, "Site latitude, for solar forecasting")
	longitude := lflag.Float64("location-longitude", defaults.Longitude, "Site longitude, for solar forecasting")
	nemRegion := lflag.String("nem-region", defaults.NEMRegion, "NEM region id for wholesale market data (e.g. NSW1)")

	batteryCapacityKWH := lflag.Float64("battery-capacity-kwh", defaults.BatteryCapacityKWH, "Usable battery capacity in kWh")
	batteryMaxChargeKW := lflag.Float64("battery-max-charge-kw", defaults.BatteryMaxChargeKW, "Maximum charge rate in kW")
	batteryMaxDischargeKW := lflag.Float64("battery-max-discharge-kw", defaults.BatteryMaxDischargeKW, "Maximum discharge rate in kW")
	batteryEfficiency := lflag.Float64("battery-round-trip-efficiency", defaults.BatteryRoundTripEfficiency, "Round-trip charge/discharge efficiency, 0-1")
	batteryMinSOCPct := lflag.Float64("battery-min-soc-pct", defaults.BatteryMinSOCPct, "Minimum state of charge reserved, percent")
	batteryCycleCostCents := lflag.Float64("battery-cycle-cost-cents", defaults.BatteryCycleCostCents, "Amortized wear cost per kWh cycled, cents")

	chargeThreshold := lflag.Float64("charge-price-threshold-cents", defaults.ChargePriceThresholdCents, "Import price below which charging is considered cheap, c/kWh")
	sellThreshold := lflag.Float64("sell-price-threshold-cents", defaults.SellPriceThresholdCents, "Export price above which selling is considered attractive, c/kWh")
	spikeReserveSOCPct := lflag.Float64("spike-reserve-soc-pct", defaults.SpikeReserveSOCPct, "SOC percent below which a potential price spike triggers a reserve charge")

	decisionIntervalSeconds := lflag.Int("decision-interval-seconds", defaults.DecisionIntervalSeconds, "Seconds between engine ticks")

	solarAreaM2 := lflag.Float64("solar-effective-area-m2", defaults.SolarEffectiveAreaM2, "Effective panel area in square meters")
	solarEfficiency := lflag.Float64("solar-efficiency", defaults.SolarEfficiency, "Panel conversion efficiency, 0-1")

	usageLearnDays := lflag.Int("usage-learn-days", defaults.UsageLearnDays, "Days of usage history to learn the profile from")
	baseLoadPercentile := lflag.Float64("base-load-percentile", defaults.BaseLoadPercentile, "Percentile used to estimate baseline load")
	solarPeakPercentile := lflag.Float64("solar-peak-percentile", defaults.SolarPeakPercentile, "Percentile used to estimate solar/export peak")
	profileMaxAgeHours := lflag.Int("profile-max-age-hours", defaults.ProfileMaxAgeHours, "Hours before the learned usage profile is considered stale")

	logLevel := lflag.String("log-level", defaults.LogLevel, "Log level: DEBUG, INFO, WARN, ERROR")

	listenAddr := lflag.String("listen-addr", defaults.ListenAddr, "Bind address for the read API")
	oidcAudience := lflag.String("oidc-audience", defaults.OIDCAudience, "Expected OIDC token audience for the read API")
	adminEmails := lflag.String("admin-emails", "", "Comma-separated list of emails allowed to pause/resume the controller")
	bypassAuth := lflag.Bool("bypass-auth", defaults.BypassAuth, "Disable OIDC auth on the read API (dev only)")

	var cfg types.Config

	lflag.Do(func() {
		if *retailerToken == "" {
			panic("retailer-api-token is required")
		}
		if *retailerSiteID == "" {
			panic("retailer-site-id is required")
		}

		cfg = types.Config{
			RetailerAPIURL:             *retailerAPIURL,
			RetailerAPIToken:           *retailerToken,
			RetailerSiteID:             *retailerSiteID,
			WeatherAPIURL:              *weatherAPIURL,
			WholesaleAPIURL:            *wholesaleAPIURL,
			Latitude:                   *latitude,
			Longitude:                  *longitude,
			NEMRegion:                  *nemRegion,
			BatteryCapacityKWH:         *batteryCapacityKWH,
			BatteryMaxChargeKW:         *batteryMaxChargeKW,
			BatteryMaxDischargeKW:      *batteryMaxDischargeKW,
			BatteryRoundTripEfficiency: *batteryEfficiency,
			BatteryMinSOCPct:           *batteryMinSOCPct,
			BatteryCycleCostCents:      *batteryCycleCostCents,
			ChargePriceThresholdCents:  *chargeThreshold,
			SellPriceThresholdCents:    *sellThreshold,
			SpikeReserveSOCPct:         *spikeReserveSOCPct,
			DecisionIntervalSeconds:    *decisionIntervalSeconds,
			SolarEffectiveAreaM2:       *solarAreaM2,
			SolarEfficiency:            *solarEfficiency,
			UsageLearnDays:             *usageLearnDays,
			BaseLoadPercentile:         *baseLoadPercentile,
			SolarPeakPercentile:        *solarPeakPercentile,
			ProfileMaxAgeHours:         *profileMaxAgeHours,
			LogLevel:                   *logLevel,
			ListenAddr:                 *listenAddr,
			OIDCAudience:               *oidcAudience,
			AdminEmails:                splitEmails(*adminEmails),
			BypassAuth:                 *bypassAuth,
		}
	})

	return &cfg
}

func splitEmails(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	emails := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			emails = append(emails, trimmed)
		}
	}
	return emails
}
