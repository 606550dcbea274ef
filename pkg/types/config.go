package types

// Config is the process-wide static configuration, loaded once at startup.
// Components never mutate it; it is handed to constructors by value.
type Config struct {
	// Retailer
	RetailerAPIURL   string
	RetailerAPIToken string
	RetailerSiteID   string

	// Weather / solar forecast
	WeatherAPIURL string

	// Wholesale market
	WholesaleAPIURL string

	// Location / wholesale
	Latitude   float64
	Longitude  float64
	NEMRegion  string

	// Battery
	BatteryCapacityKWH         float64
	BatteryMaxChargeKW         float64
	BatteryMaxDischargeKW      float64
	BatteryRoundTripEfficiency float64
	BatteryMinSOCPct           float64
	BatteryCycleCostCents      float64

	// Strategy thresholds
	ChargePriceThresholdCents float64
	SellPriceThresholdCents   float64
	SpikeReserveSOCPct        float64

	// Engine
	DecisionIntervalSeconds int

	// Solar model
	SolarEffectiveAreaM2 float64
	SolarEfficiency      float64

	// Usage learner
	UsageLearnDays          int
	BaseLoadPercentile      float64
	SolarPeakPercentile     float64
	ProfileMaxAgeHours      int

	// Logging
	LogLevel string

	// HTTP read API
	ListenAddr    string
	OIDCAudience  string
	AdminEmails   []string
	BypassAuth    bool
}

// DefaultConfig mirrors the defaults of the original prototype's
// environment-variable-backed config.
func DefaultConfig() Config {
	return Config{
		RetailerAPIURL:             "https://api.retailer.example.com/v1",
		WeatherAPIURL:              "https://api.weather.example.com/v1/forecast",
		WholesaleAPIURL:            "https://api.wholesale.example.com/v1/dispatch",
		Latitude:                   -33.8688,
		Longitude:                  151.2093,
		NEMRegion:                  "NSW1",
		BatteryCapacityKWH:         13.5,
		BatteryMaxChargeKW:         5.0,
		BatteryMaxDischargeKW:      5.0,
		BatteryRoundTripEfficiency: 0.9,
		BatteryMinSOCPct:           20,
		BatteryCycleCostCents:      5,
		ChargePriceThresholdCents:  8,
		SellPriceThresholdCents:    25,
		SpikeReserveSOCPct:         40,
		DecisionIntervalSeconds:    300,
		SolarEffectiveAreaM2:       20,
		SolarEfficiency:            0.15,
		UsageLearnDays:             30,
		BaseLoadPercentile:         10,
		SolarPeakPercentile:        90,
		ProfileMaxAgeHours:         24,
		LogLevel:                   "INFO",
		ListenAddr:                 ":8080",
	}
}
