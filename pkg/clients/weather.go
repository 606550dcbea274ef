package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jameshartig/gridpilot/pkg/retry"
	"github.com/jameshartig/gridpilot/pkg/types"
)

// Weather is a client for the hourly irradiance/solar forecast API.
type Weather struct {
	apiURL    string
	latitude  float64
	longitude float64
	areaM2    float64
	efficiency float64
	client    *http.Client
}

// NewWeather constructs a Weather client for the given coordinates. areaM2
// and efficiency parameterise the affine solar model
// kW = irradiance * areaM2 * efficiency / 1000.
func NewWeather(apiURL string, latitude, longitude, areaM2, efficiency float64) *Weather {
	if areaM2 <= 0 {
		areaM2 = 20
	}
	if efficiency <= 0 {
		efficiency = 0.15
	}
	return &Weather{
		apiURL:     apiURL,
		latitude:   latitude,
		longitude:  longitude,
		areaM2:     areaM2,
		efficiency: efficiency,
		client:     &http.Client{Timeout: requestTimeout},
	}
}

// Validate reports whether the client has usable coordinates.
func (w *Weather) Validate() error {
	if w.latitude == 0 && w.longitude == 0 {
		return fmt.Errorf("weather: missing coordinates")
	}
	return nil
}

type weatherResponse struct {
	Hourly struct {
		Time            []string  `json:"time"`
		DirectRadiation []float64 `json:"direct_radiation"`
		CloudCover      []float64 `json:"cloud_cover"`
		Temperature2m   []float64 `json:"temperature_2m"`
	} `json:"hourly"`
}

// GetSolarForecast returns the next forecastHours of hourly solar
// generation forecast, derived from direct radiation via the affine model.
func (w *Weather) GetSolarForecast(ctx context.Context, forecastHours int) ([]types.SolarForecast, error) {
	url := fmt.Sprintf(
		"%s/forecast?latitude=%f&longitude=%f&hourly=direct_radiation,cloud_cover,temperature_2m&forecast_hours=%d&timezone=auto",
		w.apiURL, w.latitude, w.longitude, forecastHours,
	)

	var resp weatherResponse
	err := retry.Do(ctx, retry.Options{}, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		r, err := w.client.Do(req)
		if err != nil {
			return err
		}
		defer r.Body.Close()
		if r.StatusCode == http.StatusTooManyRequests {
			return &retry.StatusError{StatusCode: r.StatusCode}
		}
		if r.StatusCode < 200 || r.StatusCode >= 300 {
			return &retry.StatusError{StatusCode: r.StatusCode}
		}
		return json.NewDecoder(r.Body).Decode(&resp)
	})
	if err != nil {
		return nil, err
	}

	out := make([]types.SolarForecast, 0, len(resp.Hourly.Time))
	for i, ts := range resp.Hourly.Time {
		t, err := time.Parse("2006-01-02T15:04", ts)
		if err != nil {
			continue
		}
		var irradiance, cloud, temp float64
		if i < len(resp.Hourly.DirectRadiation) {
			irradiance = resp.Hourly.DirectRadiation[i]
		}
		if i < len(resp.Hourly.CloudCover) {
			cloud = resp.Hourly.CloudCover[i]
		}
		if i < len(resp.Hourly.Temperature2m) {
			temp = resp.Hourly.Temperature2m[i]
		}
		out = append(out, types.SolarForecast{
			Timestamp:     t,
			GenerationKW:  SolarKW(irradiance, w.areaM2, w.efficiency),
			CloudCoverPct: cloud,
			TemperatureC:  temp,
		})
	}
	return out, nil
}

// SolarKW derives generation in kW from direct radiation in W/m^2 using the
// fixed affine model kW = irradiance * areaM2 * efficiency / 1000.
func SolarKW(irradianceWM2, areaM2, efficiency float64) float64 {
	if irradianceWM2 <= 0 {
		return 0
	}
	return irradianceWM2 * areaM2 * efficiency / 1000
}

// Close releases client resources.
func (w *Weather) Close() error {
	return nil
}
