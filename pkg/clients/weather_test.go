package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeatherGetSolarForecast(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hourly":{"time":["2024-01-26T12:00"],"direct_radiation":[500],"cloud_cover":[10],"temperature_2m":[28.5]}}`))
	}))
	defer ts.Close()

	c := &Weather{apiURL: ts.URL, latitude: -33.8, longitude: 151.2, areaM2: 20, efficiency: 0.15, client: ts.Client()}
	forecast, err := c.GetSolarForecast(context.Background(), 24)
	require.NoError(t, err)
	require.Len(t, forecast, 1)
	assert.InDelta(t, 1.5, forecast[0].GenerationKW, 1e-9)
	assert.Equal(t, 28.5, forecast[0].TemperatureC)
}

func TestSolarKWIsZeroWhenIrradianceZero(t *testing.T) {
	assert.Equal(t, 0.0, SolarKW(0, 20, 0.15))
	assert.Equal(t, 0.0, SolarKW(-5, 20, 0.15))
}

func TestSolarKWAffineModel(t *testing.T) {
	// 1000 W/m^2 * 20 m^2 * 0.15 / 1000 = 3.0 kW
	assert.InDelta(t, 3.0, SolarKW(1000, 20, 0.15), 1e-9)
}
