package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWholesaleGetGridState(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"REGIONID":"NSW1","TOTALDEMAND":8000,"PRICE":65.4,"NETINTERCHANGE":-120,"SOLAR":600,"WIND":400},
			{"REGIONID":"VIC1","TOTALDEMAND":5000,"PRICE":45.0,"NETINTERCHANGE":50,"SOLAR":200,"WIND":300}
		]`))
	}))
	defer ts.Close()

	c := &Wholesale{apiURL: ts.URL, region: "NSW1", client: ts.Client()}
	state, err := c.GetGridState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "NSW1", state.Region)
	assert.Equal(t, 8000.0, state.DemandMW)
	assert.Equal(t, 65.4, state.WholesalePriceAUDPerMWH)
	assert.InDelta(t, 12.5, state.RenewablesPct, 1e-9)
}

func TestWholesaleUnknownRegionYieldsZeroValue(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"REGIONID":"QLD1","TOTALDEMAND":100,"PRICE":1,"NETINTERCHANGE":0,"SOLAR":0,"WIND":0}]`))
	}))
	defer ts.Close()

	c := &Wholesale{apiURL: ts.URL, region: "NSW1", client: ts.Client()}
	state, err := c.GetGridState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, state.DemandMW)
}
