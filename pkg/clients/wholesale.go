package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jameshartig/gridpilot/pkg/retry"
	"github.com/jameshartig/gridpilot/pkg/types"
)

// Wholesale is a client for the public wholesale market region-summary
// feed.
type Wholesale struct {
	apiURL string
	region string
	client *http.Client
}

// NewWholesale constructs a Wholesale client for the given market region.
func NewWholesale(apiURL, region string) *Wholesale {
	return &Wholesale{
		apiURL: apiURL,
		region: region,
		client: &http.Client{Timeout: requestTimeout},
	}
}

// Validate always succeeds: the wholesale feed is informational, so a
// missing region is not treated as an error.
func (w *Wholesale) Validate() error {
	if w.region == "" {
		return nil // the wholesale feed is informational, not critical
	}
	return nil
}

type wholesaleRegionSummary struct {
	RegionID          string  `json:"REGIONID"`
	TotalDemand       float64 `json:"TOTALDEMAND"`
	Price             float64 `json:"PRICE"`
	NetInterchange    float64 `json:"NETINTERCHANGE"`
	Solar             float64 `json:"SOLAR"`
	Wind              float64 `json:"WIND"`
}

// GetGridState returns the current grid state for the configured region.
func (w *Wholesale) GetGridState(ctx context.Context) (types.GridState, error) {
	var summaries []wholesaleRegionSummary
	err := retry.Do(ctx, retry.Options{}, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.apiURL, nil)
		if err != nil {
			return err
		}
		resp, err := w.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			return &retry.StatusError{StatusCode: resp.StatusCode}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &retry.StatusError{StatusCode: resp.StatusCode}
		}
		return json.NewDecoder(resp.Body).Decode(&summaries)
	})
	if err != nil {
		return types.GridState{}, err
	}

	var region wholesaleRegionSummary
	for _, s := range summaries {
		if s.RegionID == w.region {
			region = s
			break
		}
	}

	return types.GridState{
		Timestamp:               time.Now(),
		Region:                  w.region,
		DemandMW:                region.TotalDemand,
		WholesalePriceAUDPerMWH: region.Price,
		RenewablesPct:           renewablesPct(region),
		InterconnectorFlowMW:    region.NetInterchange,
	}, nil
}

func renewablesPct(s wholesaleRegionSummary) float64 {
	total := s.TotalDemand
	if total <= 0 {
		return 0
	}
	pct := (s.Solar + s.Wind) / total * 100
	return pct
}

// Close releases client resources.
func (w *Wholesale) Close() error {
	return nil
}
