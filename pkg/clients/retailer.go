// Package clients implements the thin, stateless HTTP adapters to the
// retailer prices/usage API, the weather forecast API, and the wholesale
// market summary API. Every client parses responses into the typed
// entities of pkg/types; unknown enum values degrade to neutral/default
// instead of failing the request.
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

const requestTimeout = 15 * time.Second

// Retailer is a client for the dynamic-price retailer's prices and usage
// API.
type Retailer struct {
	apiURL string
	token  string
	siteID string
	client *http.Client
}

// NewRetailer constructs a Retailer client for the given site.
func NewRetailer(apiURL, token, siteID string) *Retailer {
	return &Retailer{
		apiURL: apiURL,
		token:  token,
		siteID: siteID,
		client: &http.Client{Timeout: requestTimeout},
	}
}

// Validate reports whether the client has the credentials it needs to
// operate.
func (r *Retailer) Validate() error {
	if r.token == "" {
		return fmt.Errorf("retailer: missing api token")
	}
	if r.siteID == "" {
		return fmt.Errorf("retailer: missing site id")
	}
	return nil
}

type retailerPriceRecord struct {
	Type             string  `json:"type"`
	Date             string  `json:"date"`
	NEMTime          string  `json:"nemTime"`
	StartTime        string  `json:"startTime"`
	EndTime          string  `json:"endTime"`
	PerKWH           float64 `json:"perKwh"`
	SpotPerKWH       float64 `json:"spotPerKwh"`
	Channel          string  `json:"channelType"`
	SpikeStatus      string  `json:"spikeStatus"`
	Descriptor       string  `json:"descriptor"`
	RenewablesPct    float64 `json:"renewables"`
	TariffPeriod     string  `json:"tariffInformation,omitempty"`
	EstimateFlag     bool    `json:"estimate"`
}

func parsePriceRecord(rec retailerPriceRecord) types.PriceInterval {
	start, err := time.Parse(time.RFC3339, rec.StartTime)
	if err != nil {
		start = time.Time{}
	}
	end, err := time.Parse(time.RFC3339, rec.EndTime)
	if err != nil {
		end = start.Add(5 * time.Minute)
	}

	interval := types.PriceInterval{
		Timestamp:       start,
		EndTime:         end,
		PerKWHCents:     rec.PerKWH,
		SpotPerKWHCents: rec.SpotPerKWH,
		Channel:         parseChannel(rec.Channel),
		SpikeStatus:     parseSpikeStatus(rec.SpikeStatus),
		Descriptor:      types.DescriptorFromString(rec.Descriptor),
		RenewablesPct:   rec.RenewablesPct,
		DurationMinutes: 5,
		IntervalType:    parseIntervalType(rec.Type),
		IsEstimate:      rec.EstimateFlag,
	}
	if rec.TariffPeriod != "" {
		tp := parseTariffPeriod(rec.TariffPeriod)
		interval.Tariff = &tp
	}
	return interval
}

func parseChannel(s string) types.PriceChannel {
	switch s {
	case "feedIn", "feed_in":
		return types.ChannelFeedIn
	case "controlledLoad", "controlled_load":
		return types.ChannelControlledLoad
	default:
		return types.ChannelGeneral
	}
}

func parseSpikeStatus(s string) types.SpikeStatus {
	switch s {
	case "potential":
		return types.SpikePotential
	case "spike", "actual":
		return types.SpikeActual
	default:
		return types.SpikeNone
	}
}

func parseIntervalType(s string) types.IntervalType {
	switch s {
	case "ActualInterval", "actual":
		return types.IntervalActual
	case "CurrentInterval", "current":
		return types.IntervalCurrent
	default:
		return types.IntervalForecast
	}
}

func parseTariffPeriod(s string) types.TariffPeriod {
	switch s {
	case "shoulder":
		return types.TariffShoulder
	case "peak":
		return types.TariffPeak
	default:
		return types.TariffOffPeak
	}
}

// GetCurrentPrices returns the current-tick price intervals on every
// channel.
func (r *Retailer) GetCurrentPrices(ctx context.Context) ([]types.PriceInterval, error) {
	var records []retailerPriceRecord
	url := fmt.Sprintf("%s/sites/%s/prices/current", r.apiURL, r.siteID)
	err := retry.Do(ctx, retry.Options{}, func(ctx context.Context) error {
		return r.getJSON(ctx, url, &records)
	})
	if err != nil {
		return nil, err
	}
	out := make([]types.PriceInterval, 0, len(records))
	for _, rec := range records {
		out = append(out, parsePriceRecord(rec))
	}
	return out, nil
}

// GetPriceForecast returns the 5-minute price series over the next
// forecastHours, spanning actual, current, and forecast intervals.
func (r *Retailer) GetPriceForecast(ctx context.Context, forecastHours int) ([]types.PriceInterval, error) {
	var records []retailerPriceRecord
	url := fmt.Sprintf("%s/sites/%s/prices?next=%d", r.apiURL, r.siteID, forecastHours)
	err := retry.Do(ctx, retry.Options{}, func(ctx context.Context) error {
		return r.getJSON(ctx, url, &records)
	})
	if err != nil {
		return nil, err
	}
	out := make([]types.PriceInterval, 0, len(records))
	for _, rec := range records {
		out = append(out, parsePriceRecord(rec))
	}
	return out, nil
}

type retailerUsageRecord struct {
	ChannelID   string  `json:"channelIdentifier"`
	Channel     string  `json:"channelType"`
	StartTime   string  `json:"startTime"`
	EndTime     string  `json:"endTime"`
	KWH         float64 `json:"kwh"`
	CostCents   float64 `json:"cost"`
	PerKWH      float64 `json:"perKwh"`
	SpotPerKWH  float64 `json:"spotPerKwh"`
	SpikeStatus string  `json:"spikeStatus"`
	Descriptor  string  `json:"descriptor"`
	Renewables  float64 `json:"renewables"`
	Quality     string  `json:"quality"`
}

// GetUsage returns 5-minute metered usage intervals for the date range
// [start, end).
func (r *Retailer) GetUsage(ctx context.Context, start, end time.Time) ([]types.UsageInterval, error) {
	var records []retailerUsageRecord
	url := fmt.Sprintf("%s/sites/%s/usage?startDate=%s&endDate=%s", r.apiURL, r.siteID,
		start.Format("2006-01-02"), end.Format("2006-01-02"))
	err := retry.Do(ctx, retry.Options{}, func(ctx context.Context) error {
		return r.getJSON(ctx, url, &records)
	})
	if err != nil {
		return nil, err
	}
	out := make([]types.UsageInterval, 0, len(records))
	for _, rec := range records {
		ts, _ := time.Parse(time.RFC3339, rec.StartTime)
		endTs, err := time.Parse(time.RFC3339, rec.EndTime)
		if err != nil {
			endTs = ts.Add(5 * time.Minute)
		}
		quality := types.QualityBillable
		if rec.Quality == "estimated" {
			quality = types.QualityEstimated
		}
		out = append(out, types.UsageInterval{
			Timestamp:       ts,
			EndTime:         endTs,
			Channel:         parseChannel(rec.Channel),
			ChannelID:       rec.ChannelID,
			KWH:             rec.KWH,
			CostCents:       rec.CostCents,
			PerKWHCents:     rec.PerKWH,
			SpotPerKWHCents: rec.SpotPerKWH,
			SpikeStatus:     parseSpikeStatus(rec.SpikeStatus),
			Descriptor:      types.DescriptorFromString(rec.Descriptor),
			RenewablesPct:   rec.Renewables,
			Quality:         quality,
		})
	}
	return out, nil
}

func (r *Retailer) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+r.token)

	resp, err := r.client.Do(req)
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
	return json.NewDecoder(resp.Body).Decode(out)
}

// Close releases client resources. The stdlib http.Client keeps its
// transport alive across requests; nothing to release explicitly, but the
// method exists so Retailer satisfies the same Close contract as the
// other clients.
func (r *Retailer) Close() error {
	return nil
}
