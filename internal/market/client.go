package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client fetches historical aggregate bars from a Polygon-style REST API.
// All fetching happens before a simulation pass, never during it.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a market data client.
func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// aggsResponse mirrors the aggregates endpoint payload.
type aggsResponse struct {
	Ticker       string      `json:"ticker"`
	ResultsCount int         `json:"resultsCount"`
	Status       string      `json:"status"`
	Results      []aggResult `json:"results"`
}

type aggResult struct {
	Timestamp int64   `json:"t"` // epoch millis, bar start
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
}

// timespan maps a timeframe onto the API's multiplier/timespan pair.
func timespan(tf Timeframe) (mult int, span string, err error) {
	switch tf {
	case TF15s:
		return 15, "second", nil
	case TF1m:
		return 1, "minute", nil
	case TF5m:
		return 5, "minute", nil
	case TF15m:
		return 15, "minute", nil
	case TF1h:
		return 1, "hour", nil
	case TF1d:
		return 1, "day", nil
	default:
		return 0, "", fmt.Errorf("unsupported timeframe %q", tf)
	}
}

// GetBars fetches aggregate bars for a ticker over [from, to]. The returned
// series is time-ordered; missing intervals are not synthesized.
func (c *Client) GetBars(ctx context.Context, ticker string, tf Timeframe, from, to time.Time) ([]Bar, error) {
	mult, span, err := timespan(tf)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("adjusted", "true")
	params.Set("sort", "asc")
	params.Set("limit", "50000")
	params.Set("apiKey", c.apiKey)

	endpoint := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/%d/%s/%d/%d?%s",
		c.baseURL, url.PathEscape(ticker), mult, span,
		from.UnixMilli(), to.UnixMilli(), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error building bars request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching bars: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("market data API error (%d): %s", resp.StatusCode, string(body))
	}

	var parsed aggsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("error parsing bars response: %w", err)
	}

	bars := make([]Bar, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		bars = append(bars, Bar{
			StartTime: time.UnixMilli(r.Timestamp).UTC(),
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.Volume,
		})
	}
	return bars, nil
}
