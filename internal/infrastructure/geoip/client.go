package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client resolves an IP address to coarse coordinates via an external
// JSON API. Strictly best-effort enrichment: callers degrade gracefully
// when a lookup fails.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Result is a coarse, city-level position for an IP address.
type Result struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	City      string  `json:"city"`
	Country   string  `json:"country"`
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

// Lookup resolves ip. An empty ip asks the provider to resolve the caller's
// own public address.
func (c *Client) Lookup(ctx context.Context, ip string) (*Result, error) {
	endpoint := c.baseURL
	if ip != "" {
		endpoint = fmt.Sprintf("%s/%s", c.baseURL, url.PathEscape(ip))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build geoip request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geoip request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geoip provider returned status %d", resp.StatusCode)
	}

	// ip-api.com response shape; "status" is "success" or "fail".
	var payload struct {
		Status  string  `json:"status"`
		Message string  `json:"message"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
		City    string  `json:"city"`
		Country string  `json:"country"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode geoip response: %w", err)
	}
	if payload.Status != "success" {
		return nil, fmt.Errorf("geoip lookup failed: %s", payload.Message)
	}

	return &Result{
		Latitude:  payload.Lat,
		Longitude: payload.Lon,
		City:      payload.City,
		Country:   payload.Country,
	}, nil
}
