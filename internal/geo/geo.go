// Package geo resolves visitor IPs to coarse locations via ipapi.co.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://ipapi.co"

// Location is the subset of the lookup response the relay stores.
type Location struct {
	Country string  `json:"country_name"`
	City    string  `json:"city"`
	Lat     float64 `json:"latitude"`
	Lon     float64 `json:"longitude"`
}

// Client queries the geolocation service.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient() *Client {
	return &Client{
		BaseURL: defaultBaseURL,
		HTTP:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Lookup resolves one IP. Callers treat any error as "no location"; the
// visit record is stored either way.
func (c *Client) Lookup(ctx context.Context, ip string) (*Location, error) {
	url := fmt.Sprintf("%s/%s/json/", strings.TrimRight(c.BaseURL, "/"), ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geo: HTTP %d", resp.StatusCode)
	}

	var loc Location
	if err := json.NewDecoder(resp.Body).Decode(&loc); err != nil {
		return nil, err
	}
	return &loc, nil
}
