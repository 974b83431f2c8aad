package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/enviro-quality-etl/internal/domain"
	"github.com/couchcryptid/enviro-quality-etl/internal/observability"
)

// Client implements domain.StationLocator using the OpenWeather geocoding API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an OpenWeather geocoding client.
func NewClient(apiKey string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.openweathermap.org/geo/1.0/direct",
		metrics: metrics,
		logger:  logger,
	}
}

// Locate converts a location name to coordinates. A name the API does not
// know yields a zero StationLocation and no error.
func (c *Client) Locate(ctx context.Context, name string) (domain.StationLocation, error) {
	params := url.Values{
		"q":     {name},
		"limit": {"1"},
		"appid": {c.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.StationLocation{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.LocatorRequests.WithLabelValues("error").Inc()
		return domain.StationLocation{}, fmt.Errorf("locate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.LocatorRequests.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(resp.Body)
		return domain.StationLocation{}, fmt.Errorf("geocoding API error: status %d: %s", resp.StatusCode, body)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		c.metrics.LocatorRequests.WithLabelValues("error").Inc()
		return domain.StationLocation{}, fmt.Errorf("decode response: %w", err)
	}

	if len(places) == 0 {
		c.metrics.LocatorRequests.WithLabelValues("empty").Inc()
		return domain.StationLocation{}, nil
	}

	c.metrics.LocatorRequests.WithLabelValues("success").Inc()
	p := places[0]
	return domain.StationLocation{
		Lat:     p.Lat,
		Lon:     p.Lon,
		Name:    p.Name,
		Country: p.Country,
	}, nil
}

// place is one entry of the OpenWeather direct geocoding response.
type place struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
	State   string  `json:"state"`
}
