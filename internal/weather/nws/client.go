package nws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rboeg/wx-info/internal/weather"
	"github.com/sony/gobreaker"
)

// DefaultBaseURL is the public NWS API endpoint.
const DefaultBaseURL = "https://api.weather.gov"

// Client fetches observations and station metadata from the NWS API.
type Client struct {
	baseURL   string
	userAgent string
	httpCfg   HTTPClientConfig
	circuit   *gobreaker.CircuitBreaker
}

// NewClient creates a Client against the given base URL (DefaultBaseURL
// when empty). userAgent identifies this application to the NWS API and is
// sent on every request, as the API terms require.
func NewClient(client *http.Client, baseURL, userAgent string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "nws",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: cb,
	}
}

// FetchObservations returns the raw observation features recorded for the
// station between start and end (RFC3339, inclusive on both ends as the
// API implements it). An empty feature list is a normal result, not an
// error.
func (c *Client) FetchObservations(ctx context.Context, stationID string, start, end time.Time) ([]weather.RawObservation, error) {
	values := url.Values{}
	values.Set("start", start.UTC().Format(time.RFC3339))
	values.Set("end", end.UTC().Format(time.RFC3339))
	u := fmt.Sprintf("%s/stations/%s/observations?%s", c.baseURL, url.PathEscape(stationID), values.Encode())

	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Features []struct {
			Properties weather.RawObservation `json:"properties"`
		} `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding observations for %s: %w", stationID, err)
	}

	observations := make([]weather.RawObservation, 0, len(payload.Features))
	for _, f := range payload.Features {
		observations = append(observations, f.Properties)
	}
	return observations, nil
}

// FetchStationMetadata returns canonical metadata for the station: its
// identifier, display name, IANA timezone and coordinates. Missing
// geometry yields nil coordinates rather than an error.
func (c *Client) FetchStationMetadata(ctx context.Context, stationID string) (weather.StationInfo, error) {
	resp, err := c.get(ctx, fmt.Sprintf("%s/stations/%s", c.baseURL, url.PathEscape(stationID)))
	if err != nil {
		return weather.StationInfo{}, err
	}
	defer resp.Body.Close()

	var payload stationFeature
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.StationInfo{}, fmt.Errorf("decoding station %s: %w", stationID, err)
	}
	return payload.toStationInfo(stationID), nil
}

// FetchStationsNear lists the observation stations serving the grid point
// that covers the given coordinates.
func (c *Client) FetchStationsNear(ctx context.Context, lat, lon float64) ([]weather.StationInfo, error) {
	resp, err := c.get(ctx, fmt.Sprintf("%s/points/%.4f,%.4f/stations", c.baseURL, lat, lon))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Features []stationFeature `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding stations near %.4f,%.4f: %w", lat, lon, err)
	}

	stations := make([]weather.StationInfo, 0, len(payload.Features))
	for _, f := range payload.Features {
		stations = append(stations, f.toStationInfo(""))
	}
	return stations, nil
}

// get issues a resilient GET against the NWS API.
func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/geo+json")
		return req, nil
	}

	return doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
}

// stationFeature is one station record as the NWS API returns it.
type stationFeature struct {
	Properties struct {
		StationIdentifier string `json:"stationIdentifier"`
		Name              string `json:"name"`
		TimeZone          string `json:"timeZone"`
	} `json:"properties"`
	Geometry *struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
}

// toStationInfo maps the feature onto StationInfo. GeoJSON orders
// coordinates longitude first. fallbackID fills in when the payload
// carries no identifier.
func (f stationFeature) toStationInfo(fallbackID string) weather.StationInfo {
	info := weather.StationInfo{
		ID:       f.Properties.StationIdentifier,
		Name:     f.Properties.Name,
		Timezone: f.Properties.TimeZone,
	}
	if info.ID == "" {
		info.ID = fallbackID
	}
	if f.Geometry != nil && len(f.Geometry.Coordinates) >= 2 {
		lon, lat := f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]
		info.Longitude = &lon
		info.Latitude = &lat
	}
	return info
}
