// Package discovery resolves a place name to nearby observation stations.
package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/kelvins/geocoder"

	"github.com/rboeg/wx-info/internal/weather"
)

// ErrNoAPIKey is returned when discovery is used without a geocoding key.
var ErrNoAPIKey = errors.New("geocoder api key is not configured")

// StationFinder lists stations around a coordinate.
type StationFinder interface {
	FetchStationsNear(ctx context.Context, lat, lon float64) ([]weather.StationInfo, error)
}

// Service geocodes city and country to a coordinate and asks the finder
// for stations around it.
type Service struct {
	finder StationFinder
	apiKey string
}

// New creates a discovery Service. An empty apiKey leaves the service
// constructed but unusable; DiscoverStations reports ErrNoAPIKey.
func New(finder StationFinder, apiKey string) *Service {
	return &Service{finder: finder, apiKey: apiKey}
}

// DiscoverStations returns the observation stations near the given place.
func (s *Service) DiscoverStations(ctx context.Context, city, country string) ([]weather.StationInfo, error) {
	if s.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	geocoder.ApiKey = s.apiKey
	location, err := geocoder.Geocoding(geocoder.Address{City: city, Country: country})
	if err != nil {
		return nil, fmt.Errorf("geocoding %s, %s: %w", city, country, err)
	}

	return s.finder.FetchStationsNear(ctx, location.Latitude, location.Longitude)
}
