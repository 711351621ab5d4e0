package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/rboeg/wx-info/internal/weather"
)

type stubFinder struct{}

func (stubFinder) FetchStationsNear(context.Context, float64, float64) ([]weather.StationInfo, error) {
	return nil, nil
}

func TestDiscoverStationsWithoutAPIKey(t *testing.T) {
	s := New(stubFinder{}, "")

	_, err := s.DiscoverStations(context.Background(), "Atlanta", "US")
	if !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
}
