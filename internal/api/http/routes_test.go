package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/rboeg/wx-info/internal/discovery"
	"github.com/rboeg/wx-info/internal/metrics"
	"github.com/rboeg/wx-info/internal/pipeline"
	"github.com/rboeg/wx-info/internal/store"
	"github.com/rboeg/wx-info/internal/weather"
)

type fakeRunner struct {
	got []string
}

func (f *fakeRunner) Run(_ context.Context, stationIDs []string) pipeline.Report {
	f.got = stationIDs
	results := make([]pipeline.StationResult, 0, len(stationIDs))
	for _, id := range stationIDs {
		results = append(results, pipeline.StationResult{StationID: id, Status: pipeline.StatusOK, UpsertedCount: 1})
	}
	return pipeline.Report{RunID: "test-run", Results: results}
}

type fakeAnalytics struct {
	temps []metrics.TemperatureAverage
	winds []metrics.WindSpeedChange
	err   error
}

func (f *fakeAnalytics) WeeklyAverageTemperature(context.Context) ([]metrics.TemperatureAverage, error) {
	return f.temps, f.err
}

func (f *fakeAnalytics) MaxWindSpeedChange(context.Context) ([]metrics.WindSpeedChange, error) {
	return f.winds, f.err
}

type fakeHealth struct{ reachable bool }

func (f fakeHealth) CheckReachable(context.Context) bool { return f.reachable }

type fakeDiscovery struct {
	stations []weather.StationInfo
	err      error
}

func (f fakeDiscovery) DiscoverStations(context.Context, string, string) ([]weather.StationInfo, error) {
	return f.stations, f.err
}

func testDeps() (Deps, *fakeRunner) {
	runner := &fakeRunner{}
	return Deps{
		Runner:          runner,
		Analytics:       &fakeAnalytics{},
		Health:          fakeHealth{reachable: true},
		Discovery:       fakeDiscovery{},
		DefaultStations: []string{"KATL", "003PG"},
	}, runner
}

func newTestApp(deps Deps) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app, deps)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) *http.Response {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(http.MethodPost, path, nil)
	} else {
		req = httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return resp
}

func TestPipelineRunUsesDefaultStations(t *testing.T) {
	deps, runner := testDeps()
	app := newTestApp(deps)

	resp := postJSON(t, app, "/api/v1/pipeline/run", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	if len(runner.got) != 2 || runner.got[0] != "KATL" || runner.got[1] != "003PG" {
		t.Errorf("expected the default stations, got %v", runner.got)
	}

	var report pipeline.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if report.RunID != "test-run" || len(report.Results) != 2 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestPipelineRunWithExplicitStations(t *testing.T) {
	deps, runner := testDeps()
	app := newTestApp(deps)

	resp := postJSON(t, app, "/api/v1/pipeline/run", `{"station_ids": ["KSEA"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	if len(runner.got) != 1 || runner.got[0] != "KSEA" {
		t.Errorf("expected [KSEA], got %v", runner.got)
	}
}

func TestPipelineRunRejectsBadBodies(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"empty station list", `{"station_ids": []}`},
		{"blank station id", `{"station_ids": [""]}`},
		{"malformed json", `{"station_ids": `},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			deps, runner := testDeps()
			app := newTestApp(deps)

			resp := postJSON(t, app, "/api/v1/pipeline/run", tc.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
			}
			if runner.got != nil {
				t.Errorf("expected no pipeline run, got %v", runner.got)
			}
		})
	}
}

func TestPipelineRunWithoutAnyStations(t *testing.T) {
	deps, _ := testDeps()
	deps.DefaultStations = nil
	app := newTestApp(deps)

	resp := postJSON(t, app, "/api/v1/pipeline/run", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestAverageTemperatureEndpoint(t *testing.T) {
	deps, _ := testDeps()
	deps.Analytics = &fakeAnalytics{temps: []metrics.TemperatureAverage{{
		StationID:        "KATL",
		AvgTemperature:   15.25,
		FirstObservation: time.Date(2024, 1, 9, 6, 0, 0, 0, time.UTC),
		LastObservation:  time.Date(2024, 1, 13, 18, 0, 0, 0, time.UTC),
	}}}
	app := newTestApp(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics/average-temperature", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var body struct {
		Results []metrics.TemperatureAverage `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Results) != 1 || body.Results[0].AvgTemperature != 15.25 {
		t.Errorf("unexpected results: %+v", body.Results)
	}
}

func TestMaxWindSpeedChangeEndpoint(t *testing.T) {
	deps, _ := testDeps()
	deps.Analytics = &fakeAnalytics{winds: []metrics.WindSpeedChange{{
		StationID:          "KATL",
		MaxWindSpeedChange: 6,
		FirstObservation:   time.Date(2024, 1, 16, 11, 0, 0, 0, time.UTC),
		LastObservation:    time.Date(2024, 1, 16, 12, 0, 0, 0, time.UTC),
	}}}
	app := newTestApp(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics/max-wind-speed-change", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
}

func TestMetricsEndpointsReportDatabaseOutage(t *testing.T) {
	deps, _ := testDeps()
	deps.Analytics = &fakeAnalytics{err: store.ErrUnreachable}
	app := newTestApp(deps)

	for _, path := range []string{
		"/api/v1/metrics/average-temperature",
		"/api/v1/metrics/max-wind-speed-change",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("expected status %d for %s, got %d", http.StatusServiceUnavailable, path, resp.StatusCode)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	deps, _ := testDeps()
	app := newTestApp(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	deps.Health = fakeHealth{reachable: false}
	app = newTestApp(deps)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, resp.StatusCode)
	}
}

func TestDiscoverValidation(t *testing.T) {
	deps, _ := testDeps()
	app := newTestApp(deps)

	// Missing country parameter should return 400.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stations/discover?city=Atlanta", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestDiscoverNotConfigured(t *testing.T) {
	deps, _ := testDeps()
	deps.Discovery = fakeDiscovery{err: discovery.ErrNoAPIKey}
	app := newTestApp(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stations/discover?city=Atlanta&country=US", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, resp.StatusCode)
	}
}
