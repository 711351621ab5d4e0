package httpapi

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/rboeg/wx-info/internal/discovery"
	"github.com/rboeg/wx-info/internal/metrics"
	"github.com/rboeg/wx-info/internal/pipeline"
	"github.com/rboeg/wx-info/internal/store"
	"github.com/rboeg/wx-info/internal/weather"
)

var validate = validator.New()

// PipelineRunner triggers an ingestion run for the given stations.
type PipelineRunner interface {
	Run(ctx context.Context, stationIDs []string) pipeline.Report
}

// Analytics serves the reporting queries.
type Analytics interface {
	WeeklyAverageTemperature(ctx context.Context) ([]metrics.TemperatureAverage, error)
	MaxWindSpeedChange(ctx context.Context) ([]metrics.WindSpeedChange, error)
}

// HealthChecker reports whether the database answers queries.
type HealthChecker interface {
	CheckReachable(ctx context.Context) bool
}

// StationDiscoverer finds observation stations near a place name.
type StationDiscoverer interface {
	DiscoverStations(ctx context.Context, city, country string) ([]weather.StationInfo, error)
}

// Deps bundles everything the handlers need.
type Deps struct {
	Runner          PipelineRunner
	Analytics       Analytics
	Health          HealthChecker
	Discovery       StationDiscoverer
	DefaultStations []string
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	v1 := app.Group("/api/v1")

	v1.Post("/pipeline/run", func(c *fiber.Ctx) error {
		stationIDs, err := resolveStations(c, deps.DefaultStations)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		report := deps.Runner.Run(c.UserContext(), stationIDs)
		return c.JSON(report)
	})

	v1.Get("/metrics/average-temperature", func(c *fiber.Ctx) error {
		results, err := deps.Analytics.WeeklyAverageTemperature(c.UserContext())
		if err != nil {
			return analyticsError(err)
		}
		return c.JSON(fiber.Map{"results": results})
	})

	v1.Get("/metrics/max-wind-speed-change", func(c *fiber.Ctx) error {
		results, err := deps.Analytics.MaxWindSpeedChange(c.UserContext())
		if err != nil {
			return analyticsError(err)
		}
		return c.JSON(fiber.Map{"results": results})
	})

	v1.Get("/health", func(c *fiber.Ctx) error {
		if !deps.Health.CheckReachable(c.UserContext()) {
			return fiber.NewError(fiber.StatusServiceUnavailable, "database not reachable")
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1.Get("/stations/discover", func(c *fiber.Ctx) error {
		q, err := parseDiscoverQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		stations, err := deps.Discovery.DiscoverStations(c.UserContext(), q.City, q.Country)
		if err != nil {
			if errors.Is(err, discovery.ErrNoAPIKey) {
				return fiber.NewError(fiber.StatusServiceUnavailable, "station discovery is not configured")
			}
			return fiber.NewError(fiber.StatusBadGateway, "failed to discover stations")
		}

		return c.JSON(fiber.Map{"stations": stations})
	})
}

// runRequest is the optional body of the pipeline trigger.
type runRequest struct {
	StationIDs []string `json:"station_ids" validate:"omitempty,dive,required"`
}

// resolveStations decides which stations a trigger request targets: the
// ones in the body when given, the configured defaults otherwise. A body
// with an explicitly empty list is rejected rather than silently falling
// back to the defaults.
func resolveStations(c *fiber.Ctx, defaults []string) ([]string, error) {
	stationIDs := defaults

	if len(c.Body()) > 0 {
		var req runRequest
		if err := c.BodyParser(&req); err != nil {
			return nil, errors.New("invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return nil, err
		}
		if req.StationIDs != nil {
			if len(req.StationIDs) == 0 {
				return nil, errors.New("station_ids must not be empty")
			}
			stationIDs = req.StationIDs
		}
	}

	if len(stationIDs) == 0 {
		return nil, errors.New("no stations requested and no default stations configured")
	}
	return stationIDs, nil
}

func analyticsError(err error) error {
	if errors.Is(err, store.ErrUnreachable) {
		return fiber.NewError(fiber.StatusServiceUnavailable, "database not reachable")
	}
	return fiber.NewError(fiber.StatusInternalServerError, "failed to compute metrics")
}

// discoverQuery holds query parameters for the discovery endpoint.
type discoverQuery struct {
	City    string `validate:"required"`
	Country string `validate:"required"`
}

func parseDiscoverQuery(c *fiber.Ctx) (discoverQuery, error) {
	var q discoverQuery

	q.City = c.Query("city")
	q.Country = c.Query("country")

	if err := validate.Struct(q); err != nil {
		return q, err
	}

	return q, nil
}
