package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	httpapi "github.com/rboeg/wx-info/internal/api/http"
	"github.com/rboeg/wx-info/internal/config"
	"github.com/rboeg/wx-info/internal/discovery"
	"github.com/rboeg/wx-info/internal/metrics"
	"github.com/rboeg/wx-info/internal/pipeline"
	"github.com/rboeg/wx-info/internal/scheduler"
	"github.com/rboeg/wx-info/internal/store"
	"github.com/rboeg/wx-info/internal/weather/nws"
)

func main() {
	zlog, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer zlog.Sync()

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal("failed to load config", zap.Error(err))
	}

	// Shared HTTP client for outbound API calls.
	httpClient := &http.Client{
		Timeout: cfg.FetchTimeout,
	}

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		zlog.Fatal("failed to open database", zap.Error(err), zap.String("path", cfg.DatabasePath))
	}
	defer db.Close()

	repo := store.New(db, cfg.StoreTimeout)
	engine := metrics.New(db, cfg.StoreTimeout)
	source := nws.NewClient(httpClient, cfg.SourceBaseURL, cfg.SourceUserAgent)
	pipe := pipeline.New(source, repo, zlog, cfg.LookbackWindow)
	disc := discovery.New(source, cfg.GeocoderAPIKey)

	startupCtx, cancel := context.WithTimeout(context.Background(), store.DefaultTimeout)
	if repo.CheckReachable(startupCtx) {
		zlog.Info("database reachable", zap.String("path", cfg.DatabasePath))
	} else {
		zlog.Warn("database not reachable at startup", zap.String("path", cfg.DatabasePath))
	}
	cancel()

	// Scheduler that periodically runs the pipeline.
	sched := scheduler.New(cfg.Stations, cfg.SchedulerInterval, pipe, zlog)
	if err := sched.Start(); err != nil {
		zlog.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "wx-info",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// Trigger responses wait for the full pipeline run.
		WriteTimeout: 5 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Liveness endpoint; readiness lives under the API and checks the database.
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "wx-info",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Runner:          pipe,
		Analytics:       engine,
		Health:          repo,
		Discovery:       disc,
		DefaultStations: cfg.Stations,
	})

	go func() {
		zlog.Info("listening", zap.String("port", cfg.Port))
		if err := app.Listen(":" + cfg.Port); err != nil {
			zlog.Error("fiber server stopped", zap.Error(err))
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		zlog.Error("error during shutdown", zap.Error(err))
	}
}
