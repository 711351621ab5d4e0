package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/rboeg/wx-info/internal/pipeline"
)

// Runner triggers an ingestion run for the given stations.
type Runner interface {
	Run(ctx context.Context, stationIDs []string) pipeline.Report
}

// Scheduler periodically runs the ingestion pipeline for configured stations.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	stations  []string
	interval  time.Duration
	logger    *zap.Logger
}

// New creates a new Scheduler.
func New(stations []string, interval time.Duration, runner Runner, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		runner:    runner,
		stations:  stations,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.stations) == 0 || s.interval <= 0 {
		s.logger.Info("scheduler disabled, no stations or no interval configured")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		report := s.runner.Run(ctx, s.stations)

		var ok, noNewData, failed int
		for _, r := range report.Results {
			switch r.Status {
			case pipeline.StatusOK:
				ok++
			case pipeline.StatusNoNewData:
				noNewData++
			case pipeline.StatusFailed:
				failed++
			}
		}
		s.logger.Info("scheduled pipeline run finished",
			zap.String("run_id", report.RunID),
			zap.Int("ok", ok),
			zap.Int("no_new_data", noNewData),
			zap.Int("failed", failed))
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
