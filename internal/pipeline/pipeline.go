// Package pipeline ingests station observations incrementally: it fetches
// everything newer than the stored watermark, normalizes it, and upserts it.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rboeg/wx-info/internal/weather"
)

// Source fetches raw observations and station metadata from the upstream API.
type Source interface {
	FetchObservations(ctx context.Context, stationID string, start, end time.Time) ([]weather.RawObservation, error)
	FetchStationMetadata(ctx context.Context, stationID string) (weather.StationInfo, error)
}

// Repository persists stations and observations.
type Repository interface {
	EnsureSchema(ctx context.Context) error
	Watermark(ctx context.Context, stationID string) (time.Time, bool, error)
	UpsertStation(ctx context.Context, station weather.StationInfo) error
	UpsertObservations(ctx context.Context, observations []weather.Observation) (int, error)
}

// Status describes how a single station run ended.
type Status string

const (
	StatusOK        Status = "ok"
	StatusNoNewData Status = "no_new_data"
	StatusFailed    Status = "failed"
)

// StationResult is the outcome of one station within a run.
type StationResult struct {
	StationID     string    `json:"station_id"`
	Status        Status    `json:"status"`
	UpsertedCount int       `json:"upserted_count"`
	Error         string    `json:"error,omitempty"`
	WindowStart   time.Time `json:"window_start"`
	WindowEnd     time.Time `json:"window_end"`
}

// Report is the outcome of a full run across all requested stations,
// including the log lines the run produced.
type Report struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Results    []StationResult `json:"results"`
	Log        []string        `json:"log"`
}

// DefaultLookback is the bootstrap window used when a station has no
// stored observations yet.
const DefaultLookback = 7 * 24 * time.Hour

// Pipeline coordinates one source and one repository.
type Pipeline struct {
	source   Source
	repo     Repository
	logger   *zap.Logger
	lookback time.Duration
	now      func() time.Time
}

// New creates a Pipeline. A nil logger disables logging and a
// non-positive lookback falls back to DefaultLookback.
func New(source Source, repo Repository, logger *zap.Logger, lookback time.Duration) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Pipeline{
		source:   source,
		repo:     repo,
		logger:   logger,
		lookback: lookback,
		now:      time.Now,
	}
}

// Run processes every station in order and always returns a Report; one
// station failing never prevents the remaining stations from running.
func (p *Pipeline) Run(ctx context.Context, stationIDs []string) Report {
	report := Report{
		RunID:     uuid.NewString(),
		StartedAt: p.now().UTC(),
		Results:   make([]StationResult, 0, len(stationIDs)),
	}

	buf := &bytes.Buffer{}
	logger := p.runLogger(buf).With(zap.String("run_id", report.RunID))
	logger.Info("pipeline run started", zap.Int("stations", len(stationIDs)))

	for _, stationID := range stationIDs {
		report.Results = append(report.Results, p.runStation(ctx, logger, stationID))
	}

	report.FinishedAt = p.now().UTC()
	report.Log = bufferLines(buf)
	return report
}

// runStation processes a single station. A panic inside the source or the
// repository is converted into a failed result so the batch keeps going.
func (p *Pipeline) runStation(ctx context.Context, logger *zap.Logger, stationID string) (result StationResult) {
	result = StationResult{StationID: stationID, Status: StatusOK}
	logger = logger.With(zap.String("station_id", stationID))

	defer func() {
		if r := recover(); r != nil {
			result.Status = StatusFailed
			result.Error = fmt.Sprintf("panic: %v", r)
			logger.Error("station run panicked", zap.Any("panic", r))
		}
	}()

	if err := p.repo.EnsureSchema(ctx); err != nil {
		return fail(logger, result, "ensuring schema", err)
	}

	watermark, found, err := p.repo.Watermark(ctx, stationID)
	if err != nil {
		return fail(logger, result, "reading watermark", err)
	}

	end := p.now().UTC()
	var start time.Time
	if found {
		// Start one second past the watermark so the boundary
		// observation is not fetched again.
		start = watermark.Add(time.Second)
		logger.Info("fetching new data since last observation",
			zap.Time("window_start", start), zap.Time("window_end", end))
	} else {
		start = end.Add(-p.lookback)
		logger.Info("no previous data found, fetching bootstrap window",
			zap.Time("window_start", start), zap.Time("window_end", end))
	}
	result.WindowStart = start
	result.WindowEnd = end

	raw, err := p.source.FetchObservations(ctx, stationID, start, end)
	if err != nil {
		return fail(logger, result, "fetching observations", err)
	}
	if len(raw) == 0 {
		logger.Info("no new observations to process")
		result.Status = StatusNoNewData
		return result
	}

	station, err := p.source.FetchStationMetadata(ctx, stationID)
	if err != nil {
		return fail(logger, result, "fetching station metadata", err)
	}

	observations := weather.Flatten(raw)
	if len(observations) == 0 {
		logger.Info("no new observations to process")
		result.Status = StatusNoNewData
		return result
	}

	if err := p.repo.UpsertStation(ctx, station); err != nil {
		return fail(logger, result, "upserting station", err)
	}

	count, err := p.repo.UpsertObservations(ctx, observations)
	if err != nil {
		return fail(logger, result, "upserting observations", err)
	}

	result.UpsertedCount = count
	logger.Info("upserted observations", zap.Int("count", count))
	return result
}

func fail(logger *zap.Logger, result StationResult, step string, err error) StationResult {
	logger.Error("station run failed", zap.String("step", step), zap.Error(err))
	result.Status = StatusFailed
	result.Error = fmt.Sprintf("%s: %v", step, err)
	return result
}

// runLogger tees the pipeline logger with a buffer-backed core so the
// Report can carry the lines this run emitted. The captured encoder has
// no time key, keeping the lines stable for callers that compare them.
func (p *Pipeline) runLogger(buf *bytes.Buffer) *zap.Logger {
	encoderCfg := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
	}
	captured := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.AddSync(buf),
		zapcore.InfoLevel,
	)
	return zap.New(zapcore.NewTee(p.logger.Core(), captured))
}

func bufferLines(buf *bytes.Buffer) []string {
	out := strings.TrimRight(buf.String(), "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}
