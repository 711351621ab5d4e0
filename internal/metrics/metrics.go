// Package metrics computes read-only analytics over stored observations.
package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rboeg/wx-info/internal/store"
)

// TemperatureAverage is the average temperature one station reported over
// the last completed calendar week.
type TemperatureAverage struct {
	StationID        string    `json:"station_id"`
	AvgTemperature   float64   `json:"avg_temperature"`
	FirstObservation time.Time `json:"first_observation"`
	LastObservation  time.Time `json:"last_observation"`
}

// WindSpeedChange is the largest wind speed swing between two consecutive
// observations of one station within the trailing seven days.
type WindSpeedChange struct {
	StationID          string    `json:"station_id"`
	MaxWindSpeedChange float64   `json:"max_wind_speed_change"`
	FirstObservation   time.Time `json:"first_observation"`
	LastObservation    time.Time `json:"last_observation"`
}

// Engine runs analytics queries against the observations database.
type Engine struct {
	db      *sql.DB
	timeout time.Duration
	now     func() time.Time
}

// New returns an Engine that bounds each query with the given timeout.
func New(db *sql.DB, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = store.DefaultTimeout
	}
	return &Engine{db: db, timeout: timeout, now: time.Now}
}

const weeklyAverageTemperatureSQL = `
SELECT
    station_id,
    ROUND(AVG(temperature), 2) AS avg_temperature,
    MIN(observation_timestamp) AS first_observation,
    MAX(observation_timestamp) AS last_observation
FROM observations
WHERE temperature IS NOT NULL
  AND observation_timestamp >= ?
  AND observation_timestamp < ?
GROUP BY station_id
ORDER BY station_id`

// WeeklyAverageTemperature reports per-station average temperature for the
// last completed week, Monday 00:00 UTC up to (but excluding) the most
// recent Monday 00:00 UTC. Stations with no temperature readings in that
// window are omitted.
func (e *Engine) WeeklyAverageTemperature(ctx context.Context) ([]TemperatureAverage, error) {
	start, end := lastCompletedWeek(e.now())

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	rows, err := e.db.QueryContext(ctx, weeklyAverageTemperatureSQL,
		store.FormatTime(start), store.FormatTime(end))
	if err != nil {
		return nil, fmt.Errorf("querying weekly average temperature: %w", store.Classify(err))
	}
	defer rows.Close()

	results := make([]TemperatureAverage, 0)
	for rows.Next() {
		var r TemperatureAverage
		var first, last string
		if err := rows.Scan(&r.StationID, &r.AvgTemperature, &first, &last); err != nil {
			return nil, fmt.Errorf("scanning weekly average temperature row: %w", err)
		}
		if r.FirstObservation, err = store.ParseTime(first); err != nil {
			return nil, fmt.Errorf("parsing first observation timestamp: %w", err)
		}
		if r.LastObservation, err = store.ParseTime(last); err != nil {
			return nil, fmt.Errorf("parsing last observation timestamp: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading weekly average temperature rows: %w", store.Classify(err))
	}
	return results, nil
}

const windLookback = 7 * 24 * time.Hour

// Adjacent observations are paired per station with LAG; ties on the
// absolute change are broken toward the earliest pair.
const maxWindSpeedChangeSQL = `
WITH lagged AS (
    SELECT
        station_id,
        observation_timestamp,
        wind_speed,
        LAG(wind_speed) OVER w AS prev_wind_speed,
        LAG(observation_timestamp) OVER w AS prev_observation_timestamp
    FROM observations
    WHERE wind_speed IS NOT NULL
      AND observation_timestamp >= ?
      AND observation_timestamp <= ?
    WINDOW w AS (PARTITION BY station_id ORDER BY observation_timestamp)
),
diffs AS (
    SELECT
        station_id,
        observation_timestamp,
        prev_observation_timestamp,
        ABS(wind_speed - prev_wind_speed) AS wind_speed_change
    FROM lagged
    WHERE prev_wind_speed IS NOT NULL
),
ranked AS (
    SELECT
        station_id,
        observation_timestamp,
        prev_observation_timestamp,
        wind_speed_change,
        ROW_NUMBER() OVER (
            PARTITION BY station_id
            ORDER BY wind_speed_change DESC, prev_observation_timestamp ASC
        ) AS rn
    FROM diffs
)
SELECT
    station_id,
    ROUND(wind_speed_change, 2) AS max_wind_speed_change,
    prev_observation_timestamp,
    observation_timestamp
FROM ranked
WHERE rn = 1
ORDER BY station_id`

// MaxWindSpeedChange reports, per station, the largest absolute wind speed
// difference between consecutive observations in the last seven days along
// with the two timestamps that produced it. Stations with fewer than two
// wind readings in the window are omitted.
func (e *Engine) MaxWindSpeedChange(ctx context.Context) ([]WindSpeedChange, error) {
	end := e.now().UTC()
	start := end.Add(-windLookback)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	rows, err := e.db.QueryContext(ctx, maxWindSpeedChangeSQL,
		store.FormatTime(start), store.FormatTime(end))
	if err != nil {
		return nil, fmt.Errorf("querying max wind speed change: %w", store.Classify(err))
	}
	defer rows.Close()

	results := make([]WindSpeedChange, 0)
	for rows.Next() {
		var r WindSpeedChange
		var first, last string
		if err := rows.Scan(&r.StationID, &r.MaxWindSpeedChange, &first, &last); err != nil {
			return nil, fmt.Errorf("scanning max wind speed change row: %w", err)
		}
		if r.FirstObservation, err = store.ParseTime(first); err != nil {
			return nil, fmt.Errorf("parsing first observation timestamp: %w", err)
		}
		if r.LastObservation, err = store.ParseTime(last); err != nil {
			return nil, fmt.Errorf("parsing last observation timestamp: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading max wind speed change rows: %w", store.Classify(err))
	}
	return results, nil
}

// lastCompletedWeek returns the bounds of the most recent full
// Monday-to-Monday week before now, as [start, end).
func lastCompletedWeek(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	daysSinceMonday := (int(now.Weekday()) + 6) % 7
	monday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, -daysSinceMonday)
	return monday.AddDate(0, 0, -7), monday
}
