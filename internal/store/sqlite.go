package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rboeg/wx-info/internal/common"
	"github.com/rboeg/wx-info/internal/weather"
)

var (
	// ErrUnreachable is returned when the database cannot be reached.
	// Callers must not interpret it as "no data".
	ErrUnreachable = errors.New("database unreachable")
)

// DefaultTimeout bounds a single database operation when no timeout is
// configured.
const DefaultTimeout = 5 * time.Second

const createStationsSQL = `
CREATE TABLE IF NOT EXISTS stations (
	station_id       TEXT PRIMARY KEY,
	station_name     TEXT,
	station_timezone TEXT,
	latitude         REAL,
	longitude        REAL
)`

const createObservationsSQL = `
CREATE TABLE IF NOT EXISTS observations (
	station_id              TEXT NOT NULL REFERENCES stations(station_id),
	observation_timestamp   TEXT NOT NULL,
	temperature             REAL,
	wind_speed              REAL,
	barometric_pressure     REAL,
	relative_humidity       REAL,
	precipitation_last_hour REAL,
	dewpoint                REAL,
	PRIMARY KEY (station_id, observation_timestamp)
)`

// Open opens (creating it if necessary) the SQLite database at path and
// applies the connection pragmas. The pool is capped at a single
// connection so the pragmas hold for every statement and writers are
// serialized; ":memory:" therefore also keeps one stable in-memory
// database.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, classify(fmt.Errorf("applying %s: %w", pragma, err))
		}
	}
	return db, nil
}

// Store persists stations and observations and answers watermark and
// liveness queries. All methods bound their work with the configured
// per-operation timeout.
type Store struct {
	db      *sql.DB
	timeout time.Duration
}

// New wraps db in a Store. timeout <= 0 falls back to DefaultTimeout.
func New(db *sql.DB, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Store{db: db, timeout: timeout}
}

// EnsureSchema creates the stations and observations tables if they do not
// exist. Idempotent: safe to call on every pipeline run.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	for _, stmt := range []string{createStationsSQL, createObservationsSQL} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return classify(fmt.Errorf("creating schema: %w", err))
		}
	}
	return nil
}

// Watermark returns the most recent observation timestamp persisted for
// the station. ok is false when the station has no observations yet.
func (s *Store) Watermark(ctx context.Context, stationID string) (ts time.Time, ok bool, err error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var raw sql.NullString
	row := s.db.QueryRowContext(ctx,
		`SELECT MAX(observation_timestamp) FROM observations WHERE station_id = ?`, stationID)
	if err := row.Scan(&raw); err != nil {
		return time.Time{}, false, classify(fmt.Errorf("querying watermark for %s: %w", stationID, err))
	}
	if !raw.Valid {
		return time.Time{}, false, nil
	}

	ts, perr := ParseTime(raw.String)
	if perr != nil {
		return time.Time{}, false, fmt.Errorf("parsing watermark %q for %s: %w", raw.String, stationID, perr)
	}
	return ts, true, nil
}

// UpsertStation inserts or updates the station row, overwriting name,
// timezone and coordinates on conflict.
func (s *Store) UpsertStation(ctx context.Context, meta weather.StationInfo) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stations (station_id, station_name, station_timezone, latitude, longitude)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (station_id) DO UPDATE SET
			station_name = excluded.station_name,
			station_timezone = excluded.station_timezone,
			latitude = excluded.latitude,
			longitude = excluded.longitude`,
		meta.ID, meta.Name, meta.Timezone, meta.Latitude, meta.Longitude)
	if err != nil {
		return classify(fmt.Errorf("upserting station %s: %w", meta.ID, err))
	}
	return nil
}

// UpsertObservations writes the rows in a single transaction, inserting or
// overwriting by (station, timestamp), and returns the number of rows
// written. An empty set returns 0 without touching the database.
func (s *Store) UpsertObservations(ctx context.Context, rows []weather.Observation) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, classify(fmt.Errorf("beginning observation upsert: %w", err))
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations (
			station_id, observation_timestamp, temperature, wind_speed,
			barometric_pressure, relative_humidity, precipitation_last_hour, dewpoint
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (station_id, observation_timestamp) DO UPDATE SET
			temperature = excluded.temperature,
			wind_speed = excluded.wind_speed,
			barometric_pressure = excluded.barometric_pressure,
			relative_humidity = excluded.relative_humidity,
			precipitation_last_hour = excluded.precipitation_last_hour,
			dewpoint = excluded.dewpoint`)
	if err != nil {
		return 0, classify(fmt.Errorf("preparing observation upsert: %w", err))
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.ExecContext(ctx,
			r.StationID, FormatTime(r.Timestamp), r.Temperature, r.WindSpeed,
			r.BarometricPressure, r.RelativeHumidity, r.PrecipitationLastHour, r.Dewpoint)
		if err != nil {
			return 0, classify(fmt.Errorf("upserting observation %s at %s: %w",
				r.StationID, FormatTime(r.Timestamp), err))
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, classify(fmt.Errorf("committing observation upsert: %w", err))
	}
	return len(rows), nil
}

// CheckReachable reports whether the database answers a ping within the
// operation timeout. It does not require the schema to exist.
func (s *Store) CheckReachable(ctx context.Context) bool {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.db.PingContext(ctx) == nil
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// FormatTime lays out a timestamp in the canonical column representation:
// RFC3339 UTC truncated to whole seconds. The fixed width keeps
// lexicographic and chronological ordering identical, so MAX() and range
// predicates work directly on the text column.
func FormatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// ParseTime parses a timestamp in the canonical column representation.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// Classify wraps connectivity failures in ErrUnreachable so callers can
// tell "store down" apart from "no data" or a constraint violation.
func Classify(err error) error {
	return classify(err)
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		common.HasAny(err.Error(), "unable to open database", "database is locked", "disk I/O error", "database is closed") {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return err
}
