package weather

import (
	"strings"
	"time"

	"github.com/rboeg/wx-info/internal/common"
)

// Flatten converts raw observation features into normalized rows, one per
// input record and in input order. It is total: absent or malformed fields
// become nil columns (or the zero time for the timestamp), never errors,
// and an empty input yields an empty result.
func Flatten(raw []RawObservation) []Observation {
	rows := make([]Observation, 0, len(raw))
	for _, r := range raw {
		rows = append(rows, Observation{
			StationID:             StationIDFromURL(r.Station),
			Timestamp:             parseTimestamp(r.Timestamp),
			Temperature:           roundedValue(r.Temperature),
			WindSpeed:             roundedValue(r.WindSpeed),
			BarometricPressure:    roundedValue(r.BarometricPressure),
			RelativeHumidity:      roundedValue(r.RelativeHumidity),
			PrecipitationLastHour: roundedValue(r.PrecipitationLastHour),
			Dewpoint:              roundedValue(r.Dewpoint),
		})
	}
	return rows
}

// StationIDFromURL extracts the station identifier from a station reference
// URL, i.e. its trailing path segment. A string without slashes is returned
// unchanged.
func StationIDFromURL(ref string) string {
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

// roundedValue unwraps a quantity and rounds it to two decimal places.
func roundedValue(q *QuantityValue) *float64 {
	if q == nil || q.Value == nil {
		return nil
	}
	v := common.Round2(*q.Value)
	return &v
}

// parseTimestamp parses an RFC3339 timestamp and normalizes it to whole
// seconds UTC. Unparseable input yields the zero time rather than an error.
func parseTimestamp(s string) time.Time {
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC().Truncate(time.Second)
}
