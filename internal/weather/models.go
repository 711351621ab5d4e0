package weather

import (
	"time"
)

// QuantityValue is the unit-of-measure wrapper the NWS API puts around
// numeric observation fields. Value is nil when the sensor did not report
// the field.
type QuantityValue struct {
	Value *float64 `json:"value"`
}

// RawObservation is the properties object of a single observation feature
// as returned by the NWS observations endpoint. Station is a reference URL
// whose trailing path segment is the station identifier. Any measurement
// wrapper may be absent entirely or carry a null value.
type RawObservation struct {
	Station               string         `json:"station"`
	Timestamp             string         `json:"timestamp"`
	Temperature           *QuantityValue `json:"temperature"`
	WindSpeed             *QuantityValue `json:"windSpeed"`
	BarometricPressure    *QuantityValue `json:"barometricPressure"`
	RelativeHumidity      *QuantityValue `json:"relativeHumidity"`
	PrecipitationLastHour *QuantityValue `json:"precipitationLastHour"`
	Dewpoint              *QuantityValue `json:"dewpoint"`
}

// Observation is one normalized observation row keyed by station and
// timestamp. Measurement fields are nil when the source omitted them.
type Observation struct {
	StationID             string    `json:"station_id"`
	Timestamp             time.Time `json:"observation_timestamp"` // always UTC
	Temperature           *float64  `json:"temperature"`
	WindSpeed             *float64  `json:"wind_speed"`
	BarometricPressure    *float64  `json:"barometric_pressure"`
	RelativeHumidity      *float64  `json:"relative_humidity"`
	PrecipitationLastHour *float64  `json:"precipitation_last_hour"`
	Dewpoint              *float64  `json:"dewpoint"`
}

// StationInfo is canonical station metadata from the NWS stations endpoint.
// Coordinates are nil when the source provides no geometry for the station.
type StationInfo struct {
	ID        string   `json:"station_id"`
	Name      string   `json:"station_name"`
	Timezone  string   `json:"station_timezone"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}
