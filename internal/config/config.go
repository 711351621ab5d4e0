package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port         string
	DatabasePath string

	// Upstream API settings. The user agent identifies this service on
	// every outbound request.
	SourceBaseURL   string
	SourceUserAgent string

	// Stations ingested by scheduled runs and by trigger requests that
	// do not name their own.
	Stations []string

	FetchTimeout time.Duration
	StoreTimeout time.Duration

	// LookbackWindow is how far back the first run of a station reaches.
	LookbackWindow    time.Duration
	SchedulerInterval time.Duration

	// GeocoderAPIKey enables station discovery; empty disables it.
	GeocoderAPIKey string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.DatabasePath = getenvDefault("DATABASE_PATH", "wx-info.db")
	cfg.SourceBaseURL = getenvDefault("NWS_API_BASE_URL", "https://api.weather.gov")
	cfg.SourceUserAgent = getenvDefault("NWS_USER_AGENT", "wx-info (github.com/rboeg/wx-info)")
	cfg.Stations = splitList(os.Getenv("NWS_STATION_IDS"))
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	var err error
	if cfg.FetchTimeout, err = getenvDuration("FETCH_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.StoreTimeout, err = getenvDuration("STORE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.LookbackWindow, err = getenvDuration("LOOKBACK_WINDOW", 168*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SchedulerInterval, err = getenvDuration("SCHEDULER_INTERVAL", time.Hour); err != nil {
		return nil, err
	}

	return cfg, nil
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
