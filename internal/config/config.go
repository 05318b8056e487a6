package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all runtime configuration parameters
type Config struct {
	DataDir              string        `json:"data_dir"`
	DBDriver             string        `json:"db_driver"`
	DBPath               string        `json:"db_path"`
	PGDSN                string        `json:"pg_dsn"`
	PGMaxConns           int           `json:"pg_max_conns"`
	RequestTimeoutMs     int           `json:"request_timeout_ms"`
	UserAgent            string        `json:"user_agent"`
	DetailDelayMs        int           `json:"detail_delay_ms"`
	EnrichDelayMs        int           `json:"enrich_delay_ms"`
	MaxConcurrentSources int           `json:"max_concurrent_sources"`
	LowYieldThreshold    float64       `json:"low_yield_threshold"`
	MetricsPath          string        `json:"metrics_path"`
	MetricsTextfile      string        `json:"metrics_textfile"`
	LockPath             string        `json:"lock_path"`
	ListenAddr           string        `json:"listen_addr"`
	CronSecret           string        `json:"cron_secret"`
	Spotify              SpotifyConfig `json:"spotify"`
}

// SpotifyConfig holds catalog API credentials and endpoints
type SpotifyConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	TokenURL     string `json:"token_url"`
	APIBaseURL   string `json:"api_base_url"`
	SearchLimit  int    `json:"search_limit"`
	CacheSize    int    `json:"cache_size"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig reads and validates configuration from a JSON file.
// A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	file, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	default:
		defer file.Close()
		decoder := json.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	applyEnv(&cfg, os.Getenv)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyEnv overlays secrets and deployment paths from the environment
func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("SPOTIFY_CLIENT_ID"); v != "" {
		cfg.Spotify.ClientID = v
	}
	if v := getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		cfg.Spotify.ClientSecret = v
	}
	if v := getenv("LINEUP_PG_DSN"); v != "" {
		cfg.PGDSN = v
		if cfg.DBDriver == "" {
			cfg.DBDriver = DriverPostgres
		}
	}
	if v := getenv("CRON_SECRET"); v != "" {
		cfg.CronSecret = v
	}
	if v := getenv("LINEUP_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
}

// applyDefaults sets default values for unspecified fields
func applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.DBDriver == "" {
		cfg.DBDriver = DriverSQLite
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "lineups.db"
	}
	if cfg.PGMaxConns == 0 {
		cfg.PGMaxConns = 4
	}
	if cfg.RequestTimeoutMs == 0 {
		cfg.RequestTimeoutMs = 15000
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "lineup-weaver/1.0"
	}
	if cfg.DetailDelayMs == 0 {
		cfg.DetailDelayMs = 200
	}
	if cfg.EnrichDelayMs == 0 {
		cfg.EnrichDelayMs = 100
	}
	if cfg.MaxConcurrentSources == 0 {
		cfg.MaxConcurrentSources = 1
	}
	if cfg.LowYieldThreshold == 0 {
		cfg.LowYieldThreshold = 0.5
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "sync-metrics.json"
	}
	if cfg.LockPath == "" {
		cfg.LockPath = "lineupsync.lock"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.Spotify.TokenURL == "" {
		cfg.Spotify.TokenURL = "https://accounts.spotify.com/api/token"
	}
	if cfg.Spotify.APIBaseURL == "" {
		cfg.Spotify.APIBaseURL = "https://api.spotify.com/v1"
	}
	if cfg.Spotify.SearchLimit == 0 {
		cfg.Spotify.SearchLimit = 5
	}
	if cfg.Spotify.CacheSize == 0 {
		cfg.Spotify.CacheSize = 512
	}
}

// validate checks that required fields are present and values are sensible
func validate(cfg *Config) error {
	switch cfg.DBDriver {
	case DriverSQLite:
		if strings.TrimSpace(cfg.DBPath) == "" {
			return fmt.Errorf("db_path is required for the sqlite driver")
		}
	case DriverPostgres:
		if strings.TrimSpace(cfg.PGDSN) == "" {
			return fmt.Errorf("pg_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("db_driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, cfg.DBDriver)
	}
	if cfg.RequestTimeoutMs < 1000 {
		return fmt.Errorf("request_timeout_ms must be >= 1000")
	}
	if cfg.DetailDelayMs < 0 {
		return fmt.Errorf("detail_delay_ms must be >= 0")
	}
	if cfg.EnrichDelayMs < 0 {
		return fmt.Errorf("enrich_delay_ms must be >= 0")
	}
	if cfg.MaxConcurrentSources < 1 {
		return fmt.Errorf("max_concurrent_sources must be >= 1")
	}
	if cfg.LowYieldThreshold < 0 || cfg.LowYieldThreshold > 1 {
		return fmt.Errorf("low_yield_threshold must be within [0, 1]")
	}
	if cfg.Spotify.SearchLimit < 1 || cfg.Spotify.SearchLimit > 50 {
		return fmt.Errorf("spotify.search_limit must be within [1, 50]")
	}
	return nil
}

// ValidateCatalogCredentials reports whether enrichment can authenticate
func (c *Config) ValidateCatalogCredentials() error {
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
		return fmt.Errorf("missing Spotify credentials: set SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET")
	}
	return nil
}

// RequestTimeout returns the per-request fetch timeout
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// DetailDelay returns the pause between consecutive detail fetches
func (c *Config) DetailDelay() time.Duration {
	return time.Duration(c.DetailDelayMs) * time.Millisecond
}

// EnrichDelay returns the pause between consecutive catalog lookups
func (c *Config) EnrichDelay() time.Duration {
	return time.Duration(c.EnrichDelayMs) * time.Millisecond
}
