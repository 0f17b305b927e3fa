// Package config reads process settings from the environment.
//
// Values come from the process environment, optionally seeded from a .env
// file. Variables already set in the environment win over the file.
// Command line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables.
const (
	EnvRemoteURL    = "VIEWSER_REMOTE_URL"
	EnvTimeout      = "VIEWSER_TIMEOUT"
	EnvPollInterval = "VIEWSER_POLL_INTERVAL"
	EnvDB           = "BENCHMARK_DB"
	EnvPushgateway  = "BENCHMARK_PUSHGATEWAY"
)

// Defaults.
const (
	DefaultRemoteURL    = "http://localhost:4000"
	DefaultDB           = "queries-benchmark.db"
	DefaultEnvFile      = ".env"
	DefaultPollInterval = 2 * time.Second
)

// Config is the resolved process configuration.
type Config struct {
	// RemoteURL is the base URL of the query engine.
	RemoteURL string

	// Timeout bounds each HTTP request. Zero means no timeout; a fetch of a
	// large dataset can take many minutes.
	Timeout time.Duration

	// PollInterval is the wait between fetch attempts while the engine is
	// still materializing a dataset.
	PollInterval time.Duration

	// DB is the path of the run ledger.
	DB string

	// Pushgateway is the Prometheus Pushgateway URL. Empty disables pushing.
	Pushgateway string
}

// Load reads envFile, if it exists, into the environment and resolves the
// configuration. A missing envFile is not an error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv resolves the configuration from a lookup function.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Config{
		RemoteURL:    DefaultRemoteURL,
		PollInterval: DefaultPollInterval,
		DB:           DefaultDB,
	}
	if v, ok := lookup(EnvRemoteURL); ok && v != "" {
		cfg.RemoteURL = v
	}
	if v, ok := lookup(EnvDB); ok && v != "" {
		cfg.DB = v
	}
	if v, ok := lookup(EnvPushgateway); ok {
		cfg.Pushgateway = v
	}

	var err error
	if cfg.Timeout, err = duration(lookup, EnvTimeout, cfg.Timeout); err != nil {
		return Config{}, err
	}
	if cfg.PollInterval, err = duration(lookup, EnvPollInterval, cfg.PollInterval); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func duration(lookup func(string) (string, bool), key string, def time.Duration) (time.Duration, error) {
	v, ok := lookup(key)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative, got %s", key, v)
	}
	return d, nil
}
