package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Pipeline holds the filtering and masking policy shared by all sinks.
type Pipeline struct {
	DefaultMinimumLevel string            `toml:"default_minimum_level"`
	LevelOverrides      map[string]string `toml:"level_overrides"`
	SensitiveKeys       []string          `toml:"sensitive_keys"`
	Environment         string            `toml:"environment"`
	DiagnosticCapacity  int               `toml:"diagnostic_capacity"`
}

// Retry governs re-delivery of a failed batch.
type Retry struct {
	MaxAttempts int `toml:"max_attempts"`
	BaseDelayMS int `toml:"base_delay_ms"`
	MaxDelayMS  int `toml:"max_delay_ms"`
}

// Sink configures one delivery destination.
type Sink struct {
	Name           string `toml:"name"`
	Kind           string `toml:"kind"` // console, file, remote, sqlite
	MinimumLevel   string `toml:"minimum_level"`
	BufferCapacity int    `toml:"buffer_capacity"`
	BatchSize      int    `toml:"batch_size"`
	BatchTimeoutMS int    `toml:"batch_timeout_ms"`
	Endpoint       string `toml:"endpoint"` // remote ingestion URL
	Path           string `toml:"path"`     // file or sqlite database path
	Overflow       string `toml:"overflow"` // drop-newest or drop-oldest
	Retry          Retry  `toml:"retry"`
}

// Relay configures the HTTP ingest daemon wrapped around the pipeline.
type Relay struct {
	Bind              string `toml:"bind"`
	CorrelationHeader string `toml:"correlation_header"`
	LockPath          string `toml:"lock_path"`
	LogLevel          string `toml:"log_level"`
}

// Config is the full process configuration.
type Config struct {
	Pipeline Pipeline `toml:"pipeline"`
	Relay    Relay    `toml:"relay"`
	Sinks    []Sink   `toml:"sinks"`
}

// Load reads path, decodes it over the defaults, normalizes, and validates.
// A missing file yields the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Defaults only.
	case err != nil:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	default:
		// The file's sink list replaces the default, never merges with it.
		cfg.Sinks = nil
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		if len(cfg.Sinks) == 0 {
			cfg.Sinks = Default().Sinks
		}
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Sample returns the embedded sample configuration file.
func Sample() string {
	return sampleConfig
}
