// Package config handles weakrefs.toml runtime tuning.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the tunables file looked up by Load.
const FileName = "weakrefs.toml"

// Config holds the subsystem's tunables.
type Config struct {
	Collector CollectorConfig `toml:"collector"`
	Scheduler SchedulerConfig `toml:"scheduler"`
}

// CollectorConfig tunes the background collection driver.
type CollectorConfig struct {
	// Interval between background collection passes.
	Interval Duration `toml:"interval"`
	// Enabled controls whether the background collector performs passes.
	Enabled bool `toml:"enabled"`
}

// SchedulerConfig tunes cleanup callback delivery.
type SchedulerConfig struct {
	// MaxCallbacksPerBoundary caps how many cleanup callbacks one turn
	// boundary delivers; the rest stay queued. Zero means no cap.
	MaxCallbacksPerBoundary int `toml:"max-callbacks-per-boundary"`
}

// Duration wraps time.Duration for TOML ("30s", "5m").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the built-in tunables: background collection every
// 30s, at most 64 callbacks per turn boundary.
func Default() *Config {
	return &Config{
		Collector: CollectorConfig{
			Interval: Duration(30 * time.Second),
			Enabled:  true,
		},
		Scheduler: SchedulerConfig{
			MaxCallbacksPerBoundary: 64,
		},
	}
}

// Load parses a weakrefs.toml file from the given directory. Fields not
// present in the file keep their defaults.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config in %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks tunables for consistency.
func (c *Config) Validate() error {
	if c.Collector.Enabled && c.Collector.Interval.Std() <= 0 {
		return fmt.Errorf("collector interval must be positive, got %s", c.Collector.Interval.Std())
	}
	if c.Scheduler.MaxCallbacksPerBoundary < 0 {
		return fmt.Errorf("max-callbacks-per-boundary must be >= 0, got %d", c.Scheduler.MaxCallbacksPerBoundary)
	}
	return nil
}
