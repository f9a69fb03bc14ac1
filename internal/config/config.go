// Package config loads the orchestrator's merge-train and monitor
// tuning from a TOML file, tolerating a missing file by falling back to
// documented defaults the way the teacher's role-definition loader
// merges an optional override onto a built-in base.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration wraps time.Duration so it can be written as "10s"/"5m" in
// TOML instead of a raw integer of nanoseconds.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler for Duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// MergeTrainConfig mirrors internal/mergetrain.Config's on-disk shape.
type MergeTrainConfig struct {
	TestCommand   string   `toml:"test_command,omitempty"`
	TestTimeout   Duration `toml:"test_timeout,omitempty"`
	MergeStrategy string   `toml:"merge_strategy,omitempty"`
	SetupCommands []string `toml:"setup_commands,omitempty"`
}

// MonitorConfig mirrors internal/monitor.Config's on-disk shape.
type MonitorConfig struct {
	PollInterval  Duration `toml:"poll_interval,omitempty"`
	IdleThreshold Duration `toml:"idle_threshold,omitempty"`
}

// Config is the top-level `.mission-control/config.toml` document.
type Config struct {
	MergeTrain MergeTrainConfig `toml:"merge_train"`
	Monitor    MonitorConfig    `toml:"monitor"`
}

// Default returns the documented defaults (spec §4.9/§4.8): squash
// merge strategy, 600s test timeout, 10s poll interval.
func Default() Config {
	return Config{
		MergeTrain: MergeTrainConfig{
			MergeStrategy: "squash",
			TestTimeout:   Duration{600 * time.Second},
		},
		Monitor: MonitorConfig{
			PollInterval: Duration{10 * time.Second},
		},
	}
}

// Load reads path and merges it onto Default(). A missing file is not
// an error: Default() is returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
