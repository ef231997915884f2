// Package config loads the shell's configuration: defaults, then the TOML
// file, then HEXSH_* environment overrides, each layer on top of the last.
// A missing config file is not an error; a malformed one is.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration wraps time.Duration so TOML and environment values can be written
// as "3s" or "500ms".
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full shell configuration.
type Config struct {
	Shell   ShellConfig   `toml:"shell"`
	Spawn   SpawnConfig   `toml:"spawn"`
	Streams StreamsConfig `toml:"streams"`
	Log     LogConfig     `toml:"log"`
}

type ShellConfig struct {
	// Prompt is printed before each interactive read.
	Prompt string `toml:"prompt"`
}

type SpawnConfig struct {
	// ShutdownGrace is how long live background jobs get to exit and drain
	// after the shell asks them to terminate on its way out.
	ShutdownGrace Duration `toml:"shutdown_grace"`
}

type StreamsConfig struct {
	// DebugLabel prefixes every stddbg line shown on the terminal.
	DebugLabel string `toml:"debug_label"`
	// Color controls label coloring: auto, always or never.
	Color string `toml:"color"`
}

type LogConfig struct {
	// Enabled turns on the shell's own diagnostic log.
	Enabled bool `toml:"enabled"`
	// File receives the diagnostic log; empty means stderr.
	File string `toml:"file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Shell: ShellConfig{Prompt: "hexsh> "},
		Spawn: SpawnConfig{ShutdownGrace: Duration(3 * time.Second)},
		Streams: StreamsConfig{
			DebugLabel: "dbg",
			Color:      "auto",
		},
	}
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "hexsh", "config.toml")
}

// Load builds the configuration from path plus environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// No file, defaults apply.
		case err != nil:
			return cfg, fmt.Errorf("reading config file %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv layers HEXSH_* variables over the current values. An empty
// variable is a valid value, not an unset.
func applyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv("HEXSH_PROMPT"); ok {
		cfg.Shell.Prompt = v
	}
	if v, ok := os.LookupEnv("HEXSH_SHUTDOWN_GRACE"); ok {
		if err := cfg.Spawn.ShutdownGrace.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("HEXSH_SHUTDOWN_GRACE: %w", err)
		}
	}
	if v, ok := os.LookupEnv("HEXSH_DEBUG_LABEL"); ok {
		cfg.Streams.DebugLabel = v
	}
	if v, ok := os.LookupEnv("HEXSH_COLOR"); ok {
		cfg.Streams.Color = v
	}
	if v, ok := os.LookupEnv("HEXSH_LOG_ENABLED"); ok {
		cfg.Log.Enabled = v == "1" || v == "true" || v == "yes" || v == "on"
	}
	if v, ok := os.LookupEnv("HEXSH_LOG_FILE"); ok {
		cfg.Log.File = v
	}
	return nil
}

func (c *Config) validate() error {
	if c.Spawn.ShutdownGrace <= 0 {
		return fmt.Errorf("spawn.shutdown_grace must be positive, got %v", c.Spawn.ShutdownGrace.Std())
	}
	switch c.Streams.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("streams.color must be auto, always or never, got %q", c.Streams.Color)
	}
	return nil
}
