// Package config loads the adapter configuration.
//
// Defaults can be overridden by an optional TOML file
// (~/.config/firefox-debugger/config.toml); launch-request arguments from
// the editor override both.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config is the adapter configuration.
type Config struct {
	// Firefox configures how the debuggee is located and reached.
	Firefox Firefox `toml:"firefox"`

	// Log configures logging.
	Log Log `toml:"log"`
}

// Firefox configures executable discovery and the remote debugging port.
type Firefox struct {
	// Executable is an explicit path to the Firefox binary. Empty means
	// search well-known locations and PATH.
	Executable string `toml:"executable"`

	// Profile is a profile directory to reuse. Empty means a temporary
	// profile is created per session.
	Profile string `toml:"profile"`

	// Host is the remote debugging host.
	Host string `toml:"host"`

	// Port is the remote debugging port.
	Port int `toml:"port"`
}

// Log configures log verbosity and destination.
type Log struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `toml:"level"`

	// File is an optional log file path; empty logs to stderr.
	File string `toml:"file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Firefox: Firefox{
			Host: "localhost",
			Port: 6000,
		},
		Log: Log{
			Level: "info",
		},
	}
}

// DefaultPath returns the conventional config file location, or empty if
// the user config directory cannot be determined.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "firefox-debugger", "config.toml")
}

// Load reads the configuration file at path, applying it over the
// defaults. A missing file is not an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// validate rejects values that would fail later in confusing ways.
func (c Config) validate() error {
	if c.Firefox.Port < 0 || c.Firefox.Port > 65535 {
		return fmt.Errorf("firefox.port %d out of range", c.Firefox.Port)
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log.level %q", c.Log.Level)
	}
	return nil
}
