package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Settings holds daemon-level preferences from settings.toml.
// Everything has a default; an absent file is not an error.
type Settings struct {
	// TickIntervalSecs is how often the daemon wakes to check schedules
	// (default: 60).
	TickIntervalSecs int `toml:"tick_interval_secs"`

	// DefaultTimeout bounds an agent run when the workspace does not set
	// its own, using the interval grammar (default: "10m").
	DefaultTimeout string `toml:"default_timeout"`

	// DefaultMaxTurns caps agent turns when the workspace does not set its
	// own (default: 30).
	DefaultMaxTurns int `toml:"default_max_turns"`

	// SocketPath overrides the Unix socket location (default:
	// <data dir>/murmur.sock).
	SocketPath string `toml:"socket_path"`

	// LogLevel is the minimum debug.log level (default: "info").
	LogLevel string `toml:"log_level"`

	// Debug forces debug.log writing regardless of log level.
	Debug bool `toml:"debug"`
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() *Settings {
	return &Settings{
		TickIntervalSecs: 60,
		DefaultTimeout:   "10m",
		DefaultMaxTurns:  30,
		LogLevel:         "info",
	}
}

// LoadSettings reads settings.toml from path, layering it over defaults.
// A missing file yields the defaults.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	if err := toml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	if s.TickIntervalSecs <= 0 {
		s.TickIntervalSecs = 60
	}
	if s.DefaultTimeout == "" {
		s.DefaultTimeout = "10m"
	}
	if s.DefaultMaxTurns <= 0 {
		s.DefaultMaxTurns = 30
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	return s, nil
}
