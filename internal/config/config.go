package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Permissions controls the command deny-list applied to agent runs.
// In JSON it is either the string "skip" (disable the deny-list entirely)
// or an object {"deny": ["rule", ...]} merged with the built-in defaults.
type Permissions struct {
	Skip bool
	Deny []string
}

// UnmarshalJSON accepts "skip" or {"deny": [...]}.
func (p *Permissions) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "skip" {
			return fmt.Errorf("invalid permissions value %q (expected \"skip\" or an object)", s)
		}
		*p = Permissions{Skip: true}
		return nil
	}

	var obj struct {
		Deny []string `json:"deny"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("invalid permissions value: %w", err)
	}
	*p = Permissions{Deny: obj.Deny}
	return nil
}

// MarshalJSON writes back the same shape that was read.
func (p Permissions) MarshalJSON() ([]byte, error) {
	if p.Skip {
		return json.Marshal("skip")
	}
	return json.Marshal(struct {
		Deny []string `json:"deny"`
	}{Deny: p.Deny})
}

// WorkspaceConfig describes one schedulable workspace entry in config.json.
// A single entry may expand into multiple heartbeats when the workspace has
// a heartbeats/ directory.
type WorkspaceConfig struct {
	Path string `json:"path"`

	// Schedule: exactly one of Interval or Cron must be set.
	Interval string `json:"interval,omitempty"`
	Cron     string `json:"cron,omitempty"`
	Timezone string `json:"timezone,omitempty"`

	// LastRun is the completion time of the root heartbeat's most recent
	// run. LastRuns tracks named heartbeats, keyed by heartbeat file path
	// relative to the workspace.
	LastRun  *time.Time            `json:"lastRun,omitempty"`
	LastRuns map[string]*time.Time `json:"lastRuns,omitempty"`

	// Run limits.
	MaxTurns int    `json:"maxTurns,omitempty"`
	Timeout  string `json:"timeout,omitempty"`

	// Agent selection and agent-specific fields.
	Agent   string `json:"agent,omitempty"`
	Model   string `json:"model,omitempty"`
	Session string `json:"session,omitempty"`
	Sandbox string `json:"sandbox,omitempty"`
	Network bool   `json:"network,omitempty"`

	Permissions *Permissions `json:"permissions,omitempty"`
}

// DisplayName returns a short human-readable name for the workspace.
func (w *WorkspaceConfig) DisplayName() string {
	return filepath.Base(ExpandTilde(w.Path))
}

// AbsPath returns the workspace path with tilde expansion applied.
func (w *WorkspaceConfig) AbsPath() string {
	return ExpandTilde(w.Path)
}

// Config is the root of config.json.
type Config struct {
	Workspaces []*WorkspaceConfig `json:"workspaces"`
}

// Load reads config.json from path. A missing file yields an empty config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Save writes the whole config atomically: temp file, fsync, rename.
// Concurrent writers are last-write-wins; there is no cross-process lock.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data = append(data, '\n')

	return atomicWrite(path, data)
}

// atomicWrite writes data to path via a temp file and rename.
func atomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	// fsync before rename so the rename never exposes a partial file
	if f, err := os.Open(tmpPath); err == nil {
		_ = f.Sync()
		f.Close()
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize write: %w", err)
	}
	return nil
}

// AtomicWrite is the shared atomic write-then-rename used for every
// mutable JSON file in the data directory.
func AtomicWrite(path string, data []byte) error {
	return atomicWrite(path, data)
}
