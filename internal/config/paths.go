package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirEnvVar overrides the data directory location when set.
const DirEnvVar = "MURMUR_DIR"

// DataDir returns the murmur data directory (~/.murmur by default),
// creating it with owner-only permissions if needed.
func DataDir() (string, error) {
	dir := os.Getenv(DirEnvVar)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".murmur")
	} else {
		dir = ExpandTilde(dir)
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

// ConfigPath returns the path to config.json inside the data dir.
func ConfigPath(dir string) string {
	return filepath.Join(dir, "config.json")
}

// SettingsPath returns the path to settings.toml inside the data dir.
func SettingsPath(dir string) string {
	return filepath.Join(dir, "settings.toml")
}

// ExpandTilde expands a leading ~ to the user's home directory.
func ExpandTilde(path string) string {
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
