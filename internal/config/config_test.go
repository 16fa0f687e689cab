package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissions_UnmarshalSkip(t *testing.T) {
	var p Permissions
	require.NoError(t, json.Unmarshal([]byte(`"skip"`), &p))
	assert.True(t, p.Skip)
	assert.Nil(t, p.Deny)
}

func TestPermissions_UnmarshalDeny(t *testing.T) {
	var p Permissions
	require.NoError(t, json.Unmarshal([]byte(`{"deny": ["Bash(curl *)", "WebFetch"]}`), &p))
	assert.False(t, p.Skip)
	assert.Equal(t, []string{"Bash(curl *)", "WebFetch"}, p.Deny)
}

func TestPermissions_UnmarshalInvalid(t *testing.T) {
	var p Permissions
	assert.Error(t, json.Unmarshal([]byte(`"everything"`), &p))
	assert.Error(t, json.Unmarshal([]byte(`42`), &p))
}

func TestPermissions_RoundTrip(t *testing.T) {
	for _, in := range []string{`"skip"`, `{"deny":["Bash(sudo *)"]}`} {
		var p Permissions
		require.NoError(t, json.Unmarshal([]byte(in), &p))
		out, err := json.Marshal(p)
		require.NoError(t, err)
		assert.JSONEq(t, in, string(out))
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Workspaces)
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	last := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	cfg := &Config{Workspaces: []*WorkspaceConfig{
		{
			Path:     "/home/me/proj",
			Interval: "1h",
			LastRun:  &last,
			MaxTurns: 20,
			Agent:    "codex",
			Sandbox:  "workspace-write",
			Network:  true,
			LastRuns: map[string]*time.Time{
				"heartbeats/deploy/HEARTBEAT.md": &last,
			},
			Permissions: &Permissions{Deny: []string{"Bash(curl *)"}},
		},
		{Path: "~/other", Cron: "0 9 * * 1-5", Timezone: "Europe/Berlin"},
	}}

	require.NoError(t, Save(path, cfg))

	// The temp file from the atomic write must be gone.
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	got, err := Load(path)
	require.NoError(t, err)
	require.Len(t, got.Workspaces, 2)

	ws := got.Workspaces[0]
	assert.Equal(t, "/home/me/proj", ws.Path)
	assert.Equal(t, "1h", ws.Interval)
	require.NotNil(t, ws.LastRun)
	assert.True(t, ws.LastRun.Equal(last))
	assert.Equal(t, 20, ws.MaxTurns)
	assert.Equal(t, "codex", ws.Agent)
	assert.True(t, ws.Network)
	require.NotNil(t, ws.Permissions)
	assert.Equal(t, []string{"Bash(curl *)"}, ws.Permissions.Deny)
	require.Contains(t, ws.LastRuns, "heartbeats/deploy/HEARTBEAT.md")

	assert.Equal(t, "0 9 * * 1-5", got.Workspaces[1].Cron)
	assert.Equal(t, "Europe/Berlin", got.Workspaces[1].Timezone)
}

func TestDataDir_EnvOverride(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "murmur-data")
	t.Setenv(DirEnvVar, dir)

	got, err := DataDir()
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "settings.toml"))
	require.NoError(t, err)
	assert.Equal(t, 60, s.TickIntervalSecs)
	assert.Equal(t, "10m", s.DefaultTimeout)
	assert.Equal(t, 30, s.DefaultMaxTurns)
	assert.Equal(t, "info", s.LogLevel)
	assert.False(t, s.Debug)
}

func TestLoadSettings_Partial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	require.NoError(t, os.WriteFile(path, []byte("tick_interval_secs = 5\nlog_level = \"debug\"\n"), 0600))

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, 5, s.TickIntervalSecs)
	assert.Equal(t, "debug", s.LogLevel)
	// Unset keys keep their defaults.
	assert.Equal(t, "10m", s.DefaultTimeout)
	assert.Equal(t, 30, s.DefaultMaxTurns)
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, home, ExpandTilde("~"))
	assert.Equal(t, filepath.Join(home, "proj"), ExpandTilde("~/proj"))
	assert.Equal(t, "/abs/path", ExpandTilde("/abs/path"))
}
