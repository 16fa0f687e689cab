// Package heartbeat models the schedulable unit: a workspace plus one
// heartbeat file. A workspace config entry expands into one heartbeat for
// the root HEARTBEAT.md and one per heartbeats/<name>/HEARTBEAT.md found.
package heartbeat

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/t0dorakis/murmur/internal/config"
	"github.com/t0dorakis/murmur/internal/logging"
)

// RootFile is the default heartbeat file at the workspace root.
const RootFile = "HEARTBEAT.md"

// HeartbeatsDir is the directory scanned for named heartbeats.
const HeartbeatsDir = "heartbeats"

// Heartbeat is one schedulable unit. Identity is (workspace path, file);
// for the root file it collapses to the workspace path alone so that
// single-heartbeat workspaces keep their pre-expansion identity.
type Heartbeat struct {
	Workspace *config.WorkspaceConfig

	// File is the heartbeat file path relative to the workspace root,
	// e.g. "HEARTBEAT.md" or "heartbeats/deploy/HEARTBEAT.md".
	File string

	// LastRun is resolved independently per heartbeat; nil means never run.
	LastRun *time.Time
}

// ID returns the stable identity used as the join key between scheduling
// state, active-beat records, and log entries.
func (h *Heartbeat) ID() string {
	if h.File == RootFile {
		return h.Workspace.Path
	}
	return h.Workspace.Path + "::" + h.File
}

// Name returns a short display name: the workspace name, suffixed with the
// heartbeat directory name for named heartbeats.
func (h *Heartbeat) Name() string {
	base := h.Workspace.DisplayName()
	if h.File == RootFile {
		return base
	}
	return base + ":" + filepath.Base(filepath.Dir(h.File))
}

var slugRe = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Slug returns the display name with non-alphanumeric runs replaced, used
// in the last-beat-<slug>.json filename.
func (h *Heartbeat) Slug() string {
	return slugRe.ReplaceAllString(h.Name(), "-")
}

// PromptPath returns the absolute path of the heartbeat file.
func (h *Heartbeat) PromptPath() string {
	return filepath.Join(h.Workspace.AbsPath(), h.File)
}

// Expand resolves a workspace config entry into its heartbeats. The root
// heartbeat is always produced (a missing file surfaces later as a run
// error, not a discovery gap); named heartbeats are added for each
// heartbeats/<name>/HEARTBEAT.md directory found. An unreadable heartbeats
// directory degrades to the root heartbeat alone with a warning.
func Expand(ws *config.WorkspaceConfig) []*Heartbeat {
	beats := []*Heartbeat{{
		Workspace: ws,
		File:      RootFile,
		LastRun:   resolveLastRun(ws, RootFile),
	}}

	dir := filepath.Join(ws.AbsPath(), HeartbeatsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.ForComponent(logging.CompConfig).Warn("heartbeats dir unreadable",
				"workspace", ws.Path, "error", err)
		}
		return beats
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		file := filepath.Join(HeartbeatsDir, e.Name(), RootFile)
		if _, err := os.Stat(filepath.Join(ws.AbsPath(), file)); err != nil {
			continue
		}
		names = append(names, file)
	}
	sort.Strings(names)

	for _, file := range names {
		beats = append(beats, &Heartbeat{
			Workspace: ws,
			File:      file,
			LastRun:   resolveLastRun(ws, file),
		})
	}
	return beats
}

// ExpandAll expands every workspace in the config, in order.
func ExpandAll(cfg *config.Config) []*Heartbeat {
	var beats []*Heartbeat
	for _, ws := range cfg.Workspaces {
		beats = append(beats, Expand(ws)...)
	}
	return beats
}

// resolveLastRun picks the timestamp belonging to exactly this heartbeat:
// the flat field for the root, the lastRuns map entry otherwise. It never
// falls back to a sibling's timestamp.
func resolveLastRun(ws *config.WorkspaceConfig, file string) *time.Time {
	if file == RootFile {
		if ws.LastRun != nil {
			return ws.LastRun
		}
		return ws.LastRuns[file]
	}
	return ws.LastRuns[file]
}

// RecordLastRun writes a completion time back onto the workspace config:
// the flat field for the root heartbeat, the lastRuns map for named ones.
func RecordLastRun(ws *config.WorkspaceConfig, file string, t time.Time) {
	if file == RootFile {
		ws.LastRun = &t
		return
	}
	if ws.LastRuns == nil {
		ws.LastRuns = make(map[string]*time.Time)
	}
	ws.LastRuns[file] = &t
}

// Prompt reads the heartbeat file contents for use as the agent prompt.
func (h *Heartbeat) Prompt() (string, error) {
	data, err := os.ReadFile(h.PromptPath())
	if err != nil {
		return "", fmt.Errorf("heartbeat file missing: %w", err)
	}
	return string(data), nil
}
