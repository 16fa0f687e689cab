// Package store owns the mutable files in the data directory: the
// active-beats map, the append-only run log, and the per-heartbeat last
// conversation files. All JSON rewrites go through the shared atomic
// write-then-rename; the log is append-only.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/t0dorakis/murmur/internal/config"
)

// ActiveFileName is the in-flight work ledger inside the data dir.
const ActiveFileName = "active-beats.json"

// ActiveBeat records one spawned, not-yet-completed agent run. An entry
// exists in the map exactly while its subprocess is alive and unreconciled.
type ActiveBeat struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"startedAt"`
	Workspace string    `json:"workspace"`
}

// ActiveStore persists the heartbeat-identity -> ActiveBeat map. Every
// add/remove rewrites the whole file atomically.
type ActiveStore struct {
	path string
	mu   sync.Mutex
}

// NewActiveStore returns a store over <dir>/active-beats.json.
func NewActiveStore(dir string) *ActiveStore {
	return &ActiveStore{path: filepath.Join(dir, ActiveFileName)}
}

// Path returns the backing file path.
func (s *ActiveStore) Path() string { return s.path }

// Load reads the map. An absent file means no in-flight work.
func (s *ActiveStore) Load() (map[string]ActiveBeat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *ActiveStore) load() (map[string]ActiveBeat, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]ActiveBeat{}, nil
		}
		return nil, fmt.Errorf("failed to read active beats: %w", err)
	}

	beats := map[string]ActiveBeat{}
	if err := json.Unmarshal(data, &beats); err != nil {
		return nil, fmt.Errorf("failed to parse active beats: %w", err)
	}
	return beats, nil
}

func (s *ActiveStore) save(beats map[string]ActiveBeat) error {
	data, err := json.MarshalIndent(beats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal active beats: %w", err)
	}
	return config.AtomicWrite(s.path, append(data, '\n'))
}

// Add registers an in-flight run under its heartbeat identity.
func (s *ActiveStore) Add(id string, beat ActiveBeat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	beats, err := s.load()
	if err != nil {
		return err
	}
	beats[id] = beat
	return s.save(beats)
}

// Remove clears a completed run. Unknown ids are a no-op.
func (s *ActiveStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	beats, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := beats[id]; !ok {
		return nil
	}
	delete(beats, id)
	return s.save(beats)
}

// Delete removes the file entirely. Recovery calls this after its
// reconciliation pass.
func (s *ActiveStore) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete active beats: %w", err)
	}
	return nil
}
