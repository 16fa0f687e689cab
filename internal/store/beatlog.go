package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/t0dorakis/murmur/internal/logging"
	"github.com/t0dorakis/murmur/internal/stream"
)

// LogFileName is the append-only run history inside the data dir.
const LogFileName = "heartbeats.jsonl"

// SummaryLimit caps the excerpt stored on attention/error entries.
const SummaryLimit = 200

// Outcome classifies one completed (or reconciled) run.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeAttention Outcome = "attention"
	OutcomeError     Outcome = "error"
	OutcomeLost      Outcome = "lost"
	OutcomeRecovered Outcome = "recovered"
)

// LogEntry is one line of heartbeats.jsonl. Appended, never mutated.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Heartbeat  string         `json:"heartbeat"`
	Outcome    Outcome        `json:"outcome"`
	DurationMs int64          `json:"durationMs,omitempty"`
	Summary    string         `json:"summary,omitempty"`
	Error      string         `json:"error,omitempty"`
	Turns      []*stream.Turn `json:"turns,omitempty"`
}

// BeatLog appends run outcomes to the newline-delimited JSON log.
type BeatLog struct {
	path string
	mu   sync.Mutex
}

// NewBeatLog returns a log over <dir>/heartbeats.jsonl.
func NewBeatLog(dir string) *BeatLog {
	return &BeatLog{path: filepath.Join(dir, LogFileName)}
}

// Path returns the backing file path.
func (l *BeatLog) Path() string { return l.path }

// Append writes one entry as a single line, newest last.
func (l *BeatLog) Append(e *LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}
	return nil
}

// LastOutcomes scans the log and returns the newest entry per heartbeat
// identity. Malformed lines are skipped with a diagnostic.
func (l *BeatLog) LastOutcomes() (map[string]*LogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*LogEntry{}, nil
		}
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	defer f.Close()

	last := map[string]*LogEntry{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e LogEntry
		if err := json.Unmarshal(line, &e); err != nil {
			logging.ForComponent(logging.CompStore).Debug("skipping malformed log line", "error", err)
			continue
		}
		last[e.Heartbeat] = &e
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan log: %w", err)
	}
	return last, nil
}

// Truncate shortens s to at most n runes, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
