// Package recovery reconciles in-flight work left behind by a crashed
// daemon. It runs once, synchronously, before the tick loop starts.
package recovery

import (
	"errors"
	"fmt"
	"sort"
	"syscall"
	"time"

	"github.com/t0dorakis/murmur/internal/logging"
	"github.com/t0dorakis/murmur/internal/store"
)

// pidAlive probes a process with signal 0. Alive and alive-but-
// unauthorized both count as alive; "no such process" is dead.
func pidAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}

// Reconcile reads the active-beats map, converts every dead entry into a
// lost log entry, and removes the file wholesale. Live orphans are logged
// and otherwise left alone: recovery neither kills nor adopts running
// work. Returns the number of lost entries recorded.
func Reconcile(active *store.ActiveStore, log *store.BeatLog) (int, error) {
	logger := logging.ForComponent(logging.CompRecovery)

	beats, err := active.Load()
	if err != nil {
		return 0, fmt.Errorf("recovery failed to load active beats: %w", err)
	}
	if len(beats) == 0 {
		logger.Info("nothing to recover")
		return 0, nil
	}

	ids := make([]string, 0, len(beats))
	for id := range beats {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	lost := 0
	for _, id := range ids {
		beat := beats[id]
		if pidAlive(beat.PID) {
			logger.Warn("orphaned agent process still running, leaving it alone",
				"heartbeat", id, "pid", beat.PID, "started", beat.StartedAt)
			continue
		}

		entry := &store.LogEntry{
			Timestamp:  time.Now(),
			Heartbeat:  id,
			Outcome:    store.OutcomeLost,
			DurationMs: time.Since(beat.StartedAt).Milliseconds(),
			Summary:    fmt.Sprintf("agent process (pid %d) crashed or was killed before completing", beat.PID),
		}
		if err := log.Append(entry); err != nil {
			return lost, fmt.Errorf("recovery failed to record lost run: %w", err)
		}
		logger.Info("recorded lost run", "heartbeat", id, "pid", beat.PID)
		lost++
	}

	// All-or-nothing reconciliation: the file goes away entirely rather
	// than being rewritten with surviving entries.
	if err := active.Delete(); err != nil {
		return lost, err
	}
	return lost, nil
}
