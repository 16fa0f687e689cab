// Package runner drives one heartbeat run through its state machine:
// build-prompt, resolve-adapter, check-availability, execute, classify,
// persist. Runs are strictly sequential; the daemon invokes one at a time.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/t0dorakis/murmur/internal/agent"
	"github.com/t0dorakis/murmur/internal/config"
	"github.com/t0dorakis/murmur/internal/event"
	"github.com/t0dorakis/murmur/internal/heartbeat"
	"github.com/t0dorakis/murmur/internal/logging"
	"github.com/t0dorakis/murmur/internal/store"
	"github.com/t0dorakis/murmur/internal/stream"
)

// stdoutEventLimit throttles heartbeat:stdout bus events so a chatty agent
// cannot flood socket clients. Lifecycle and tool-call events are never
// throttled.
var stdoutEventLimit = rate.Limit(5)

const stdoutEventBurst = 10

// Runner executes heartbeats and persists their outcomes.
type Runner struct {
	registry *agent.Registry
	active   *store.ActiveStore
	log      *store.BeatLog
	bus      *event.Bus
	dataDir  string
	settings *config.Settings
	logger   *slog.Logger
}

// New constructs a runner over explicit collaborators; there is no hidden
// process-wide state.
func New(registry *agent.Registry, active *store.ActiveStore, log *store.BeatLog, bus *event.Bus, dataDir string, settings *config.Settings) *Runner {
	return &Runner{
		registry: registry,
		active:   active,
		log:      log,
		bus:      bus,
		dataDir:  dataDir,
		settings: settings,
		logger:   logging.ForComponent(logging.CompRunner),
	}
}

// Run executes one heartbeat end to end and returns its log entry. It
// never returns an error: every failure mode becomes an error-outcome
// entry, and no failure escapes to crash the caller's loop.
func (r *Runner) Run(ctx context.Context, hb *heartbeat.Heartbeat) *store.LogEntry {
	id := hb.ID()
	started := time.Now()

	ev := event.New(event.TypeHeartbeatStart)
	ev.Heartbeat = id
	ev.Name = hb.Name()
	r.bus.Emit(ev)

	r.logger.Info("running heartbeat", "heartbeat", id, "agent", hb.Workspace.Agent)

	// Failures before execute short-circuit with no process spawned.
	prompt, err := hb.Prompt()
	if err != nil {
		return r.finish(hb, started, r.errorEntry(id, started, err))
	}

	adapter, err := r.registry.Resolve(hb.Workspace.Agent)
	if err != nil {
		return r.finish(hb, started, r.errorEntry(id, started, err))
	}

	if !adapter.IsAvailable() {
		err := fmt.Errorf("agent CLI %q not found on PATH", adapter.Name())
		return r.finish(hb, started, r.errorEntry(id, started, err))
	}

	// Effective config: workspace values with settings defaults filled in.
	ws := *hb.Workspace
	if ws.Timeout == "" {
		ws.Timeout = r.settings.DefaultTimeout
	}
	if ws.MaxTurns == 0 {
		ws.MaxTurns = r.settings.DefaultMaxTurns
	}

	// The active-beat record is registered the moment the PID is known and
	// cleared on every exit path; crash recovery depends on this pairing.
	registered := false
	defer func() {
		if registered {
			if err := r.active.Remove(id); err != nil {
				r.logger.Error("failed to clear active beat", "heartbeat", id, "error", err)
			}
		}
	}()

	limiter := rate.NewLimiter(stdoutEventLimit, stdoutEventBurst)

	result, execErr := adapter.Execute(ctx, prompt, &ws, agent.Callbacks{
		OnStart: func(pid int) {
			if err := r.active.Add(id, store.ActiveBeat{
				PID:       pid,
				StartedAt: started,
				Workspace: hb.Workspace.Path,
			}); err != nil {
				r.logger.Error("failed to register active beat", "heartbeat", id, "error", err)
				return
			}
			registered = true
		},
		OnStdout: func(chunk string) {
			if !limiter.Allow() {
				return
			}
			ev := event.New(event.TypeHeartbeatStdout)
			ev.Heartbeat = id
			ev.Chunk = chunk
			r.bus.Emit(ev)
		},
		OnToolCall: func(tc *stream.ToolCall) {
			ev := event.New(event.TypeHeartbeatToolCall)
			ev.Heartbeat = id
			ev.ToolCall = tc
			r.bus.Emit(ev)
		},
	})

	var entry *store.LogEntry
	switch {
	case result == nil:
		// Validation or spawn failure: nothing ran.
		entry = r.errorEntry(id, started, execErr)
	case execErr != nil:
		entry = r.errorEntry(id, started, execErr)
		entry.Turns = result.Turns
	default:
		entry = r.classifyResult(hb, id, started, result)
	}

	return r.finish(hb, started, entry)
}

// classifyResult builds the log entry for a run that produced an exit
// status.
func (r *Runner) classifyResult(hb *heartbeat.Heartbeat, id string, started time.Time, result *agent.Result) *store.LogEntry {
	output := result.ResultText
	if output == "" {
		output = result.RawStdout
	}

	entry := &store.LogEntry{
		Timestamp:  time.Now(),
		Heartbeat:  id,
		Outcome:    Classify(output, result.ExitCode),
		DurationMs: time.Since(started).Milliseconds(),
		Turns:      result.Turns,
	}

	switch entry.Outcome {
	case store.OutcomeOK:
		if len(result.Turns) > 0 {
			if err := store.WriteLastBeat(r.dataDir, hb.Slug(), result.Turns); err != nil {
				r.logger.Error("failed to write last beat", "heartbeat", id, "error", err)
			}
		}
	case store.OutcomeAttention:
		entry.Summary = store.Truncate(output, store.SummaryLimit)
	case store.OutcomeError:
		msg := output
		if msg == "" {
			msg = result.Stderr
		}
		entry.Error = store.Truncate(fmt.Sprintf("exit %d: %s", result.ExitCode, msg), store.SummaryLimit)
	}
	return entry
}

// errorEntry builds an error-outcome entry from a failure.
func (r *Runner) errorEntry(id string, started time.Time, err error) *store.LogEntry {
	msg := "agent produced no result"
	if err != nil {
		msg = err.Error()
	}
	return &store.LogEntry{
		Timestamp:  time.Now(),
		Heartbeat:  id,
		Outcome:    store.OutcomeError,
		DurationMs: time.Since(started).Milliseconds(),
		Error:      store.Truncate(msg, store.SummaryLimit),
	}
}

// finish persists the entry and emits heartbeat:done.
func (r *Runner) finish(hb *heartbeat.Heartbeat, started time.Time, entry *store.LogEntry) *store.LogEntry {
	if err := r.log.Append(entry); err != nil {
		r.logger.Error("failed to append log entry", "heartbeat", entry.Heartbeat, "error", err)
	}

	ev := event.New(event.TypeHeartbeatDone)
	ev.Heartbeat = entry.Heartbeat
	ev.Name = hb.Name()
	ev.Outcome = string(entry.Outcome)
	ev.DurationMs = entry.DurationMs
	ev.Summary = entry.Summary
	if ev.Summary == "" {
		ev.Summary = entry.Error
	}
	r.bus.Emit(ev)

	r.logger.Info("heartbeat finished",
		"heartbeat", entry.Heartbeat, "outcome", entry.Outcome, "duration_ms", entry.DurationMs)
	return entry
}
