// Package daemon drives the heartbeat schedule: one long-lived tick loop
// that re-reads configuration, runs due heartbeats sequentially, and
// broadcasts live state over the in-process bus and the Unix socket.
package daemon

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/t0dorakis/murmur/internal/agent"
	"github.com/t0dorakis/murmur/internal/config"
	"github.com/t0dorakis/murmur/internal/event"
	"github.com/t0dorakis/murmur/internal/heartbeat"
	"github.com/t0dorakis/murmur/internal/logging"
	"github.com/t0dorakis/murmur/internal/recovery"
	"github.com/t0dorakis/murmur/internal/runner"
	"github.com/t0dorakis/murmur/internal/store"
)

// Daemon owns the tick loop and its collaborators. Everything is
// constructed explicitly; nothing lives in package-level state.
type Daemon struct {
	dataDir    string
	configPath string
	settings   *config.Settings

	bus    *event.Bus
	active *store.ActiveStore
	runLog *store.BeatLog
	runner *runner.Runner

	logger *slog.Logger
}

// New wires a daemon over the given data directory.
func New(dataDir, configPath string, settings *config.Settings) *Daemon {
	bus := event.NewBus()
	active := store.NewActiveStore(dataDir)
	runLog := store.NewBeatLog(dataDir)

	return &Daemon{
		dataDir:    dataDir,
		configPath: configPath,
		settings:   settings,
		bus:        bus,
		active:     active,
		runLog:     runLog,
		runner:     runner.New(agent.NewRegistry(), active, runLog, bus, dataDir, settings),
		logger:     logging.ForComponent(logging.CompDaemon),
	}
}

// Bus exposes the event bus for in-process subscribers.
func (d *Daemon) Bus() *event.Bus { return d.bus }

// SocketPath returns the configured or default socket location.
func (d *Daemon) SocketPath() string {
	if d.settings.SocketPath != "" {
		return config.ExpandTilde(d.settings.SocketPath)
	}
	return filepath.Join(d.dataDir, SocketFileName)
}

// Run executes the daemon until ctx is cancelled: acquire the pid file,
// reconcile crashed runs, start the socket server, then tick on the
// configured interval. Shutdown broadcasts daemon:shutdown, closes the
// socket, and removes the pid and socket files. An in-flight run is not
// force-killed here; the per-run timeout still bounds it.
func (d *Daemon) Run(ctx context.Context) error {
	pidFile, err := AcquirePIDFile(d.dataDir)
	if err != nil {
		return err
	}
	defer pidFile.Release()

	// Recovery runs once, before the first tick.
	if _, err := recovery.Reconcile(d.active, d.runLog); err != nil {
		d.logger.Error("crash recovery failed", "error", err)
	}

	socket := NewSocketServer(d.SocketPath(), d.bus)
	if err := socket.Start(); err != nil {
		return err
	}
	defer socket.Close()

	watcher, err := NewConfigWatcher(d.configPath)
	if err != nil {
		d.logger.Warn("config watching disabled", "error", err)
	} else {
		defer watcher.Close()
	}
	var changed <-chan struct{}
	if watcher != nil {
		changed = watcher.Changed
	}

	d.bus.Emit(event.New(event.TypeDaemonReady))
	d.logger.Info("daemon ready",
		"data_dir", d.dataDir, "tick_interval_secs", d.settings.TickIntervalSecs)

	ticker := time.NewTicker(time.Duration(d.settings.TickIntervalSecs) * time.Second)
	defer ticker.Stop()

	for {
		d.tick(ctx)

		select {
		case <-ctx.Done():
			d.logger.Info("shutting down")
			d.bus.Emit(event.New(event.TypeDaemonShutdown))
			return nil
		case <-ticker.C:
		case <-changed:
			d.logger.Info("config changed, re-reading")
		}
	}
}

// tick re-reads config, publishes computed status for every discovered
// heartbeat, and runs the due ones one at a time. A panic anywhere inside
// is caught and logged; the loop continues on the next interval.
func (d *Daemon) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tick panicked", "panic", r)
		}
	}()

	cfg, err := config.Load(d.configPath)
	if err != nil {
		d.logger.Warn("failed to load config", "error", err)
		return
	}

	var beats []*heartbeat.Heartbeat
	for _, ws := range cfg.Workspaces {
		if err := heartbeat.ValidateSchedule(ws); err != nil {
			d.logger.Warn("skipping misconfigured workspace", "error", err)
			continue
		}
		beats = append(beats, heartbeat.Expand(ws)...)
	}

	lastOutcomes, err := d.runLog.LastOutcomes()
	if err != nil {
		d.logger.Warn("failed to read run history", "error", err)
		lastOutcomes = map[string]*store.LogEntry{}
	}

	now := time.Now()
	var due []*heartbeat.Heartbeat

	ev := event.New(event.TypeTick)
	for _, hb := range beats {
		status := event.HeartbeatStatus{
			Heartbeat: hb.ID(),
			Name:      hb.Name(),
			Schedule:  hb.DescribeSchedule(),
			LastRun:   hb.LastRun,
			Due:       hb.IsDue(now),
		}
		if next := hb.NextRun(now); !next.IsZero() {
			status.NextRun = &next
		}
		if last := lastOutcomes[hb.ID()]; last != nil {
			status.LastOutcome = string(last.Outcome)
		}
		ev.Statuses = append(ev.Statuses, status)

		if status.Due {
			due = append(due, hb)
		}
	}
	d.bus.Emit(ev)

	// Due heartbeats run sequentially: one agent process system-wide, so
	// two runs never race on the same workspace.
	for _, hb := range due {
		if ctx.Err() != nil {
			return
		}
		entry := d.runner.Run(ctx, hb)

		heartbeat.RecordLastRun(hb.Workspace, hb.File, entry.Timestamp)
		if err := config.Save(d.configPath, cfg); err != nil {
			d.logger.Error("failed to persist lastRun", "heartbeat", hb.ID(), "error", err)
		}
	}
}

// RunOnce executes the due (or, with force, all) heartbeats of a single
// loaded config outside the daemon loop. A non-empty only restricts the
// run to the workspace at that absolute path while still saving the full
// config, so unrelated workspaces survive the rewrite. The one-shot
// `beat` command uses this; it shares the runner path, so active-beat
// registration and crash recovery behave exactly as under the daemon.
func (d *Daemon) RunOnce(ctx context.Context, cfg *config.Config, only string, force bool) []*store.LogEntry {
	var entries []*store.LogEntry
	now := time.Now()

	for _, ws := range cfg.Workspaces {
		if only != "" && ws.AbsPath() != only {
			continue
		}
		if err := heartbeat.ValidateSchedule(ws); err != nil {
			d.logger.Warn("skipping misconfigured workspace", "error", err)
			continue
		}
		for _, hb := range heartbeat.Expand(ws) {
			if !force && !hb.IsDue(now) {
				continue
			}
			entry := d.runner.Run(ctx, hb)
			entries = append(entries, entry)

			heartbeat.RecordLastRun(hb.Workspace, hb.File, entry.Timestamp)
			if err := config.Save(d.configPath, cfg); err != nil {
				d.logger.Error("failed to persist lastRun", "heartbeat", hb.ID(), "error", err)
			}
		}
	}
	return entries
}
