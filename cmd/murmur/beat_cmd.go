package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/t0dorakis/murmur/internal/config"
	"github.com/t0dorakis/murmur/internal/daemon"
	"github.com/t0dorakis/murmur/internal/logging"
	"github.com/t0dorakis/murmur/internal/store"
)

// handleBeat runs due heartbeats once, without the daemon loop.
func handleBeat(args []string) {
	fs := flag.NewFlagSet("beat", flag.ExitOnError)
	force := fs.Bool("force", false, "Run even if not due")
	forceShort := fs.Bool("f", false, "Run even if not due (short)")

	fs.Usage = func() {
		fmt.Println("Usage: murmur beat [path] [options]")
		fmt.Println()
		fmt.Println("Run due heartbeats once and exit. With a path argument, only that")
		fmt.Println("workspace's heartbeats run; without one, every configured workspace")
		fmt.Println("is considered. Runs share the daemon's bookkeeping, so a crash here")
		fmt.Println("is picked up by daemon recovery.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  murmur beat               # Run everything that is due")
		fmt.Println("  murmur beat .             # Only the current workspace")
		fmt.Println("  murmur beat -f .          # Run now regardless of schedule")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	dataDir, settings := mustSetup()
	initLogging(dataDir, settings)
	defer logging.Shutdown()

	configPath := config.ConfigPath(dataDir)
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	// The filter stays path-level only: RunOnce always saves the full
	// config, so lastRun updates never drop other workspaces.
	var only string
	if path := fs.Arg(0); path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			fmt.Printf("Error: failed to resolve path: %v\n", err)
			os.Exit(1)
		}
		found := false
		for _, ws := range cfg.Workspaces {
			if ws.AbsPath() == abs {
				found = true
				break
			}
		}
		if !found {
			fmt.Printf("Error: no configured workspace at %s\n", abs)
			fmt.Println("Run 'murmur init' there first, or check 'murmur status'.")
			os.Exit(1)
		}
		only = abs
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	d := daemon.New(dataDir, configPath, settings)
	entries := d.RunOnce(ctx, cfg, only, *force || *forceShort)

	if len(entries) == 0 {
		fmt.Println("Nothing due. Use -f to run anyway.")
		return
	}
	for _, e := range entries {
		printEntry(e)
	}
}

func printEntry(e *store.LogEntry) {
	dur := (time.Duration(e.DurationMs) * time.Millisecond).Round(time.Second)
	switch e.Outcome {
	case store.OutcomeOK:
		fmt.Printf("✓ %s ok (%s)\n", e.Heartbeat, dur)
	case store.OutcomeAttention:
		fmt.Printf("◐ %s needs attention (%s)\n", e.Heartbeat, dur)
		if e.Summary != "" {
			fmt.Printf("  %s\n", e.Summary)
		}
	default:
		fmt.Printf("✕ %s failed (%s)\n", e.Heartbeat, dur)
		if e.Error != "" {
			fmt.Printf("  %s\n", e.Error)
		}
	}
}
