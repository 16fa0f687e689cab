package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/t0dorakis/murmur/internal/config"
	"github.com/t0dorakis/murmur/internal/daemon"
	"github.com/t0dorakis/murmur/internal/event"
)

// handleWatch streams the daemon's events to stdout, one JSON object per line.
func handleWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Println("Usage: murmur watch")
		fmt.Println()
		fmt.Println("Connect to the running daemon and print its event stream as")
		fmt.Println("NDJSON. Exits when the daemon shuts down or on Ctrl-C.")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	dataDir, settings := mustSetup()

	socketPath := filepath.Join(dataDir, daemon.SocketFileName)
	if settings.SocketPath != "" {
		socketPath = config.ExpandTilde(settings.SocketPath)
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	enc := json.NewEncoder(os.Stdout)
	err := daemon.Watch(ctx, socketPath, func(ev event.Event) {
		_ = enc.Encode(ev)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Printf("Error: %v\n", err)
		fmt.Println("Is the daemon running? Start it with 'murmur daemon'.")
		os.Exit(1)
	}
}
