package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/t0dorakis/murmur/internal/config"
	"github.com/t0dorakis/murmur/internal/daemon"
	"github.com/t0dorakis/murmur/internal/logging"
)

// handleDaemon runs the scheduler in the foreground until SIGINT/SIGTERM.
func handleDaemon(args []string) {
	fs := flag.NewFlagSet("daemon", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Println("Usage: murmur daemon")
		fmt.Println()
		fmt.Println("Run the heartbeat scheduler in the foreground. The daemon ticks")
		fmt.Println("on the configured interval, runs due heartbeats one at a time,")
		fmt.Println("and serves live events on a Unix socket in the data directory.")
		fmt.Println()
		fmt.Println("Stop with Ctrl-C or 'murmur stop'.")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	dataDir, settings := mustSetup()
	initLogging(dataDir, settings)
	defer logging.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := daemon.New(dataDir, config.ConfigPath(dataDir), settings)
	fmt.Printf("murmur daemon starting (data dir %s)\n", dataDir)

	if err := d.Run(ctx); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("murmur daemon stopped")
}
