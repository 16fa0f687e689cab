package main

import (
	"flag"
	"fmt"
	"os"
	"syscall"

	"github.com/t0dorakis/murmur/internal/daemon"
)

// handleStop signals the running daemon via its pid file.
func handleStop(args []string) {
	fs := flag.NewFlagSet("stop", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Println("Usage: murmur stop")
		fmt.Println()
		fmt.Println("Send SIGTERM to the running daemon. The daemon finishes its")
		fmt.Println("shutdown sequence itself; an in-flight heartbeat run is bounded")
		fmt.Println("by its own timeout.")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	dataDir, _ := mustSetup()

	pid, err := daemon.ReadPID(dataDir)
	if err != nil {
		fmt.Println("No daemon running (no pid file).")
		return
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		if err == syscall.ESRCH {
			fmt.Printf("No daemon running (stale pid %d).\n", pid)
			return
		}
		fmt.Printf("Error: failed to signal daemon (pid %d): %v\n", pid, err)
		os.Exit(1)
	}
	fmt.Printf("✓ Sent SIGTERM to daemon (pid %d)\n", pid)
}
