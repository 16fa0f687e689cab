package main

import (
	"fmt"
	"os"

	"github.com/t0dorakis/murmur/internal/config"
	"github.com/t0dorakis/murmur/internal/logging"
)

const Version = "0.3.0"

func main() {
	args := os.Args[1:]

	if len(args) == 0 {
		printHelp()
		return
	}

	switch args[0] {
	case "version", "--version", "-v":
		fmt.Printf("murmur v%s\n", Version)
	case "help", "--help", "-h":
		printHelp()
	case "daemon":
		handleDaemon(args[1:])
	case "beat":
		handleBeat(args[1:])
	case "status":
		handleStatus(args[1:])
	case "watch":
		handleWatch(args[1:])
	case "init":
		handleInit(args[1:])
	case "stop":
		handleStop(args[1:])
	default:
		fmt.Printf("Unknown command: %s\n", args[0])
		fmt.Println("Run 'murmur help' for usage.")
		os.Exit(1)
	}
}

// mustSetup resolves the data dir and settings, exiting on failure.
// Every command starts here so they all see the same MURMUR_DIR override.
func mustSetup() (string, *config.Settings) {
	dataDir, err := config.DataDir()
	if err != nil {
		fmt.Printf("Error: failed to resolve data directory: %v\n", err)
		os.Exit(1)
	}
	settings, err := config.LoadSettings(config.SettingsPath(dataDir))
	if err != nil {
		fmt.Printf("Error: failed to load settings: %v\n", err)
		os.Exit(1)
	}
	return dataDir, settings
}

// initLogging wires the shared logger. The daemon logs to debug.log in
// the data dir; shorter-lived commands log there too so a single tail
// shows the whole picture.
func initLogging(dataDir string, settings *config.Settings) {
	logging.Init(logging.Config{
		LogDir: dataDir,
		Level:  settings.LogLevel,
		Debug:  settings.Debug,
	})
}

func printHelp() {
	fmt.Printf("murmur v%s\n", Version)
	fmt.Println("Scheduled heartbeat runs for AI coding agents")
	fmt.Println()
	fmt.Println("Usage: murmur <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  daemon           Run the scheduler in the foreground")
	fmt.Println("  beat [path]      Run due heartbeats once, without the daemon")
	fmt.Println("  status           Show configured heartbeats and their last runs")
	fmt.Println("  watch            Stream live daemon events as NDJSON")
	fmt.Println("  init             Scaffold config and a starter HEARTBEAT.md")
	fmt.Println("  stop             Stop the running daemon")
	fmt.Println("  version          Show version")
	fmt.Println("  help             Show this help")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  murmur init                  # Set up ~/.murmur and a HEARTBEAT.md here")
	fmt.Println("  murmur daemon                # Start ticking")
	fmt.Println("  murmur beat .                # Force-run this workspace's heartbeats")
	fmt.Println("  murmur watch                 # Follow events from another terminal")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  MURMUR_DIR    Data directory (default: ~/.murmur)")
}
