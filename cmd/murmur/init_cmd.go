package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/t0dorakis/murmur/internal/config"
	"github.com/t0dorakis/murmur/internal/heartbeat"
)

const starterHeartbeat = `# Heartbeat

Check the health of this project:

- Do the tests still pass?
- Are there uncommitted changes that look forgotten?
- Any TODO or FIXME that has been sitting for a while?

If everything looks fine, end your reply with the single line:

HEARTBEAT_OK

If something needs a human, describe it briefly and start the line
with ATTENTION.
`

// handleInit scaffolds the data dir and registers the workspace.
func handleInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	interval := fs.String("interval", "1h", "Run interval (e.g. 30m, 4h, 1d)")
	agentName := fs.String("agent", "", "Agent CLI to use (claude, codex, gemini)")

	fs.Usage = func() {
		fmt.Println("Usage: murmur init [path] [options]")
		fmt.Println()
		fmt.Println("Create the murmur data directory, write a starter HEARTBEAT.md in")
		fmt.Println("the workspace, and register it in config.json. Safe to re-run;")
		fmt.Println("existing files are left alone.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  murmur init                      # Current directory, hourly")
		fmt.Println("  murmur init -interval 1d .       # Daily")
		fmt.Println("  murmur init -agent codex ~/proj")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	path := fs.Arg(0)
	if path == "" {
		path = "."
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fmt.Printf("Error: failed to resolve path: %v\n", err)
		os.Exit(1)
	}
	info, err := os.Stat(abs)
	if err != nil {
		fmt.Printf("Error: path does not exist: %s\n", abs)
		os.Exit(1)
	}
	if !info.IsDir() {
		fmt.Printf("Error: path is not a directory: %s\n", abs)
		os.Exit(1)
	}

	dataDir, _ := mustSetup()
	configPath := config.ConfigPath(dataDir)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Starter prompt, only if the workspace has none.
	promptPath := filepath.Join(abs, heartbeat.RootFile)
	if _, err := os.Stat(promptPath); os.IsNotExist(err) {
		if err := os.WriteFile(promptPath, []byte(starterHeartbeat), 0644); err != nil {
			fmt.Printf("Error: failed to write %s: %v\n", heartbeat.RootFile, err)
			os.Exit(1)
		}
		fmt.Printf("✓ Created %s\n", promptPath)
	} else {
		fmt.Printf("  %s already exists, keeping it\n", promptPath)
	}

	for _, ws := range cfg.Workspaces {
		if ws.AbsPath() == abs {
			fmt.Printf("  Workspace already registered: %s\n", abs)
			return
		}
	}

	ws := &config.WorkspaceConfig{
		Path:     abs,
		Interval: *interval,
		Agent:    *agentName,
	}
	if err := heartbeat.ValidateSchedule(ws); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	cfg.Workspaces = append(cfg.Workspaces, ws)

	if err := config.Save(configPath, cfg); err != nil {
		fmt.Printf("Error: failed to save config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Registered workspace: %s (every %s)\n", abs, *interval)
	fmt.Println("  Start the scheduler with: murmur daemon")
}
