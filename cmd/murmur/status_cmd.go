package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/t0dorakis/murmur/internal/config"
	"github.com/t0dorakis/murmur/internal/heartbeat"
	"github.com/t0dorakis/murmur/internal/store"
)

const (
	tableColName     = 28
	tableColSchedule = 16
	tableColLastRun  = 18
	tableColOutcome  = 10
)

// handleStatus prints the configured heartbeats and their run history.
func handleStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Println("Usage: murmur status [options]")
		fmt.Println()
		fmt.Println("Show every configured heartbeat with its schedule, last run,")
		fmt.Println("last outcome, and next due time.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	dataDir, _ := mustSetup()
	cfg, err := config.Load(config.ConfigPath(dataDir))
	if err != nil {
		fmt.Printf("Error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	beats := heartbeat.ExpandAll(cfg)
	if len(beats) == 0 {
		fmt.Println("No heartbeats configured. Run 'murmur init' in a workspace.")
		return
	}

	lastOutcomes, err := store.NewBeatLog(dataDir).LastOutcomes()
	if err != nil {
		fmt.Printf("Error: failed to read run history: %v\n", err)
		os.Exit(1)
	}

	now := time.Now()

	if *jsonOutput {
		type statusJSON struct {
			Heartbeat   string     `json:"heartbeat"`
			Name        string     `json:"name"`
			Schedule    string     `json:"schedule"`
			LastRun     *time.Time `json:"lastRun,omitempty"`
			LastOutcome string     `json:"lastOutcome,omitempty"`
			NextRun     *time.Time `json:"nextRun,omitempty"`
			Due         bool       `json:"due"`
		}
		statuses := make([]statusJSON, 0, len(beats))
		for _, hb := range beats {
			s := statusJSON{
				Heartbeat: hb.ID(),
				Name:      hb.Name(),
				Schedule:  hb.DescribeSchedule(),
				LastRun:   hb.LastRun,
				Due:       hb.IsDue(now),
			}
			if next := hb.NextRun(now); !next.IsZero() {
				s.NextRun = &next
			}
			if last := lastOutcomes[hb.ID()]; last != nil {
				s.LastOutcome = string(last.Outcome)
			}
			statuses = append(statuses, s)
		}
		output, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			fmt.Printf("Error: failed to format JSON output: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(output))
		return
	}

	fmt.Printf("%-*s %-*s %-*s %-*s %s\n",
		tableColName, "HEARTBEAT", tableColSchedule, "SCHEDULE",
		tableColLastRun, "LAST RUN", tableColOutcome, "OUTCOME", "NEXT DUE")
	fmt.Println(strings.Repeat("-", tableColName+tableColSchedule+tableColLastRun+tableColOutcome+12))

	for _, hb := range beats {
		lastRun := "never"
		if hb.LastRun != nil {
			lastRun = hb.LastRun.Local().Format("2006-01-02 15:04")
		}
		outcome := "-"
		if last := lastOutcomes[hb.ID()]; last != nil {
			outcome = string(last.Outcome)
		}
		nextDue := "-"
		if hb.IsDue(now) {
			nextDue = "now"
		} else if next := hb.NextRun(now); !next.IsZero() {
			nextDue = next.Local().Format("2006-01-02 15:04")
		}
		fmt.Printf("%-*s %-*s %-*s %-*s %s\n",
			tableColName, truncate(hb.Name(), tableColName),
			tableColSchedule, truncate(hb.DescribeSchedule(), tableColSchedule),
			tableColLastRun, lastRun,
			tableColOutcome, outcome,
			nextDue)
	}
	fmt.Printf("\nTotal: %d heartbeats\n", len(beats))
}

// truncate shortens a string to max length with ellipsis
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
