package heartbeat

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/t0dorakis/murmur/internal/config"
)

var intervalRe = regexp.MustCompile(`^(\d+)(s|m|h|d)$`)

// ParseInterval parses the <integer><unit> interval grammar with unit one
// of s, m, h, d.
func ParseInterval(s string) (time.Duration, error) {
	m := intervalRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid interval %q (expected <number><s|m|h|d>)", s)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: %w", s, err)
	}
	switch m[2] {
	case "s":
		return time.Duration(n) * time.Second, nil
	case "m":
		return time.Duration(n) * time.Minute, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	default:
		return time.Duration(n) * 24 * time.Hour, nil
	}
}

// parseCron parses a standard 5-field cron expression, applying the
// workspace timezone when set.
func parseCron(expr, timezone string) (cron.Schedule, error) {
	if timezone != "" {
		expr = "CRON_TZ=" + timezone + " " + expr
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return sched, nil
}

// ValidateSchedule checks a workspace's schedule fields at config-load
// time: exactly one of interval/cron, both parseable, timezone only with
// cron.
func ValidateSchedule(ws *config.WorkspaceConfig) error {
	switch {
	case ws.Interval != "" && ws.Cron != "":
		return fmt.Errorf("workspace %s: interval and cron are mutually exclusive", ws.Path)
	case ws.Interval == "" && ws.Cron == "":
		return fmt.Errorf("workspace %s: either interval or cron is required", ws.Path)
	}

	if ws.Interval != "" {
		if ws.Timezone != "" {
			return fmt.Errorf("workspace %s: timezone requires a cron schedule", ws.Path)
		}
		if _, err := ParseInterval(ws.Interval); err != nil {
			return fmt.Errorf("workspace %s: %w", ws.Path, err)
		}
		return nil
	}

	if _, err := parseCron(ws.Cron, ws.Timezone); err != nil {
		return fmt.Errorf("workspace %s: %w", ws.Path, err)
	}
	return nil
}

// IsDue reports whether the heartbeat should run now. A heartbeat that has
// never run is always due. Interval boundaries are inclusive: an exactly
// elapsed interval counts. A heartbeat with neither interval nor cron is
// never due.
func (h *Heartbeat) IsDue(now time.Time) bool {
	ws := h.Workspace

	switch {
	case ws.Interval != "":
		if h.LastRun == nil {
			return true
		}
		d, err := ParseInterval(ws.Interval)
		if err != nil {
			return false
		}
		return now.Sub(*h.LastRun) >= d

	case ws.Cron != "":
		if h.LastRun == nil {
			return true
		}
		sched, err := parseCron(ws.Cron, ws.Timezone)
		if err != nil {
			return false
		}
		next := sched.Next(*h.LastRun)
		return !now.Before(next)

	default:
		return false
	}
}

// NextRun returns the next scheduled time, or the zero time when the
// heartbeat has no valid schedule. A never-run heartbeat is due
// immediately, so its next run is now.
func (h *Heartbeat) NextRun(now time.Time) time.Time {
	ws := h.Workspace

	switch {
	case ws.Interval != "":
		d, err := ParseInterval(ws.Interval)
		if err != nil {
			return time.Time{}
		}
		if h.LastRun == nil {
			return now
		}
		return h.LastRun.Add(d)

	case ws.Cron != "":
		sched, err := parseCron(ws.Cron, ws.Timezone)
		if err != nil {
			return time.Time{}
		}
		if h.LastRun == nil {
			return now
		}
		return sched.Next(*h.LastRun)

	default:
		return time.Time{}
	}
}

// DescribeSchedule returns a short human-readable schedule description.
func (h *Heartbeat) DescribeSchedule() string {
	ws := h.Workspace
	switch {
	case ws.Interval != "":
		return "every " + ws.Interval
	case ws.Cron != "":
		if ws.Timezone != "" {
			return fmt.Sprintf("cron %s (%s)", ws.Cron, ws.Timezone)
		}
		return "cron " + ws.Cron
	default:
		return "unscheduled"
	}
}
