// Package event defines the daemon's event vocabulary and the in-process
// publish/subscribe bus. The same Event values flow to local subscribers
// and, as NDJSON, to socket clients, so any observer sees an identical
// stream regardless of transport.
package event

import (
	"time"

	"github.com/t0dorakis/murmur/internal/stream"
)

// Type tags the event union. The set is closed: these seven values are
// the whole vocabulary between daemon, subscribers, and socket clients.
type Type string

const (
	TypeTick              Type = "tick"
	TypeHeartbeatStart    Type = "heartbeat:start"
	TypeHeartbeatStdout   Type = "heartbeat:stdout"
	TypeHeartbeatToolCall Type = "heartbeat:tool-call"
	TypeHeartbeatDone     Type = "heartbeat:done"
	TypeDaemonReady       Type = "daemon:ready"
	TypeDaemonShutdown    Type = "daemon:shutdown"
)

// HeartbeatStatus is the per-heartbeat snapshot carried by tick events.
type HeartbeatStatus struct {
	Heartbeat   string     `json:"heartbeat"`
	Name        string     `json:"name"`
	Schedule    string     `json:"schedule"`
	NextRun     *time.Time `json:"nextRun,omitempty"`
	LastRun     *time.Time `json:"lastRun,omitempty"`
	LastOutcome string     `json:"lastOutcome,omitempty"`
	Due         bool       `json:"due,omitempty"`
}

// Event is one immutable value on the bus. Type selects which optional
// fields are populated.
type Event struct {
	Type Type      `json:"type"`
	Time time.Time `json:"time"`

	// heartbeat:* events
	Heartbeat string           `json:"heartbeat,omitempty"`
	Name      string           `json:"name,omitempty"`
	Chunk     string           `json:"chunk,omitempty"`
	ToolCall  *stream.ToolCall `json:"toolCall,omitempty"`

	// heartbeat:done
	Outcome    string `json:"outcome,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
	Summary    string `json:"summary,omitempty"`

	// tick
	Statuses []HeartbeatStatus `json:"statuses,omitempty"`
}

// New returns an event of the given type stamped with the current time.
func New(t Type) Event {
	return Event{Type: t, Time: time.Now()}
}
