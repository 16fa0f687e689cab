// Package stream turns the wire output of agent subprocesses into a single
// conversation model. Two line-delimited JSON formats are supported, each
// with its own incremental parser; both tolerate malformed lines, accept
// arbitrarily chunked input, and fire the same side-channel callbacks as
// data arrives.
package stream

import (
	"bytes"
	"encoding/json"
)

// ToolCall is one tool invocation inside an assistant turn. It is pending
// while Output is nil and resolved once a matching result backfills it.
type ToolCall struct {
	Name       string          `json:"name"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     *string         `json:"output,omitempty"`
	DurationMs int64           `json:"durationMs,omitempty"`
}

// Resolved reports whether the call has received its result.
func (t *ToolCall) Resolved() bool {
	return t.Output != nil
}

// TurnType discriminates conversation turns.
type TurnType string

const (
	TurnAssistant TurnType = "assistant"
	TurnResult    TurnType = "result"
)

// Turn is either an assistant turn (text and/or tool calls) or the
// terminal result turn (final text plus run totals).
type Turn struct {
	Type      TurnType    `json:"type"`
	Text      string      `json:"text,omitempty"`
	ToolCalls []*ToolCall `json:"toolCalls,omitempty"`

	// Result-turn fields.
	CostUSD    float64 `json:"costUsd,omitempty"`
	DurationMs int64   `json:"durationMs,omitempty"`
	NumTurns   int     `json:"numTurns,omitempty"`
}

// Callbacks are the side-channel events a parser fires as data arrives.
// Either field may be nil.
type Callbacks struct {
	// OnText fires for each piece of assistant free text.
	OnText func(text string)

	// OnToolCall fires when a tool call is observed. For format A this is
	// at tool-use time (the call is still pending); for format B it is at
	// item completion (already resolved).
	OnToolCall func(tc *ToolCall)
}

// lineBuffer reassembles newline-delimited records from arbitrarily
// chunked input, holding a partial trailing line until it completes.
type lineBuffer struct {
	buf []byte
}

// feed appends data and invokes emit once per complete line.
func (b *lineBuffer) feed(data []byte, emit func(line []byte)) {
	b.buf = append(b.buf, data...)
	for {
		i := bytes.IndexByte(b.buf, '\n')
		if i < 0 {
			return
		}
		line := b.buf[:i]
		b.buf = b.buf[i+1:]
		emit(line)
	}
}

// flush emits any trailing partial line.
func (b *lineBuffer) flush(emit func(line []byte)) {
	if len(b.buf) > 0 {
		emit(b.buf)
		b.buf = nil
	}
}
