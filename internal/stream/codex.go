package stream

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/t0dorakis/murmur/internal/logging"
)

// CodexParser consumes the codex experimental JSON format: one
// thread/turn/item event per line. item.completed events carry typed
// items; agent_message text, command executions, MCP tool calls, and file
// changes all map onto the shared conversation model. Unrecognized item
// types are ignored without aborting the stream.
type CodexParser struct {
	cb    Callbacks
	lines lineBuffer

	turns      []*Turn
	resultText string
	closed     bool

	// started maps item id to the item.started observation time so
	// item.completed can compute a duration.
	started map[string]time.Time

	now func() time.Time
}

// NewCodexParser creates an incremental parser for the codex format.
func NewCodexParser(cb Callbacks) *CodexParser {
	return &CodexParser{
		cb:      cb,
		started: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Feed consumes a chunk of raw bytes.
func (p *CodexParser) Feed(data []byte) {
	p.lines.feed(data, p.parseLine)
}

// Flush processes any trailing partial line and closes out the
// conversation with a result turn when one was never emitted.
func (p *CodexParser) Flush() {
	p.lines.flush(p.parseLine)
	p.finish()
}

// Turns returns the conversation so far.
func (p *CodexParser) Turns() []*Turn {
	return p.turns
}

// ResultText returns the latest agent message text.
func (p *CodexParser) ResultText() string {
	return p.resultText
}

type codexEvent struct {
	Type  string    `json:"type"`
	Item  codexItem `json:"item"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

type codexItem struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	// agent_message
	Text string `json:"text"`

	// command_execution
	Command          string `json:"command"`
	AggregatedOutput string `json:"aggregated_output"`
	ExitCode         *int   `json:"exit_code"`

	// mcp_tool_call
	Server string `json:"server"`
	Tool   string `json:"tool"`

	// file_change
	Changes json.RawMessage `json:"changes"`
}

func (p *CodexParser) parseLine(line []byte) {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return
	}

	var ev codexEvent
	if err := json.Unmarshal([]byte(trimmed), &ev); err != nil {
		logging.ForComponent(logging.CompStream).Debug("skipping malformed line",
			"format", "codex", "error", err)
		return
	}

	switch ev.Type {
	case "item.started":
		if ev.Item.ID != "" {
			p.started[ev.Item.ID] = p.now()
		}
	case "item.completed":
		p.handleItem(&ev.Item)
	case "turn.completed":
		p.finish()
	case "turn.failed":
		logging.ForComponent(logging.CompStream).Warn("turn failed",
			"format", "codex", "error", ev.Error.Message)
	case "error":
		logging.ForComponent(logging.CompStream).Warn("stream error",
			"format", "codex", "error", ev.Message)
	}
	// thread.started, turn.started and unknown events carry no content
}

func (p *CodexParser) handleItem(item *codexItem) {
	switch item.Type {
	case "agent_message":
		if item.Text == "" {
			return
		}
		p.resultText = item.Text
		p.turns = append(p.turns, &Turn{Type: TurnAssistant, Text: item.Text})
		if p.cb.OnText != nil {
			p.cb.OnText(item.Text)
		}

	case "command_execution":
		input, _ := json.Marshal(map[string]any{"command": item.Command})
		tc := p.resolvedCall(item.ID, "command", input, item.AggregatedOutput)
		p.appendCall(tc)

	case "mcp_tool_call":
		name := item.Tool
		if item.Server != "" {
			name = fmt.Sprintf("%s.%s", item.Server, item.Tool)
		}
		input, _ := json.Marshal(map[string]any{"server": item.Server, "tool": item.Tool})
		tc := p.resolvedCall(item.ID, name, input, "")
		p.appendCall(tc)

	case "file_change":
		tc := p.resolvedCall(item.ID, "file_change", item.Changes, "")
		p.appendCall(tc)

	default:
		// reasoning, web_search and future item types are skipped
	}
}

// resolvedCall builds a tool call that is already resolved, computing the
// duration from the matching item.started event when one was seen.
func (p *CodexParser) resolvedCall(id, name string, input json.RawMessage, output string) *ToolCall {
	var elapsed int64
	if start, ok := p.started[id]; ok {
		delete(p.started, id)
		elapsed = p.now().Sub(start).Milliseconds()
		if elapsed < 0 {
			elapsed = 0
		}
	}
	return &ToolCall{
		Name:       name,
		Input:      input,
		Output:     &output,
		DurationMs: elapsed,
	}
}

func (p *CodexParser) appendCall(tc *ToolCall) {
	p.turns = append(p.turns, &Turn{Type: TurnAssistant, ToolCalls: []*ToolCall{tc}})
	if p.cb.OnToolCall != nil {
		p.cb.OnToolCall(tc)
	}
}

// finish appends the terminal result turn once.
func (p *CodexParser) finish() {
	if p.closed {
		return
	}
	p.closed = true
	p.turns = append(p.turns, &Turn{
		Type:     TurnResult,
		Text:     p.resultText,
		NumTurns: len(p.turns),
	})
}

// ParseCodex parses a complete codex transcript in one shot.
func ParseCodex(s string, cb Callbacks) []*Turn {
	p := NewCodexParser(cb)
	p.Feed([]byte(s))
	p.Flush()
	return p.Turns()
}
