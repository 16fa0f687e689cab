package stream

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/t0dorakis/murmur/internal/logging"
)

// ClaudeParser consumes the claude stream-json format: one JSON envelope
// per line with type system/assistant/user/result. Assistant messages
// carry text and tool_use blocks; user messages carry tool_result blocks
// that resolve earlier pending calls; result is terminal.
type ClaudeParser struct {
	cb    Callbacks
	lines lineBuffer

	turns      []*Turn
	resultText string
	done       bool

	// pending maps tool_use id to its name and observation time so a
	// later tool_result can backfill output and elapsed time.
	pending map[string]pendingUse

	now func() time.Time
}

type pendingUse struct {
	name    string
	started time.Time
}

// NewClaudeParser creates an incremental parser for the stream-json
// format. Callbacks fire as envelopes are consumed.
func NewClaudeParser(cb Callbacks) *ClaudeParser {
	return &ClaudeParser{
		cb:      cb,
		pending: make(map[string]pendingUse),
		now:     time.Now,
	}
}

// Feed consumes a chunk of raw bytes. Lines split across chunks are
// buffered until complete.
func (p *ClaudeParser) Feed(data []byte) {
	p.lines.feed(data, p.parseLine)
}

// Flush processes any trailing partial line. Call once at end of stream.
func (p *ClaudeParser) Flush() {
	p.lines.flush(p.parseLine)
}

// Turns returns the conversation so far.
func (p *ClaudeParser) Turns() []*Turn {
	return p.turns
}

// ResultText returns the terminal result text, or "" if none arrived.
func (p *ClaudeParser) ResultText() string {
	return p.resultText
}

// claudeEnvelope is the per-line wire shape. Content blocks are decoded
// lazily because their fields depend on the block type.
type claudeEnvelope struct {
	Type    string `json:"type"`
	Message struct {
		Content []json.RawMessage `json:"content"`
	} `json:"message"`

	// result envelope fields
	Result       string  `json:"result"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	DurationMs   int64   `json:"duration_ms"`
	NumTurns     int     `json:"num_turns"`
}

type claudeContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
}

func (p *ClaudeParser) parseLine(line []byte) {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return
	}

	var env claudeEnvelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		logging.ForComponent(logging.CompStream).Debug("skipping malformed line",
			"format", "claude", "error", err)
		return
	}

	switch env.Type {
	case "assistant":
		p.handleAssistant(&env)
	case "user":
		p.handleUser(&env)
	case "result":
		p.resultText = env.Result
		p.done = true
		p.turns = append(p.turns, &Turn{
			Type:       TurnResult,
			Text:       env.Result,
			CostUSD:    env.TotalCostUSD,
			DurationMs: env.DurationMs,
			NumTurns:   env.NumTurns,
		})
	}
	// system and unknown envelopes carry no conversation content
}

func (p *ClaudeParser) handleAssistant(env *claudeEnvelope) {
	turn := &Turn{Type: TurnAssistant}

	for _, raw := range env.Message.Content {
		var block claudeContentBlock
		if err := json.Unmarshal(raw, &block); err != nil {
			continue
		}
		switch block.Type {
		case "text":
			if block.Text != "" {
				if turn.Text != "" {
					turn.Text += "\n"
				}
				turn.Text += block.Text
				if p.cb.OnText != nil {
					p.cb.OnText(block.Text)
				}
			}
		case "tool_use":
			tc := &ToolCall{Name: block.Name, Input: block.Input}
			turn.ToolCalls = append(turn.ToolCalls, tc)
			if block.ID != "" {
				p.pending[block.ID] = pendingUse{name: block.Name, started: p.now()}
			}
			if p.cb.OnToolCall != nil {
				p.cb.OnToolCall(tc)
			}
		}
	}

	if turn.Text != "" || len(turn.ToolCalls) > 0 {
		p.turns = append(p.turns, turn)
	}
}

func (p *ClaudeParser) handleUser(env *claudeEnvelope) {
	for _, raw := range env.Message.Content {
		var block claudeContentBlock
		if err := json.Unmarshal(raw, &block); err != nil {
			continue
		}
		if block.Type != "tool_result" {
			continue
		}

		use, ok := p.pending[block.ToolUseID]
		if !ok {
			continue
		}
		delete(p.pending, block.ToolUseID)

		output := flattenContent(block.Content)
		elapsed := p.now().Sub(use.started).Milliseconds()
		if elapsed < 0 {
			elapsed = 0
		}
		p.resolve(use.name, output, elapsed)
	}
}

// resolve backfills the most recent unresolved call with a matching name,
// searching from the newest turn backward. The first unresolved match wins.
func (p *ClaudeParser) resolve(name, output string, elapsedMs int64) {
	for i := len(p.turns) - 1; i >= 0; i-- {
		for _, tc := range p.turns[i].ToolCalls {
			if tc.Name == name && !tc.Resolved() {
				tc.Output = &output
				tc.DurationMs = elapsedMs
				return
			}
		}
	}
}

// flattenContent renders a tool_result content field, which is either a
// plain string or an array of typed blocks, as text.
func flattenContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var blocks []claudeContentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var parts []string
		for _, b := range blocks {
			if b.Type == "text" && b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")
	}

	return string(raw)
}

// ParseClaude parses a complete stream-json transcript in one shot.
func ParseClaude(s string, cb Callbacks) []*Turn {
	p := NewClaudeParser(cb)
	p.Feed([]byte(s))
	p.Flush()
	return p.Turns()
}
