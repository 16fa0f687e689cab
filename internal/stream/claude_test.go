package stream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const claudeTranscript = `{"type":"system","subtype":"init","session_id":"abc"}
{"type":"assistant","message":{"content":[{"type":"text","text":"Let me check the tests."},{"type":"tool_use","id":"tu_1","name":"Bash","input":{"command":"go test ./..."}}]}}
{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"tu_1","content":"ok  \tall tests pass"}]}}
{"type":"assistant","message":{"content":[{"type":"text","text":"All good."}]}}
{"type":"result","subtype":"success","result":"HEARTBEAT_OK","total_cost_usd":0.042,"duration_ms":15000,"num_turns":2}
`

func TestClaudeParser_FullTranscript(t *testing.T) {
	p := NewClaudeParser(Callbacks{})
	p.Feed([]byte(claudeTranscript))
	p.Flush()

	turns := p.Turns()
	require.Len(t, turns, 3)

	first := turns[0]
	assert.Equal(t, TurnAssistant, first.Type)
	assert.Equal(t, "Let me check the tests.", first.Text)
	require.Len(t, first.ToolCalls, 1)

	tc := first.ToolCalls[0]
	assert.Equal(t, "Bash", tc.Name)
	assert.True(t, tc.Resolved())
	require.NotNil(t, tc.Output)
	assert.Equal(t, "ok  \tall tests pass", *tc.Output)
	assert.GreaterOrEqual(t, tc.DurationMs, int64(0))

	assert.Equal(t, "All good.", turns[1].Text)

	result := turns[2]
	assert.Equal(t, TurnResult, result.Type)
	assert.Equal(t, "HEARTBEAT_OK", result.Text)
	assert.InDelta(t, 0.042, result.CostUSD, 1e-9)
	assert.Equal(t, int64(15000), result.DurationMs)
	assert.Equal(t, 2, result.NumTurns)

	assert.Equal(t, "HEARTBEAT_OK", p.ResultText())
}

func TestClaudeParser_ChunkedFeedMatchesWholeFeed(t *testing.T) {
	// Feeding byte by byte must produce the same conversation as one feed:
	// lines split across chunk boundaries are reassembled.
	whole := ParseClaude(claudeTranscript, Callbacks{})

	p := NewClaudeParser(Callbacks{})
	for i := 0; i < len(claudeTranscript); i += 7 {
		end := i + 7
		if end > len(claudeTranscript) {
			end = len(claudeTranscript)
		}
		p.Feed([]byte(claudeTranscript[i:end]))
	}
	p.Flush()

	chunked := p.Turns()
	require.Len(t, chunked, len(whole))
	for i := range whole {
		assert.Equal(t, whole[i].Type, chunked[i].Type)
		assert.Equal(t, whole[i].Text, chunked[i].Text)
		assert.Len(t, chunked[i].ToolCalls, len(whole[i].ToolCalls))
	}
}

func TestClaudeParser_MalformedLinesSkipped(t *testing.T) {
	input := "not json at all\n" +
		`{"type":"assistant","message":{"content":[{"type":"text","text":"hi"}]}}` + "\n" +
		"{broken\n" +
		`{"type":"result","result":"done"}` + "\n"

	turns := ParseClaude(input, Callbacks{})
	require.Len(t, turns, 2)
	assert.Equal(t, "hi", turns[0].Text)
	assert.Equal(t, "done", turns[1].Text)
}

func TestClaudeParser_UnmatchedToolResultIgnored(t *testing.T) {
	input := `{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"tu_unknown","content":"orphan"}]}}` + "\n"

	turns := ParseClaude(input, Callbacks{})
	assert.Empty(t, turns)
}

func TestClaudeParser_ResolveNewestUnresolvedByName(t *testing.T) {
	// Two Bash calls, then results in reverse id order. Resolution matches
	// by name from the newest turn backward, first unresolved wins.
	input := `{"type":"assistant","message":{"content":[{"type":"tool_use","id":"tu_1","name":"Bash","input":{"command":"first"}}]}}` + "\n" +
		`{"type":"assistant","message":{"content":[{"type":"tool_use","id":"tu_2","name":"Bash","input":{"command":"second"}}]}}` + "\n" +
		`{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"tu_2","content":"out-2"}]}}` + "\n" +
		`{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"tu_1","content":"out-1"}]}}` + "\n"

	turns := ParseClaude(input, Callbacks{})
	require.Len(t, turns, 2)

	second := turns[1].ToolCalls[0]
	require.NotNil(t, second.Output)
	assert.Equal(t, "out-2", *second.Output)

	first := turns[0].ToolCalls[0]
	require.NotNil(t, first.Output)
	assert.Equal(t, "out-1", *first.Output)
}

func TestClaudeParser_StructuredToolResultContent(t *testing.T) {
	input := `{"type":"assistant","message":{"content":[{"type":"tool_use","id":"tu_1","name":"Read","input":{}}]}}` + "\n" +
		`{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"tu_1","content":[{"type":"text","text":"line one"},{"type":"text","text":"line two"}]}]}}` + "\n"

	turns := ParseClaude(input, Callbacks{})
	require.Len(t, turns, 1)
	tc := turns[0].ToolCalls[0]
	require.NotNil(t, tc.Output)
	assert.Equal(t, "line one\nline two", *tc.Output)
}

func TestClaudeParser_Callbacks(t *testing.T) {
	var texts []string
	var calls []string

	ParseClaude(claudeTranscript, Callbacks{
		OnText:     func(s string) { texts = append(texts, s) },
		OnToolCall: func(tc *ToolCall) { calls = append(calls, tc.Name) },
	})

	assert.Equal(t, []string{"Let me check the tests.", "All good."}, texts)
	assert.Equal(t, []string{"Bash"}, calls)
}

func TestClaudeParser_TrailingLineWithoutNewline(t *testing.T) {
	input := strings.TrimSuffix(
		`{"type":"assistant","message":{"content":[{"type":"text","text":"partial"}]}}`+"\n", "\n")

	p := NewClaudeParser(Callbacks{})
	p.Feed([]byte(input))
	assert.Empty(t, p.Turns())

	p.Flush()
	require.Len(t, p.Turns(), 1)
	assert.Equal(t, "partial", p.Turns()[0].Text)
}
