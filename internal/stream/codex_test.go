package stream

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const codexTranscript = `{"type":"thread.started","thread_id":"t1"}
{"type":"turn.started"}
{"type":"item.started","item":{"id":"item_0","type":"command_execution","command":"ls"}}
{"type":"item.completed","item":{"id":"item_0","type":"command_execution","command":"ls","aggregated_output":"README.md\nmain.go","exit_code":0}}
{"type":"item.completed","item":{"id":"item_1","type":"agent_message","text":"Everything in order. HEARTBEAT_OK"}}
{"type":"turn.completed","usage":{"input_tokens":100,"output_tokens":20}}
`

func TestCodexParser_FullTranscript(t *testing.T) {
	p := NewCodexParser(Callbacks{})
	p.Feed([]byte(codexTranscript))
	p.Flush()

	turns := p.Turns()
	require.Len(t, turns, 3)

	cmd := turns[0]
	require.Len(t, cmd.ToolCalls, 1)
	tc := cmd.ToolCalls[0]
	assert.Equal(t, "command", tc.Name)
	assert.True(t, tc.Resolved())
	assert.Equal(t, "README.md\nmain.go", *tc.Output)

	var input map[string]string
	require.NoError(t, json.Unmarshal(tc.Input, &input))
	assert.Equal(t, "ls", input["command"])

	assert.Equal(t, "Everything in order. HEARTBEAT_OK", turns[1].Text)

	result := turns[2]
	assert.Equal(t, TurnResult, result.Type)
	assert.Equal(t, "Everything in order. HEARTBEAT_OK", result.Text)
	assert.Equal(t, 2, result.NumTurns)

	assert.Equal(t, "Everything in order. HEARTBEAT_OK", p.ResultText())
}

func TestCodexParser_ItemDuration(t *testing.T) {
	p := NewCodexParser(Callbacks{})

	// Deterministic clock: item.started at t0, completed at t0+250ms.
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(250 * time.Millisecond)}
	p.now = func() time.Time {
		t := times[0]
		if len(times) > 1 {
			times = times[1:]
		}
		return t
	}

	p.Feed([]byte(`{"type":"item.started","item":{"id":"item_0","type":"command_execution"}}` + "\n"))
	p.Feed([]byte(`{"type":"item.completed","item":{"id":"item_0","type":"command_execution","command":"ls","aggregated_output":""}}` + "\n"))
	p.Flush()

	turns := p.Turns()
	require.NotEmpty(t, turns)
	require.Len(t, turns[0].ToolCalls, 1)
	assert.Equal(t, int64(250), turns[0].ToolCalls[0].DurationMs)
}

func TestCodexParser_McpAndFileChangeItems(t *testing.T) {
	input := `{"type":"item.completed","item":{"id":"i1","type":"mcp_tool_call","server":"github","tool":"create_issue"}}` + "\n" +
		`{"type":"item.completed","item":{"id":"i2","type":"file_change","changes":[{"path":"main.go","kind":"update"}]}}` + "\n" +
		`{"type":"turn.completed"}` + "\n"

	turns := ParseCodex(input, Callbacks{})
	require.Len(t, turns, 3)

	assert.Equal(t, "github.create_issue", turns[0].ToolCalls[0].Name)
	assert.Equal(t, "file_change", turns[1].ToolCalls[0].Name)
	assert.JSONEq(t, `[{"path":"main.go","kind":"update"}]`, string(turns[1].ToolCalls[0].Input))
}

func TestCodexParser_UnknownItemTypesIgnored(t *testing.T) {
	input := `{"type":"item.completed","item":{"id":"i1","type":"reasoning","text":"thinking..."}}` + "\n" +
		`{"type":"item.completed","item":{"id":"i2","type":"web_search","query":"golang"}}` + "\n" +
		`{"type":"item.completed","item":{"id":"i3","type":"agent_message","text":"done"}}` + "\n" +
		`{"type":"turn.completed"}` + "\n"

	turns := ParseCodex(input, Callbacks{})
	require.Len(t, turns, 2)
	assert.Equal(t, "done", turns[0].Text)
}

func TestCodexParser_TurnFailedDoesNotAbort(t *testing.T) {
	input := `{"type":"item.completed","item":{"id":"i1","type":"agent_message","text":"before failure"}}` + "\n" +
		`{"type":"turn.failed","error":{"message":"model overloaded"}}` + "\n"

	turns := ParseCodex(input, Callbacks{})
	// Flush still closes out the conversation with a result turn.
	require.Len(t, turns, 2)
	assert.Equal(t, TurnResult, turns[1].Type)
	assert.Equal(t, "before failure", turns[1].Text)
}

func TestCodexParser_ResultTurnAppendedOnce(t *testing.T) {
	input := `{"type":"item.completed","item":{"id":"i1","type":"agent_message","text":"hi"}}` + "\n" +
		`{"type":"turn.completed"}` + "\n"

	p := NewCodexParser(Callbacks{})
	p.Feed([]byte(input))
	p.Flush() // finish() already ran on turn.completed

	require.Len(t, p.Turns(), 2)
}

func TestCodexParser_StreamEndWithoutTurnCompleted(t *testing.T) {
	input := `{"type":"item.completed","item":{"id":"i1","type":"agent_message","text":"cut off"}}` + "\n"

	p := NewCodexParser(Callbacks{})
	p.Feed([]byte(input))
	p.Flush()

	turns := p.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, TurnResult, turns[1].Type)
}

func TestCodexParser_Callbacks(t *testing.T) {
	var texts, calls []string

	ParseCodex(codexTranscript, Callbacks{
		OnText:     func(s string) { texts = append(texts, s) },
		OnToolCall: func(tc *ToolCall) { calls = append(calls, tc.Name) },
	})

	assert.Equal(t, []string{"Everything in order. HEARTBEAT_OK"}, texts)
	assert.Equal(t, []string{"command"}, calls)
}
