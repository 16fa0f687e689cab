package agent

import (
	"context"
	"strings"

	"github.com/t0dorakis/murmur/internal/config"
	"github.com/t0dorakis/murmur/internal/stream"
)

// GeminiAdapter runs the gemini CLI, which emits plain text rather than a
// structured stream. The trimmed stdout becomes the result text and the
// conversation collapses to a single result turn.
type GeminiAdapter struct{}

// Name returns "gemini".
func (a *GeminiAdapter) Name() string { return "gemini" }

// Execute validates config and runs gemini with the prompt on stdin.
func (a *GeminiAdapter) Execute(ctx context.Context, prompt string, ws *config.WorkspaceConfig, cb Callbacks) (*Result, error) {
	if err := validateAgentTag(ws, a.Name()); err != nil {
		return nil, err
	}
	if err := validateModel(ws.Model); err != nil {
		return nil, err
	}
	timeout, err := resolveTimeout(ws)
	if err != nil {
		return nil, err
	}

	argv := []string{"gemini"}
	if ws.Model != "" {
		argv = append(argv, "--model", ws.Model)
	}
	if ws.Permissions != nil && ws.Permissions.Skip {
		argv = append(argv, "--yolo")
	}

	res, runErr := runProcess(ctx, argv, ws.AbsPath(), prompt, timeout, cb.OnStart, func(chunk []byte) {
		if cb.OnStdout != nil {
			cb.OnStdout(string(chunk))
		}
	})
	if res == nil {
		return nil, runErr
	}

	resultText := strings.TrimSpace(res.stdout)
	var turns []*stream.Turn
	if resultText != "" {
		if cb.OnText != nil {
			cb.OnText(resultText)
		}
		turns = append(turns, &stream.Turn{Type: stream.TurnResult, Text: resultText})
	}

	return &Result{
		ExitCode:   res.exitCode,
		RawStdout:  res.stdout,
		Stderr:     res.stderr,
		Turns:      turns,
		ResultText: resultText,
	}, runErr
}

// IsAvailable probes for the gemini CLI on PATH.
func (a *GeminiAdapter) IsAvailable() bool { return probeAvailable("gemini") }

// Version probes the gemini CLI version.
func (a *GeminiAdapter) Version() string { return probeVersion("gemini") }
