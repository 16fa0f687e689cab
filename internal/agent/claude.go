package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/t0dorakis/murmur/internal/config"
	"github.com/t0dorakis/murmur/internal/heartbeat"
	"github.com/t0dorakis/murmur/internal/stream"
)

// defaultTimeout bounds a run when the workspace and settings leave the
// timeout unset.
const defaultTimeout = 10 * time.Minute

// resolveTimeout parses the workspace timeout using the interval grammar.
func resolveTimeout(ws *config.WorkspaceConfig) (time.Duration, error) {
	if ws.Timeout == "" {
		return defaultTimeout, nil
	}
	d, err := heartbeat.ParseInterval(ws.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout: %w", err)
	}
	return d, nil
}

// validateModel rejects values that could be misread as flags.
func validateModel(model string) error {
	if model == "" {
		return nil
	}
	if strings.HasPrefix(model, "-") || strings.ContainsAny(model, " \t\n") {
		return fmt.Errorf("invalid model %q", model)
	}
	return nil
}

// ClaudeAdapter runs the claude CLI in print mode with stream-json output
// (format A).
type ClaudeAdapter struct{}

// Name returns "claude".
func (a *ClaudeAdapter) Name() string { return "claude" }

// Execute validates config, builds the claude invocation, and streams its
// stream-json output through the format A parser.
func (a *ClaudeAdapter) Execute(ctx context.Context, prompt string, ws *config.WorkspaceConfig, cb Callbacks) (*Result, error) {
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

	argv := []string{"claude", "-p", "--verbose", "--output-format", "stream-json"}
	if ws.MaxTurns > 0 {
		argv = append(argv, "--max-turns", strconv.Itoa(ws.MaxTurns))
	}
	if ws.Model != "" {
		argv = append(argv, "--model", ws.Model)
	}
	if ws.Session != "" {
		argv = append(argv, "--resume", ws.Session)
	}
	if ws.Permissions != nil && ws.Permissions.Skip {
		argv = append(argv, "--dangerously-skip-permissions")
	} else {
		argv = append(argv, BuildDisallowedToolsArgs(ws.Permissions)...)
	}

	parser := stream.NewClaudeParser(stream.Callbacks{
		OnText:     cb.OnText,
		OnToolCall: cb.OnToolCall,
	})

	res, runErr := runProcess(ctx, argv, ws.AbsPath(), prompt, timeout, cb.OnStart, func(chunk []byte) {
		parser.Feed(chunk)
		if cb.OnStdout != nil {
			cb.OnStdout(string(chunk))
		}
	})
	if res == nil {
		return nil, runErr
	}
	parser.Flush()

	resultText := parser.ResultText()
	if resultText == "" {
		resultText = strings.TrimSpace(res.stdout)
	}

	return &Result{
		ExitCode:   res.exitCode,
		RawStdout:  res.stdout,
		Stderr:     res.stderr,
		Turns:      parser.Turns(),
		ResultText: resultText,
	}, runErr
}

// IsAvailable probes for the claude CLI on PATH.
func (a *ClaudeAdapter) IsAvailable() bool { return probeAvailable("claude") }

// Version probes the claude CLI version.
func (a *ClaudeAdapter) Version() string { return probeVersion("claude") }
