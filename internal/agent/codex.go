package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/t0dorakis/murmur/internal/config"
	"github.com/t0dorakis/murmur/internal/stream"
)

// codexSandboxModes are the values the codex -s flag accepts.
var codexSandboxModes = map[string]bool{
	"read-only":          true,
	"workspace-write":    true,
	"danger-full-access": true,
}

// CodexAdapter runs the codex CLI in exec mode with experimental JSON
// output (format B). Codex has no deny-list flag; isolation comes from its
// sandbox, so the permissions field only selects full access via "skip".
type CodexAdapter struct{}

// Name returns "codex".
func (a *CodexAdapter) Name() string { return "codex" }

// Execute validates config, builds the codex invocation, and streams its
// thread/turn/item output through the format B parser.
func (a *CodexAdapter) Execute(ctx context.Context, prompt string, ws *config.WorkspaceConfig, cb Callbacks) (*Result, error) {
	if err := validateAgentTag(ws, a.Name()); err != nil {
		return nil, err
	}
	if err := validateModel(ws.Model); err != nil {
		return nil, err
	}
	sandbox := ws.Sandbox
	if sandbox == "" {
		sandbox = "workspace-write"
	}
	if !codexSandboxModes[sandbox] {
		return nil, fmt.Errorf("invalid sandbox mode %q (expected read-only, workspace-write, or danger-full-access)", ws.Sandbox)
	}
	timeout, err := resolveTimeout(ws)
	if err != nil {
		return nil, err
	}

	argv := []string{"codex", "exec", "--experimental-json"}
	if ws.Model != "" {
		argv = append(argv, "-m", ws.Model)
	}
	if ws.Permissions != nil && ws.Permissions.Skip {
		argv = append(argv, "-s", "danger-full-access")
	} else {
		argv = append(argv, "-s", sandbox)
	}
	if ws.Network && sandbox == "workspace-write" {
		argv = append(argv, "-c", "sandbox_workspace_write.network_access=true")
	}

	parser := stream.NewCodexParser(stream.Callbacks{
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

// IsAvailable probes for the codex CLI on PATH.
func (a *CodexAdapter) IsAvailable() bool { return probeAvailable("codex") }

// Version probes the codex CLI version.
func (a *CodexAdapter) Version() string { return probeVersion("codex") }
