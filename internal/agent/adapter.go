// Package agent is the process-execution boundary: each adapter translates
// a workspace config into an invocation of one external agent CLI, applies
// the permission deny-list, and streams subprocess output into the shared
// conversation model.
package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/t0dorakis/murmur/internal/config"
	"github.com/t0dorakis/murmur/internal/stream"
)

// Callbacks let the caller observe a run as it happens. Any field may be
// nil.
type Callbacks struct {
	// OnStart fires once the subprocess has been spawned, with its PID.
	// The runner uses this to register the crash-recovery record before
	// awaiting completion.
	OnStart func(pid int)

	// OnStdout fires with raw stdout chunks as they arrive.
	OnStdout func(chunk string)

	// OnToolCall and OnText relay the stream parser's side-channel events.
	OnToolCall func(tc *stream.ToolCall)
	OnText     func(text string)
}

// Result is the outcome of one agent execution.
type Result struct {
	ExitCode   int
	RawStdout  string
	Stderr     string
	Turns      []*stream.Turn
	ResultText string
}

// Adapter is a named capability for running one agent CLI.
type Adapter interface {
	// Name is the agent selector used in workspace config.
	Name() string

	// Execute validates agent-specific config fields, spawns the CLI with
	// the prompt on stdin, and streams its output until exit or timeout.
	// Validation failures return before any process is spawned.
	Execute(ctx context.Context, prompt string, ws *config.WorkspaceConfig, cb Callbacks) (*Result, error)

	// IsAvailable probes whether the CLI is on PATH. Never panics;
	// absence is false.
	IsAvailable() bool

	// Version probes the CLI version. Never panics; unknown is "".
	Version() string
}

// DefaultAgent is used when a workspace does not set one.
const DefaultAgent = "claude"

// Registry maps agent names to adapters.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry returns a registry with the built-in adapters.
func NewRegistry() *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	r.Register(&ClaudeAdapter{})
	r.Register(&CodexAdapter{})
	r.Register(&GeminiAdapter{})
	return r
}

// Register adds an adapter under its name.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Name()] = a
}

// Resolve returns the adapter for name, defaulting to DefaultAgent when
// name is empty. Unknown names fail with a listing of known agents.
func (r *Registry) Resolve(name string) (Adapter, error) {
	if name == "" {
		name = DefaultAgent
	}
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("unknown agent %q (known agents: %s)", name, strings.Join(r.Names(), ", "))
	}
	return a, nil
}

// Names returns the registered agent names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// validateAgentTag checks the workspace's declared agent against the
// adapter actually invoked.
func validateAgentTag(ws *config.WorkspaceConfig, name string) error {
	if ws.Agent != "" && ws.Agent != name {
		return fmt.Errorf("workspace declares agent %q but %q adapter was invoked", ws.Agent, name)
	}
	return nil
}
