package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "'plain'"},
		{"", "''"},
		{"two words", "'two words'"},
		{"it's", `'it'\''s'`},
		{"$(rm -rf /)", "'$(rm -rf /)'"},
		{"a;b|c&d", "'a;b|c&d'"},
		{"Bash(rm -rf /*)", "'Bash(rm -rf /*)'"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, shellQuote(tt.in), tt.in)
	}
}

func TestShellJoin(t *testing.T) {
	got := shellJoin([]string{"claude", "-p", "--model", "opus"})
	assert.Equal(t, "'claude' '-p' '--model' 'opus'", got)
}

func TestWrapLoginShell(t *testing.T) {
	t.Setenv("SHELL", "/bin/zsh")

	wrapped := wrapLoginShell([]string{"claude", "--version"})
	require.Len(t, wrapped, 4)
	assert.Equal(t, "/bin/zsh", wrapped[0])
	assert.Equal(t, "-l", wrapped[1])
	assert.Equal(t, "-c", wrapped[2])
	assert.Equal(t, "'claude' '--version'", wrapped[3])
}

func TestWrapLoginShell_FallbackShell(t *testing.T) {
	t.Setenv("SHELL", "")

	wrapped := wrapLoginShell([]string{"codex", "exec"})
	require.Len(t, wrapped, 4)
	assert.Equal(t, "/bin/sh", wrapped[0])
}
