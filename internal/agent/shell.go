package agent

import (
	"strings"

	"github.com/t0dorakis/murmur/internal/platform"
)

// shellQuote single-quotes an argument for POSIX shells, escaping embedded
// single quotes. Workspace-controlled content (paths, models, deny rules)
// passes through here, so every argument is quoted unconditionally.
func shellQuote(arg string) string {
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

// shellJoin quotes and joins argv into one shell command string.
func shellJoin(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

// wrapLoginShell wraps argv through the user's interactive login shell so
// PATH customizations from shell profiles apply to agent CLIs. On
// platforms without a login-shell concept the command is returned as-is.
func wrapLoginShell(argv []string) []string {
	shell := platform.LoginShell()
	if shell == "" {
		return argv
	}
	return []string{shell, "-l", "-c", shellJoin(argv)}
}
