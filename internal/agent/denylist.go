package agent

import "github.com/t0dorakis/murmur/internal/config"

// disallowedToolsFlag precedes the deny rules on the claude command line.
const disallowedToolsFlag = "--disallowedTools"

// defaultDenyRules is the built-in list of dangerous command patterns:
// filesystem destruction, privilege escalation, disk formatting, raw
// device writes, and system shutdown/reboot. Always enforced unless the
// workspace sets permissions: "skip".
var defaultDenyRules = []string{
	"Bash(rm -rf /*)",
	"Bash(rm -rf ~*)",
	"Bash(sudo *)",
	"Bash(su *)",
	"Bash(mkfs*)",
	"Bash(dd *)",
	"Bash(shutdown*)",
	"Bash(reboot*)",
	"Bash(halt*)",
	"Bash(poweroff*)",
}

// DefaultDenyRules returns a copy of the built-in deny list.
func DefaultDenyRules() []string {
	out := make([]string, len(defaultDenyRules))
	copy(out, defaultDenyRules)
	return out
}

// MergeDenyRules unions workspace-declared rules with the defaults:
// defaults first, custom rules appended, duplicates dropped. A "skip"
// permission yields nil (no deny-list at all).
func MergeDenyRules(perm *config.Permissions) []string {
	if perm != nil && perm.Skip {
		return nil
	}

	rules := DefaultDenyRules()
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		seen[r] = true
	}

	if perm != nil {
		for _, r := range perm.Deny {
			if !seen[r] {
				seen[r] = true
				rules = append(rules, r)
			}
		}
	}
	return rules
}

// BuildDisallowedToolsArgs returns the deny-list as command-line
// arguments: the flag token followed by every rule. Empty for "skip".
func BuildDisallowedToolsArgs(perm *config.Permissions) []string {
	rules := MergeDenyRules(perm)
	if len(rules) == 0 {
		return nil
	}
	return append([]string{disallowedToolsFlag}, rules...)
}
