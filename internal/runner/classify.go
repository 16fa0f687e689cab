package runner

import (
	"strings"

	"github.com/t0dorakis/murmur/internal/store"
)

// OKSentinel is the literal an agent prints to report a clean heartbeat.
const OKSentinel = "HEARTBEAT_OK"

// Classify maps an agent run's output to an outcome. A non-zero exit is
// always an error regardless of content; a zero exit with the sentinel is
// ok; any other zero-exit output is free-form text that needs human
// review.
func Classify(output string, exitCode int) store.Outcome {
	if exitCode != 0 {
		return store.OutcomeError
	}
	if strings.Contains(output, OKSentinel) {
		return store.OutcomeOK
	}
	return store.OutcomeAttention
}
