package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/t0dorakis/murmur/internal/store"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		exitCode int
		want     store.Outcome
	}{
		{"sentinel alone", "HEARTBEAT_OK", 0, store.OutcomeOK},
		{"sentinel with whitespace", "  HEARTBEAT_OK  \n", 0, store.OutcomeOK},
		{"sentinel embedded in report", "Checked everything.\nHEARTBEAT_OK\n", 0, store.OutcomeOK},
		{"free-form text", "ATTENTION: 3 tests failing", 0, store.OutcomeAttention},
		{"empty output", "", 0, store.OutcomeAttention},
		{"nonzero exit wins over sentinel", "HEARTBEAT_OK", 1, store.OutcomeError},
		{"nonzero exit", "anything", 2, store.OutcomeError},
		{"timeout exit", "", -1, store.OutcomeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.output, tt.exitCode))
		})
	}
}
