package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/t0dorakis/murmur/internal/config"
	"github.com/t0dorakis/murmur/internal/stream"
)

// lastBeatFile names the per-heartbeat conversation file.
func lastBeatFile(dir, slug string) string {
	return filepath.Join(dir, "last-beat-"+slug+".json")
}

// WriteLastBeat persists the full turn list of a heartbeat's most recent
// run, replacing any previous one.
func WriteLastBeat(dir, slug string, turns []*stream.Turn) error {
	data, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal turns: %w", err)
	}
	return config.AtomicWrite(lastBeatFile(dir, slug), append(data, '\n'))
}

// ReadLastBeat loads the most recent conversation for a heartbeat. A
// missing file yields nil turns.
func ReadLastBeat(dir, slug string) ([]*stream.Turn, error) {
	data, err := os.ReadFile(lastBeatFile(dir, slug))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read last beat: %w", err)
	}

	var turns []*stream.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("failed to parse last beat: %w", err)
	}
	return turns, nil
}
