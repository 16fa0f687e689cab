package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

// PIDFileName is the daemon pid file inside the data dir.
const PIDFileName = "murmur.pid"

// PIDFile is the held pid file of a running daemon. The flock guarantees
// a single daemon per data directory.
type PIDFile struct {
	path string
	lock *flock.Flock
}

// AcquirePIDFile locks and writes <dir>/murmur.pid. A held lock means
// another daemon owns this data directory.
func AcquirePIDFile(dir string) (*PIDFile, error) {
	path := filepath.Join(dir, PIDFileName)
	lock := flock.New(path)

	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock pid file: %w", err)
	}
	if !ok {
		pid, _ := ReadPID(dir)
		return nil, fmt.Errorf("daemon already running (pid %d)", pid)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0600); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to write pid file: %w", err)
	}
	return &PIDFile{path: path, lock: lock}, nil
}

// Release unlocks and removes the pid file.
func (p *PIDFile) Release() {
	_ = os.Remove(p.path)
	_ = p.lock.Unlock()
}

// ReadPID returns the pid recorded in <dir>/murmur.pid.
func ReadPID(dir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(dir, PIDFileName))
	if err != nil {
		return 0, fmt.Errorf("daemon not running: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed pid file: %w", err)
	}
	return pid, nil
}
