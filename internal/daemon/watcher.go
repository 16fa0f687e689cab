package daemon

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/t0dorakis/murmur/internal/logging"
)

// ConfigWatcher watches config.json and signals Changed when it is
// rewritten, so the loop can pick up edits without waiting out a full
// tick. The parent directory is watched because atomic saves rename a
// temp file over the config, which replaces the watched inode.
type ConfigWatcher struct {
	watcher *fsnotify.Watcher
	base    string

	// Changed receives at most one pending signal; extra writes coalesce.
	Changed chan struct{}
}

// NewConfigWatcher starts watching the directory containing configPath.
func NewConfigWatcher(configPath string) (*ConfigWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(configPath)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch config dir: %w", err)
	}

	cw := &ConfigWatcher{
		watcher: w,
		base:    filepath.Base(configPath),
		Changed: make(chan struct{}, 1),
	}
	go cw.loop()
	return cw, nil
}

func (cw *ConfigWatcher) loop() {
	logger := logging.ForComponent(logging.CompDaemon)
	for {
		select {
		case ev, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != cw.base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			select {
			case cw.Changed <- struct{}{}:
			default:
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("config watcher error", "error", err)
		}
	}
}

// Close stops the watcher.
func (cw *ConfigWatcher) Close() error {
	return cw.watcher.Close()
}
