// Package watch reports changes to the dataset file after it was loaded.
// The loaded dataset is never swapped; a change only marks it stale.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

const changeOps = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

// Watcher marks the dataset stale when its file changes on disk.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	stale   atomic.Bool
}

// New watches the directory holding path. Watching the directory rather than
// the file keeps working across atomic replace-by-rename updates.
func New(path string, logger *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve dataset path: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch dataset directory: %w", err)
	}

	return &Watcher{path: abs, watcher: fw, logger: logger}, nil
}

// Run processes file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path || !event.Has(changeOps) {
				continue
			}
			if !w.stale.Swap(true) {
				w.logger.Warn("dataset changed on disk, restart to load it",
					"path", w.path, "op", event.Op.String())
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("dataset watcher error", "error", err)
		}
	}
}

// Stale reports whether the dataset file changed since the watcher started.
func (w *Watcher) Stale() bool {
	return w.stale.Load()
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
