package allowlist

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/runguard/runguard/internal/logging"
)

// Debounce window between the last observed write and the reload callback.
const reloadDebounce = 500 * time.Millisecond

// Watcher hot-reloads the allow-list when its file changes, so long-running
// hosts pick up operator edits without a restart.
type Watcher struct {
	watcher *fsnotify.Watcher
	log     *logging.Logger
	reload  func()
	paths   []string
}

// NewWatcher watches the given files and invokes reload after changes
// settle. Paths that do not exist yet are skipped.
func NewWatcher(log *logging.Logger, reload func(), paths ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("allowlist: create watcher: %w", err)
	}

	var watched []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := fw.Add(p); err != nil {
			fw.Close()
			return nil, fmt.Errorf("allowlist: watch %q: %w", p, err)
		}
		watched = append(watched, p)
	}

	return &Watcher{
		watcher: fw,
		log:     log,
		reload:  reload,
		paths:   watched,
	}, nil
}

// Watched returns the paths actually under watch.
func (w *Watcher) Watched() []string {
	return w.paths
}

// Run blocks until ctx is cancelled, invoking the reload callback after
// each settled burst of writes. Watch errors are logged, never fatal: a
// broken watcher degrades to the last loaded list.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(reloadDebounce, func() {
					w.log.Info("allow-list changed, reloading")
					w.reload()
				})
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("allow-list watcher error:", err.Error())
		}
	}
}
