// Package watch monitors the export directories for new or rewritten
// CSV drops and triggers a reload.
package watch

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors directories for changes to matching files.
type Watcher struct {
	watcher  *fsnotify.Watcher
	patterns map[string][]string // directory -> base-name patterns
	mu       sync.RWMutex
	debounce time.Duration

	// OnChange is called once per debounced burst of changes, with the
	// path of the last file that changed.
	OnChange func(path string) error
	OnError  func(err error)
}

// NewWatcher creates a new directory watcher.
func NewWatcher() (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: failed to create watcher: %w", err)
	}

	return &Watcher{
		watcher:  fsWatcher,
		patterns: make(map[string][]string),
		debounce: 500 * time.Millisecond,
	}, nil
}

// Watch starts watching a directory for files whose base name matches
// pattern (e.g. "Sequences *.csv"). Watching the same directory again
// adds the pattern; all registered patterns stay live.
func (w *Watcher) Watch(dir, pattern string) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("watch: failed to resolve path: %w", err)
	}

	if err := w.watcher.Add(absDir); err != nil {
		return fmt.Errorf("watch: failed to watch %s: %w", absDir, err)
	}

	w.mu.Lock()
	w.patterns[absDir] = append(w.patterns[absDir], pattern)
	w.mu.Unlock()
	return nil
}

// Run starts the watch loop. Blocks until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	var timerMu sync.Mutex
	var timer *time.Timer

	for {
		select {
		case <-ctx.Done():
			w.watcher.Close()
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}

			// CSV drops arrive as create-then-write; rename covers
			// atomic replacement.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !w.matches(event.Name) {
				continue
			}

			// Debounce rapid changes into one reload.
			changed := event.Name
			timerMu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				w.handleChange(changed)
			})
			timerMu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			if w.OnError != nil {
				w.OnError(err)
			}
		}
	}
}

// matches reports whether a changed path matches any of its
// directory's registered patterns.
func (w *Watcher) matches(name string) bool {
	absPath, err := filepath.Abs(name)
	if err != nil {
		return false
	}

	w.mu.RLock()
	patterns := w.patterns[filepath.Dir(absPath)]
	w.mu.RUnlock()

	base := filepath.Base(absPath)
	for _, pattern := range patterns {
		if matched, err := path.Match(pattern, base); err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Watcher) handleChange(changed string) {
	if w.OnChange == nil {
		return
	}
	if err := w.OnChange(changed); err != nil {
		if w.OnError != nil {
			w.OnError(err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
