package catalog

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const reloadDebounce = 250 * time.Millisecond

// Watcher reloads a Store whenever its catalog file changes on disk
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
	store   *Store
}

// NewWatcher watches the directory holding path, since editors usually
// replace files by rename rather than writing in place.
func NewWatcher(path string, store *Store) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, err
	}
	return &Watcher{watcher: w, path: abs, store: store}, nil
}

// Run blocks until ctx is done, reloading after each burst of change events
func (w *Watcher) Run(ctx context.Context) {
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(reloadDebounce)
		case <-pending:
			pending = nil
			if _, err := w.store.Reload(ctx); err == nil {
				log.Info().Str("path", w.path).Msg("catalog file change applied")
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Str("path", w.path).Msg("catalog watcher error")
		}
	}
}

// Stop releases the underlying watcher
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}
