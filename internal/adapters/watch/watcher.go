// Package watch reloads the broker when the accounts file changes on disk.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 250 * time.Millisecond

// Reloader is the subset of the broker the watcher drives.
type Reloader interface {
	Reload(ctx context.Context) error
}

type Watcher struct {
	path     string
	reloader Reloader
	logger   *slog.Logger
	debounce time.Duration
}

// NewWatcher watches the accounts file at path. The parent directory is
// registered with fsnotify because atomic saves replace the file via rename,
// which would silently detach a watch on the file itself.
func NewWatcher(path string, reloader Reloader, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		path:     filepath.Clean(path),
		reloader: reloader,
		logger:   logger,
		debounce: defaultDebounce,
	}
}

// Run blocks until ctx is cancelled, reloading after each burst of changes
// to the watched file. Editor write patterns and atomic renames produce
// several events per save, so reloads are debounced.
func (w *Watcher) Run(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		_ = fsWatcher.Close()
	}()

	if err := fsWatcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	w.logger.Info("watching accounts file", "path", w.path)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	pending := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if debounce == nil {
				debounce = time.AfterFunc(w.debounce, func() {
					select {
					case pending <- struct{}{}:
					default:
					}
				})
			} else {
				debounce.Reset(w.debounce)
			}

		case <-pending:
			debounce = nil
			if err := w.reloader.Reload(ctx); err != nil {
				w.logger.Error("reload after file change failed", "path", w.path, "error", err)
				continue
			}
			w.logger.Info("accounts reloaded after file change", "path", w.path)

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("accounts file watch error", "error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}

	return event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Rename)
}
