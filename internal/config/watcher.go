package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay coalesces the burst of filesystem events editors emit
// when saving a file into a single reload signal.
const debounceDelay = 250 * time.Millisecond

// Watcher monitors the config file and signals when it changes. It
// watches the containing directory rather than the file itself so that
// atomic rename-into-place saves keep being observed.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	events  chan struct{}
}

func NewWatcher(path string) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		path:    filepath.Clean(path),
		watcher: watcher,
		events:  make(chan struct{}, 1),
	}, nil
}

// Events signals once per observed config change.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			close(w.events)
			return nil
		case err := <-w.watcher.Errors:
			if err != nil {
				return err
			}
		case event := <-w.watcher.Events:
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, func() {
				select {
				case w.events <- struct{}{}:
				default:
				}
			})
		}
	}
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}
