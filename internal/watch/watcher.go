package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/kpauljoseph/pagedesk/pkg/logger"
)

// Watcher reports changes made to one file by other programs. It watches the
// file's directory so that editors that save by replacing the file are
// noticed too.
type Watcher struct {
	fs       *fsnotify.Watcher
	onChange func(path string)
	logger   *logger.Logger

	mu   sync.Mutex
	path string
	dir  string
}

func New(onChange func(path string), log *logger.Logger) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Watcher{fs: fs, onChange: onChange, logger: log}, nil
}

// Track switches the watched file to path.
func (w *Watcher) Track(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	if dir != w.dir {
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		if w.dir != "" {
			_ = w.fs.Remove(w.dir)
		}
		w.dir = dir
	}
	w.path = abs
	w.logger.Debug("watching %s", abs)
	return nil
}

func (w *Watcher) Tracked() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

// Run delivers change notifications until ctx ends or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			name, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			w.mu.Lock()
			tracked := w.path
			w.mu.Unlock()
			if name != tracked {
				continue
			}
			w.logger.Debug("%s changed on disk (%s)", name, event.Op)
			w.onChange(name)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error: %v", err)
		}
	}
}

func (w *Watcher) Close() error {
	return w.fs.Close()
}
