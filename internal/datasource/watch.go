package datasource

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/signalsfoundry/flowview/internal/logging"
)

// DefaultDebounce collapses bursts of writes to a results file.
const DefaultDebounce = 250 * time.Millisecond

// ReloadFunc is invoked after the watched file settled.
type ReloadFunc func(ctx context.Context) error

// FileWatcher reloads a results file whenever it is written or replaced.
type FileWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	reload   ReloadFunc
	debounce time.Duration
	log      logging.Logger

	mu    sync.Mutex
	timer *time.Timer

	done chan struct{}
}

// WatchFile starts watching path until ctx ends or Close is called. The
// parent directory is watched so editors that replace the file by rename
// are still seen.
func WatchFile(ctx context.Context, path string, reload ReloadFunc, debounce time.Duration, log logging.Logger) (*FileWatcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create fsnotify watcher")
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, errors.Wrapf(err, "watch %s", filepath.Dir(abs))
	}

	w := &FileWatcher{
		path:     abs,
		watcher:  watcher,
		reload:   reload,
		debounce: debounce,
		log:      logging.OrNoop(log).With(logging.Component("watch"), logging.String("path", abs)),
		done:     make(chan struct{}),
	}
	go w.loop(ctx)
	return w, nil
}

// Close stops the watcher and any pending reload.
func (w *FileWatcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return err
}

func (w *FileWatcher) loop(ctx context.Context) {
	defer close(w.done)
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
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.log.Debug(ctx, "results file changed", logging.String("op", event.Op.String()))
			w.schedule(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn(ctx, "results watcher error", logging.Err(err))
		}
	}
}

func (w *FileWatcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		if err := w.reload(ctx); err != nil {
			w.log.Error(ctx, "results reload failed", logging.Err(err))
			return
		}
		w.log.Info(ctx, "results reloaded")
	})
}
