// Package watch triggers pipeline runs when files land in the inbox.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	mrerrors "github.com/otherjamesbrown/mailroom/pkg/errors"
	"github.com/otherjamesbrown/mailroom/pkg/logging"
)

// DefaultDebounce is the quiet period before a run starts.
const DefaultDebounce = 2 * time.Second

// Handler is invoked once per debounced burst of events.
type Handler func(ctx context.Context) error

// Watcher runs Handler after inbox activity settles. Runs never overlap:
// the handler is called from the event loop itself.
type Watcher struct {
	dir      string
	handler  Handler
	debounce time.Duration
	logger   logging.Logger

	runs atomic.Int64
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New creates a watcher on dir.
func New(dir string, handler Handler, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		handler:  handler,
		debounce: DefaultDebounce,
		logger:   logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Runs returns how many times the handler has been invoked.
func (w *Watcher) Runs() int64 { return w.runs.Load() }

// Run watches until ctx is cancelled, returning nil. A handler error that
// is a filesystem invariant violation stops the watcher and is returned;
// other handler errors are logged.
func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.dir)
	if os.IsNotExist(err) {
		return fmt.Errorf("watch %s: %w", w.dir, mrerrors.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	if !info.IsDir() {
		return &mrerrors.InvariantError{Path: w.dir, Conflict: w.dir}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.logger.Info("watching inbox", logging.F("dir", w.dir), logging.F("debounce", w.debounce.String()))

	// Since Go 1.23 Stop and Reset discard a pending tick, so no drain is needed.
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped")
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			w.logger.Debug("inbox event", logging.F("op", event.Op.String()), logging.F("path", event.Name))
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", logging.Err(err))

		case <-timer.C:
			if err := w.fire(ctx); err != nil {
				return err
			}
		}
	}
}

func (w *Watcher) fire(ctx context.Context) error {
	w.runs.Add(1)
	err := w.handler(ctx)
	switch {
	case err == nil:
		return nil
	case mrerrors.IsInvariant(err):
		return err
	case mrerrors.IsNothingToDo(err), errors.Is(err, context.Canceled):
		w.logger.Debug("run skipped", logging.Err(err))
		return nil
	default:
		w.logger.Error("run failed", logging.Err(err))
		return nil
	}
}

func relevant(e fsnotify.Event) bool {
	return e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0
}
