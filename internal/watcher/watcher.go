// Package watcher re-runs corpus preparation when the corpus file changes on disk.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// ChangeFunc is called with the corpus path after a debounced change.
type ChangeFunc func(ctx context.Context, path string) error

// FingerprintFunc returns a content digest of the file at path.
type FingerprintFunc func(path string) (string, error)

// CorpusWatcher watches a single corpus file. It watches the parent directory so
// editors that save by rename are seen as well.
type CorpusWatcher struct {
	path        string
	onChange    ChangeFunc
	fingerprint FingerprintFunc
	last        string
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	timer       *time.Timer
	mu          sync.Mutex
	runs        int
	running     bool
	pending     bool
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// Option configures a CorpusWatcher.
type Option func(*CorpusWatcher)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *CorpusWatcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets how long the file must stay quiet before onChange runs.
func WithDebounce(d time.Duration) Option {
	return func(w *CorpusWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithFingerprint skips changes whose digest equals the last handled one.
// initial is the digest of the content already prepared, if known.
func WithFingerprint(fn FingerprintFunc, initial string) Option {
	return func(w *CorpusWatcher) {
		w.fingerprint = fn
		w.last = initial
	}
}

// NewCorpusWatcher creates a watcher for the corpus file at path.
func NewCorpusWatcher(path string, onChange ChangeFunc, opts ...Option) (*CorpusWatcher, error) {
	if onChange == nil {
		return nil, errors.New("watcher needs a change callback")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &CorpusWatcher{
		path:     filepath.Clean(abs),
		onChange: onChange,
		debounce: defaultDebounce,
		done:     make(chan struct{}),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Path returns the absolute corpus path.
func (w *CorpusWatcher) Path() string { return w.path }

// Runs returns how many times onChange has completed successfully.
func (w *CorpusWatcher) Runs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs
}

// Start starts watching. It runs until ctx is cancelled or Stop is called.
func (w *CorpusWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	dir := filepath.Dir(w.path)
	if _, err := os.Stat(dir); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return err
	}
	w.watcher = watcher
	w.started = true
	w.logger.Debug("Corpus watcher starting", zap.String("path", w.path), zap.Duration("debounce", w.debounce))
	go w.run(ctx, watcher.Events, watcher.Errors)
	return nil
}

func (w *CorpusWatcher) run(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-errs:
			if !ok {
				return
			}
			w.logger.Debug("Corpus watcher error", zap.Error(err))
		}
	}
}

func (w *CorpusWatcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != w.path {
		return
	}
	w.logger.Debug("Corpus watcher event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name))
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		w.schedule(ctx)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.cancel()
	}
}

func (w *CorpusWatcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.fire(ctx) })
}

func (w *CorpusWatcher) cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// fire runs onChange unless the content digest is unchanged. Only one run is in
// flight at a time; changes that settle during a run queue a single follow-up.
func (w *CorpusWatcher) fire(ctx context.Context) {
	w.mu.Lock()
	w.timer = nil
	if w.running {
		w.pending = true
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	for {
		if ctx.Err() == nil {
			w.rebuild(ctx)
		}
		w.mu.Lock()
		again := w.pending && w.started && ctx.Err() == nil
		w.pending = false
		if !again {
			w.running = false
			w.mu.Unlock()
			return
		}
		w.mu.Unlock()
		w.logger.Debug("Corpus changed during rebuild, running again", zap.String("path", w.path))
	}
}

func (w *CorpusWatcher) rebuild(ctx context.Context) {
	w.mu.Lock()
	fingerprint, last := w.fingerprint, w.last
	w.mu.Unlock()

	var digest string
	if fingerprint != nil {
		d, err := fingerprint(w.path)
		if err != nil {
			w.logger.Warn("Failed to fingerprint corpus", zap.String("path", w.path), zap.Error(err))
			return
		}
		if d == last {
			w.logger.Debug("Corpus unchanged, skipping", zap.String("path", w.path))
			return
		}
		digest = d
	}

	if err := w.onChange(ctx, w.path); err != nil {
		w.logger.Warn("Corpus rebuild failed", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.mu.Lock()
	w.runs++
	if fingerprint != nil {
		w.last = digest
	}
	w.mu.Unlock()
	w.logger.Info("Corpus rebuilt", zap.String("path", w.path))
}

// Stop stops the watcher and releases resources.
func (w *CorpusWatcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.pending = false
	_ = w.watcher.Close()
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
