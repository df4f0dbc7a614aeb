// Package watcher observes a directory tree for markdown changes and
// coalesces bursts of filesystem events into batched notifications. A later
// event for a path overwrites an earlier pending one; a single debounce timer
// is re-armed on every incoming event, so a pending flush is implicitly
// superseded rather than explicitly cancelled.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/teamlens-dev/teamlens/pkg/logger"
)

// DefaultDebounce is the delay after the last observed event before
// subscribers are notified.
const DefaultDebounce = 500 * time.Millisecond

// DefaultPattern matches the markdown files the aggregation core reads.
const DefaultPattern = "**/*.md"

// Event is one coalesced file change. Op is the most recent operation
// observed for the path within the window.
type Event struct {
	Path string
	Op   fsnotify.Op
	Time time.Time
}

// Batch is one debounced notification: every pending event at the time the
// window elapsed, keyed by path before flattening. ID correlates the batch
// across log lines.
type Batch struct {
	ID     string
	Events []Event
}

// Watcher watches a directory tree recursively. Start and Stop are
// idempotent: starting a started watcher or stopping a stopped one is a
// no-op.
type Watcher struct {
	root     string
	debounce time.Duration
	pattern  string

	mu      sync.Mutex
	fw      *fsnotify.Watcher
	pending map[string]Event
	timer   *time.Timer
	subs    []chan Batch
	started bool
	cancel  context.CancelFunc
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides the debounce window.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithPattern overrides the doublestar include pattern, matched against the
// path relative to the watched root.
func WithPattern(pattern string) Option {
	return func(w *Watcher) { w.pattern = pattern }
}

// New creates a watcher over the given root directory.
func New(root string, opts ...Option) *Watcher {
	w := &Watcher{
		root:     root,
		debounce: DefaultDebounce,
		pattern:  DefaultPattern,
		pending:  make(map[string]Event),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Subscribe registers a batch channel. Batches are delivered best-effort: a
// subscriber that stops draining its channel loses batches rather than
// blocking the flush.
func (w *Watcher) Subscribe() <-chan Batch {
	ch := make(chan Batch, 16)
	w.mu.Lock()
	w.subs = append(w.subs, ch)
	w.mu.Unlock()
	return ch
}

// Start begins watching the root and all subdirectories. Calling Start on a
// running watcher is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}

	if err := addRecursive(fw, w.root); err != nil {
		fw.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	w.fw = fw
	w.cancel = cancel
	w.started = true

	go w.run(ctx, fw)

	logger.G(ctx).WithField("root", w.root).WithField("debounce", w.debounce).Debug("file watcher started")
	return nil
}

// Stop stops watching and discards pending events. Calling Stop on a stopped
// watcher is a no-op.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	w.started = false
	w.cancel()
	w.fw.Close()
	w.fw = nil
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.pending = make(map[string]Event)
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handle(ctx, fw, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logger.G(ctx).WithError(err).Error("file watcher error")
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) handle(ctx context.Context, fw *fsnotify.Watcher, event fsnotify.Event) {
	// New directories must be added to the recursive watch before their
	// contents can be observed.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addRecursive(fw, event.Name); err != nil {
				logger.G(ctx).WithError(err).WithField("dir", event.Name).Warn("failed to watch new directory")
			}
			return
		}
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	if matched, err := doublestar.Match(w.pattern, filepath.ToSlash(rel)); err != nil || !matched {
		return
	}

	w.record(Event{Path: event.Name, Op: event.Op, Time: time.Now()})
}

// record coalesces the event into the pending set and re-arms the debounce
// timer. Exposed within the package so coalescing is testable without
// filesystem timing.
func (w *Watcher) record(event Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[event.Path] = event
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

// flush fires all pending coalesced events as one batch and clears the
// pending set.
func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	batch := Batch{ID: uuid.New().String(), Events: make([]Event, 0, len(w.pending))}
	for _, event := range w.pending {
		batch.Events = append(batch.Events, event)
	}
	w.pending = make(map[string]Event)
	w.timer = nil
	subs := make([]chan Batch, len(w.subs))
	copy(subs, w.subs)
	w.mu.Unlock()

	logger.L.WithField("batch_id", batch.ID).WithField("events", len(batch.Events)).Debug("change batch flushed")
	for _, ch := range subs {
		select {
		case ch <- batch:
		default:
		}
	}
}

func addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if err := fw.Add(path); err != nil {
			return errors.Wrapf(err, "failed to watch %s", path)
		}
		return nil
	})
}
