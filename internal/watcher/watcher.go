// Package watcher reports changes to a single file, such as the config file
// while the terminal editor is running.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	DefaultDebounce     = 200 * time.Millisecond
	DefaultPollInterval = 2 * time.Second
)

var (
	ErrFileRemoved    = errors.New("watched file was removed")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long events are coalesced before OnChange fires.
func WithDebounce(d time.Duration) Option { return func(w *Watcher) { w.debounce = d } }

// WithPollInterval sets the interval used when fsnotify is unavailable.
func WithPollInterval(d time.Duration) Option { return func(w *Watcher) { w.pollInterval = d } }

// WithOnChange sets the change callback.
func WithOnChange(fn func()) Option { return func(w *Watcher) { w.onChange = fn } }

// WithOnError sets the error callback.
func WithOnError(fn func(error)) Option { return func(w *Watcher) { w.onError = fn } }

// WithForcePoll skips fsnotify.
func WithForcePoll(force bool) Option { return func(w *Watcher) { w.forcePoll = force } }

// Watcher watches one file. It watches the parent directory so atomic
// replace-by-rename is seen as a change.
type Watcher struct {
	path         string
	debounce     time.Duration
	pollInterval time.Duration
	onChange     func()
	onError      func(error)
	forcePoll    bool

	mu        sync.Mutex
	fsw       *fsnotify.Watcher
	cancel    context.CancelFunc
	timer     *time.Timer
	started   bool
	polling   bool
	lastMtime time.Time
	lastSize  int64
	changeCh  chan struct{}
}

// New returns a watcher for path. Call Start to begin.
func New(path string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:         abs,
		debounce:     DefaultDebounce,
		pollInterval: DefaultPollInterval,
		onChange:     func() {},
		onError:      func(error) {},
		changeCh:     make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

// Start begins watching. The file need not exist yet.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	if info, err := os.Stat(w.path); err == nil {
		w.lastMtime, w.lastSize = info.ModTime(), info.Size()
	}

	w.polling = true
	if !w.forcePoll {
		if fsw, err := fsnotify.NewWatcher(); err == nil {
			if err := fsw.Add(filepath.Dir(w.path)); err == nil {
				w.fsw = fsw
				w.polling = false
				go w.watchEvents(ctx, fsw)
			} else {
				_ = fsw.Close()
			}
		}
	}
	if w.polling {
		go w.watchPolling(ctx)
	}
	w.started = true
	return nil
}

// Stop stops watching. Pending debounced notifications are dropped.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	w.cancel()
	if w.fsw != nil {
		_ = w.fsw.Close()
		w.fsw = nil
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.started = false
}

// Changed receives after each debounced change.
func (w *Watcher) Changed() <-chan struct{} { return w.changeCh }

// Path returns the absolute watched path.
func (w *Watcher) Path() string { return w.path }

// IsPolling reports whether the watcher fell back to polling.
func (w *Watcher) IsPolling() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.polling
}

func (w *Watcher) watchEvents(ctx context.Context, fsw *fsnotify.Watcher) {
	target := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			switch {
			case ev.Op&fsnotify.Remove != 0:
				w.onError(ErrFileRemoved)
			case ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0:
				w.trigger()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) watchPolling(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(w.path)
			if err != nil {
				w.mu.Lock()
				had := !w.lastMtime.IsZero()
				w.lastMtime, w.lastSize = time.Time{}, 0
				w.mu.Unlock()
				if os.IsNotExist(err) {
					if had {
						w.onError(ErrFileRemoved)
					}
					continue
				}
				w.onError(err)
				continue
			}
			w.mu.Lock()
			changed := !info.ModTime().Equal(w.lastMtime) || info.Size() != w.lastSize
			w.lastMtime, w.lastSize = info.ModTime(), info.Size()
			w.mu.Unlock()
			if changed {
				w.trigger()
			}
		}
	}
}

// trigger restarts the debounce timer.
func (w *Watcher) trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.notify)
}

func (w *Watcher) notify() {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if !started {
		return
	}
	w.onChange()
	select {
	case w.changeCh <- struct{}{}:
	default:
	}
}
