// Package watcher reports changes to a single file, such as the settings file
// or the pronunciation dictionary, so the server can react without polling.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce collapses the burst of events editors emit for one save.
const DefaultDebounce = 100 * time.Millisecond

// Watcher calls onChange after the target file is written, replaced or removed.
// It watches the parent directory since editors often replace files by rename
// and fsnotify cannot watch a file that does not exist yet.
type Watcher struct {
	targetPath string
	parentPath string
	onChange   func(op fsnotify.Op)
	watcher    *fsnotify.Watcher
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.Mutex
	running    bool
	debounce   time.Duration
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// New creates a Watcher for targetPath. onChange receives the union of the
// operations seen during the debounce window.
func New(targetPath string, onChange func(op fsnotify.Op), opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	target, err := filepath.Abs(targetPath)
	if err != nil {
		_ = fsw.Close()
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())

	w := &Watcher{
		targetPath: target,
		parentPath: filepath.Dir(target),
		onChange:   onChange,
		watcher:    fsw,
		ctx:        ctx,
		cancel:     cancel,
		debounce:   DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.targetPath
}

// Start begins watching.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addWatch(); err != nil {
		log.Warn().Err(err).Str("path", w.parentPath).Msg("Failed to add initial watch")
	}

	go w.watchLoop()
	return nil
}

// Stop stops the watcher. Pending callbacks are dropped.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.running = false
	w.cancel()
	return w.watcher.Close()
}

func (w *Watcher) addWatch() error {
	if _, err := os.Stat(w.parentPath); err != nil {
		return err
	}
	return w.watcher.Add(w.parentPath)
}

const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

func (w *Watcher) watchLoop() {
	var (
		debounceTimer *time.Timer
		pendingMu     sync.Mutex
		pending       fsnotify.Op
	)

	for {
		select {
		case <-w.ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			eventPath := filepath.Clean(event.Name)

			if eventPath == w.parentPath && event.Op&fsnotify.Create != 0 {
				log.Info().Str("path", w.parentPath).Msg("Parent directory recreated, re-establishing watch")
				_ = w.addWatch()
				continue
			}
			if eventPath != w.targetPath || event.Op&relevantOps == 0 {
				continue
			}

			log.Debug().Str("path", w.targetPath).Str("op", event.Op.String()).Msg("Watched file event")
			pendingMu.Lock()
			pending |= event.Op
			pendingMu.Unlock()

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, func() {
				pendingMu.Lock()
				op := pending
				pending = 0
				pendingMu.Unlock()
				w.fire(op)
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) fire(op fsnotify.Op) {
	if op == 0 || w.ctx.Err() != nil {
		return
	}
	log.Info().Str("path", w.targetPath).Str("op", op.String()).Msg("Watched file changed")
	if w.onChange != nil {
		w.onChange(op)
	}
}
