package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/roelfdiedericks/gaiabot/internal/bus"
	"github.com/roelfdiedericks/gaiabot/internal/logging"
)

// DefaultDebounce coalesces the burst of events editors produce on save.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads the config file when it changes and publishes the new
// config on the bus as bus.TopicConfigReloaded. A file that fails to load
// is logged and the previous config stays in effect.
type Watcher struct {
	path     string
	bus      *bus.Bus
	debounce time.Duration
	watcher  *fsnotify.Watcher

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once

	mu           sync.Mutex
	started      bool
	pendingTimer *time.Timer
	reloads      int
}

// NewWatcher watches path. The parent directory is watched so editors that
// replace the file by rename are still seen.
func NewWatcher(path string, b *bus.Bus, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		path:     abs,
		bus:      b,
		debounce: debounce,
		watcher:  fsw,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching on its own goroutine.
func (w *Watcher) Start() {
	w.mu.Lock()
	w.started = true
	w.mu.Unlock()

	logging.L_debug("config: watching", "path", w.path)
	go w.run()
}

func (w *Watcher) run() {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.L_warn("config: watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != w.path {
		return
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return
	}
	logging.L_trace("config: file event", "path", ev.Name, "op", ev.Op.String())

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pendingTimer != nil {
		w.pendingTimer.Stop()
	}
	w.pendingTimer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	w.mu.Lock()
	w.pendingTimer = nil
	w.mu.Unlock()

	select {
	case <-w.stopCh:
		return
	default:
	}

	cfg, _, err := Load(w.path)
	if err != nil {
		logging.L_warn("config: reload failed, keeping previous config", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	w.reloads++
	w.mu.Unlock()

	logging.L_info("config: reloaded", "path", w.path)
	w.bus.Publish(bus.TopicConfigReloaded, cfg, "watcher")
}

// Reloads returns the number of successful reloads.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

// Stop ends watching and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.mu.Lock()
		if w.pendingTimer != nil {
			w.pendingTimer.Stop()
		}
		started := w.started
		w.mu.Unlock()
		err = w.watcher.Close()
		if started {
			<-w.doneCh
		}
	})
	return err
}
