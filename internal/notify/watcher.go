package notify

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SignalCallback is called with each token update seen by a Watcher.
type SignalCallback func(Signal)

// WatcherConfig holds configuration for a Watcher.
type WatcherConfig struct {
	// Dir is the session directory holding signal files.
	Dir string
	// ProviderID limits events to one provider; empty watches all.
	ProviderID string
	// Debounce collapses the create and write events of one switch.
	Debounce time.Duration
	OnSignal SignalCallback
	Logger   *slog.Logger
}

// Watcher streams token update signals from the session directory.
type Watcher struct {
	watcher        *fsnotify.Watcher
	dir            string
	providerID     string
	debounce       time.Duration
	onSignal       SignalCallback
	logger         *slog.Logger
	done           chan struct{}
	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex
	stopOnce       sync.Once
}

// NewWatcher creates a Watcher; call Start to begin watching.
func NewWatcher(config WatcherConfig) (*Watcher, error) {
	if config.OnSignal == nil {
		return nil, errors.New("watcher needs an OnSignal callback")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if config.Debounce == 0 {
		config.Debounce = 100 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Watcher{
		watcher:        w,
		dir:            config.Dir,
		providerID:     config.ProviderID,
		debounce:       config.Debounce,
		onSignal:       config.OnSignal,
		logger:         config.Logger,
		done:           make(chan struct{}),
		debounceTimers: make(map[string]*time.Timer),
	}, nil
}

// Start watches the directory in a background goroutine.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	go w.eventLoop()
	w.logger.Debug("signal watcher started", "dir", w.dir, "provider", w.providerID)
	return nil
}

// Stop ends the watch and cancels pending callbacks.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.debounceMu.Lock()
	for _, timer := range w.debounceTimers {
		timer.Stop()
	}
	clear(w.debounceTimers)
	w.debounceMu.Unlock()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("signal watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}
	id, ok := providerFromPath(event.Name)
	if !ok || (w.providerID != "" && id != w.providerID) {
		return
	}

	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, exists := w.debounceTimers[event.Name]; exists {
		timer.Stop()
	}
	path := event.Name
	w.debounceTimers[path] = time.AfterFunc(w.debounce, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimers, path)
		w.debounceMu.Unlock()

		select {
		case <-w.done:
			return
		default:
			w.deliver(path)
		}
	})
}

func (w *Watcher) deliver(path string) {
	sig, err := readSignal(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.logger.Debug("unreadable signal file", "path", path, "error", err)
		}
		return
	}
	w.onSignal(*sig)
}
