package config

import (
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// WatchCallback receives the freshly reloaded config.
type WatchCallback func(cfg *Config)

// Watcher polls a config file's modification time and reloads it on
// change, notifying registered callbacks with the new config. Reload
// failures keep the previous config.
type Watcher struct {
	path     string
	interval time.Duration
	logger   *zap.Logger

	mu        sync.RWMutex
	current   *Config
	callbacks []WatchCallback
	lastMod   time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWatcher creates a watcher over path. interval <= 0 defaults to 5s.
// The file is loaded once up front so Current is never nil after a
// successful construction.
func NewWatcher(path string, interval time.Duration, logger *zap.Logger) (*Watcher, error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     path,
		interval: interval,
		logger:   logger.With(zap.String("component", "config_watcher")),
		current:  cfg,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	if info, err := os.Stat(path); err == nil {
		w.lastMod = info.ModTime()
	}
	return w, nil
}

// Current returns the most recently loaded config.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers a callback invoked after each successful reload.
func (w *Watcher) OnChange(cb WatchCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Start begins polling in a background goroutine.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop ends polling and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
}

func (w *Watcher) loop() {
	defer close(w.doneCh)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *Watcher) poll() {
	info, err := os.Stat(w.path)
	if err != nil {
		// File temporarily missing during atomic rewrites; keep the
		// current config.
		return
	}

	w.mu.RLock()
	unchanged := !info.ModTime().After(w.lastMod)
	w.mu.RUnlock()
	if unchanged {
		return
	}

	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous config", zap.Error(err))
		return
	}

	w.mu.Lock()
	w.current = cfg
	w.lastMod = info.ModTime()
	callbacks := append([]WatchCallback(nil), w.callbacks...)
	w.mu.Unlock()

	w.logger.Info("config reloaded", zap.String("path", w.path))
	for _, cb := range callbacks {
		cb(cfg)
	}
}
