// Package config provides configuration loading and hot reload.
package config

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// fileSettle absorbs the burst of events editors produce for one save.
const fileSettle = 100 * time.Millisecond

const (
	triggerFile   = "file"
	triggerSignal = "sighup"
)

// Holder serves the current configuration and swaps it on reload. File
// changes and SIGHUP feed a single reload loop, so reloads never overlap.
type Holder struct {
	current atomic.Pointer[Config]
	path    string
	logger  zerolog.Logger

	reloadMu  sync.Mutex
	listenMu  sync.Mutex
	listeners []func(*Config)

	triggers chan string
	loopOnce sync.Once
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewHolder loads the file at path and returns a holder backed by it.
func NewHolder(path string, logger zerolog.Logger) (*Holder, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	h := newHolder(cfg, logger)
	h.path = absPath
	return h, nil
}

// NewStaticHolder wraps a configuration that has no backing file, such as
// one built by LoadFromEnv. Reload and WatchFile are no-ops for it.
func NewStaticHolder(cfg *Config, logger zerolog.Logger) *Holder {
	return newHolder(cfg, logger)
}

func newHolder(cfg *Config, logger zerolog.Logger) *Holder {
	h := &Holder{
		logger:   logger,
		triggers: make(chan string, 4),
		stopCh:   make(chan struct{}),
	}
	h.current.Store(cfg)
	return h
}

// Path returns the absolute path of the config file, or "" for a static holder.
func (h *Holder) Path() string {
	return h.path
}

// SetLogger replaces the holder's logger. Call it before WatchFile or
// WatchSignals.
func (h *Holder) SetLogger(logger zerolog.Logger) {
	h.logger = logger
}

// Get returns the current configuration.
func (h *Holder) Get() *Config {
	return h.current.Load()
}

// OnChange registers fn to run after every successful reload.
func (h *Holder) OnChange(fn func(*Config)) {
	h.listenMu.Lock()
	defer h.listenMu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Reload reads the backing file again. A file that fails to load or validate
// leaves the current configuration in place.
func (h *Holder) Reload() error {
	if h.path == "" {
		return nil
	}

	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	next, err := Load(h.path)
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	prev := h.current.Swap(next)

	if *prev == *next {
		h.logger.Debug().Msg("configuration unchanged")
	} else {
		h.logChanges(prev, next)
	}

	h.listenMu.Lock()
	listeners := append([]func(*Config){}, h.listeners...)
	h.listenMu.Unlock()
	for _, fn := range listeners {
		fn(next)
	}
	return nil
}

// WatchFile reloads whenever the backing file is written or replaced. The
// parent directory is watched so atomic saves are seen too.
func (h *Holder) WatchFile() error {
	if h.path == "" {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(h.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch directory: %w", err)
	}
	h.watcher = w

	h.startLoop()
	go h.forwardFileEvents(w)

	h.logger.Info().Str("path", h.path).Msg("watching config file")
	return nil
}

// WatchSignals reloads on SIGHUP until Stop.
func (h *Holder) WatchSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	h.startLoop()
	go func() {
		defer signal.Stop(sigCh)
		for {
			select {
			case <-sigCh:
				h.trigger(triggerSignal)
			case <-h.stopCh:
				return
			}
		}
	}()

	h.logger.Info().Msg("reloading config on SIGHUP")
}

// Stop ends file and signal watching. It is safe to call more than once.
func (h *Holder) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		if h.watcher != nil {
			h.watcher.Close()
		}
	})
}

func (h *Holder) trigger(reason string) {
	select {
	case h.triggers <- reason:
	case <-h.stopCh:
	}
}

func (h *Holder) startLoop() {
	h.loopOnce.Do(func() { go h.reloadLoop() })
}

func (h *Holder) reloadLoop() {
	settle := time.NewTimer(fileSettle)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case reason := <-h.triggers:
			if reason == triggerFile {
				settle.Reset(fileSettle)
				continue
			}
			h.reloadFrom(reason)
		case <-settle.C:
			h.reloadFrom(triggerFile)
		case <-h.stopCh:
			return
		}
	}
}

func (h *Holder) reloadFrom(reason string) {
	log := h.logger.With().Str("trigger", reason).Logger()
	if err := h.Reload(); err != nil {
		log.Error().Err(err).Msg("config reload failed, keeping current config")
		return
	}
	log.Info().Msg("configuration reloaded")
}

func (h *Holder) forwardFileEvents(w *fsnotify.Watcher) {
	name := filepath.Base(h.path)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				h.logger.Debug().Str("op", ev.Op.String()).Msg("config file changed")
				h.trigger(triggerFile)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("config watcher error")
		case <-h.stopCh:
			return
		}
	}
}

func (h *Holder) logChanges(old, new *Config) {
	if old.Logging.Level != new.Logging.Level {
		h.logger.Info().
			Str("old", old.Logging.Level).
			Str("new", new.Logging.Level).
			Msg("log level changed")
	}

	if old.Schemas != new.Schemas {
		h.logger.Info().
			Str("old", old.Schemas.Dir).
			Str("new", new.Schemas.Dir).
			Bool("watch", new.Schemas.Watch).
			Msg("schema settings changed")
	}

	for _, field := range RestartRequired(old, new) {
		h.logger.Warn().Str("field", field).Msg("change takes effect after restart")
	}
}

// RestartRequired lists the settings that differ between old and new but are
// only read at startup.
func RestartRequired(old, new *Config) []string {
	var fields []string
	if old.Server.Host != new.Server.Host {
		fields = append(fields, "server.host")
	}
	if old.Server.Port != new.Server.Port {
		fields = append(fields, "server.port")
	}
	if old.Server.ReadTimeout != new.Server.ReadTimeout || old.Server.WriteTimeout != new.Server.WriteTimeout {
		fields = append(fields, "server.timeouts")
	}
	if old.Database != new.Database {
		fields = append(fields, "database")
	}
	if old.Metrics != new.Metrics {
		fields = append(fields, "metrics")
	}
	return fields
}
