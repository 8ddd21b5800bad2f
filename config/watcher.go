package config

import (
	"context"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"

	"github.com/go-thor/restproxy/errors"
)

// Watcher is a Context backed by a configuration file that is reloaded when it
// changes. Clients built from a Watcher keep the ClientConfig they were built
// with; the ambient headers follow the file.
type Watcher struct {
	path     string
	logger   hclog.Logger
	current  atomic.Pointer[ClientConfig]
	watcher  *fsnotify.Watcher
	onReload func(ClientConfig)
}

// WatcherOption configures a Watcher
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger for reload events
func WithWatcherLogger(logger hclog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// OnReload registers a callback run after each successful reload
func OnReload(fn func(ClientConfig)) WatcherOption {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// NewWatcher loads path and starts watching its directory
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:   filepath.Clean(path),
		logger: hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named("config")

	cfg, err := Load(w.path)
	if err != nil {
		return nil, err
	}
	w.current.Store(&cfg)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(errors.KindConfiguration, err, "create watcher")
	}
	// Watch the directory so editors that replace the file are seen
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		_ = fw.Close()
		return nil, errors.Wrap(errors.KindConfiguration, err, "watch config")
	}
	w.watcher = fw
	return w, nil
}

// Run processes file events until ctx is done or the watcher is closed
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "path", w.path, "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		// Keep serving the last good snapshot
		w.logger.Warn("config reload failed", "path", w.path, "error", err)
		return
	}
	w.current.Store(&cfg)
	w.logger.Info("config reloaded", "path", w.path)
	if w.onReload != nil {
		w.onReload(cfg.Clone())
	}
}

// ClientConfig returns the current configuration snapshot
func (w *Watcher) ClientConfig() ClientConfig {
	return w.current.Load().Clone()
}

// Headers returns the ambient headers of the current snapshot
func (w *Watcher) Headers() map[string]string {
	return w.current.Load().Headers
}

// Close stops watching
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

var _ Context = (*Watcher)(nil)
