package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dotside-studios/tagstation/nfc"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce coalesces the burst of events editors emit on save.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads the configuration file when it changes and applies its
// operation settings to a live OperationConfiguration. Server and reader
// settings need a restart and are only logged.
type Watcher struct {
	path     string
	target   *nfc.OperationConfiguration
	logger   *zap.Logger
	debounce time.Duration
}

// NewWatcher creates a watcher for path. Call Run to start it.
func NewWatcher(path string, target *nfc.OperationConfiguration, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		target:   target,
		logger:   logger.Named("config"),
		debounce: DefaultDebounce,
	}
}

// Run watches until ctx is done. The parent directory is watched so that
// editors replacing the file by rename are still seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Info("watching configuration file", zap.String("path", w.path))

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", zap.Error(err))

		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("ignoring invalid configuration file", zap.String("path", w.path), zap.Error(err))
		return
	}
	cfg.Operation.ApplyTo(w.target)
	snap := w.target.Snapshot()
	w.logger.Info("configuration reloaded",
		zap.Bool("read", snap.Read),
		zap.Bool("write", snap.Write),
		zap.Bool("readOnly", snap.ReadOnly))
}
