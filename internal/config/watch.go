package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch sends on wake whenever the target file is written, created or
// renamed over. The send never blocks; a pending wake-up already covers the
// change. The directory is watched rather than the file so atomic saves
// (write temp, rename) keep being observed. Watch returns when ctx is done.
func Watch(ctx context.Context, log *zap.Logger, path string, wake chan<- struct{}) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}
	name := filepath.Clean(path)
	log.Info("targets_watch_started", zap.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			select {
			case wake <- struct{}{}:
			default:
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("targets_watch_error", zap.Error(err))
		}
	}
}
