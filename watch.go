package polyoutline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchSettings watches path and sends a freshly loaded Settings every time
// the file is written or replaced. Files that fail to load are logged at
// Warn and skipped. The parent directory is watched so that editors which
// save through a rename are still observed.
//
// The returned channel is closed when ctx is done or the watcher fails.
func WatchSettings(ctx context.Context, path string) (<-chan Settings, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch settings: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch settings: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch settings: %w", err)
	}

	out := make(chan Settings, 1)
	go func() {
		defer close(out)
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				s, err := LoadSettings(abs)
				if err != nil {
					Logger().Warn("settings reload failed", "path", abs, "err", err)
					continue
				}
				Logger().Info("settings reloaded", "path", abs)
				// Keep only the newest value if the consumer lags.
				select {
				case <-out:
				default:
				}
				select {
				case out <- s:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				if errors.Is(err, fsnotify.ErrEventOverflow) {
					Logger().Warn("settings watcher overflow", "err", err)
					continue
				}
				Logger().Warn("settings watcher failed", "err", err)
				return
			}
		}
	}()
	return out, nil
}
