package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"newsdesk/types"
)

const reloadDebounce = 250 * time.Millisecond

// WatchSubscriptions calls onChange with the reloaded groups whenever the
// subscriptions file changes, until ctx is done. The parent directory is
// watched so that editors which replace the file are picked up. A file that
// fails to parse is logged and ignored.
func WatchSubscriptions(ctx context.Context, path string, logger *zap.Logger, onChange func([]types.Group)) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		target := filepath.Clean(path)
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(reloadDebounce)
				} else {
					timer.Reset(reloadDebounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				groups, err := LoadSubscriptions(path)
				if err != nil {
					logger.Warn("subscriptions reload failed", zap.String("path", path), zap.Error(err))
					continue
				}
				logger.Info("subscriptions reloaded", zap.String("path", path), zap.Int("groups", len(groups)))
				onChange(groups)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("subscriptions watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
