package automation

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchOptions struct {
	// Debounce collapses bursts of events, such as an editor's
	// write-rename-chmod sequence, into one run.
	Debounce time.Duration
	// RunFirst runs once before waiting for changes.
	RunFirst bool
	Logger   *slog.Logger
}

func DefaultWatchOptions() WatchOptions {
	return WatchOptions{Debounce: 200 * time.Millisecond, RunFirst: true}
}

// Watch calls run each time the file at path changes, until ctx is done.
// The parent directory is watched so files replaced by rename are still
// seen. Errors from run are logged and do not stop the watch.
func Watch(ctx context.Context, path string, opts WatchOptions, run func(context.Context) error) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	invoke := func() {
		logger.Info("running", "file", target)
		if err := run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("run failed", "file", target, "error", err)
		}
	}
	if opts.RunFirst {
		invoke()
	}

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			logger.Debug("file changed", "file", target, "op", ev.Op.String())
			timer.Reset(opts.Debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		case <-timer.C:
			invoke()
		}
	}
}
