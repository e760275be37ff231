package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JijoJohny/SolGuard/internal/logging"
)

const watchDebounce = 300 * time.Millisecond

// runWatch scans path once and again after every change until ctx is done.
// Scan failures, including --fail-on, are printed and do not stop watching.
func runWatch(ctx context.Context, cmd *cobra.Command, path string, o scanOptions) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("--watch needs a directory, %s is a file", path)
	}
	log, err := logging.New(firstNonEmpty(o.logLevel, "warn"), "console")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	scan := func() {
		if err := runScan(ctx, cmd, path, o); err != nil && ctx.Err() == nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "solguard:", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "watching %s for changes (ctrl+c to stop)\n", path)
	}
	scan()
	return watchSources(ctx, path, watchDebounce, log, scan)
}

// watchSources calls run each time a Rust file under root changes, after
// debounce of quiet. New directories are watched as they appear. It returns
// when ctx is done.
func watchSources(ctx context.Context, root string, debounce time.Duration, log *zap.Logger, run func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := addWatchRecursive(w, root); err != nil {
		return err
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					_ = addWatchRecursive(w, ev.Name)
					continue
				}
			}
			if !hasSourceExt(ev.Name) || ev.Op == fsnotify.Chmod {
				continue
			}
			log.Debug("source changed", zap.String("file", ev.Name), zap.Stringer("op", ev.Op))
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			run()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(err))
		}
	}
}

func addWatchRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		switch d.Name() {
		case ".git", "target", "node_modules":
			if path != root {
				return filepath.SkipDir
			}
		}
		return w.Add(path)
	})
}

func hasSourceExt(name string) bool {
	return filepath.Ext(name) == ".rs"
}
