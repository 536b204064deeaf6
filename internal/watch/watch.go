// Package watch reports new or rewritten files in a snapshot directory.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"epifeed/internal/logger"
)

const defaultDebounce = 500 * time.Millisecond

type Config struct {
	Dir      string
	Pattern  string
	Debounce time.Duration
}

// Run watches cfg.Dir until ctx is done. After a burst of create or write
// events on files matching cfg.Pattern settles for cfg.Debounce, onChange is
// called once with the last file touched. onChange runs on the watching
// goroutine, so events arriving meanwhile are coalesced into the next call.
func Run(ctx context.Context, cfg Config, onChange func(ctx context.Context, path string)) error {
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	if cfg.Pattern == "" {
		cfg.Pattern = "*"
	}
	if _, err := filepath.Match(cfg.Pattern, ""); err != nil {
		return fmt.Errorf("watch: invalid pattern %q: %w", cfg.Pattern, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(cfg.Dir); err != nil {
		return fmt.Errorf("watch: adding %s: %w", cfg.Dir, err)
	}
	logger.Info("watching snapshot directory", "dir", cfg.Dir, "pattern", cfg.Pattern)

	timer := time.NewTimer(cfg.Debounce)
	timer.Stop()
	defer timer.Stop()
	pending := ""

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event, cfg.Pattern) {
				continue
			}
			logger.Debug("snapshot change", "file", event.Name, "op", event.Op)
			pending = event.Name
			timer.Reset(cfg.Debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "dir", cfg.Dir, "error", err)
		case <-timer.C:
			if pending == "" {
				continue
			}
			path := pending
			pending = ""
			onChange(ctx, path)
		}
	}
}

func relevant(event fsnotify.Event, pattern string) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	if matched, _ := filepath.Match(pattern, filepath.Base(event.Name)); !matched {
		return false
	}
	info, err := os.Stat(event.Name)
	return err == nil && info.Mode().IsRegular()
}
