package module

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period Watch waits for before calling back.
const DefaultDebounce = 500 * time.Millisecond

// Watch calls fn after descriptor changes under dir settle for debounce. It
// watches dir and its immediate subdirectories, adding new subdirectories as
// they appear, and blocks until ctx is done.
func Watch(ctx context.Context, dir string, debounce time.Duration, logger *log.Logger, fn func()) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithPrefix("watch")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := watcher.Add(filepath.Join(dir, e.Name())); err != nil {
			logger.Debug("failed to watch module dir", "path", e.Name(), "err", err)
		}
	}
	logger.Info("watching modules", "dir", dir)

	var mu sync.Mutex
	var timer *time.Timer
	schedule := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, fn)
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			if !relevant(dir, event) {
				continue
			}
			if event.Op&fsnotify.Create != 0 && filepath.Dir(event.Name) == filepath.Clean(dir) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			logger.Debug("module change", "path", event.Name, "op", event.Op.String())
			schedule()
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			logger.Warn("watch error", "err", err)
		}
	}
}

// relevant reports whether event touches a descriptor or a module directory.
func relevant(dir string, event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if filepath.Base(event.Name) == DescriptorFile {
		return true
	}
	// a module directory itself came or went
	return filepath.Dir(event.Name) == filepath.Clean(dir)
}
