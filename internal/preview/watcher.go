package preview

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Debouncer collapses bursts of Trigger calls into one call of fn, made
// once no further trigger has arrived for the delay.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	fn    func()
	timer *time.Timer
}

// NewDebouncer creates a debouncer around fn
func NewDebouncer(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger schedules fn, pushing back any pending call
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fn)
}

// Stop cancels a pending call
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Watch watches the given paths and their subdirectories until ctx is done,
// calling onChange once edits settle. Paths that do not exist are skipped;
// directories created later are picked up.
func Watch(ctx context.Context, paths []string, debounce time.Duration, logger *slog.Logger, onChange func()) error {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, p := range paths {
		if err := addTree(watcher, p, logger); err != nil {
			return err
		}
	}

	debouncer := NewDebouncer(debounce, onChange)
	defer debouncer.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ignoredName(filepath.Base(event.Name)) {
				continue
			}
			logger.Debug("watched file changed", "path", event.Name, "op", event.Op.String())
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addTree(watcher, event.Name, logger); err != nil {
						logger.Warn("unable to watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			debouncer.Trigger()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("error whilst watching files", "error", err)
		case <-ctx.Done():
			return nil
		}
	}
}

func addTree(watcher *fsnotify.Watcher, root string, logger *slog.Logger) error {
	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		logger.Debug("watching", "path", root)
		return watcher.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && ignoredName(d.Name()) {
			return filepath.SkipDir
		}
		logger.Debug("watching", "path", path)
		return watcher.Add(path)
	})
}

// ignoredName matches hidden files and editor scratch files
func ignoredName(name string) bool {
	return strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".swp") ||
		strings.HasPrefix(name, "#")
}
