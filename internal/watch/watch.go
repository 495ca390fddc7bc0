// Package watch reports changes to a single file.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events an editor or an atomic
// temp-file + rename save produces into one notification.
const DefaultDebounce = 250 * time.Millisecond

const relevantOps = fsnotify.Create | fsnotify.Write | fsnotify.Rename | fsnotify.Remove

// File watches path and calls onChange once per burst of changes, after
// debounce of quiet. It watches the parent directory so the file may be
// created, replaced or deleted. File blocks until ctx is cancelled and then
// returns nil; it returns an error only if the watch cannot be established
// or the event stream fails.
func File(ctx context.Context, path string, debounce time.Duration, onChange func()) error {
	if onChange == nil {
		return errors.New("watch: onChange is required")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch: resolve %q: %w", path, err)
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("watch: create %q: %w", dir, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch: add %q: %w", dir, err)
	}
	slog.Debug("[DEBUG-WATCH] watching config file", "path", target)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("watch: event stream closed")
			}
			if filepath.Clean(ev.Name) != target || ev.Op&relevantOps == 0 {
				continue
			}
			slog.Debug("[DEBUG-WATCH] config file event", "op", ev.Op.String())
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("watch: error stream closed")
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				slog.Warn("[WARN-WATCH] event overflow, treating as change", "path", target)
				timer.Reset(debounce)
				continue
			}
			slog.Warn("[WARN-WATCH] watcher error", "path", target, "error", err)
		case <-timer.C:
			onChange()
		}
	}
}
