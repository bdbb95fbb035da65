package preview

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher turns filesystem events under a set of directories into rebuild
// triggers.
type Watcher struct {
	w       *fsnotify.Watcher
	ignore  []string
	trigger func()
}

// NewWatcher watches dirs recursively. Paths under any of ignore (typically
// the output directory) never trigger a rebuild.
func NewWatcher(dirs, ignore []string, trigger func()) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	pw := &Watcher{w: w, trigger: trigger}
	for _, p := range ignore {
		if abs, err := filepath.Abs(p); err == nil {
			pw.ignore = append(pw.ignore, abs)
		}
	}
	for _, dir := range dirs {
		if st, err := os.Stat(dir); err != nil || !st.IsDir() {
			_ = w.Close()
			return nil, fmt.Errorf("watch dir not found or not a directory: %s", dir)
		}
		pw.addRecursive(dir)
	}
	return pw, nil
}

// Run forwards events until ctx is done or the watcher is closed.
func (pw *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-pw.w.Events:
			if !ok {
				return
			}
			pw.handle(ev)
		case err, ok := <-pw.w.Errors:
			if !ok {
				return
			}
			slog.Warn("watcher error", "error", err)
		}
	}
}

// Close stops watching.
func (pw *Watcher) Close() error {
	return pw.w.Close()
}

func (pw *Watcher) handle(ev fsnotify.Event) {
	if shouldIgnoreEvent(ev.Name) || pw.ignored(ev.Name) {
		return
	}
	if ev.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			pw.addRecursive(ev.Name)
		}
	}
	if ev.Op == fsnotify.Chmod {
		return
	}
	slog.Debug("Source change detected", "path", ev.Name, "op", ev.Op.String())
	pw.trigger()
}

func (pw *Watcher) ignored(path string) bool {
	for _, dir := range pw.ignore {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (pw *Watcher) addRecursive(root string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (d.Name() == "node_modules" || strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		if abs, err := filepath.Abs(path); err == nil && pw.ignored(abs) {
			return filepath.SkipDir
		}
		if err := pw.w.Add(path); err != nil {
			slog.Warn("watch add failed", "dir", path, "error", err)
		}
		return nil
	})
}

// shouldIgnoreEvent returns true for editor and OS artifacts.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)

	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	return base == "Thumbs.db" || base == "4913" // vim write probe
}
