// Package watch reports workspace file changes. It only notifies; it never
// triggers a search.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// EventCallback is called for every relevant change.
// kind is one of "created", "updated", "deleted", "renamed"; path is
// slash-separated and relative to the workspace root.
type EventCallback func(kind string, path string)

// Watch starts an fsnotify watcher on root and reports changes until ctx is
// cancelled. Directories whose name is in skip are neither watched nor
// reported. Directories created at runtime are added to the watch list.
func Watch(ctx context.Context, root string, skip []string, logger *slog.Logger, cb EventCallback) error {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root, skip); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil || rel == "." {
				continue
			}
			rel = filepath.ToSlash(rel)
			if skipped(rel, skip) {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name, skip); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", rel),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", rel))
					}
					continue
				}
			}

			kind := classify(ev.Op)
			if kind == "" {
				continue
			}
			logger.Debug("watcher: change", slog.String("path", rel), slog.String("op", kind))
			if cb != nil {
				cb(kind, rel)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func classify(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create != 0:
		return "created"
	case op&fsnotify.Write != 0:
		return "updated"
	case op&fsnotify.Remove != 0:
		return "deleted"
	case op&fsnotify.Rename != 0:
		return "renamed"
	}
	return ""
}

// skipped reports whether any path segment of rel is a skipped folder name.
func skipped(rel string, skip []string) bool {
	if len(skip) == 0 {
		return false
	}
	for _, seg := range strings.Split(rel, "/") {
		if slices.Contains(skip, seg) {
			return true
		}
	}
	return false
}

// addDirsRecursive adds dir and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, dir string, skip []string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && slices.Contains(skip, d.Name()) {
			return fs.SkipDir
		}
		return w.Add(path)
	})
}
