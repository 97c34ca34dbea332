package drafts

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/vssflow/internal/checksum"
	"github.com/starford/vssflow/internal/storage"
)

// EventCallback is called after a draft file changes on disk.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

// Watch starts an fsnotify watcher on the drafts root and reports draft
// changes until ctx is cancelled. Writes that leave a file's checksum
// unchanged are not reported.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a reconciliation pass against the directory
// listing.
func Watch(ctx context.Context, store storage.Provider, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := store.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	known := make(map[string]string)
	if metas, err := store.List(""); err == nil {
		for _, m := range metas {
			known[m.Path] = m.Checksum
		}
	}

	emit := func(kind, rel string) {
		logger.Debug("watcher: draft changed", slog.String("path", rel), slog.String("op", kind))
		if cb != nil {
			cb(kind, rel)
		}
	}

	// refresh re-reads rel and reports it if its content changed.
	refresh := func(rel string) {
		data, err := store.Read(rel)
		if err != nil {
			logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
			return
		}
		cs := checksum.Sum(data)
		prev, seen := known[rel]
		if seen && prev == cs {
			return
		}
		known[rel] = cs
		if seen {
			emit("updated", rel)
		} else {
			emit("created", rel)
		}
	}

	forget := func(rel string) {
		if _, ok := known[rel]; ok {
			delete(known, rel)
			emit("deleted", rel)
		}
	}

	// reconcileTimer is used to debounce rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	logger.Info("watcher: started", slog.String("root", root))

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			metas, err := store.List("")
			if err != nil {
				logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
				continue
			}
			disk := make(map[string]struct{}, len(metas))
			for _, m := range metas {
				disk[m.Path] = struct{}{}
				if known[m.Path] != m.Checksum {
					refresh(m.Path)
				}
			}
			for p := range known {
				if _, ok := disk[p]; !ok {
					forget(p)
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					// Files may have landed before the directory was watched.
					scheduleReconcile()
					continue
				}
			}

			name := filepath.Base(ev.Name)
			if !storage.IsDraft(name) || strings.HasPrefix(name, ".") {
				continue
			}
			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				refresh(rel)
			case ev.Op&fsnotify.Remove != 0:
				forget(rel)
			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the old path only; the new path
				// arrives as a Create if it stays under a watched dir.
				forget(rel)
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
