package index

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dverna/wisp/internal/apperr"
	"github.com/dverna/wisp/internal/storage"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, identity string)

// Watch starts an fsnotify watcher on the vault root and processes file
// change events until ctx is cancelled. Every mutation is applied to
// both the index and the graph (eng), then reported through cb.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a reconciliation pass that removes stale
// index entries whose files no longer exist on disk.
func Watch(ctx context.Context, db *DB, store storage.Provider, eng Applier, vaultRoot string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, vaultRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", vaultRoot))

	apply := func(identity string, data []byte) error {
		if err := indexFile(db, identity, data); err != nil {
			return err
		}
		if eng != nil {
			if _, err := eng.UpsertNote(identity, string(data)); err != nil {
				return err
			}
		}
		return nil
	}
	remove := func(identity string) error {
		if err := db.DeleteNote(identity); err != nil {
			return err
		}
		if eng != nil {
			if err := eng.RemoveNote(identity); err != nil && !errors.Is(err, apperr.ErrNotFound) {
				return err
			}
		}
		return nil
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

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcileAfterRename(db, store, eng, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// --- Handle new directories: add to watcher ---
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					// Index any notes already in the new directory.
					indexNewDir(db, store, eng, vaultRoot, absPath, logger, cb)
					continue
				}
			}

			// Only process .md files from here on.
			if !strings.HasSuffix(absPath, ".md") {
				continue
			}

			rel, relErr := filepath.Rel(vaultRoot, absPath)
			if relErr != nil {
				continue
			}
			identity := storage.Identity(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(identity)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("identity", identity), slog.String("error", readErr.Error()))
					continue
				}
				if applyErr := apply(identity, data); applyErr != nil {
					logger.Warn("watcher: index failed", slog.String("identity", identity), slog.String("error", applyErr.Error()))
					continue
				}
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				logger.Debug("watcher: indexed", slog.String("identity", identity), slog.String("op", kind))
				if cb != nil {
					cb(kind, identity)
				}

			case ev.Op&fsnotify.Remove != 0:
				if delErr := remove(identity); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("identity", identity), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("identity", identity))
				if cb != nil {
					cb("deleted", identity)
				}

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only. The new
				// path will arrive as a separate Create event (if it
				// stays within a watched dir). We delete the old entry
				// immediately and schedule a short reconciliation pass
				// to catch any stragglers.
				if delErr := remove(identity); delErr != nil {
					logger.Warn("watcher: rename delete failed", slog.String("identity", identity), slog.String("error", delErr.Error()))
				} else {
					logger.Debug("watcher: rename old deleted", slog.String("identity", identity))
					if cb != nil {
						cb("deleted", identity)
					}
				}
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

// reconcileAfterRename does a lightweight sync using batch lookups:
// finds index entries without a corresponding file on disk and removes them,
// and finds on-disk notes that are not indexed and indexes them.
func reconcileAfterRename(db *DB, store storage.Provider, eng Applier, logger *slog.Logger, cb EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := store.List("")
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Identity] = m.Checksum
	}

	for id := range checksums {
		if _, ok := disk[id]; !ok {
			if delErr := db.DeleteNote(id); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("identity", id))
				if eng != nil {
					_ = eng.RemoveNote(id)
				}
				if cb != nil {
					cb("deleted", id)
				}
			}
		}
	}

	for id, cs := range disk {
		if checksums[id] == cs {
			continue
		}
		data, readErr := store.Read(id)
		if readErr != nil {
			continue
		}
		if idxErr := indexFile(db, id, data); idxErr == nil {
			if eng != nil {
				_, _ = eng.UpsertNote(id, string(data))
			}
			logger.Debug("reconcile: indexed new", slog.String("identity", id))
			if cb != nil {
				cb("created", id)
			}
		}
	}
}

// indexNewDir indexes any notes found in a newly created directory.
func indexNewDir(db *DB, store storage.Provider, eng Applier, vaultRoot, dirPath string, logger *slog.Logger, cb EventCallback) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		rel, relErr := filepath.Rel(vaultRoot, path)
		if relErr != nil {
			return nil
		}
		identity := storage.Identity(rel)
		data, readErr := store.Read(identity)
		if readErr != nil {
			return nil
		}
		if idxErr := indexFile(db, identity, data); idxErr == nil {
			if eng != nil {
				_, _ = eng.UpsertNote(identity, string(data))
			}
			logger.Debug("watcher: indexed from new dir", slog.String("identity", identity))
			if cb != nil {
				cb("created", identity)
			}
		}
		return nil
	})
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
