package index

import (
	"errors"
	"log/slog"
	"time"

	"github.com/dverna/wisp/internal/apperr"
	"github.com/dverna/wisp/internal/checksum"
	"github.com/dverna/wisp/internal/extract"
	"github.com/dverna/wisp/internal/storage"
)

// Sync walks the vault and brings the index and the graph up to date:
//   - new/changed files are scanned and upserted into the index
//   - every file is fed to the graph, which starts empty on boot
//   - notes removed from disk are deleted from both
func Sync(db *DB, store storage.Provider, eng Applier, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Identity] = struct{}{}

		data, err := store.Read(m.Identity)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("identity", m.Identity), slog.String("error", err.Error()))
			continue
		}

		// The graph always needs the note; the index only when the
		// content changed since the last run.
		if eng != nil {
			if _, err := eng.UpsertNote(m.Identity, string(data)); err != nil {
				logger.Warn("sync: graph upsert failed", slog.String("identity", m.Identity), slog.String("error", err.Error()))
			}
		}

		if checksums[m.Identity] == m.Checksum {
			continue
		}
		if err := indexFile(db, m.Identity, data); err != nil {
			logger.Warn("sync: index failed", slog.String("identity", m.Identity), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("identity", m.Identity))
		}
	}

	// Remove stale entries.
	for id := range checksums {
		if _, ok := disk[id]; !ok {
			if err := db.DeleteNote(id); err != nil {
				logger.Warn("sync: delete failed", slog.String("identity", id), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("identity", id))
			}
			if eng != nil {
				if err := eng.RemoveNote(id); err != nil && !errors.Is(err, apperr.ErrNotFound) {
					logger.Warn("sync: graph remove failed", slog.String("identity", id), slog.String("error", err.Error()))
				}
			}
		}
	}

	return nil
}

// indexFile scans data and upserts it into the DB.
func indexFile(db *DB, identity string, data []byte) error {
	res := extract.Scan(data)

	row := NoteRow{
		Identity:  identity,
		Title:     res.Title,
		Checksum:  checksum.Sum(data),
		UpdatedAt: time.Now(),
	}
	return db.UpsertNote(row, res.Body, res.Links)
}
