package index

import (
	"log/slog"
	"time"

	"github.com/starford/marketnotes/internal/checksum"
	"github.com/starford/marketnotes/internal/parser"
	"github.com/starford/marketnotes/internal/storage"
)

// Sync walks the docs tree and brings the index up to date:
//   - new/changed pages are parsed and upserted
//   - pages removed from disk (or marked draft) are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
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
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(db, m.Path, data, m.UpdatedAt); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeletePage(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexFile parses data and upserts it into the index. Draft pages are
// removed instead, so the index matches what the site renders.
func IndexFile(db PageIndex, path string, data []byte, modTime time.Time) error {
	res, err := parser.Parse(data)
	if err != nil {
		return err
	}
	if res.Draft {
		return db.DeletePage(path)
	}
	if modTime.IsZero() {
		modTime = time.Now()
	}
	row := PageRow{
		Path:      path,
		Title:     res.Title,
		Checksum:  checksum.Sum(data),
		Tags:      res.Tags,
		UpdatedAt: modTime,
	}
	return db.UpsertPage(row, res.Body, res.Targets(path))
}
