package index

import (
	"log/slog"
	"path"
	"path/filepath"

	"github.com/starford/noterefs/internal/parser"
	"github.com/starford/noterefs/internal/storage"
)

// Sync walks the collection and brings the index up to date:
//   - new/changed notes are parsed and upserted
//   - notes removed from disk are deleted from the index
func Sync(db NoteIndex, store storage.Provider, logger *slog.Logger) error {
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
		if err := IndexFile(db, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteNote(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexFile parses data and upserts it into the index. Links that resolve
// back to the note itself are kept; filtering self references is the
// consumer's job.
func IndexFile(db NoteIndex, rel string, data []byte) error {
	res, err := parser.Parse(data, parser.DetectFormat(rel), path.Dir(filepath.ToSlash(rel)))
	if err != nil {
		return err
	}

	row := NoteRow{
		Path:     rel,
		Title:    res.Title,
		Checksum: storage.Checksum(data),
	}
	return db.UpsertNote(row, res.Links)
}
