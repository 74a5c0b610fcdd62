package index

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/starford/noterefs/internal/parser"
)

// NoteRow represents a row in the notes table.
// Path is relative to the collection root.
type NoteRow struct {
	Path      string
	Title     string
	Checksum  string
	UpdatedAt time.Time
}

// Identifier returns the note identifier for a relative note path: the
// slash-separated path without its note extension.
func Identifier(rel string) string {
	return parser.NormalizeTarget(filepath.ToSlash(rel))
}

// UpsertNote inserts or replaces a note and its outbound links within a transaction.
// links are normalised note identifiers.
func (db *DB) UpsertNote(n NoteRow, links []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	rel := filepath.ToSlash(n.Path)
	ident := Identifier(rel)
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = time.Now()
	}

	_, err = tx.Exec(`
		INSERT INTO notes (path, ident, stem, title, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			ident      = excluded.ident,
			stem       = excluded.stem,
			title      = excluded.title,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, rel, ident, path.Base(ident), n.Title, n.Checksum, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	// Replace links: delete old then bulk insert.
	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, rel)
	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range links {
			if _, err := stmt.Exec(rel, target); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteNote removes a note and its outgoing links.
func (db *DB) DeleteNote(p string) error {
	rel := filepath.ToSlash(p)
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, rel)
	_, _ = tx.Exec(`DELETE FROM notes WHERE path = ?`, rel)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a note, or empty string if not found.
func (db *DB) GetChecksum(p string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE path = ?`, filepath.ToSlash(p)).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns the stored checksum of every indexed note keyed by
// host-separated relative path.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[filepath.FromSlash(p)] = cs
	}
	return out, rows.Err()
}

// Backlinks returns the relative paths of all notes linking to the note
// with the given identifier, either by full identifier or by bare stem.
func (db *DB) Backlinks(ctx context.Context, ident string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT DISTINCT source FROM links
		WHERE target = ? OR target = ?
		ORDER BY source
	`, ident, path.Base(ident))
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// NotesByStem returns the relative paths of indexed notes whose identifier
// ends in the given stem.
func (db *DB) NotesByStem(ctx context.Context, stem string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT path FROM notes WHERE stem = ? ORDER BY path`, stem)
	if err != nil {
		return nil, fmt.Errorf("index: notes by stem: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
