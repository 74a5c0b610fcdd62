// Package resolver maps note identifiers to files in the collection and
// answers the collection-layout questions the reference summary asks.
package resolver

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/starford/noterefs/internal/index"
	"github.com/starford/noterefs/internal/parser"
	"github.com/starford/noterefs/internal/storage"
)

// Resolver resolves identifiers against the file system and the index.
type Resolver struct {
	store storage.Provider
	index index.NoteIndex
}

// New creates a Resolver over store and idx.
func New(store storage.Provider, idx index.NoteIndex) *Resolver {
	return &Resolver{store: store, index: idx}
}

// Root returns the absolute collection root.
func (r *Resolver) Root() string {
	return r.store.Root()
}

// Abs joins a slash-separated relative path onto the root.
func (r *Resolver) Abs(rel string) string {
	return filepath.Join(r.store.Root(), filepath.FromSlash(rel))
}

// rel returns the relative path of abs, and false when abs is outside the root.
func (r *Resolver) rel(abs string) (string, bool) {
	rel, err := filepath.Rel(r.store.Root(), abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

// Relativize returns abs relative to the root with forward slashes. Paths
// outside the collection are returned unchanged.
func (r *Resolver) Relativize(abs string) string {
	rel, ok := r.rel(abs)
	if !ok {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

// Identifier returns the note identifier of an absolute path.
func (r *Resolver) Identifier(abs string) string {
	return index.Identifier(r.Relativize(abs))
}

// Exists reports whether abs is an existing file inside the collection.
func (r *Resolver) Exists(abs string) bool {
	rel, ok := r.rel(abs)
	return ok && r.store.Exists(rel)
}

// Resolve returns the absolute paths ident refers to. An identifier naming
// an existing file resolves to it; a bare name falls back to every indexed
// note with that stem; anything else resolves to the Markdown file it would
// create.
func (r *Resolver) Resolve(ctx context.Context, ident string) ([]string, error) {
	ident = parser.NormalizeTarget(ident)
	if ident == "" {
		return nil, nil
	}
	for _, ext := range parser.NoteExtensions {
		if rel := ident + ext; r.store.Exists(filepath.FromSlash(rel)) {
			return []string{r.Abs(rel)}, nil
		}
	}
	if !strings.Contains(ident, "/") {
		rels, err := r.index.NotesByStem(ctx, path.Base(ident))
		if err != nil {
			return nil, fmt.Errorf("resolver: %w", err)
		}
		if len(rels) > 0 {
			out := make([]string, 0, len(rels))
			for _, rel := range rels {
				out = append(out, r.Abs(rel))
			}
			return out, nil
		}
	}
	return []string{r.Abs(ident + ".md")}, nil
}

// Backlinks returns the absolute paths of notes linking to ident.
func (r *Resolver) Backlinks(ctx context.Context, ident string) ([]string, error) {
	rels, err := r.index.Backlinks(ctx, ident)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rels))
	for _, rel := range rels {
		out = append(out, r.Abs(rel))
	}
	return out, nil
}
