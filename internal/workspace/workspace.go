// Package workspace owns the open documents and runs every operation on them
// through the cooperative loop.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/starford/noterefs/internal/apperr"
	"github.com/starford/noterefs/internal/document"
	"github.com/starford/noterefs/internal/index"
	"github.com/starford/noterefs/internal/loop"
	"github.com/starford/noterefs/internal/parser"
	"github.com/starford/noterefs/internal/references"
	"github.com/starford/noterefs/internal/resolver"
	"github.com/starford/noterefs/internal/storage"
)

// View is the externally visible state of an open document.
type View struct {
	Path       string              `json:"path"`
	Content    string              `json:"content"`
	Modified   bool                `json:"modified"`
	Phase      string              `json:"phase"`
	References references.Snapshot `json:"references"`
}

// RenderFunc is notified after the summary of an open document is redrawn.
// path is relative to the collection root.
type RenderFunc func(path string, snap references.Snapshot)

// Options configures a Workspace.
type Options struct {
	Loop       *loop.Loop
	Store      storage.Provider
	Index      index.NoteIndex
	References references.Config
	Logger     *slog.Logger
	OnRender   RenderFunc
}

// Workspace coordinates storage, index and the reference summary for the
// documents a client has opened.
type Workspace struct {
	loop     *loop.Loop
	store    storage.Provider
	db       index.NoteIndex
	resolver *resolver.Resolver
	refs     *references.Manager
	logger   *slog.Logger
	onRender RenderFunc

	// docs is keyed by slash-separated relative path and only touched on
	// the loop goroutine.
	docs map[string]*document.Document
}

// New creates a workspace. The loop must be running before any method is
// called.
func New(opts Options) (*Workspace, error) {
	if opts.Loop == nil || opts.Store == nil || opts.Index == nil {
		return nil, errors.New("workspace: loop, store and index are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	w := &Workspace{
		loop:     opts.Loop,
		store:    opts.Store,
		db:       opts.Index,
		resolver: resolver.New(opts.Store, opts.Index),
		logger:   opts.Logger,
		onRender: opts.OnRender,
		docs:     make(map[string]*document.Document),
	}
	refs, err := references.NewManager(references.Options{
		Config:     opts.References,
		Host:       loopHost{opts.Loop},
		Collection: w.resolver,
		Resolver:   w.resolver,
		Index:      w.resolver,
		Open:       w.visit,
		Logger:     opts.Logger,
		OnRender:   w.rendered,
	})
	if err != nil {
		return nil, err
	}
	w.refs = refs
	return w, nil
}

// loopHost schedules reference ticks on the loop.
type loopHost struct{ l *loop.Loop }

func (h loopHost) InputPending() bool { return h.l.InputPending() }

func (h loopHost) AfterIdle(d time.Duration, fn func()) references.Timer {
	return h.l.AfterIdle(d, fn)
}

// Open loads a note into the workspace and enables its reference summary.
// Opening an already open note returns its current state.
func (w *Workspace) Open(ctx context.Context, path string) (*View, error) {
	var (
		view *View
		err  error
	)
	if lerr := w.loop.Do(ctx, func() {
		var doc *document.Document
		if doc, err = w.open(ctx, path, false); err == nil {
			view = w.view(doc)
		}
	}); lerr != nil {
		return nil, lerr
	}
	return view, err
}

// open runs on the loop. A missing file is an error unless create is set,
// in which case an empty unsaved document is opened.
func (w *Workspace) open(ctx context.Context, path string, create bool) (*document.Document, error) {
	rel, err := w.key(path)
	if err != nil {
		return nil, err
	}
	if doc, ok := w.docs[rel]; ok {
		return doc, nil
	}

	data, err := w.store.Read(filepath.FromSlash(rel))
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && create:
		data = nil
	case errors.Is(err, os.ErrNotExist):
		return nil, apperr.ErrNotFound
	default:
		return nil, err
	}

	doc := document.New(w.resolver.Abs(rel), data)
	w.docs[rel] = doc
	// The summary outlives the request that opened the document.
	if err := w.refs.Enable(context.WithoutCancel(ctx), doc); err != nil {
		delete(w.docs, rel)
		return nil, err
	}
	w.logger.Info("document opened", slog.String("path", rel))
	return doc, nil
}

// visit opens the target of an activated reference.
func (w *Workspace) visit(abs string) {
	rel := w.resolver.Relativize(abs)
	if _, err := w.open(context.Background(), rel, true); err != nil {
		w.logger.Warn("open reference failed",
			slog.String("path", rel),
			slog.String("error", err.Error()))
	}
}

func (w *Workspace) rendered(abs string, snap references.Snapshot) {
	if w.onRender != nil {
		w.onRender(w.resolver.Relativize(abs), snap)
	}
}

// key validates a client supplied path and returns its map key: the
// slash-separated path relative to the collection root.
func (w *Workspace) key(path string) (string, error) {
	if path == "" || filepath.IsAbs(path) {
		return "", fmt.Errorf("%w: path must be relative: %q", apperr.ErrInvalid, path)
	}
	cleaned := filepath.Clean(filepath.FromSlash(path))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path outside collection: %q", apperr.ErrInvalid, path)
	}
	if !parser.IsNote(cleaned) {
		return "", fmt.Errorf("%w: not a note path: %q", apperr.ErrInvalid, path)
	}
	if w.store.Ignored(cleaned) {
		return "", fmt.Errorf("%w: path is ignored: %q", apperr.ErrInvalid, path)
	}
	return filepath.ToSlash(cleaned), nil
}

func (w *Workspace) doc(path string) (*document.Document, string, error) {
	rel, err := w.key(path)
	if err != nil {
		return nil, "", err
	}
	doc, ok := w.docs[rel]
	if !ok {
		return nil, "", apperr.ErrNotOpen
	}
	return doc, rel, nil
}

func (w *Workspace) view(doc *document.Document) *View {
	v := &View{
		Path:     w.resolver.Relativize(doc.Path()),
		Content:  string(doc.Content()),
		Modified: doc.Modified(),
	}
	if phase, err := w.refs.Phase(doc); err == nil {
		v.Phase = phase.String()
	}
	if snap, err := w.refs.Snapshot(doc); err == nil {
		v.References = snap
	}
	return v
}

// do runs fn on the loop as idle work against an open document.
func (w *Workspace) do(ctx context.Context, path string, fn func(doc *document.Document, rel string) error) (*View, error) {
	return w.submit(ctx, w.loop.Do, path, fn)
}

func (w *Workspace) submit(
	ctx context.Context,
	run func(context.Context, func()) error,
	path string,
	fn func(doc *document.Document, rel string) error,
) (*View, error) {
	var (
		view *View
		err  error
	)
	if lerr := run(ctx, func() {
		var (
			doc *document.Document
			rel string
		)
		if doc, rel, err = w.doc(path); err != nil {
			return
		}
		if err = fn(doc, rel); err == nil {
			view = w.view(doc)
		}
	}); lerr != nil {
		return nil, lerr
	}
	return view, err
}

// Get returns the state of an open document.
func (w *Workspace) Get(ctx context.Context, path string) (*View, error) {
	return w.do(ctx, path, func(*document.Document, string) error { return nil })
}

// Documents lists the open documents.
func (w *Workspace) Documents(ctx context.Context) ([]string, error) {
	var out []string
	err := w.loop.Do(ctx, func() {
		for rel := range w.docs {
			out = append(out, rel)
		}
	})
	sort.Strings(out)
	return out, err
}

// Edit deletes del bytes at offset and inserts text there. It runs as user
// input, so it preempts any reference fetch in progress. Edits touching the
// summary region fail with document.ErrReadOnly.
func (w *Workspace) Edit(ctx context.Context, path string, offset, del int, text string) (*View, error) {
	return w.submit(ctx, w.loop.Input, path, func(doc *document.Document, _ string) error {
		modified := doc.Modified()
		var removed []byte
		if del > 0 && offset >= 0 && offset+del <= doc.Len() {
			removed = doc.Content()[offset : offset+del]
		}
		if err := doc.Delete(offset, del); err != nil {
			return err
		}
		if err := doc.Insert(offset, []byte(text)); err != nil {
			// Put the deleted text back so a rejected edit leaves no trace.
			_ = doc.Silently(func() error { return doc.Insert(offset, removed) })
			doc.SetModified(modified)
			return err
		}
		return nil
	})
}

// Save writes the document to disk and re-indexes it. The summary is left
// out of the written content and redrawn afterwards.
func (w *Workspace) Save(ctx context.Context, path string) (*View, error) {
	return w.do(ctx, path, func(doc *document.Document, rel string) error {
		err := doc.Persist(func(content []byte) error {
			if err := w.store.Write(filepath.FromSlash(rel), content); err != nil {
				return err
			}
			return index.IndexFile(w.db, rel, content)
		})
		if err != nil {
			return fmt.Errorf("workspace: save %s: %w", rel, err)
		}
		w.logger.Info("document saved", slog.String("path", rel))
		return nil
	})
}

// Refresh recomputes the summary of an open document immediately.
func (w *Workspace) Refresh(ctx context.Context, path string) (*View, error) {
	return w.do(ctx, path, func(doc *document.Document, _ string) error {
		return w.refs.Refresh(doc)
	})
}

// Activate opens the reference under offset and returns the relative path
// of the target. ok is false when offset is not on a reference.
func (w *Workspace) Activate(ctx context.Context, path string, offset int) (target string, ok bool, err error) {
	_, err = w.do(ctx, path, func(doc *document.Document, _ string) error {
		var abs string
		if abs, ok = w.refs.Activate(doc, offset); ok {
			target = w.resolver.Relativize(abs)
		}
		return nil
	})
	return target, ok, err
}

// Close disables the summary and drops the document. A document with
// unsaved changes is kept unless force is set.
func (w *Workspace) Close(ctx context.Context, path string, force bool) error {
	_, err := w.do(ctx, path, func(doc *document.Document, rel string) error {
		if doc.Modified() && !force {
			return fmt.Errorf("%w: %s has unsaved changes", apperr.ErrConflict, rel)
		}
		if err := w.refs.Disable(doc); err != nil {
			return err
		}
		delete(w.docs, rel)
		w.logger.Info("document closed", slog.String("path", rel))
		return nil
	})
	return err
}

// References computes the lists for a note. An open document answers from
// its live state; any other note is read from disk.
func (w *Workspace) References(ctx context.Context, path string) (references.Snapshot, error) {
	var (
		snap references.Snapshot
		err  error
	)
	if lerr := w.loop.Do(ctx, func() {
		var rel string
		if rel, err = w.key(path); err != nil {
			return
		}
		if doc, ok := w.docs[rel]; ok {
			snap, err = w.refs.Snapshot(doc)
			return
		}
		var doc *document.Document
		if doc, err = w.load(rel); err == nil {
			snap, err = w.refs.Compute(ctx, doc)
		}
	}); lerr != nil {
		return snap, lerr
	}
	return snap, err
}

// Preview returns the note's content from disk with the summary drawn in,
// without opening it.
func (w *Workspace) Preview(ctx context.Context, path string) ([]byte, references.Snapshot, error) {
	var (
		out  []byte
		snap references.Snapshot
		err  error
	)
	if lerr := w.loop.Do(ctx, func() {
		var rel string
		if rel, err = w.key(path); err != nil {
			return
		}
		var doc *document.Document
		if doc, err = w.load(rel); err == nil {
			out, snap, err = w.refs.Preview(ctx, doc)
		}
	}); lerr != nil {
		return nil, snap, lerr
	}
	return out, snap, err
}

func (w *Workspace) load(rel string) (*document.Document, error) {
	data, err := w.store.Read(filepath.FromSlash(rel))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return document.New(w.resolver.Abs(rel), data), nil
}

// Shutdown disables the summary in every open document.
func (w *Workspace) Shutdown(ctx context.Context) error {
	var err error
	if lerr := w.loop.Do(ctx, func() { err = w.refs.DisableAll() }); lerr != nil {
		return lerr
	}
	return err
}
