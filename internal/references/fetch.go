package references

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"

	"github.com/starford/noterefs/internal/document"
	"github.com/starford/noterefs/internal/models"
)

var (
	// ErrPreempted is returned when a fetch gave way to pending input.
	ErrPreempted = errors.New("references: fetch preempted by input")
	// ErrNoBackingFile is returned when the document has no file on disk.
	ErrNoBackingFile = errors.New("references: document has no backing file")
)

// Fetcher recomputes a document's reference lists.
type Fetcher struct {
	sections   []Section
	collection Collection
	resolver   IdentifierResolver
	index      BacklinkIndex
	extractor  LinkExtractor
}

// newFetcher builds a fetcher from defaulted options.
func newFetcher(opts Options) *Fetcher {
	return &Fetcher{
		sections:   opts.Config.ordered(),
		collection: opts.Collection,
		resolver:   opts.Resolver,
		index:      opts.Index,
		extractor:  opts.Extractor,
	}
}

// Fetch recomputes every configured section and stores the result.
//
// interrupt, if non-nil, is polled before each section and between entries;
// once it reports true the fetch stops with ErrPreempted. A section is only
// stored once it is complete, so a preempted fetch never leaves a partial
// list behind. A section that fails keeps its previous list; the remaining
// sections are still fetched and the failures are returned joined.
func (f *Fetcher) Fetch(ctx context.Context, doc *document.Document, store *Store, interrupt func() bool) error {
	self := doc.Path()
	if self == "" || !f.collection.Exists(self) {
		return ErrNoBackingFile
	}
	if interrupt == nil {
		interrupt = func() bool { return false }
	}

	var errs []error
	for _, sec := range f.sections {
		if interrupt() {
			return errors.Join(append(errs, ErrPreempted)...)
		}
		var (
			entries []models.Reference
			err     error
		)
		switch sec {
		case SectionLinks:
			entries, err = f.links(ctx, doc, interrupt)
		case SectionBacklinks:
			entries, err = f.backlinks(ctx, self, interrupt)
		}
		switch {
		case errors.Is(err, ErrPreempted):
			return errors.Join(append(errs, err)...)
		case err != nil:
			errs = append(errs, err)
		default:
			store.set(sec, ReadyList(entries))
		}
	}
	return errors.Join(errs...)
}

func (f *Fetcher) links(ctx context.Context, doc *document.Document, interrupt func() bool) ([]models.Reference, error) {
	dir := path.Dir(f.collection.Relativize(doc.Path()))
	targets := f.extractor.ExtractLinks(doc.Content(), doc.Format(), dir)
	seen := make(map[string]struct{}, len(targets))
	var out []models.Reference
	for _, target := range targets {
		if interrupt() {
			return nil, ErrPreempted
		}
		paths, err := f.resolver.Resolve(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("references: resolve %q: %w", target, err)
		}
		for _, p := range paths {
			p = filepath.Clean(p)
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, f.reference(p))
		}
	}
	return out, nil
}

func (f *Fetcher) backlinks(ctx context.Context, self string, interrupt func() bool) ([]models.Reference, error) {
	paths, err := f.index.Backlinks(ctx, f.collection.Identifier(self))
	if err != nil {
		return nil, fmt.Errorf("references: backlinks: %w", err)
	}
	self = filepath.Clean(self)
	var out []models.Reference
	for _, p := range paths {
		if interrupt() {
			return nil, ErrPreempted
		}
		p = filepath.Clean(p)
		if p == self {
			continue
		}
		out = append(out, f.reference(p))
	}
	return out, nil
}

func (f *Fetcher) reference(abs string) models.Reference {
	return models.Reference{
		RelativePath: f.collection.Relativize(abs),
		AbsolutePath: abs,
	}
}
