package references

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/noterefs/internal/parser"
)

// Collection answers questions about the note collection layout.
type Collection interface {
	// Root returns the absolute collection root.
	Root() string
	// Relativize strips the root from an absolute path (slash-separated).
	Relativize(abs string) string
	// Identifier returns the note identifier for an absolute path.
	Identifier(abs string) string
	// Exists reports whether a file exists at the absolute path.
	Exists(abs string) bool
}

// IdentifierResolver expands a link target into absolute note paths.
type IdentifierResolver interface {
	Resolve(ctx context.Context, ident string) ([]string, error)
}

// BacklinkIndex returns the absolute paths of notes referencing ident.
type BacklinkIndex interface {
	Backlinks(ctx context.Context, ident string) ([]string, error)
}

// LinkExtractor returns the outbound link targets found in content. dir is
// the note's folder relative to the collection root, slash-separated.
type LinkExtractor interface {
	ExtractLinks(content []byte, format parser.Format, dir string) []string
}

// LinkExtractorFunc adapts a function to LinkExtractor.
type LinkExtractorFunc func(content []byte, format parser.Format, dir string) []string

// ExtractLinks calls f.
func (f LinkExtractorFunc) ExtractLinks(content []byte, format parser.Format, dir string) []string {
	return f(content, format, dir)
}

// HeaderLocator finds the offset right after a document's header.
type HeaderLocator interface {
	HeaderEnd(content []byte, format parser.Format) (int, error)
}

// HeaderLocatorFunc adapts a function to HeaderLocator.
type HeaderLocatorFunc func(content []byte, format parser.Format) (int, error)

// HeaderEnd calls f.
func (f HeaderLocatorFunc) HeaderEnd(content []byte, format parser.Format) (int, error) {
	return f(content, format)
}

// OpenFunc is invoked with an absolute path when a rendered entry is activated.
type OpenFunc func(absPath string)

// Timer is a pending idle callback.
type Timer interface {
	Stop()
}

// Host is the cooperative scheduler the manager runs on.
type Host interface {
	// InputPending reports whether user input is waiting.
	InputPending() bool
	// AfterIdle runs fn once the host has been idle for d.
	AfterIdle(d time.Duration, fn func()) Timer
}

// Delays are the scheduler's tiered idle delays.
type Delays struct {
	First    time.Duration // first tick after activation
	Init     time.Duration // while any list is not ready
	Maintain time.Duration // once every list is ready
}

// Config selects the rendered sections and the scheduling delays.
type Config struct {
	Sections []Section
	Delays   Delays
}

// DefaultConfig renders both sections.
func DefaultConfig() Config {
	return Config{
		Sections: []Section{SectionLinks, SectionBacklinks},
		Delays: Delays{
			First:    100 * time.Millisecond,
			Init:     500 * time.Millisecond,
			Maintain: 5 * time.Second,
		},
	}
}

// Validate checks section names and delays.
func (c Config) Validate() error {
	seen := make(map[Section]bool, len(c.Sections))
	for _, s := range c.Sections {
		if s != SectionLinks && s != SectionBacklinks {
			return fmt.Errorf("references: unknown section %q", s)
		}
		if seen[s] {
			return fmt.Errorf("references: duplicate section %q", s)
		}
		seen[s] = true
	}
	if c.Delays.First < 0 || c.Delays.Init < 0 || c.Delays.Maintain < 0 {
		return errors.New("references: delays must be non-negative")
	}
	return nil
}

// ordered returns the configured sections in render order: links before
// backlinks regardless of configuration order.
func (c Config) ordered() []Section {
	var out []Section
	for _, want := range []Section{SectionLinks, SectionBacklinks} {
		for _, s := range c.Sections {
			if s == want {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// Options wires a Manager to its collaborators. Extractor and Locator
// default to the parser package; Open defaults to a no-op. Host is only
// needed to Enable live documents.
type Options struct {
	Config     Config
	Host       Host
	Collection Collection
	Resolver   IdentifierResolver
	Index      BacklinkIndex
	Extractor  LinkExtractor
	Locator    HeaderLocator
	Open       OpenFunc
	Logger     *slog.Logger

	// OnRender, if set, is called after every render with the drawn lists.
	OnRender func(path string, snap Snapshot)
}

func (o *Options) setDefaults() error {
	if o.Collection == nil {
		return errors.New("references: collection is required")
	}
	if o.Resolver == nil {
		return errors.New("references: identifier resolver is required")
	}
	if o.Index == nil {
		return errors.New("references: backlink index is required")
	}
	if o.Extractor == nil {
		o.Extractor = LinkExtractorFunc(parser.ExtractLinks)
	}
	if o.Locator == nil {
		o.Locator = HeaderLocatorFunc(parser.HeaderEnd)
	}
	if o.Open == nil {
		o.Open = func(string) {}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o.Config.Validate()
}
