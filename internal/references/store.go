// Package references keeps a live, read-only summary of a note's outbound
// links and inbound backlinks drawn into the note itself, right after its
// header.
//
// Every exported method of Manager, and every callback it registers, runs on
// the single cooperative loop that owns the documents. Nothing here is safe
// for concurrent use.
package references

import "github.com/starford/noterefs/internal/models"

// Section names one of the two summary lists.
type Section string

// Sections in render order.
const (
	SectionLinks     Section = "links"
	SectionBacklinks Section = "backlinks"
)

// Singular returns the section name for a single reference.
func (s Section) Singular() string {
	switch s {
	case SectionLinks:
		return "link"
	case SectionBacklinks:
		return "backlink"
	default:
		return string(s)
	}
}

// List is either not ready (not yet computed) or an ordered sequence of
// references. A ready empty list is distinct from a list that is not ready.
type List struct {
	Ready   bool               `json:"ready"`
	Entries []models.Reference `json:"entries"`
}

// ReadyList returns a computed list holding entries.
func ReadyList(entries []models.Reference) List {
	if entries == nil {
		entries = []models.Reference{}
	}
	return List{Ready: true, Entries: entries}
}

// Snapshot is a copy of a Store's lists.
type Snapshot struct {
	Links     List `json:"links"`
	Backlinks List `json:"backlinks"`
}

// List returns the list for section.
func (s Snapshot) List(section Section) List {
	if section == SectionBacklinks {
		return s.Backlinks
	}
	return s.Links
}

// Store holds the per-document reference lists. It is written only by the
// Fetcher; both lists start out not ready.
type Store struct {
	links     List
	backlinks List
}

// NewStore returns a store with both lists not ready.
func NewStore() *Store {
	return &Store{}
}

// Get returns a snapshot of both lists.
func (s *Store) Get() Snapshot {
	return Snapshot{Links: s.links.clone(), Backlinks: s.backlinks.clone()}
}

func (l List) clone() List {
	if !l.Ready {
		return List{}
	}
	return ReadyList(append([]models.Reference(nil), l.Entries...))
}

// Ready reports whether every one of sections has been computed.
func (s *Store) Ready(sections []Section) bool {
	for _, sec := range sections {
		if !s.list(sec).Ready {
			return false
		}
	}
	return true
}

func (s *Store) list(section Section) List {
	if section == SectionBacklinks {
		return s.backlinks
	}
	return s.links
}

func (s *Store) set(section Section, l List) {
	if section == SectionBacklinks {
		s.backlinks = l
		return
	}
	s.links = l
}
