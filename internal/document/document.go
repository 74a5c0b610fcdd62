// Package document implements the in-memory editable note buffer that the
// reference summary is drawn into.
//
// A Document is not safe for concurrent use; every call is expected to run
// on the cooperative loop that owns it.
package document

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/starford/noterefs/internal/parser"
)

var (
	// ErrReadOnly is returned when an edit would change a read-only region.
	ErrReadOnly = errors.New("document: region is read-only")
	// ErrOutOfRange is returned for offsets outside the document.
	ErrOutOfRange = errors.New("document: offset out of range")
)

// Region is a tagged, contiguous byte range [Start, End) of the content.
type Region struct {
	Start int
	End   int
	Tag   string
}

// Button is an activatable span carrying a payload, typically an absolute
// note path.
type Button struct {
	Start   int
	End     int
	Payload string
}

// Hook runs around persisting the document.
type Hook func(d *Document)

type hookEntry struct {
	id string
	fn Hook
}

// Document is an editable text buffer with an optional backing file.
type Document struct {
	path     string // absolute backing path, empty when unsaved
	format   parser.Format
	content  []byte
	modified bool

	regions []Region
	buttons []Button

	// silent > 0 while inside Silently: read-only checks are bypassed and
	// the modified flag is restored on exit.
	silent int

	beforePersist []hookEntry
	afterPersist  []hookEntry
}

// New creates a document with the given backing path (may be empty) and
// initial content. The format is detected from the path.
func New(path string, content []byte) *Document {
	return &Document{
		path:    path,
		format:  parser.DetectFormat(path),
		content: append([]byte(nil), content...),
	}
}

// Path returns the absolute backing path, or "" when the document has none.
func (d *Document) Path() string { return d.path }

// Format returns the detected note format.
func (d *Document) Format() parser.Format { return d.format }

// Content returns a copy of the current content.
func (d *Document) Content() []byte {
	return append([]byte(nil), d.content...)
}

// Len returns the content length in bytes.
func (d *Document) Len() int { return len(d.content) }

// Modified reports whether the document has unsaved changes.
func (d *Document) Modified() bool { return d.modified }

// SetModified overrides the unsaved-changes flag.
func (d *Document) SetModified(m bool) { d.modified = m }

// Insert inserts text at offset. It fails with ErrReadOnly when offset falls
// strictly inside a region or at its start.
func (d *Document) Insert(offset int, text []byte) error {
	if offset < 0 || offset > len(d.content) {
		return fmt.Errorf("%w: %d", ErrOutOfRange, offset)
	}
	if len(text) == 0 {
		return nil
	}
	if d.silent == 0 {
		for _, r := range d.regions {
			if offset >= r.Start && offset < r.End {
				return ErrReadOnly
			}
		}
	}

	buf := make([]byte, 0, len(d.content)+len(text))
	buf = append(buf, d.content[:offset]...)
	buf = append(buf, text...)
	buf = append(buf, d.content[offset:]...)
	d.content = buf

	n := len(text)
	for i := range d.regions {
		r := &d.regions[i]
		if r.Start >= offset {
			r.Start += n
			r.End += n
		}
	}
	for i := range d.buttons {
		b := &d.buttons[i]
		if b.Start >= offset {
			b.Start += n
			b.End += n
		}
	}
	d.modified = true
	return nil
}

// Delete removes n bytes starting at offset. It fails with ErrReadOnly when
// the range intersects a region. Buttons inside the range are dropped.
func (d *Document) Delete(offset, n int) error {
	if offset < 0 || n < 0 || offset+n > len(d.content) {
		return fmt.Errorf("%w: [%d,%d)", ErrOutOfRange, offset, offset+n)
	}
	if n == 0 {
		return nil
	}
	end := offset + n
	if d.silent == 0 {
		for _, r := range d.regions {
			if offset < r.End && end > r.Start {
				return ErrReadOnly
			}
		}
	}

	d.content = append(d.content[:offset], d.content[end:]...)

	regions := d.regions[:0]
	for _, r := range d.regions {
		r.Start = shiftDeleted(r.Start, offset, end)
		r.End = shiftDeleted(r.End, offset, end)
		if r.End > r.Start {
			regions = append(regions, r)
		}
	}
	d.regions = regions

	buttons := d.buttons[:0]
	for _, b := range d.buttons {
		if b.Start >= offset && b.End <= end {
			continue
		}
		b.Start = shiftDeleted(b.Start, offset, end)
		b.End = shiftDeleted(b.End, offset, end)
		buttons = append(buttons, b)
	}
	d.buttons = buttons

	d.modified = true
	return nil
}

func shiftDeleted(pos, start, end int) int {
	switch {
	case pos <= start:
		return pos
	case pos >= end:
		return pos - (end - start)
	default:
		return start
	}
}

// Silently runs fn with read-only checks disabled and restores the modified
// flag afterwards, so changes made by fn never mark the document dirty.
func (d *Document) Silently(fn func() error) error {
	modified := d.modified
	d.silent++
	defer func() {
		d.silent--
		d.modified = modified
	}()
	return fn()
}

// AddRegion tags [start, end) with tag, replacing any region with the same tag.
func (d *Document) AddRegion(start, end int, tag string) error {
	if start < 0 || end < start || end > len(d.content) {
		return fmt.Errorf("%w: [%d,%d)", ErrOutOfRange, start, end)
	}
	d.RemoveRegion(tag)
	d.regions = append(d.regions, Region{Start: start, End: end, Tag: tag})
	return nil
}

// RemoveRegion drops the region record with tag, leaving the content alone.
func (d *Document) RemoveRegion(tag string) {
	regions := d.regions[:0]
	for _, r := range d.regions {
		if r.Tag != tag {
			regions = append(regions, r)
		}
	}
	d.regions = regions
}

// Region returns the region record with tag. Its offsets follow every edit
// made before it, so it stays valid when surrounding text moves.
func (d *Document) Region(tag string) (Region, bool) {
	for _, r := range d.regions {
		if r.Tag == tag {
			return r, true
		}
	}
	return Region{}, false
}

// Regions returns a copy of all region records.
func (d *Document) Regions() []Region {
	return append([]Region(nil), d.regions...)
}

// AddButton records an activatable span.
func (d *Document) AddButton(start, end int, payload string) error {
	if start < 0 || end < start || end > len(d.content) {
		return fmt.Errorf("%w: [%d,%d)", ErrOutOfRange, start, end)
	}
	d.buttons = append(d.buttons, Button{Start: start, End: end, Payload: payload})
	return nil
}

// ButtonAt returns the button covering offset.
func (d *Document) ButtonAt(offset int) (Button, bool) {
	for _, b := range d.buttons {
		if offset >= b.Start && offset < b.End {
			return b, true
		}
	}
	return Button{}, false
}

// Buttons returns a copy of all buttons.
func (d *Document) Buttons() []Button {
	return append([]Button(nil), d.buttons...)
}

// OnBeforePersist registers fn to run before the content is written.
// The returned function unsubscribes it.
func (d *Document) OnBeforePersist(fn Hook) func() {
	id := uuid.NewString()
	d.beforePersist = append(d.beforePersist, hookEntry{id: id, fn: fn})
	return func() { d.beforePersist = dropHook(d.beforePersist, id) }
}

// OnAfterPersist registers fn to run after the content is written.
// The returned function unsubscribes it.
func (d *Document) OnAfterPersist(fn Hook) func() {
	id := uuid.NewString()
	d.afterPersist = append(d.afterPersist, hookEntry{id: id, fn: fn})
	return func() { d.afterPersist = dropHook(d.afterPersist, id) }
}

func dropHook(hooks []hookEntry, id string) []hookEntry {
	out := hooks[:0]
	for _, h := range hooks {
		if h.id != id {
			out = append(out, h)
		}
	}
	return out
}

// HookCount returns the number of registered before and after persist hooks.
func (d *Document) HookCount() (before, after int) {
	return len(d.beforePersist), len(d.afterPersist)
}

// Persist runs the before hooks, hands the resulting content to write, clears
// the modified flag and runs the after hooks. If write fails the after hooks
// still run so transient decorations are restored, and the error is returned.
func (d *Document) Persist(write func(content []byte) error) error {
	for _, h := range append([]hookEntry(nil), d.beforePersist...) {
		h.fn(d)
	}
	err := write(d.Content())
	if err == nil {
		d.modified = false
	}
	for _, h := range append([]hookEntry(nil), d.afterPersist...) {
		h.fn(d)
	}
	return err
}
