package references

import (
	"bytes"
	"fmt"

	"github.com/starford/noterefs/internal/document"
)

// RegionTag marks the managed region inside a document.
const RegionTag = "noterefs"

// Renderer draws and erases the managed region.
type Renderer struct {
	sections []Section
	locator  HeaderLocator
}

func newRenderer(opts Options) *Renderer {
	return &Renderer{sections: opts.Config.ordered(), locator: opts.Locator}
}

// CountLine returns the heading line of a section: a placeholder while the
// list is not ready, otherwise the entry count.
func CountLine(section Section, l List) string {
	if !l.Ready {
		return "... " + string(section)
	}
	switch n := len(l.Entries); n {
	case 0:
		return "0 " + string(section)
	case 1:
		return "1 " + section.Singular() + ":"
	default:
		return fmt.Sprintf("%d %ss:", n, section.Singular())
	}
}

type button struct {
	start, end int
	payload    string
}

// layout builds the region text for snap; button offsets are relative to
// the start of the text.
func (r *Renderer) layout(snap Snapshot) ([]byte, []button) {
	var (
		buf     bytes.Buffer
		buttons []button
	)
	for _, sec := range r.sections {
		l := snap.List(sec)
		buf.WriteString(CountLine(sec, l))
		buf.WriteByte('\n')
		for _, e := range l.Entries {
			buf.WriteString("  ")
			start := buf.Len()
			buf.WriteString(e.RelativePath)
			buttons = append(buttons, button{start: start, end: buf.Len(), payload: e.AbsolutePath})
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes(), buttons
}

// Render replaces the managed region with one drawn from snap. It reports
// whether a region was drawn; a document without a header, or whose header
// is not terminated by a line break, is left untouched. The modified flag
// is never changed.
func (r *Renderer) Render(doc *document.Document, snap Snapshot) (bool, error) {
	if _, err := r.Remove(doc); err != nil {
		return false, err
	}
	content := doc.Content()
	off, err := r.locator.HeaderEnd(content, doc.Format())
	if err != nil || off > len(content) || (off > 0 && content[off-1] != '\n') {
		return false, nil
	}
	if len(r.sections) == 0 {
		return false, nil
	}

	text, buttons := r.layout(snap)
	err = doc.Silently(func() error {
		if err := doc.Insert(off, append(append([]byte(nil), text...), '\n')); err != nil {
			return err
		}
		if err := doc.AddRegion(off, off+len(text), RegionTag); err != nil {
			return err
		}
		for _, b := range buttons {
			if err := doc.AddButton(off+b.start, off+b.end, b.payload); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("references: render: %w", err)
	}
	return true, nil
}

// Remove deletes the managed region and its trailing separator line,
// wherever the region record says it is: edits to the header may have moved
// it away from the current header end. It is idempotent and reports whether
// anything was removed.
func (r *Renderer) Remove(doc *document.Document) (bool, error) {
	region, ok := doc.Region(RegionTag)
	if !ok {
		return false, nil
	}
	end := region.End
	if end < doc.Len() && doc.Content()[end] == '\n' {
		end++
	}
	err := doc.Silently(func() error {
		doc.RemoveRegion(RegionTag)
		return doc.Delete(region.Start, end-region.Start)
	})
	if err != nil {
		return false, fmt.Errorf("references: remove: %w", err)
	}
	return true, nil
}
