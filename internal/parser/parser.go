// Package parser locates note headers and extracts outbound link targets
// from Markdown, Org and plain text notes.
package parser

import (
	"bytes"
	"errors"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoHeader is returned when a document has no recognisable header or
// front matter block.
var ErrNoHeader = errors.New("parser: header not found")

// Format identifies the markup of a note.
type Format int

// Supported formats.
const (
	Plain Format = iota
	Markdown
	Org
)

// String returns the lowercase format name.
func (f Format) String() string {
	switch f {
	case Markdown:
		return "markdown"
	case Org:
		return "org"
	default:
		return "plain"
	}
}

// NoteExtensions lists the file extensions treated as notes, in resolution
// preference order.
var NoteExtensions = []string{".md", ".markdown", ".org", ".txt"}

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	mdLinkRe   = regexp.MustCompile(`\[[^\]]*\]\(([^)\s]+)\)`)
	orgLinkRe  = regexp.MustCompile(`\[\[([^\]]+)\](?:\[[^\]]*\])?\]`)
	orgKeyRe   = regexp.MustCompile(`^#\+[A-Za-z_][A-Za-z0-9_-]*:`)
	schemeRe   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*:`)
)

// DetectFormat guesses the format of a note from its file name.
func DetectFormat(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return Markdown
	case ".org":
		return Org
	default:
		return Plain
	}
}

// IsNote reports whether name has one of the NoteExtensions.
func IsNote(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range NoteExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Result holds the output of parsing a note for indexing.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
	Links       []string
	Title       string
}

// Parse extracts front matter, body, link targets and title from raw note bytes.
// dir is the note's folder relative to the collection root; see ExtractLinks.
func Parse(data []byte, format Format, dir string) (*Result, error) {
	var (
		fm   map[string]interface{}
		body = string(data)
	)
	if format == Markdown {
		var err error
		fm, body, err = splitFrontmatter(data)
		if err != nil {
			return nil, err
		}
	}

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Links:       ExtractLinks(data, format, dir),
		Title:       deriveTitle(fm, body, format),
	}, nil
}

// HeaderEnd returns the byte offset immediately after the document's header:
// the closing front matter delimiter line for Markdown, the leading keyword
// block (and optional property drawer) for Org. Plain notes have no header.
func HeaderEnd(content []byte, format Format) (int, error) {
	switch format {
	case Markdown:
		return frontmatterEnd(content)
	case Org:
		return orgHeaderEnd(content)
	default:
		return 0, ErrNoHeader
	}
}

func frontmatterEnd(content []byte) (int, error) {
	const delim = "---"
	start := len(content) - len(bytes.TrimLeft(content, "\n\r"))
	if !bytes.HasPrefix(content[start:], []byte(delim+"\n")) && !bytes.HasPrefix(content[start:], []byte(delim+"\r\n")) {
		return 0, ErrNoHeader
	}

	pos := start + bytes.IndexByte(content[start:], '\n') + 1
	for pos < len(content) {
		lineEnd := bytes.IndexByte(content[pos:], '\n')
		var line []byte
		next := len(content)
		if lineEnd < 0 {
			line = content[pos:]
		} else {
			line = content[pos : pos+lineEnd]
			next = pos + lineEnd + 1
		}
		if string(bytes.TrimRight(line, "\r \t")) == delim {
			return next, nil
		}
		pos = next
	}
	return 0, ErrNoHeader
}

func orgHeaderEnd(content []byte) (int, error) {
	pos := 0
	end := -1
	inDrawer := false
	for pos < len(content) {
		lineEnd := bytes.IndexByte(content[pos:], '\n')
		next := len(content)
		line := content[pos:]
		if lineEnd >= 0 {
			line = content[pos : pos+lineEnd]
			next = pos + lineEnd + 1
		}
		trimmed := strings.TrimSpace(string(line))

		switch {
		case inDrawer:
			if strings.EqualFold(trimmed, ":END:") {
				inDrawer = false
				end = next
			}
		case end < 0 && strings.EqualFold(trimmed, ":PROPERTIES:"):
			inDrawer = true
		case orgKeyRe.MatchString(trimmed):
			end = next
		default:
			if end < 0 {
				return 0, ErrNoHeader
			}
			return end, nil
		}
		pos = next
	}
	if end < 0 || inDrawer {
		return 0, ErrNoHeader
	}
	return end, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]interface{}, string, error) {
	end, err := frontmatterEnd(data)
	if err != nil {
		return nil, string(data), nil
	}

	block := bytes.TrimLeft(data[:end], "\n\r")
	block = block[bytes.IndexByte(block, '\n')+1:]
	if i := bytes.LastIndex(bytes.TrimRight(block, "\r\n"), []byte("\n")); i >= 0 {
		block = block[:i]
	} else {
		block = nil
	}
	body := strings.TrimLeft(string(data[end:]), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(block, &fm); err != nil {
		// Invalid YAML: body only, no error.
		return nil, string(data), nil
	}

	return fm, body, nil
}

// ExtractLinks returns deduplicated link targets in order of first
// appearance, normalised with NormalizeTarget.
//
// dir is the slash-separated folder of the linking note relative to the
// collection root ("" or "." for the root). Path links (Markdown
// "[text](x.md)" and Org "file:") are relative to it unless they start with
// "/"; wikilinks are always collection-wide.
func ExtractLinks(content []byte, format Format, dir string) []string {
	var raw []string
	text := string(content)

	switch format {
	case Org:
		for _, m := range orgLinkRe.FindAllStringSubmatch(text, -1) {
			target := m[1]
			switch {
			case strings.HasPrefix(target, "file:"):
				raw = append(raw, relativeTo(dir, strings.TrimPrefix(target, "file:")))
			case schemeRe.MatchString(target):
				// Other link types do not name a note file.
			default:
				raw = append(raw, target)
			}
		}
	case Markdown:
		raw = append(raw, wikilinkTargets(text)...)
		for _, m := range mdLinkRe.FindAllStringSubmatch(text, -1) {
			target := m[1]
			if schemeRe.MatchString(target) || !IsNote(strings.SplitN(target, "#", 2)[0]) {
				continue
			}
			raw = append(raw, relativeTo(dir, target))
		}
	default:
		raw = wikilinkTargets(text)
	}

	seen := make(map[string]struct{}, len(raw))
	var out []string
	for _, r := range raw {
		target := NormalizeTarget(r)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// relativeTo joins a path link onto dir. Rooted links are left alone.
func relativeTo(dir, target string) string {
	target = filepath.ToSlash(target)
	if strings.HasPrefix(target, "/") || dir == "" || dir == "." {
		return target
	}
	return path.Join(filepath.ToSlash(dir), target)
}

// wikilinkTargets returns raw [[Target|Alias]] targets.
func wikilinkTargets(text string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		target := m[1]
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		out = append(out, target)
	}
	return out
}

// NormalizeTarget turns a raw link target or a relative note path into a
// note identifier: forward slashes, no anchor, no leading "./" or "/", no
// note extension.
func NormalizeTarget(target string) string {
	if i := strings.Index(target, "#"); i >= 0 {
		target = target[:i]
	}
	target = strings.TrimSpace(filepath.ToSlash(target))
	if target == "" {
		return ""
	}
	target = strings.TrimLeft(path.Clean("/"+target), "/")
	if IsNote(target) {
		target = strings.TrimSuffix(target, path.Ext(target))
	}
	return target
}

// deriveTitle returns the frontmatter "title" if present, otherwise the
// first heading or Org #+title keyword, otherwise empty string.
func deriveTitle(fm map[string]interface{}, body string, format Format) string {
	if fm != nil {
		if t, ok := fm["title"]; ok {
			if s, ok := t.(string); ok && s != "" {
				return s
			}
		}
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		switch format {
		case Org:
			if len(trimmed) > 8 && strings.EqualFold(trimmed[:8], "#+title:") {
				return strings.TrimSpace(trimmed[8:])
			}
		default:
			if strings.HasPrefix(trimmed, "# ") {
				return strings.TrimSpace(trimmed[2:])
			}
		}
	}
	return ""
}
