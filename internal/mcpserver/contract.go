package mcpserver

// RegionFormat describes the references summary that is drawn into notes,
// so LLM consumers can recognise it and leave it alone.
const RegionFormat = `# References Summary Format

Notes opened for editing carry a read-only summary of their outbound links
and inbound backlinks. It is inserted directly after the note header and is
never written to disk.

## Placement

- Markdown: right after the closing ` + "`---`" + ` line of the YAML front matter.
- Org: right after the leading ` + "`#+KEY: value`" + ` keyword block (and an
  optional ` + "`:PROPERTIES:`" + ` drawer before it).
- Notes without a header get no summary.

## Layout

` + "```" + `text
2 links:
  notes/b.md
  projects/c.md
1 backlink:
  journal/2025-01-20.md

` + "```" + `

1. One count line per section, links first, then backlinks.
2. A count line reads ` + "`N links:`" + `, ` + "`1 link:`" + ` or ` + "`0 links`" + ` (no colon when empty).
   Backlinks use the same wording.
3. While a list is still being computed its count line is ` + "`... links`" + ` or
   ` + "`... backlinks`" + `.
4. Each reference follows on its own line, indented by two spaces, as a path
   relative to the collection root with forward slashes.
5. A single blank line separates the summary from the rest of the note.
6. A note never lists itself among its backlinks.

## Editing

The summary is read-only: edits that touch it are rejected. It is removed
before a note is saved and redrawn afterwards, so files on disk never contain
it.
`
