package mcpserver

// NoteFormatContract describes the canonical Markdown note format that
// LLM consumers should follow when creating or updating notes.
const NoteFormatContract = `# Wisp Note Format Contract

Every Markdown note stored in Wisp SHOULD follow this structure.

## Structure

` + "```" + `markdown
---
title: Human-readable title        # OPTIONAL – used in search and listings
created: 2025-01-15                 # OPTIONAL – ISO-8601 date or datetime
---

Body text in standard Markdown.

Use [[wikilinks]] to reference other notes (without .md extension).
` + "```" + `

## Rules

1. **Identities, not file names.** A note is addressed by its identity: the
   vault-relative path without the ` + "`" + `.md` + "`" + ` extension, with forward slashes
   (e.g. ` + "`" + `topics/go` + "`" + `). Identities are case-sensitive.
2. **YAML frontmatter is optional.** When present, the ` + "`" + `---` + "`" + ` fences must be
   the first thing in the file. Without frontmatter the title falls back to
   the first ` + "`" + `#` + "`" + ` heading, then to the identity itself.
3. **Wikilinks** use double brackets: ` + "`" + `[[other-note]]` + "`" + `. The target is an
   identity (path separators OK: ` + "`" + `[[folder/note]]` + "`" + `). A link to a note that
   does not exist yet creates a stub node in the graph; resolving it later
   materializes the note.
4. **Duplicate links collapse.** Linking the same target twice from one note
   produces a single graph edge.
5. **Encoding** is UTF-8 with a trailing newline.
6. **No HTML** unless absolutely necessary; prefer Markdown equivalents.

## Example

` + "```" + `markdown
---
title: Goroutine scheduling
created: 2025-01-20
---

# Goroutine scheduling

The runtime multiplexes goroutines onto OS threads. See [[topics/go]] and
[[topics/concurrency]] for background; open questions live in
[[inbox/scheduler-questions]].
` + "```" + `
`
