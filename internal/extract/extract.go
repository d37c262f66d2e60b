// Package extract scans note text for wikilink markers and derives
// note titles.
package extract

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)

// Note holds the output of scanning one note's raw content.
type Note struct {
	Title string
	Body  string
	Links []string
}

// Links returns every link target referenced in text, in order of
// appearance. A target is the marker's inner text trimmed of
// surrounding whitespace, with an optional |alias suffix removed.
// Duplicates are preserved; the graph collapses them to one edge.
// Unterminated or empty markers are skipped, never an error.
func Links(text string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(text, -1)
	var out []string
	for _, m := range matches {
		raw := m[1]
		target := raw
		if i := strings.Index(raw, "|"); i >= 0 {
			target = raw[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		out = append(out, target)
	}
	return out
}

// Scan splits optional YAML frontmatter from data and extracts the
// body's links and a display title. Scanning is best-effort and
// cannot fail: malformed frontmatter is folded back into the body.
func Scan(data []byte) Note {
	fm, body := splitFrontmatter(data)
	return Note{
		Title: deriveTitle(fm, body),
		Body:  body,
		Links: Links(body),
	}
}

// splitFrontmatter separates YAML frontmatter (between leading ---
// delimiters) from the body. Missing or invalid frontmatter means the
// entire content is body.
func splitFrontmatter(data []byte) (map[string]interface{}, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}

	return fm, body
}

// deriveTitle returns the frontmatter "title" if present, otherwise
// the first H1 heading, otherwise empty string.
func deriveTitle(fm map[string]interface{}, body string) string {
	if fm != nil {
		if t, ok := fm["title"]; ok {
			if s, ok := t.(string); ok && s != "" {
				return s
			}
		}
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
