// Package linktree derives the ordered traversal forest used by the
// link-tree navigation mode.
package linktree

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dverna/wisp/internal/graph"
	"github.com/dverna/wisp/internal/models"
)

// SortMode orders roots and siblings within the traversal.
type SortMode int

const (
	// SortAlpha orders by identity ascending.
	SortAlpha SortMode = iota
	// SortLinks orders by total link count descending, identity as
	// tie break.
	SortLinks
)

// ParseSortMode maps the CLI and API mode names onto a SortMode.
// Empty input means SortAlpha.
func ParseSortMode(s string) (SortMode, error) {
	switch s {
	case "", "alpha":
		return SortAlpha, nil
	case "links":
		return SortLinks, nil
	}
	return SortAlpha, fmt.Errorf("linktree: unknown sort mode %q", s)
}

// Build walks the graph depth-first from every root (identity with no
// incoming edges) and returns the flattened forest. A target already
// visited in the traversal produces a back-reference row instead of a
// descent, so cyclic graphs terminate. Components unreachable from
// any root are walked from their lowest identity, guaranteeing every
// node appears exactly once as a non-back-reference row. The build is
// a full rebuild on every call; no state is kept.
func Build(g *graph.Graph, mode SortMode) []models.TreeRow {
	visited := make(map[string]struct{}, g.NodeCount())
	rows := make([]models.TreeRow, 0, g.NodeCount())

	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		if _, ok := visited[id]; ok {
			rows = append(rows, models.TreeRow{Identity: id, Depth: depth, BackRef: true})
			return
		}
		visited[id] = struct{}{}
		rows = append(rows, models.TreeRow{Identity: id, Depth: depth})

		children, err := g.Neighbors(id, graph.Outgoing)
		if err != nil {
			return
		}
		orderIdentities(g, children, mode)
		for _, c := range children {
			walk(c, depth+1)
		}
	}

	roots := g.Roots()
	orderIdentities(g, roots, mode)
	for _, r := range roots {
		walk(r, 0)
	}

	// Fully cyclic graphs (or cyclic leftovers) have no roots; start
	// from the lowest unvisited identity until everything is covered.
	for _, id := range g.Identities() {
		if _, ok := visited[id]; !ok {
			walk(id, 0)
		}
	}

	return rows
}

// Render formats rows as an indented tree with box-drawing branch
// markers. Back-references render as an arrow to the earlier entry.
func Render(rows []models.TreeRow) string {
	var b strings.Builder
	for _, r := range rows {
		switch {
		case r.Depth == 0:
			b.WriteString(r.Identity)
		case r.BackRef:
			b.WriteString(strings.Repeat("  ", r.Depth))
			b.WriteString("└→ ")
			b.WriteString(r.Identity)
		default:
			b.WriteString(strings.Repeat("  ", r.Depth))
			b.WriteString("├─ ")
			b.WriteString(r.Identity)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func orderIdentities(g *graph.Graph, ids []string, mode SortMode) {
	switch mode {
	case SortLinks:
		sort.SliceStable(ids, func(i, j int) bool {
			ini, outi := g.Degree(ids[i])
			inj, outj := g.Degree(ids[j])
			di, dj := ini+outi, inj+outj
			if di != dj {
				return di > dj
			}
			return ids[i] < ids[j]
		})
	default:
		sort.Strings(ids)
	}
}
