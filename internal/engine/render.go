package engine

import (
	"fmt"
	"strings"

	"github.com/dverna/wisp/internal/models"
)

// Render draws a snapshot onto a character grid: edges first as faint
// dotted lines, then node glyphs on top. Off-screen nodes are simply
// not drawn; the grid never clamps them into view.
func Render(snap models.GraphSnapshot) string {
	if snap.Rows < 1 || snap.Cols < 1 {
		return ""
	}
	grid := make([][]rune, snap.Rows)
	for r := range grid {
		grid[r] = make([]rune, snap.Cols)
		for c := range grid[r] {
			grid[r][c] = ' '
		}
	}

	cells := make(map[string]models.GraphNode, len(snap.Nodes))
	for _, n := range snap.Nodes {
		cells[n.Identity] = n
	}

	for _, e := range snap.Edges {
		a, okA := cells[e.Source]
		b, okB := cells[e.Target]
		if !okA || !okB {
			continue
		}
		drawLine(grid, a.Row, a.Col, b.Row, b.Col)
	}

	for _, n := range snap.Nodes {
		if n.OffScreen {
			continue
		}
		g := []rune(n.Glyph)
		if len(g) > 0 {
			grid[n.Row][n.Col] = g[0]
		}
	}

	var b strings.Builder
	for _, row := range grid {
		b.WriteString(strings.TrimRight(string(row), " "))
		b.WriteByte('\n')
	}
	return b.String()
}

// drawLine plots a Bresenham line of dots, skipping cells outside the
// grid so partially visible edges still render.
func drawLine(grid [][]rune, r0, c0, r1, c1 int) {
	dr := abs(r1 - r0)
	dc := abs(c1 - c0)
	sr, sc := 1, 1
	if r0 > r1 {
		sr = -1
	}
	if c0 > c1 {
		sc = -1
	}
	err := dc - dr
	for {
		if r0 >= 0 && r0 < len(grid) && c0 >= 0 && c0 < len(grid[r0]) && grid[r0][c0] == ' ' {
			grid[r0][c0] = '.'
		}
		if r0 == r1 && c0 == c1 {
			return
		}
		e2 := 2 * err
		if e2 > -dr {
			err -= dr
			c0 += sc
		}
		if e2 < dc {
			err += dc
			r0 += sr
		}
	}
}

// ExportDOT renders the graph in Graphviz DOT form. Output is sorted
// by identity so identical graphs always serialize identically.
func (e *Engine) ExportDOT() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	var b strings.Builder
	b.WriteString("digraph wisp {\n")
	b.WriteString("  rankdir=LR;\n")
	for _, id := range e.g.Identities() {
		n, _ := e.g.Node(id)
		if n != nil && n.Stub() {
			fmt.Fprintf(&b, "  %q [style=dashed];\n", id)
		} else {
			fmt.Fprintf(&b, "  %q;\n", id)
		}
	}
	for _, l := range e.g.Edges() {
		fmt.Fprintf(&b, "  %q -> %q;\n", l.Source, l.Target)
	}
	b.WriteString("}\n")
	return b.String()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
