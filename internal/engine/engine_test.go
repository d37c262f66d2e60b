package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/dverna/wisp/internal/apperr"
	"github.com/dverna/wisp/internal/layout"
	"github.com/dverna/wisp/internal/linktree"
	"github.com/dverna/wisp/internal/viewport"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	return New(layout.Config{Seed: 42}, viewport.Config{})
}

func TestUpsertNote_ExtractsLinks(t *testing.T) {
	e := testEngine(t)

	created, err := e.UpsertNote("A", "See [[B]] and [[C|the C note]].")
	if err != nil {
		t.Fatalf("UpsertNote: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created = %v, want 2 stubs", created)
	}
	nodes, edges := e.Counts()
	if nodes != 3 || edges != 2 {
		t.Errorf("counts = (%d, %d), want (3, 2)", nodes, edges)
	}
}

func TestUpsertNote_PrunesOrphanedStubs(t *testing.T) {
	e := testEngine(t)
	e.UpsertNote("A", "[[B]]")

	// Editing away the only reference to stub B removes it.
	if _, err := e.UpsertNote("A", "no links now"); err != nil {
		t.Fatalf("UpsertNote: %v", err)
	}
	nodes, edges := e.Counts()
	if nodes != 1 || edges != 0 {
		t.Errorf("counts = (%d, %d), want (1, 0)", nodes, edges)
	}
}

func TestUpsertNote_FrontmatterLinksIgnored(t *testing.T) {
	e := testEngine(t)

	// Link-shaped strings in frontmatter must not grow the graph;
	// only body links count, matching what the index stores.
	raw := "---\nrelated: \"[[Ghost]]\"\n---\n# A\nbody, no links\n"
	created, err := e.UpsertNote("A", raw)
	if err != nil {
		t.Fatalf("UpsertNote: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("created = %v, want none", created)
	}
	nodes, edges := e.Counts()
	if nodes != 1 || edges != 0 {
		t.Errorf("counts = (%d, %d), want (1, 0)", nodes, edges)
	}
}

func TestUpsertNote_InvalidIdentity(t *testing.T) {
	e := testEngine(t)
	if _, err := e.UpsertNote("   ", "text"); !errors.Is(err, apperr.ErrInvalidIdentity) {
		t.Errorf("err = %v, want ErrInvalidIdentity", err)
	}
}

func TestRemoveNote_DegradesToStub(t *testing.T) {
	e := testEngine(t)
	e.UpsertNote("A", "[[B]]")
	e.UpsertNote("B", "content")

	if err := e.RemoveNote("B"); err != nil {
		t.Fatalf("RemoveNote: %v", err)
	}
	sum, err := e.Resolve("B")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !sum.Stub {
		t.Error("B should degrade to a stub while A links to it")
	}
}

func TestPositions_NotReadyBeforeFirstStep(t *testing.T) {
	e := testEngine(t)
	e.UpsertNote("A", "[[B]]")

	pos, err := e.Positions()
	if !errors.Is(err, apperr.ErrSimulationNotReady) {
		t.Errorf("err = %v, want ErrSimulationNotReady", err)
	}
	// Placeholder positions are still served.
	if len(pos) != 2 {
		t.Errorf("len(pos) = %d, want 2 placeholders", len(pos))
	}

	e.Step()
	if _, err := e.Positions(); err != nil {
		t.Errorf("after step: %v", err)
	}
}

func TestResolve(t *testing.T) {
	e := testEngine(t)
	e.UpsertNote("A", "[[B]]")
	e.UpsertNote("B", "[[A]]")

	sum, err := e.Resolve("A")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sum.Stub {
		t.Error("A has content, not a stub")
	}
	if len(sum.Outgoing) != 1 || sum.Outgoing[0] != "B" {
		t.Errorf("outgoing = %v", sum.Outgoing)
	}
	if len(sum.Incoming) != 1 || sum.Incoming[0] != "B" {
		t.Errorf("incoming = %v", sum.Incoming)
	}

	if _, err := e.Resolve("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSnapshot_GlyphsAndEdges(t *testing.T) {
	e := testEngine(t)
	e.UpsertNote("hub", "[[a]] [[b]] [[c]] [[d]]")
	e.UpsertNote("a", "[[hub]]")
	e.SetBounds(24, 80)
	e.StepN(50)

	snap := e.Snapshot()
	if len(snap.Nodes) != 5 {
		t.Fatalf("nodes = %d, want 5", len(snap.Nodes))
	}
	if len(snap.Edges) != 5 {
		t.Errorf("edges = %d, want 5", len(snap.Edges))
	}

	var hub, leaf string
	for _, n := range snap.Nodes {
		switch n.Identity {
		case "hub":
			hub = n.Glyph
		case "b":
			leaf = n.Glyph
		}
	}
	if hub != "◉" {
		t.Errorf("hub glyph = %q, want ◉", hub)
	}
	if leaf != "·" {
		t.Errorf("leaf glyph = %q, want ·", leaf)
	}
	if snap.Sim.State != "running" && snap.Sim.State != "converged" {
		t.Errorf("sim state = %q", snap.Sim.State)
	}
}

func TestSnapshot_OffScreenFlagged(t *testing.T) {
	e := testEngine(t)
	e.UpsertNote("A", "")
	e.SetBounds(10, 10)
	e.Step()
	// Point the camera far away from the single node at the origin.
	e.SetCenter(1e6, 1e6)

	snap := e.Snapshot()
	if len(snap.Nodes) != 1 {
		t.Fatalf("nodes = %d", len(snap.Nodes))
	}
	if !snap.Nodes[0].OffScreen {
		t.Error("node should be flagged off-screen, not clamped")
	}
}

func TestSetZoom_OutOfRange(t *testing.T) {
	e := testEngine(t)
	if err := e.SetZoom(99); !errors.Is(err, apperr.ErrZoomOutOfRange) {
		t.Errorf("err = %v, want ErrZoomOutOfRange", err)
	}
	if err := e.SetZoom(2); err != nil {
		t.Errorf("SetZoom(2): %v", err)
	}
}

func TestDrag_PinsAndPerturbs(t *testing.T) {
	e := testEngine(t)
	e.UpsertNote("A", "[[B]]")
	e.StepN(500)
	if e.Step() != layout.Converged {
		t.Fatal("expected convergence after 500 steps")
	}

	if err := e.Drag("A", 100, 100, true); err != nil {
		t.Fatalf("Drag: %v", err)
	}
	if st := e.Step(); st != layout.Running {
		t.Errorf("state after drag = %v, want Running", st)
	}

	pos, _ := e.Positions()
	if pos["A"].X != 100 || pos["A"].Y != 100 {
		t.Errorf("pinned A moved to %v, want (100, 100)", pos["A"])
	}
}

func TestTreeSnapshot(t *testing.T) {
	e := testEngine(t)
	e.UpsertNote("A", "[[B]] [[C]]")
	e.UpsertNote("B", "[[C]]")

	rows := e.TreeSnapshot(linktree.SortAlpha)
	if len(rows) != 4 {
		t.Fatalf("rows = %v, want 4 entries", rows)
	}
	// A(0) → B(1) → C(2), then C again under A as a back-reference.
	if rows[0].Identity != "A" || rows[0].Depth != 0 {
		t.Errorf("rows[0] = %+v", rows[0])
	}
	if rows[1].Identity != "B" || rows[1].Depth != 1 {
		t.Errorf("rows[1] = %+v", rows[1])
	}
	if rows[2].Identity != "C" || rows[2].Depth != 2 || rows[2].BackRef {
		t.Errorf("rows[2] = %+v", rows[2])
	}
	if rows[3].Identity != "C" || rows[3].Depth != 1 || !rows[3].BackRef {
		t.Errorf("rows[3] = %+v", rows[3])
	}
}

func TestExportDOT_Deterministic(t *testing.T) {
	e := testEngine(t)
	e.UpsertNote("A", "[[B]] [[C]]")

	dot := e.ExportDOT()
	if dot != e.ExportDOT() {
		t.Error("DOT export is not deterministic")
	}
	for _, want := range []string{`"A" -> "B"`, `"A" -> "C"`, `"B" [style=dashed]`} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
}

func TestRender_DrawsNodes(t *testing.T) {
	e := testEngine(t)
	e.UpsertNote("A", "[[B]]")
	e.SetBounds(20, 40)
	e.StepN(200)

	out := Render(e.Snapshot())
	if !strings.ContainsAny(out, "◉◎o·") {
		t.Errorf("render has no node glyphs:\n%s", out)
	}
	if lines := strings.Count(out, "\n"); lines != 20 {
		t.Errorf("render has %d lines, want 20", lines)
	}
}
