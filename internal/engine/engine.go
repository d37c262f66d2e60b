// Package engine binds the graph model, layout simulator, viewport
// mapper, and link tree builder behind one facade. The core packages
// assume a single caller; the engine's mutex is the synchronization
// that lets HTTP handlers, the vault watcher, and the background
// stepper share them.
package engine

import (
	"fmt"
	"sync"

	"github.com/dverna/wisp/internal/apperr"
	"github.com/dverna/wisp/internal/extract"
	"github.com/dverna/wisp/internal/graph"
	"github.com/dverna/wisp/internal/layout"
	"github.com/dverna/wisp/internal/linktree"
	"github.com/dverna/wisp/internal/models"
	"github.com/dverna/wisp/internal/viewport"
)

// Engine owns the in-memory note graph and its presentation state.
type Engine struct {
	mu  sync.Mutex
	g   *graph.Graph
	sim *layout.Simulator
	vp  *viewport.Viewport
}

// New creates an empty engine with the given physics and viewport
// parameters.
func New(layoutCfg layout.Config, vpCfg viewport.Config) *Engine {
	g := graph.New()
	return &Engine{
		g:   g,
		sim: layout.New(g, layoutCfg),
		vp:  viewport.New(vpCfg),
	}
}

// UpsertNote extracts link targets from rawText and reconciles the
// graph. Frontmatter is stripped before extraction, so only body
// links count, the same as the index. Stubs orphaned by the edit are
// pruned immediately: nothing references them and no note backs them,
// so keeping them would only clutter the layout. Returns the
// identities of newly created stub nodes.
func (e *Engine) UpsertNote(identity, rawText string) (created []string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	created, orphaned, err := e.g.UpsertNote(identity, extract.Scan([]byte(rawText)).Links)
	if err != nil {
		return nil, fmt.Errorf("engine: upsert %q: %w", identity, err)
	}
	for _, id := range orphaned {
		e.g.PruneStub(id)
	}
	return created, nil
}

// RemoveNote drops identity's note. The node survives as a stub while
// other notes still link to it.
func (e *Engine) RemoveNote(identity string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	orphaned, err := e.g.RemoveNote(identity)
	if err != nil {
		return fmt.Errorf("engine: remove %q: %w", identity, err)
	}
	for _, id := range orphaned {
		e.g.PruneStub(id)
	}
	return nil
}

// Step advances the simulation by one fixed time step.
func (e *Engine) Step() layout.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sim.Step()
}

// StepN steps up to n times, stopping early on convergence.
func (e *Engine) StepN(n int) layout.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sim.StepN(n)
}

// Positions returns the current simulation positions. Before the first
// step it still returns the seeded placements, wrapped with
// ErrSimulationNotReady so callers can tell placeholders from settled
// output.
func (e *Engine) Positions() (map[string]layout.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos := e.sim.Positions()
	if e.sim.Iterations() == 0 && e.g.NodeCount() > 1 {
		return pos, fmt.Errorf("engine: positions: %w", apperr.ErrSimulationNotReady)
	}
	return pos, nil
}

// Drag pins a node and moves it to a world position, perturbing the
// simulation so the rest of the graph reacts. Release with pinned
// false to let the node move again.
func (e *Engine) Drag(identity string, x, y float64, pinned bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, ok := e.g.Node(identity)
	if !ok {
		return fmt.Errorf("engine: drag %q: %w", identity, apperr.ErrNotFound)
	}
	n.X, n.Y = x, y
	n.VX, n.VY = 0, 0
	n.Placed = true
	n.Pinned = pinned
	e.sim.Perturb()
	return nil
}

// SetBounds sets the display size used by snapshots.
func (e *Engine) SetBounds(rows, cols int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vp.SetBounds(rows, cols)
}

// Pan moves the camera by a world-space delta. Never clamped.
func (e *Engine) Pan(dx, dy float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vp.Pan(dx, dy)
}

// SetCenter points the camera at a world position.
func (e *Engine) SetCenter(x, y float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vp.SetCenter(x, y)
}

// SetZoom sets the camera scale; values outside the configured range
// are rejected with ErrZoomOutOfRange and leave the zoom unchanged.
func (e *Engine) SetZoom(z float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vp.SetZoom(z)
}

// Snapshot projects every node through the viewport and returns the
// renderer-facing view: grid cells, weight glyphs, off-screen flags,
// the edge list, and the simulation state.
func (e *Engine) Snapshot() models.GraphSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos := e.sim.Positions()
	maxDeg := 0
	for _, n := range e.g.Nodes() {
		in, out := e.g.Degree(n.Identity)
		if d := in + out; d > maxDeg {
			maxDeg = d
		}
	}

	rows, cols := e.vp.Bounds()
	cx, cy := e.vp.Center()
	snap := models.GraphSnapshot{
		Nodes:   make([]models.GraphNode, 0, e.g.NodeCount()),
		Edges:   e.g.Edges(),
		Rows:    rows,
		Cols:    cols,
		Zoom:    e.vp.Zoom(),
		CenterX: cx,
		CenterY: cy,
		Sim: models.SimState{
			State:         e.sim.State().String(),
			Iterations:    e.sim.Iterations(),
			KineticEnergy: e.sim.KineticEnergy(),
		},
	}
	for _, n := range e.g.Nodes() {
		p := pos[n.Identity]
		cell := e.vp.Map(p)
		in, out := e.g.Degree(n.Identity)
		snap.Nodes = append(snap.Nodes, models.GraphNode{
			Identity:  n.Identity,
			Row:       cell.Row,
			Col:       cell.Col,
			OffScreen: cell.OffScreen,
			X:         p.X,
			Y:         p.Y,
			Glyph:     glyph(in+out, maxDeg),
			Stub:      n.Stub(),
			Pinned:    n.Pinned,
		})
	}
	return snap
}

// TreeSnapshot rebuilds the link-tree forest with the given sibling
// and root ordering.
func (e *Engine) TreeSnapshot(mode linktree.SortMode) []models.TreeRow {
	e.mu.Lock()
	defer e.mu.Unlock()
	return linktree.Build(e.g, mode)
}

// Resolve looks up identity and reports its place in the graph: its
// outgoing and incoming links and whether it is only a stub. Used by
// link-follow navigation.
func (e *Engine) Resolve(identity string) (models.LinkSummary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, ok := e.g.Node(identity)
	if !ok {
		return models.LinkSummary{}, fmt.Errorf("engine: resolve %q: %w", identity, apperr.ErrNotFound)
	}
	outgoing, err := e.g.Neighbors(n.Identity, graph.Outgoing)
	if err != nil {
		return models.LinkSummary{}, err
	}
	incoming, err := e.g.Neighbors(n.Identity, graph.Incoming)
	if err != nil {
		return models.LinkSummary{}, err
	}
	return models.LinkSummary{
		Identity: n.Identity,
		Stub:     n.Stub(),
		Outgoing: nonNil(outgoing),
		Incoming: nonNil(incoming),
	}, nil
}

// Counts returns the node and edge totals.
func (e *Engine) Counts() (nodes, edges int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.g.NodeCount(), e.g.EdgeCount()
}

// Degree thresholds for node weight glyphs, as fractions of the
// highest degree in the graph.
const (
	glyphMajor  = 0.66
	glyphMedium = 0.45
	glyphMinor  = 0.25
)

func glyph(deg, maxDeg int) string {
	if maxDeg == 0 {
		return "·"
	}
	switch imp := float64(deg) / float64(maxDeg); {
	case imp >= glyphMajor:
		return "◉"
	case imp >= glyphMedium:
		return "◎"
	case imp >= glyphMinor:
		return "o"
	default:
		return "·"
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
