// Package graph maintains the directed note graph: one node per
// identity, simple directed edges derived from link occurrences.
//
// Identities are trimmed of surrounding whitespace and compared
// case-sensitively. Duplicate links between the same ordered pair
// collapse to a single edge. A node referenced before its note exists
// is a stub; stubs persist until resolved or explicitly pruned.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dverna/wisp/internal/apperr"
	"github.com/dverna/wisp/internal/models"
)

// Direction selects which edges Neighbors follows.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
	Both
)

// Node is one identity in the graph. Position and velocity are owned
// by the layout simulator but live here so a node keeps its placement
// across topology edits (warm starts).
type Node struct {
	Identity string
	X, Y     float64
	VX, VY   float64
	Pinned   bool
	Placed   bool
	HasNote  bool
}

// Stub reports whether the node is only a link target with no note
// content behind it.
func (n *Node) Stub() bool { return !n.HasNote }

// Graph owns all nodes and edges. It is not safe for concurrent use;
// callers serialize access externally.
type Graph struct {
	nodes map[string]*Node
	order []string
	out   map[string]map[string]struct{}
	in    map[string]map[string]struct{}
	rev   uint64
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
		out:   make(map[string]map[string]struct{}),
		in:    make(map[string]map[string]struct{}),
	}
}

func normalize(identity string) (string, error) {
	id := strings.TrimSpace(identity)
	if id == "" {
		return "", fmt.Errorf("graph: empty identity: %w", apperr.ErrInvalidIdentity)
	}
	return id, nil
}

// UpsertNote records that identity's note now links to targets,
// reconciling the node's outgoing edge set by diff. New link targets
// without notes become stub nodes; their identities are returned in
// created. Stubs left with no references in either direction after
// the diff are returned in orphaned as pruning candidates; they are
// not removed here.
func (g *Graph) UpsertNote(identity string, targets []string) (created, orphaned []string, err error) {
	id, err := normalize(identity)
	if err != nil {
		return nil, nil, err
	}

	node := g.ensureNode(id)
	if !node.HasNote {
		node.HasNote = true
	}

	// Collapse duplicates and self-references, preserving first-seen order.
	want := make(map[string]struct{}, len(targets))
	var wantOrder []string
	for _, t := range targets {
		tid := strings.TrimSpace(t)
		if tid == "" || tid == id {
			continue
		}
		if _, ok := want[tid]; ok {
			continue
		}
		want[tid] = struct{}{}
		wantOrder = append(wantOrder, tid)
	}

	// Added links create edges (and stub nodes if needed).
	for _, tid := range wantOrder {
		if _, ok := g.out[id][tid]; ok {
			continue
		}
		if _, exists := g.nodes[tid]; !exists {
			g.ensureNode(tid)
			created = append(created, tid)
		}
		g.addEdge(id, tid)
	}

	// Removed links drop edges; targets may degrade to orphan stubs.
	var dropped []string
	for tid := range g.out[id] {
		if _, ok := want[tid]; !ok {
			dropped = append(dropped, tid)
		}
	}
	sort.Strings(dropped)
	for _, tid := range dropped {
		g.removeEdge(id, tid)
		if t := g.nodes[tid]; t != nil && t.Stub() && g.degree(tid) == 0 {
			orphaned = append(orphaned, tid)
		}
	}

	return created, orphaned, nil
}

// RemoveNote drops identity's content association and its outgoing
// edges. The node stays as a stub while other notes still link to it
// and is fully removed otherwise. Stubs orphaned by the dropped
// outgoing edges are returned as pruning candidates.
func (g *Graph) RemoveNote(identity string) (orphaned []string, err error) {
	id, err := normalize(identity)
	if err != nil {
		return nil, err
	}
	node, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("graph: remove %q: %w", id, apperr.ErrNotFound)
	}

	var targets []string
	for tid := range g.out[id] {
		targets = append(targets, tid)
	}
	sort.Strings(targets)
	for _, tid := range targets {
		g.removeEdge(id, tid)
		if t := g.nodes[tid]; t != nil && t.Stub() && g.degree(tid) == 0 {
			orphaned = append(orphaned, tid)
		}
	}

	node.HasNote = false
	if g.degree(id) == 0 {
		g.deleteNode(id)
	}
	return orphaned, nil
}

// PruneStub removes a stub node with no remaining edges. It reports
// whether the node was removed; nodes with content or edges are left
// untouched.
func (g *Graph) PruneStub(identity string) bool {
	id := strings.TrimSpace(identity)
	node, ok := g.nodes[id]
	if !ok || !node.Stub() || g.degree(id) != 0 {
		return false
	}
	g.deleteNode(id)
	return true
}

// Neighbors returns the identities adjacent to identity in the given
// direction, sorted ascending.
func (g *Graph) Neighbors(identity string, dir Direction) ([]string, error) {
	id, err := normalize(identity)
	if err != nil {
		return nil, err
	}
	if _, ok := g.nodes[id]; !ok {
		return nil, fmt.Errorf("graph: neighbors of %q: %w", id, apperr.ErrNotFound)
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(set map[string]struct{}) {
		for tid := range set {
			if _, ok := seen[tid]; ok {
				continue
			}
			seen[tid] = struct{}{}
			out = append(out, tid)
		}
	}
	switch dir {
	case Outgoing:
		add(g.out[id])
	case Incoming:
		add(g.in[id])
	case Both:
		add(g.out[id])
		add(g.in[id])
	}
	sort.Strings(out)
	return out, nil
}

// Node returns the node for identity, if present.
func (g *Graph) Node(identity string) (*Node, bool) {
	n, ok := g.nodes[strings.TrimSpace(identity)]
	return n, ok
}

// Nodes returns all nodes in insertion order. The slice is fresh but
// the pointers are live: the simulator mutates positions through them.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Edges returns the edge set sorted by (source, target).
func (g *Graph) Edges() []models.Link {
	var out []models.Link
	for src, set := range g.out {
		for dst := range set {
			out = append(out, models.Link{Source: src, Target: dst})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out
}

// EdgeEndpoints returns the edges as node-pointer pairs in the same
// order as Edges, for force evaluation.
func (g *Graph) EdgeEndpoints() [][2]*Node {
	links := g.Edges()
	out := make([][2]*Node, 0, len(links))
	for _, l := range links {
		out = append(out, [2]*Node{g.nodes[l.Source], g.nodes[l.Target]})
	}
	return out
}

// Roots returns identities with no incoming edges, sorted ascending.
func (g *Graph) Roots() []string {
	var out []string
	for _, id := range g.order {
		if len(g.in[id]) == 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Identities returns every node identity sorted ascending.
func (g *Graph) Identities() []string {
	out := make([]string, 0, len(g.order))
	out = append(out, g.order...)
	sort.Strings(out)
	return out
}

// Degree returns identity's incoming and outgoing edge counts.
func (g *Graph) Degree(identity string) (in, out int) {
	id := strings.TrimSpace(identity)
	return len(g.in[id]), len(g.out[id])
}

// NodeCount returns the number of nodes, stubs included.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of distinct directed edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, set := range g.out {
		n += len(set)
	}
	return n
}

// Revision increments on every structural change (node or edge added
// or removed). The simulator compares revisions to detect topology
// changes between steps.
func (g *Graph) Revision() uint64 { return g.rev }

func (g *Graph) ensureNode(id string) *Node {
	if n, ok := g.nodes[id]; ok {
		return n
	}
	n := &Node{Identity: id}
	g.nodes[id] = n
	g.order = append(g.order, id)
	g.out[id] = make(map[string]struct{})
	g.in[id] = make(map[string]struct{})
	g.rev++
	return n
}

func (g *Graph) deleteNode(id string) {
	delete(g.nodes, id)
	delete(g.out, id)
	delete(g.in, id)
	for i, o := range g.order {
		if o == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	g.rev++
}

func (g *Graph) addEdge(src, dst string) {
	g.out[src][dst] = struct{}{}
	g.in[dst][src] = struct{}{}
	g.rev++
}

func (g *Graph) removeEdge(src, dst string) {
	delete(g.out[src], dst)
	delete(g.in[dst], src)
	g.rev++
}

func (g *Graph) degree(id string) int {
	return len(g.in[id]) + len(g.out[id])
}
