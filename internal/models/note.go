// Package models defines the domain types for Wisp.
package models

import "time"

// NoteMetadata identifies a vault note for list operations. Identity
// is the vault-relative path without the .md extension.
type NoteMetadata struct {
	Identity  string    `json:"identity"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Link is a directed edge between two note identities.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// TreeRow is one entry of the link-tree traversal. BackRef marks an
// edge that closes a cycle: the target was already visited, so the
// traversal records the reference instead of descending again.
type TreeRow struct {
	Identity string `json:"identity"`
	Depth    int    `json:"depth"`
	BackRef  bool   `json:"back_ref"`
}

// LinkSummary describes one note's place in the graph: its outgoing
// targets, the notes pointing at it, and whether it is only a stub.
type LinkSummary struct {
	Identity string   `json:"identity"`
	Stub     bool     `json:"stub"`
	Outgoing []string `json:"outgoing"`
	Incoming []string `json:"incoming"`
}

// GraphNode is one node of a display snapshot: the simulation position
// projected onto the character grid, plus a weight glyph derived from
// the node's degree.
type GraphNode struct {
	Identity  string  `json:"identity"`
	Row       int     `json:"row"`
	Col       int     `json:"col"`
	OffScreen bool    `json:"off_screen"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Glyph     string  `json:"glyph"`
	Stub      bool    `json:"stub"`
	Pinned    bool    `json:"pinned"`
}

// SimState summarizes the layout simulation for API consumers.
type SimState struct {
	State         string  `json:"state"`
	Iterations    int     `json:"iterations"`
	KineticEnergy float64 `json:"kinetic_energy"`
}

// GraphSnapshot is the renderer-facing view of the graph: every node
// mapped through the current viewport, the edge list, and the
// simulation state.
type GraphSnapshot struct {
	Nodes   []GraphNode `json:"nodes"`
	Edges   []Link      `json:"edges"`
	Sim     SimState    `json:"sim"`
	Rows    int         `json:"rows"`
	Cols    int         `json:"cols"`
	Zoom    float64     `json:"zoom"`
	CenterX float64     `json:"center_x"`
	CenterY float64     `json:"center_y"`
}
