package api

import (
	"time"

	"github.com/dverna/wisp/internal/models"
	"github.com/dverna/wisp/internal/noteservice"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Identity string `json:"identity" example:"topics/go"`
	Content  string `json:"content" example:"# Go\nSee [[topics/concurrency]]."`
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Content string `json:"content" example:"# Updated\nContent"`
}

// ViewportRequest adjusts the camera. Absent fields leave the current
// value untouched; pan deltas apply after an absolute center.
type ViewportRequest struct {
	Rows    *int     `json:"rows,omitempty"`
	Cols    *int     `json:"cols,omitempty"`
	CenterX *float64 `json:"center_x,omitempty"`
	CenterY *float64 `json:"center_y,omitempty"`
	PanDX   *float64 `json:"pan_dx,omitempty"`
	PanDY   *float64 `json:"pan_dy,omitempty"`
	Zoom    *float64 `json:"zoom,omitempty"`
}

// DragRequest moves a node to a world position. Pinned true holds it
// there; false releases it back to the simulation.
type DragRequest struct {
	Identity string  `json:"identity"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Pinned   bool    `json:"pinned"`
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	Identity  string    `json:"identity"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes"`
	Total int            `json:"total"`
}

// TreeResponse wraps the link-tree forest.
type TreeResponse struct {
	Rows []models.TreeRow `json:"rows"`
	Sort string           `json:"sort"`
}

// PositionsResponse is the raw simulation output.
type PositionsResponse struct {
	Positions map[string]Position `json:"positions"`
	Sim       models.SimState     `json:"sim"`
}

// Position mirrors a simulation-space point in API responses.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
