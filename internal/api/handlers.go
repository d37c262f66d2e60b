package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dverna/wisp/internal/apperr"
	"github.com/dverna/wisp/internal/checksum"
	"github.com/dverna/wisp/internal/engine"
	"github.com/dverna/wisp/internal/linktree"
	"github.com/dverna/wisp/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
	eng *engine.Engine
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc, eng: svc.Engine()}
}

// identityParam extracts the note identity from a wildcard route
// (everything after the route prefix). Supports encoded slashes from
// generated clients (e.g. topics%2Fgo).
func identityParam(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListNotes handles GET /api/notes.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	sort := q.Get("sort")

	rows, total, err := h.svc.ListNotes(r.Context(), limit, offset, sort)
	if err != nil {
		writeErr(w, err)
		return
	}
	items := make([]NoteListItem, len(rows))
	for i, n := range rows {
		items[i] = NoteListItem{
			Identity:  n.Identity,
			Title:     n.Title,
			Checksum:  n.Checksum,
			UpdatedAt: n.UpdatedAt,
		}
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: total})
}

// GetNote handles GET /api/notes/*.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	identity := identityParam(r)
	if identity == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("identity is required"))
		return
	}
	note, err := h.svc.GetNote(r.Context(), identity)
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("ETag", checksum.ETag(note.Checksum))
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Identity == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("identity and content are required"))
		return
	}
	note, err := h.svc.CreateNote(r.Context(), req.Identity, []byte(req.Content))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/*. The If-Match header carries the
// expected checksum for optimistic concurrency.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	identity := identityParam(r)
	if identity == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("identity is required"))
		return
	}
	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	ifMatch := checksum.FromETag(r.Header.Get("If-Match"))

	note, err := h.svc.UpdateNote(r.Context(), identity, []byte(req.Content), ifMatch)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/*.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	identity := identityParam(r)
	if identity == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("identity is required"))
		return
	}
	if err := h.svc.DeleteNote(r.Context(), identity); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// NoteLinks handles GET /api/links/*: a note's outgoing links,
// backlinks, and stub flag.
func (h *Handler) NoteLinks(w http.ResponseWriter, r *http.Request) {
	identity := identityParam(r)
	if identity == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("identity is required"))
		return
	}
	sum, err := h.svc.NoteLinks(r.Context(), identity)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// Resolve handles POST /api/resolve/*: follow a link, creating the
// note file when the target is still a stub.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	identity := identityParam(r)
	if identity == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("identity is required"))
		return
	}
	res, err := h.svc.Resolve(r.Context(), identity)
	if err != nil {
		writeErr(w, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

// Search handles GET /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}

// Stubs handles GET /api/stubs: link targets without notes.
func (h *Handler) Stubs(w http.ResponseWriter, r *http.Request) {
	stubs, err := h.svc.Stubs(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	if stubs == nil {
		stubs = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"stubs": stubs})
}

// Graph handles GET /api/graph: the display snapshot for the current
// viewport.
func (h *Handler) Graph(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.eng.Snapshot())
}

// Positions handles GET /api/graph/positions. Before the first
// simulation step the seeded placements are only placeholders, so the
// response carries 409 while still including them.
func (h *Handler) Positions(w http.ResponseWriter, _ *http.Request) {
	pos, err := h.eng.Positions()
	snap := h.eng.Snapshot()
	out := PositionsResponse{Positions: make(map[string]Position, len(pos)), Sim: snap.Sim}
	for id, p := range pos {
		out.Positions[id] = Position{X: p.X, Y: p.Y}
	}
	if err != nil {
		if errors.Is(err, apperr.ErrSimulationNotReady) {
			writeJSON(w, http.StatusConflict, out)
			return
		}
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ExportDOT handles GET /api/graph/export.dot.
func (h *Handler) ExportDOT(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(h.eng.ExportDOT()))
}

// Tree handles GET /api/tree?sort=alpha|links.
func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	sortParam := r.URL.Query().Get("sort")
	mode, err := linktree.ParseSortMode(sortParam)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("sort must be alpha or links"))
		return
	}
	if sortParam == "" {
		sortParam = "alpha"
	}
	writeJSON(w, http.StatusOK, TreeResponse{Rows: h.eng.TreeSnapshot(mode), Sort: sortParam})
}

// Viewport handles POST /api/viewport: pan, zoom, and resize in one
// request. Zoom outside the configured range rejects the whole request
// with 422 and leaves the camera untouched.
func (h *Handler) Viewport(w http.ResponseWriter, r *http.Request) {
	var req ViewportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Zoom != nil {
		if err := h.eng.SetZoom(*req.Zoom); err != nil {
			writeErr(w, err)
			return
		}
	}
	if req.Rows != nil || req.Cols != nil {
		snap := h.eng.Snapshot()
		rows, cols := snap.Rows, snap.Cols
		if req.Rows != nil {
			rows = *req.Rows
		}
		if req.Cols != nil {
			cols = *req.Cols
		}
		h.eng.SetBounds(rows, cols)
	}
	if req.CenterX != nil || req.CenterY != nil {
		snap := h.eng.Snapshot()
		cx, cy := snap.CenterX, snap.CenterY
		if req.CenterX != nil {
			cx = *req.CenterX
		}
		if req.CenterY != nil {
			cy = *req.CenterY
		}
		h.eng.SetCenter(cx, cy)
	}
	if req.PanDX != nil || req.PanDY != nil {
		var dx, dy float64
		if req.PanDX != nil {
			dx = *req.PanDX
		}
		if req.PanDY != nil {
			dy = *req.PanDY
		}
		h.eng.Pan(dx, dy)
	}
	writeJSON(w, http.StatusOK, h.eng.Snapshot())
}

// Drag handles POST /api/graph/drag: move a node and optionally pin it.
func (h *Handler) Drag(w http.ResponseWriter, r *http.Request) {
	var req DragRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Identity == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("identity is required"))
		return
	}
	if err := h.eng.Drag(req.Identity, req.X, req.Y, req.Pinned); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.eng.Snapshot())
}
