package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dverna/wisp/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/*", h.GetNote)
	r.Put("/notes/*", h.UpdateNote)
	r.Delete("/notes/*", h.DeleteNote)

	// Link graph.
	r.Get("/graph", h.Graph)
	r.Get("/graph/positions", h.Positions)
	r.Get("/graph/export.dot", h.ExportDOT)
	r.Post("/graph/drag", h.Drag)
	r.Post("/viewport", h.Viewport)

	// Link tree.
	r.Get("/tree", h.Tree)

	// Navigation.
	r.Get("/links/*", h.NoteLinks)
	r.Post("/resolve/*", h.Resolve)
	r.Get("/stubs", h.Stubs)

	// Search.
	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
