package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/noterefs/internal/workspace"
)

// NewRouter creates a chi router with all API routes mounted.
// When authEnabled is set every route, /events included, requires token.
// sseHandler, if non-nil, is mounted at GET /events.
func NewRouter(ws *workspace.Workspace, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(ws)

	r := chi.NewRouter()
	if authEnabled {
		r.Use(RequireToken(token))
	}

	r.Route("/documents", func(r chi.Router) {
		r.Get("/", h.GetDocument)
		r.Post("/", h.OpenDocument)
		r.Delete("/", h.CloseDocument)
		r.Post("/edits", h.EditDocument)
		r.Post("/save", h.SaveDocument)
		r.Post("/refresh", h.RefreshDocument)
		r.Post("/activate", h.ActivateReference)
	})

	r.Get("/references", h.GetReferences)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
