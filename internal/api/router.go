package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/akimixu/mksearch/internal/searchservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *searchservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Search commands.
	r.Post("/search", h.Search)
	r.Post("/search/stop", h.StopSearch)
	r.Get("/search/state", h.SearchState)

	// Open-file passthrough.
	r.Post("/open", h.OpenFile)

	// History.
	r.Get("/history", h.ListHistory)
	r.Delete("/history", h.ClearHistory)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
