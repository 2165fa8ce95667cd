package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/xmltable/internal/runservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *runservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Runs.
	r.Get("/runs", h.ListRuns)
	r.Get("/runs/{id}", h.GetRun)
	r.Get("/runs/{id}/files", h.RunFiles)
	r.Post("/convert", h.Convert)

	// Output.
	r.Get("/output", h.Output)
	r.Get("/columns", h.Columns)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
