package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *HubHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	// All hub routes live under /v1
	r.Route("/v1", func(r chi.Router) {
		// Open routes
		r.Get("/explore", h.ExploreHandler)
		r.Post("/auth", h.AuthHandler)
		r.Get("/items", h.UserItemsHandler)
		r.Get("/{itemType}/{id}/pull", h.PullHandler)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Mutating routes; bearer auth is enforced in remote mode
		r.Group(func(r chi.Router) {
			r.Use(h.ConnectionKeyMiddleware)

			r.Post("/{itemType}/create", h.CreateHandler)
			r.Post("/{itemType}/{id}/update", h.UpdateHandler)
			r.Delete("/{itemType}/{id}", h.DeleteHandler)
			r.Post("/{itemType}/{id}/vote", h.CastVoteHandler)
			r.Get("/{itemType}/{id}/vote", h.GetVoteHandler)
		})
	})

	return r
}
