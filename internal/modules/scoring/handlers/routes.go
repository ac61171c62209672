package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all score routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/scores", func(r chi.Router) {
		r.Get("/latest", h.HandleGetLatest)
		r.Get("/{date}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetByDate(w, r, chi.URLParam(r, "date"))
		})
	})
}
