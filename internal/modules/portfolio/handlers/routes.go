package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/holdings", h.HandleGetHoldings)
		r.Get("/holdings/{bucket}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetBucket(w, r, chi.URLParam(r, "bucket"))
		})
	})
}
