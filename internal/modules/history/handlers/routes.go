package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all history routes. {code} accepts a join code or
// a raw session id.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/history/{code}", func(r chi.Router) {
		r.Get("/", h.HandleGetHistory)      // Chronological action records
		r.Get("/export", h.HandleExportCSV) // CSV download
		r.Delete("/", h.HandleDeleteHistory)
	})
}
