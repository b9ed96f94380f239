package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all system routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/system", func(r chi.Router) {
		r.Get("/health", h.HandleHealth)
	})
}
