package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all session routes. {code} accepts either a join
// code or a raw session id.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.HandleCreateSession) // Create session (difficulty + overrides)
		r.Get("/", h.HandleListSessions)   // List session summaries
		r.Get("/difficulties", h.HandleListDifficulties)

		r.Route("/{code}", func(r chi.Router) {
			r.Get("/", h.HandleGetSession)       // Summary + leaderboard + clock
			r.Delete("/", h.HandleDeleteSession) // Remove from registry
			r.Post("/start", h.HandleStartSession)
			r.Post("/end", h.HandleEndSession)
			r.Post("/join", h.HandleJoinSession)
			r.Get("/timer", h.HandleGetTimer)
			r.Get("/leaderboard", h.HandleGetLeaderboard)
			r.Get("/reveal", h.HandleReveal) // Ended sessions only
			r.Get("/live", h.HandleLive)     // Websocket leaderboard feed

			r.Route("/players/{playerID}", func(r chi.Router) {
				r.Get("/", h.HandleGetPlayer) // Resources + batch board
				r.Post("/inspect", h.HandleInspect)
				r.Post("/sell", h.HandleSell)
				r.Post("/purchase", h.HandlePurchase)
			})
		})
	})
}
