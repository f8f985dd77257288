package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/", h.HandleGetSummary)
		r.Get("/state", h.HandleGetState)
		r.Get("/rebalance/check", h.HandleCheckDrift)
		r.Route("/actions", func(r chi.Router) {
			r.Post("/preview", h.HandlePreview)
			r.Post("/draft", h.HandleDraft)
			r.Post("/confirm", h.HandleConfirm)
			r.Post("/cancel", h.HandleCancel)
			r.Get("/pending", h.HandleGetPending)
		})
	})
}
