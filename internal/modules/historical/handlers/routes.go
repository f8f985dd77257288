package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all price history routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/history", func(r chi.Router) {
		r.Get("/fx/latest", h.HandleGetLatestFx)
		r.Get("/{assetID}/prices", h.HandleGetPrices)
		r.Get("/{assetID}/stats", h.HandleGetStats)
	})
}
