package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all ledger routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/ledger", func(r chi.Router) {
		r.Get("/entries", h.HandleListEntries)
		r.Get("/entries/{id}", h.HandleGetEntry)
		r.Get("/summary", h.HandleGetSummary)
	})
}
