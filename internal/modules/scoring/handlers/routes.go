package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all risk scoring routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/risk", func(r chi.Router) {
		r.Get("/questionnaire", h.HandleGetQuestionnaire)
		r.Post("/score", h.HandleScore)
		r.Post("/apply", h.HandleApply)
	})
}
