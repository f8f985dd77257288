package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all settings routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/settings", func(r chi.Router) {
		r.Get("/", h.HandleGetAll)
		r.Get("/engine-config", h.HandleGetEngineConfig)
		r.Get("/{key}", h.HandleGetSetting)
		r.Put("/{key}", h.HandlePutSetting)
		r.Delete("/{key}", h.HandleDeleteSetting)
	})
}
