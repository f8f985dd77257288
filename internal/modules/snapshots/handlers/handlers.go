// Package handlers provides HTTP handlers for portfolio snapshots.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/blumarkets/hram/internal/domain"
	"github.com/blumarkets/hram/internal/modules/portfolio"
	"github.com/blumarkets/hram/internal/modules/snapshots"
)

// Handler handles snapshot HTTP requests
type Handler struct {
	store  *snapshots.Store
	svc    *portfolio.Service
	prices domain.PriceSource
	valuer domain.Valuer
	log    zerolog.Logger
}

// NewHandler creates a new snapshots handler
func NewHandler(store *snapshots.Store, svc *portfolio.Service, prices domain.PriceSource, valuer domain.Valuer, log zerolog.Logger) *Handler {
	return &Handler{
		store:  store,
		svc:    svc,
		prices: prices,
		valuer: valuer,
		log:    log.With().Str("handler", "snapshots").Logger(),
	}
}

// HandleList handles GET /api/snapshots
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	metas, err := h.store.List(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list snapshots")
		http.Error(w, "Failed to list snapshots", http.StatusInternalServerError)
		return
	}
	if metas == nil {
		metas = []snapshots.Meta{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"snapshots": metas,
		"count":     len(metas),
	})
}

// HandleGet handles GET /api/snapshots/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid snapshot id", http.StatusBadRequest)
		return
	}

	snap, err := h.store.Get(id)
	if err != nil {
		http.Error(w, "Snapshot not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// HandleGetLatest handles GET /api/snapshots/latest
func (h *Handler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	snap, found, err := h.store.Latest()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load latest snapshot")
		http.Error(w, "Failed to load latest snapshot", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "No snapshots yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// HandleTake handles POST /api/snapshots
func (h *Handler) HandleTake(w http.ResponseWriter, r *http.Request) {
	view, err := h.prices.View()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to fetch market view")
		http.Error(w, "Failed to fetch market view", http.StatusInternalServerError)
		return
	}

	snap := snapshots.Capture(h.svc.State(), view, h.valuer)
	id, err := h.store.Save(snap)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to save snapshot")
		http.Error(w, "Failed to save snapshot", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":       id,
		"taken_at": snap.TakenAt,
	})
}
