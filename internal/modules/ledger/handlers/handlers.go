// Package handlers provides HTTP handlers for ledger queries.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/blumarkets/hram/internal/modules/ledger"
)

// Handler handles ledger HTTP requests
type Handler struct {
	repo *ledger.Repository
	log  zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(repo *ledger.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "ledger").Logger(),
	}
}

// HandleListEntries handles GET /api/ledger/entries
func (h *Handler) HandleListEntries(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	entryType := r.URL.Query().Get("type")

	records, err := h.repo.List(limit, entryType)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list ledger entries")
		http.Error(w, "Failed to list ledger entries", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []ledger.Record{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"entries": records,
		"count":   len(records),
	})
}

// HandleGetEntry handles GET /api/ledger/entries/{id}
func (h *Handler) HandleGetEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.repo.Get(id)
	if err != nil {
		http.Error(w, "Ledger entry not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

// HandleGetSummary handles GET /api/ledger/summary
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	total, err := h.repo.Count()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to count ledger entries")
		http.Error(w, "Failed to summarize ledger", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"total_entries": total,
	})
}
