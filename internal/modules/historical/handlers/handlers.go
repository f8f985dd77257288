// Package handlers provides HTTP handlers for price history queries.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/blumarkets/hram/internal/modules/historical"
	"github.com/blumarkets/hram/pkg/formulas"
)

// Handler handles price history HTTP requests
type Handler struct {
	repo *historical.Repository
	log  zerolog.Logger
}

// NewHandler creates a new history handler
func NewHandler(repo *historical.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "historical").Logger(),
	}
}

func limitParam(r *http.Request, fallback int) int {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

// HandleGetPrices handles GET /api/history/{assetID}/prices
func (h *Handler) HandleGetPrices(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")
	limit := limitParam(r, 90)

	prices, err := h.repo.GetDailyPrices(assetID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("asset", assetID).Msg("Failed to load price history")
		http.Error(w, "Failed to load price history", http.StatusInternalServerError)
		return
	}
	if prices == nil {
		prices = []historical.DailyPrice{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"asset_id": assetID,
		"prices":   prices,
		"count":    len(prices),
	})
}

// HandleGetStats handles GET /api/history/{assetID}/stats. It reports
// annualized volatility and momentum over the stored closes.
func (h *Handler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")
	limit := limitParam(r, 90)

	closes, err := h.repo.GetCloses(assetID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("asset", assetID).Msg("Failed to load closes")
		http.Error(w, "Failed to load closes", http.StatusInternalServerError)
		return
	}
	if len(closes) < 2 {
		http.Error(w, "Not enough history", http.StatusNotFound)
		return
	}

	returns := formulas.CalculateReturns(closes)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"asset_id":              assetID,
		"days":                  len(closes),
		"annualized_volatility": formulas.AnnualizedVolatility(returns),
		"momentum":              formulas.MomentumScore(closes, 50),
	})
}

// HandleGetLatestFx handles GET /api/history/fx/latest
func (h *Handler) HandleGetLatestFx(w http.ResponseWriter, r *http.Request) {
	rate, err := h.repo.LatestFxRate()
	if err != nil {
		http.Error(w, "No FX history", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rate)
}
