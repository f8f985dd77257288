// Package handlers provides HTTP handlers for rebalance planning.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/blumarkets/hram/internal/domain"
	"github.com/blumarkets/hram/internal/modules/rebalancing"
)

// StateSource supplies the committed state a plan is computed against.
type StateSource interface {
	State() domain.PortfolioState
}

// Handler handles rebalancing HTTP requests
type Handler struct {
	planner *rebalancing.Planner
	states  StateSource
	prices  domain.PriceSource
	log     zerolog.Logger
}

// NewHandler creates a new rebalancing handler
func NewHandler(planner *rebalancing.Planner, states StateSource, prices domain.PriceSource, log zerolog.Logger) *Handler {
	return &Handler{
		planner: planner,
		states:  states,
		prices:  prices,
		log:     log.With().Str("handler", "rebalancing").Logger(),
	}
}

// HandlePlan handles POST /api/rebalancing/plan. It computes a dry-run
// plan for the requested mode; committing one goes through the portfolio
// action pipeline instead.
func (h *Handler) HandlePlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode domain.RebalanceMode `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	switch req.Mode {
	case domain.RebalanceHoldingsOnly, domain.RebalanceHoldingsPlusCash, domain.RebalanceSmart:
	default:
		http.Error(w, "Unknown rebalance mode", http.StatusBadRequest)
		return
	}

	view, err := h.prices.View()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to fetch market view")
		http.Error(w, "Failed to fetch market view", http.StatusInternalServerError)
		return
	}

	state := h.states.State()
	plan := h.planner.Plan(state.Holdings, state.CashIrr, state.TargetLayerPct, req.Mode, view)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(plan)
}
