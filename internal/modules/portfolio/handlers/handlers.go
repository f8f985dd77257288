// Package handlers provides HTTP handlers for the portfolio action
// pipeline: preview, draft, confirm, cancel.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/blumarkets/hram/internal/domain"
	"github.com/blumarkets/hram/internal/modules/portfolio"
	"github.com/blumarkets/hram/internal/modules/rebalancing"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	svc     *portfolio.Service
	checker *rebalancing.TriggerChecker
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(svc *portfolio.Service, checker *rebalancing.TriggerChecker, log zerolog.Logger) *Handler {
	return &Handler{
		svc:     svc,
		checker: checker,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// actionRequest is the wire form of an action: a kind tag plus the
// kind-specific payload.
type actionRequest struct {
	Kind    domain.ActionKind `json:"kind"`
	Payload json.RawMessage   `json:"payload"`
}

func decodePayload(req actionRequest) (domain.ActionPayload, error) {
	var (
		payload domain.ActionPayload
		err     error
	)
	switch req.Kind {
	case domain.ActionAddFunds:
		var p domain.AddFundsPayload
		err = json.Unmarshal(req.Payload, &p)
		payload = p
	case domain.ActionTrade:
		var p domain.TradePayload
		err = json.Unmarshal(req.Payload, &p)
		payload = p
	case domain.ActionBorrow:
		var p domain.BorrowPayload
		err = json.Unmarshal(req.Payload, &p)
		payload = p
	case domain.ActionRepay:
		var p domain.RepayPayload
		err = json.Unmarshal(req.Payload, &p)
		payload = p
	case domain.ActionRebalance:
		var p domain.RebalancePayload
		err = json.Unmarshal(req.Payload, &p)
		payload = p
	case domain.ActionProtect:
		var p domain.ProtectPayload
		err = json.Unmarshal(req.Payload, &p)
		payload = p
	default:
		return nil, fmt.Errorf("unknown action kind %q", req.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", req.Kind, err)
	}
	return payload, nil
}

func (h *Handler) readAction(w http.ResponseWriter, r *http.Request) (domain.ActionPayload, bool) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return nil, false
	}
	payload, err := decodePayload(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return payload, true
}

// HandleGetSummary handles GET /api/portfolio
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Summary()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build portfolio summary")
		http.Error(w, "Failed to build portfolio summary", http.StatusInternalServerError)
		return
	}
	writeJSON(w, summary)
}

// HandleGetState handles GET /api/portfolio/state
func (h *Handler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.State())
}

// HandlePreview handles POST /api/portfolio/actions/preview
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.readAction(w, r)
	if !ok {
		return
	}
	pending, err := h.svc.Preview(payload)
	if err != nil {
		h.log.Error().Err(err).Msg("Preview failed")
		http.Error(w, "Preview failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, pending)
}

// HandleDraft handles POST /api/portfolio/actions/draft
func (h *Handler) HandleDraft(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.readAction(w, r)
	if !ok {
		return
	}
	pending, err := h.svc.Draft(payload)
	if err != nil {
		h.log.Error().Err(err).Msg("Draft failed")
		http.Error(w, "Draft failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, pending)
}

// HandleConfirm handles POST /api/portfolio/actions/confirm
func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	state, err := h.svc.Confirm()
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, state)
}

// HandleCancel handles POST /api/portfolio/actions/cancel
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.svc.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetPending handles GET /api/portfolio/actions/pending
func (h *Handler) HandleGetPending(w http.ResponseWriter, r *http.Request) {
	pending := h.svc.Pending()
	if pending == nil {
		http.Error(w, "No pending action", http.StatusNotFound)
		return
	}
	writeJSON(w, pending)
}

// HandleCheckDrift handles GET /api/portfolio/rebalance/check
func (h *Handler) HandleCheckDrift(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.CheckDrift(h.checker)
	if err != nil {
		h.log.Error().Err(err).Msg("Drift check failed")
		http.Error(w, "Drift check failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
