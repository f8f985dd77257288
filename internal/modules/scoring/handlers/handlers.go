// Package handlers provides HTTP handlers for risk scoring.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/blumarkets/hram/internal/modules/scoring"
)

// TargetApplier installs the target allocation a risk result prescribes.
type TargetApplier interface {
	ApplyRiskResult(result scoring.Result) error
}

// Handler handles risk scoring HTTP requests
type Handler struct {
	questionnaire *scoring.Questionnaire
	applier       TargetApplier
	log           zerolog.Logger
}

// NewHandler creates a new scoring handler
func NewHandler(questionnaire *scoring.Questionnaire, applier TargetApplier, log zerolog.Logger) *Handler {
	return &Handler{
		questionnaire: questionnaire,
		applier:       applier,
		log:           log.With().Str("handler", "scoring").Logger(),
	}
}

// HandleGetQuestionnaire handles GET /api/risk/questionnaire
func (h *Handler) HandleGetQuestionnaire(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.questionnaire)
}

type scoreRequest struct {
	// Answers maps question id to the chosen option index.
	Answers map[string]int `json:"answers"`
}

func (h *Handler) score(w http.ResponseWriter, r *http.Request) (scoring.Result, bool) {
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return scoring.Result{}, false
	}
	return scoring.Score(req.Answers, h.questionnaire), true
}

// HandleScore handles POST /api/risk/score. It computes the result
// without changing the portfolio targets.
func (h *Handler) HandleScore(w http.ResponseWriter, r *http.Request) {
	result, ok := h.score(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// HandleApply handles POST /api/risk/apply. It scores the answers and
// installs the resulting target allocation.
func (h *Handler) HandleApply(w http.ResponseWriter, r *http.Request) {
	result, ok := h.score(w, r)
	if !ok {
		return
	}

	if err := h.applier.ApplyRiskResult(result); err != nil {
		h.log.Error().Err(err).Msg("Failed to apply risk targets")
		http.Error(w, "Failed to apply risk targets", http.StatusInternalServerError)
		return
	}

	h.log.Info().Int("score", result.Score).Str("profile", result.Profile).Msg("Risk assessment applied")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
