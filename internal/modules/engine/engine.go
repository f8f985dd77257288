// Package engine implements the preview-then-commit transaction pipeline.
//
// Every action follows the same path: a pure preview computes validation,
// allocation impact and boundary against an explicit market view; the host
// drafts it as the single pending action; confirm replays the preview
// against the current state and appends a ledger entry. Previews never
// mutate committed state, and a pending action is never partially applied.
package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/blumarkets/hram/internal/domain"
	"github.com/blumarkets/hram/internal/modules/boundary"
	"github.com/blumarkets/hram/internal/modules/lending"
	"github.com/blumarkets/hram/internal/modules/protection"
	"github.com/blumarkets/hram/internal/modules/rebalancing"
)

// Friction models trade execution costs.
type Friction struct {
	BaseFeePct      float64 `json:"base_fee_pct"`      // exchange fee fraction
	BaseSlippagePct float64 `json:"base_slippage_pct"` // doubles under high volatility
}

// DefaultFriction returns the product friction tuning.
func DefaultFriction() Friction {
	return Friction{BaseFeePct: 0.003, BaseSlippagePct: 0.002}
}

// rate returns the combined friction fraction for a market view.
func (f Friction) rate(view domain.MarketView) float64 {
	slippage := f.BaseSlippagePct
	if view.HighVolatility {
		slippage *= 2
	}
	return f.BaseFeePct + slippage
}

// Config aggregates the engine's injectable tuning.
type Config struct {
	Friction Friction        `json:"friction"`
	Loans    lending.Config  `json:"loans"`
	Boundary boundary.Config `json:"boundary"`
}

// DefaultConfig returns the product engine tuning.
func DefaultConfig() Config {
	return Config{
		Friction: DefaultFriction(),
		Loans:    lending.DefaultConfig(),
		Boundary: boundary.DefaultConfig(),
	}
}

// Engine is the pure transaction core. It owns no state and performs no
// I/O: every method is a function of (state, view, payload).
type Engine struct {
	cfg        Config
	valuer     domain.Valuer
	classifier boundary.Classifier
	planner    *rebalancing.Planner
	quoter     protection.Quoter
	log        zerolog.Logger
}

// New creates the transaction engine.
func New(cfg Config, valuer domain.Valuer, planner *rebalancing.Planner, quoter protection.Quoter, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:        cfg,
		valuer:     valuer,
		classifier: boundary.New(cfg.Boundary),
		planner:    planner,
		quoter:     quoter,
		log:        log.With().Str("service", "engine").Logger(),
	}
}

// Preview computes the pending action a payload would produce, without
// touching committed state. Calling it twice with identical inputs yields
// identical output.
func (e *Engine) Preview(state domain.PortfolioState, payload domain.ActionPayload, view domain.MarketView) domain.PendingAction {
	pending, _ := e.run(state, payload, view)
	return pending
}

// Draft previews a payload and installs it as the pending action.
// An existing draft is implicitly discarded: the newest intent wins.
func (e *Engine) Draft(state domain.PortfolioState, payload domain.ActionPayload, view domain.MarketView) domain.PortfolioState {
	pending := e.Preview(state, payload, view)

	next := state.Clone()
	next.Pending = &pending

	e.log.Debug().
		Str("kind", string(payload.Kind())).
		Bool("valid", pending.Validation.OK).
		Str("boundary", string(pending.Boundary)).
		Msg("Drafted pending action")
	return next
}

// Confirm replays the pending action's preview against the current state,
// commits the resulting state, appends a ledger entry and clears the draft.
// A failed validation blocks the whole commit: there are no partial commits.
func (e *Engine) Confirm(state domain.PortfolioState, view domain.MarketView) (domain.PortfolioState, error) {
	if state.Pending == nil {
		return state, fmt.Errorf("no pending action to confirm")
	}

	pending, next := e.run(state, state.Pending.Payload, view)
	if !pending.Validation.OK {
		return state, fmt.Errorf("pending %s failed validation: %v", pending.Kind, pending.Validation.Errors)
	}

	entry := domain.LedgerEntry{
		ID:        uuid.NewString(),
		Timestamp: view.AsOf,
		Type:      pending.Kind.CommitType(),
		Details: domain.LedgerDetails{
			Kind:       pending.Kind,
			Payload:    pending.Payload,
			Boundary:   pending.Boundary,
			Validation: pending.Validation,
			Before:     pending.Before,
			After:      pending.After,
		},
	}
	next.Ledger = append(next.Ledger, entry)
	next.Pending = nil

	e.log.Info().
		Str("kind", string(pending.Kind)).
		Str("ledger_id", entry.ID).
		Str("boundary", string(pending.Boundary)).
		Msg("Committed action")
	return next, nil
}

// Cancel discards the pending action without touching committed state.
func (e *Engine) Cancel(state domain.PortfolioState) domain.PortfolioState {
	next := state.Clone()
	next.Pending = nil
	return next
}

// ExpireProtections sweeps active protections past their end date. Expiry
// is a lifecycle transition, not a user action, so it bypasses the
// preview pipeline and never touches cash.
func (e *Engine) ExpireProtections(state domain.PortfolioState, now time.Time) (domain.PortfolioState, int) {
	updated, expired := protection.ExpireDue(state.Protections, now)
	if len(expired) == 0 {
		return state, 0
	}

	next := state.Clone()
	next.Protections = updated
	for _, p := range expired {
		e.log.Info().Str("protection_id", p.ID).Str("asset", p.AssetID).Msg("Protection expired")
	}
	return next, len(expired)
}

// run dispatches a payload to its preview. The returned state is the
// committed-state candidate used by Confirm; it equals a clone of the
// input state when validation fails.
func (e *Engine) run(state domain.PortfolioState, payload domain.ActionPayload, view domain.MarketView) (domain.PendingAction, domain.PortfolioState) {
	next := state.Clone()
	next.Pending = nil
	before := e.valuer.AllocationOf(state.Holdings, view)

	var outcome previewOutcome
	switch p := payload.(type) {
	case domain.AddFundsPayload:
		outcome = e.previewAddFunds(&next, p)
	case domain.TradePayload:
		outcome = e.previewTrade(&next, p, view)
	case domain.BorrowPayload:
		outcome = e.previewBorrow(&next, p, view)
	case domain.RepayPayload:
		outcome = e.previewRepay(&next, p)
	case domain.RebalancePayload:
		outcome = e.previewRebalance(&next, p, view)
	case domain.ProtectPayload:
		outcome = e.previewProtect(&next, p, view)
	default:
		outcome = previewOutcome{errors: []string{fmt.Sprintf("unsupported action payload %T", payload)}}
	}

	validation := domain.Validation{OK: len(outcome.errors) == 0, Errors: outcome.errors}
	if !validation.OK {
		// a rejected action must not leak partial mutations
		next = state.Clone()
		next.Pending = nil
	}

	after := e.valuer.AllocationOf(next.Holdings, view)
	pending := domain.PendingAction{
		Kind:         payload.Kind(),
		Payload:      payload,
		Validation:   validation,
		Boundary:     e.classifier.Classify(before, after, state.TargetLayerPct, view.HighVolatility),
		Before:       before,
		After:        after,
		FrictionCopy: outcome.frictionCopy,
		Rebalance:    outcome.plan,
	}
	return pending, next
}

// previewOutcome is what each per-kind preview reports back to the dispatcher.
type previewOutcome struct {
	errors       []string
	frictionCopy []string
	plan         *domain.RebalancePlan
}
