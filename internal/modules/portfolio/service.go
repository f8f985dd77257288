package portfolio

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/blumarkets/hram/internal/domain"
	"github.com/blumarkets/hram/internal/modules/engine"
	"github.com/blumarkets/hram/internal/modules/ledger"
	"github.com/blumarkets/hram/internal/modules/rebalancing"
	"github.com/blumarkets/hram/internal/modules/scoring"
)

// Service is the single writer of portfolio state. All mutations go
// through it under one mutex, so the engine only ever sees a consistent
// (state, view) pair.
type Service struct {
	mu     sync.Mutex
	state  domain.PortfolioState
	engine *engine.Engine
	repo   *Repository
	ledger *ledger.Repository
	prices domain.PriceSource
	valuer domain.Valuer
	log    zerolog.Logger
}

// DefaultTargetPct is the target applied before any risk assessment.
func DefaultTargetPct() map[domain.Layer]int {
	return map[domain.Layer]int{
		domain.LayerFoundation: 50,
		domain.LayerGrowth:     35,
		domain.LayerUpside:     15,
	}
}

// NewService loads the persisted state, seeding a fresh portfolio on
// first run.
func NewService(
	eng *engine.Engine,
	repo *Repository,
	ledgerRepo *ledger.Repository,
	prices domain.PriceSource,
	valuer domain.Valuer,
	log zerolog.Logger,
) (*Service, error) {
	s := &Service{
		engine: eng,
		repo:   repo,
		ledger: ledgerRepo,
		prices: prices,
		valuer: valuer,
		log:    log.With().Str("service", "portfolio").Logger(),
	}

	state, found, err := repo.Load()
	if err != nil {
		return nil, fmt.Errorf("load portfolio: %w", err)
	}
	if !found {
		state = domain.PortfolioState{
			Holdings:       valuer.Universe.EmptyHoldings(),
			TargetLayerPct: DefaultTargetPct(),
		}
		if err := repo.Save(state); err != nil {
			return nil, fmt.Errorf("seed portfolio: %w", err)
		}
		s.log.Info().Msg("Seeded fresh portfolio state")
	}
	s.state = state
	return s, nil
}

// State returns a deep copy of the current state for rendering.
func (s *Service) State() domain.PortfolioState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Summary returns the current allocation and headline figures.
func (s *Service) Summary() (Summary, error) {
	view, err := s.prices.View()
	if err != nil {
		return Summary{}, fmt.Errorf("fetch market view: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	alloc := s.valuer.AllocationOf(s.state.Holdings, view)
	return Summary{
		AsOf:            view.AsOf,
		CashIrr:         s.state.CashIrr,
		HoldingsIrr:     alloc.TotalIrr,
		TotalIrr:        alloc.TotalIrr + s.state.CashIrr,
		Allocation:      alloc,
		TargetLayerPct:  s.state.TargetLayerPct,
		ActiveLoans:     countLoans(s.state.Loans, domain.LoanActive),
		ActiveCoverage:  countProtections(s.state.Protections, domain.ProtectionActive),
		PrincipalIrr:    s.state.ActivePrincipalIrr(),
		HasPendingDraft: s.state.Pending != nil,
	}, nil
}

// Summary is the read-model headline for the portfolio screen.
type Summary struct {
	AsOf            time.Time            `json:"as_of"`
	CashIrr         int64                `json:"cash_irr"`
	HoldingsIrr     int64                `json:"holdings_irr"`
	TotalIrr        int64                `json:"total_irr"`
	Allocation      domain.Allocation    `json:"allocation"`
	TargetLayerPct  map[domain.Layer]int `json:"target_layer_pct"`
	ActiveLoans     int                  `json:"active_loans"`
	ActiveCoverage  int                  `json:"active_protections"`
	PrincipalIrr    int64                `json:"principal_irr"`
	HasPendingDraft bool                 `json:"has_pending_draft"`
}

// Preview runs a payload through the engine without installing a draft.
func (s *Service) Preview(payload domain.ActionPayload) (domain.PendingAction, error) {
	view, err := s.prices.View()
	if err != nil {
		return domain.PendingAction{}, fmt.Errorf("fetch market view: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Preview(s.state, payload, view), nil
}

// Draft previews a payload and installs it as the pending action.
// Drafts are in-memory only; they do not survive a restart.
func (s *Service) Draft(payload domain.ActionPayload) (domain.PendingAction, error) {
	view, err := s.prices.View()
	if err != nil {
		return domain.PendingAction{}, fmt.Errorf("fetch market view: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = s.engine.Draft(s.state, payload, view)
	return *s.state.Pending, nil
}

// Confirm commits the pending draft against a fresh market view, persists
// the new state and appends the commit to the durable ledger.
func (s *Service) Confirm() (domain.PortfolioState, error) {
	view, err := s.prices.View()
	if err != nil {
		return domain.PortfolioState{}, fmt.Errorf("fetch market view: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	confirmedRebalance := s.state.Pending != nil && s.state.Pending.Kind == domain.ActionRebalance

	next, err := s.engine.Confirm(s.state, view)
	if err != nil {
		return domain.PortfolioState{}, err
	}
	if confirmedRebalance {
		next.LastRebalancedAt = view.AsOf
	}

	entry := next.Ledger[len(next.Ledger)-1]
	if err := s.ledger.Append(entry); err != nil {
		return domain.PortfolioState{}, fmt.Errorf("append ledger entry: %w", err)
	}
	if err := s.repo.Save(next); err != nil {
		return domain.PortfolioState{}, fmt.Errorf("persist state: %w", err)
	}

	s.state = next
	return next.Clone(), nil
}

// Cancel discards the pending draft, if any.
func (s *Service) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = s.engine.Cancel(s.state)
}

// Pending returns the current draft, or nil.
func (s *Service) Pending() *domain.PendingAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Pending == nil {
		return nil
	}
	pending := *s.state.Pending
	return &pending
}

// ApplyRiskResult sets the target allocation from a questionnaire result
// and persists it. Targets must be integers summing to 100.
func (s *Service) ApplyRiskResult(result scoring.Result) error {
	total := 0
	for _, pct := range result.TargetPct {
		total += pct
	}
	if total != 100 {
		return fmt.Errorf("target percentages sum to %d, want 100", total)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Clone()
	next.TargetLayerPct = make(map[domain.Layer]int, len(result.TargetPct))
	for layer, pct := range result.TargetPct {
		next.TargetLayerPct[layer] = pct
	}
	if err := s.repo.Save(next); err != nil {
		return fmt.Errorf("persist targets: %w", err)
	}

	s.state = next
	s.log.Info().
		Int("score", result.Score).
		Str("profile", result.Profile).
		Msg("Applied risk assessment targets")
	return nil
}

// CheckDrift evaluates the drift triggers against the current allocation.
func (s *Service) CheckDrift(checker *rebalancing.TriggerChecker) (rebalancing.TriggerResult, error) {
	view, err := s.prices.View()
	if err != nil {
		return rebalancing.TriggerResult{}, fmt.Errorf("fetch market view: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	alloc := s.valuer.AllocationOf(s.state.Holdings, view)
	return checker.Check(alloc, s.state.TargetLayerPct, s.state.LastRebalancedAt, view.AsOf), nil
}

// ExpireProtections sweeps lapsed protections and persists the result.
// Returns the number of protections expired.
func (s *Service) ExpireProtections(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, expired := s.engine.ExpireProtections(s.state, now)
	if expired == 0 {
		return 0, nil
	}
	if err := s.repo.Save(next); err != nil {
		return 0, fmt.Errorf("persist state: %w", err)
	}
	s.state = next
	return expired, nil
}

func countLoans(loans []domain.Loan, status domain.LoanStatus) int {
	n := 0
	for _, l := range loans {
		if l.Status == status {
			n++
		}
	}
	return n
}

func countProtections(protections []domain.Protection, status domain.ProtectionStatus) int {
	n := 0
	for _, p := range protections {
		if p.Status == status {
			n++
		}
	}
	return n
}
