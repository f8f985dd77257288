// Package domain provides core domain models and types.
//
// All IRR amounts are int64 rials. The rial has no circulating minor unit,
// so integer arithmetic keeps every conservation invariant exact. Asset
// quantities (crypto units, metal grams) stay float64.
package domain

import "time"

// Layer represents a risk bucket assets are grouped into
type Layer string

const (
	LayerFoundation Layer = "FOUNDATION"
	LayerGrowth     Layer = "GROWTH"
	LayerUpside     Layer = "UPSIDE"
)

// AllLayers returns the three layers in canonical order.
// Iteration over layers must always use this order so that
// rounding reconciliation is deterministic.
func AllLayers() []Layer {
	return []Layer{LayerFoundation, LayerGrowth, LayerUpside}
}

// Boundary is the drift-severity classification of an action's allocation impact
type Boundary string

const (
	BoundarySafe       Boundary = "SAFE"
	BoundaryDrift      Boundary = "DRIFT"
	BoundaryStructural Boundary = "STRUCTURAL"
	BoundaryStress     Boundary = "STRESS"
)

// Holding represents a position in a single asset.
// Zero-quantity placeholders are kept so every known asset has exactly one entry.
type Holding struct {
	AssetID  string  `json:"asset_id"`
	Quantity float64 `json:"quantity"`
	// Frozen is true while the holding is pledged as loan collateral.
	// A frozen holding can never be the sell leg of a trade or rebalance.
	Frozen bool `json:"frozen"`
	// PurchasedAt is only meaningful for the fixed-income asset,
	// which accrues simple interest by elapsed days.
	PurchasedAt *time.Time `json:"purchased_at,omitempty"`
}

// InstallmentStatus represents the repayment state of a single installment
type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "PENDING"
	InstallmentPartial InstallmentStatus = "PARTIAL"
	InstallmentPaid    InstallmentStatus = "PAID"
)

// Installment is one repayment slice of a loan
type Installment struct {
	Number   int               `json:"number"`
	DueDate  time.Time         `json:"due_date"`
	TotalIrr int64             `json:"total_irr"`
	PaidIrr  int64             `json:"paid_irr"`
	Status   InstallmentStatus `json:"status"`
}

// LoanStatus represents the lifecycle state of a loan
type LoanStatus string

const (
	LoanActive     LoanStatus = "ACTIVE"
	LoanRepaid     LoanStatus = "REPAID"
	LoanLiquidated LoanStatus = "LIQUIDATED"
)

// Loan is a collateralized IRR loan.
// Invariant: sum(installment.TotalIrr) == AmountIrr + total interest,
// and the collateral holding stays frozen while Status == ACTIVE.
type Loan struct {
	ID                 string        `json:"id"`
	CollateralAssetID  string        `json:"collateral_asset_id"`
	CollateralQuantity float64       `json:"collateral_quantity"` // snapshot at creation
	AmountIrr          int64         `json:"amount_irr"`          // principal
	InterestRate       float64       `json:"interest_rate"`       // annual
	DurationDays       int           `json:"duration_days"`
	Installments       []Installment `json:"installments"`
	Status             LoanStatus    `json:"status"`
	CreatedAt          time.Time     `json:"created_at"`
}

// RemainingIrr returns the unpaid balance across all installments.
func (l Loan) RemainingIrr() int64 {
	var remaining int64
	for _, inst := range l.Installments {
		remaining += inst.TotalIrr - inst.PaidIrr
	}
	return remaining
}

// InstallmentsPaid returns the number of fully paid installments.
func (l Loan) InstallmentsPaid() int {
	n := 0
	for _, inst := range l.Installments {
		if inst.Status == InstallmentPaid {
			n++
		}
	}
	return n
}

// ProtectionStatus represents the lifecycle state of a downside protection
type ProtectionStatus string

const (
	ProtectionActive    ProtectionStatus = "ACTIVE"
	ProtectionExpired   ProtectionStatus = "EXPIRED"
	ProtectionCancelled ProtectionStatus = "CANCELLED"
)

// Protection is a purchased downside protection on a single holding.
// The premium is debited at purchase and is non-refundable.
type Protection struct {
	ID           string           `json:"id"`
	AssetID      string           `json:"asset_id"`
	NotionalIrr  int64            `json:"notional_irr"`
	PremiumIrr   int64            `json:"premium_irr"`
	DurationDays int              `json:"duration_days"`
	Start        time.Time        `json:"start"`
	End          time.Time        `json:"end"`
	Status       ProtectionStatus `json:"status"`
}

// Validation carries the outcome of affordability/eligibility checks.
// Failures are data, not Go errors: the caller decides whether to show or block.
type Validation struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors,omitempty"`
}

// Allocation is a snapshot of portfolio value split across layers
type Allocation struct {
	TotalIrr int64             `json:"total_irr"`
	LayerIrr map[Layer]int64   `json:"layer_irr"`
	LayerPct map[Layer]float64 `json:"layer_pct"`
}

// TradeSide distinguishes the two legs of a trade
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// Trade is a single generated or requested trade leg
type Trade struct {
	Side      TradeSide `json:"side"`
	AssetID   string    `json:"asset_id"`
	Layer     Layer     `json:"layer"`
	AmountIrr int64     `json:"amount_irr"`
	Quantity  float64   `json:"quantity"`
}

// LayerGap describes one layer's distance from its target in a rebalance plan
type LayerGap struct {
	Layer        Layer   `json:"layer"`
	CurrentIrr   int64   `json:"current_irr"`
	CurrentPct   float64 `json:"current_pct"`
	TargetPct    float64 `json:"target_pct"`
	GapIrr       int64   `json:"gap_irr"` // positive = under-weight (buy side)
	UnfrozenIrr  int64   `json:"unfrozen_irr"`
	ShortfallIrr int64   `json:"shortfall_irr,omitempty"`
}

// RebalancePlan is the planner's output: an ordered trade list plus
// a residual-drift report so callers can tell "balanced, nothing to do"
// from "drift exists but cannot be corrected".
type RebalancePlan struct {
	Trades              []Trade    `json:"trades"`
	GapAnalysis         []LayerGap `json:"gap_analysis"`
	TotalBuyIrr         int64      `json:"total_buy_irr"`
	TotalSellIrr        int64      `json:"total_sell_irr"`
	CanFullyRebalance   bool       `json:"can_fully_rebalance"`
	ResidualDriftPct    float64    `json:"residual_drift_pct"`
	HasLockedCollateral bool       `json:"has_locked_collateral"`
}

// PendingAction is the single in-flight draft produced by a preview.
// It is never partially applied: confirm replays it in full, cancel discards it.
type PendingAction struct {
	Kind         ActionKind     `json:"kind"`
	Payload      ActionPayload  `json:"payload"`
	Validation   Validation     `json:"validation"`
	Boundary     Boundary       `json:"boundary"`
	Before       Allocation     `json:"before"`
	After        Allocation     `json:"after"`
	FrictionCopy []string       `json:"friction_copy,omitempty"`
	Rebalance    *RebalancePlan `json:"rebalance,omitempty"`
}

// LedgerDetails is the auditable body of a ledger entry
type LedgerDetails struct {
	Kind       ActionKind    `json:"kind"`
	Payload    ActionPayload `json:"payload"`
	Boundary   Boundary      `json:"boundary"`
	Validation Validation    `json:"validation"`
	Before     Allocation    `json:"before"`
	After      Allocation    `json:"after"`
}

// LedgerEntry is immutable once appended. The ledger is the sole source of
// historical truth; nothing is ever mutated or removed from it.
type LedgerEntry struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Type      string        `json:"type"` // "<ActionKind>_COMMIT"
	Details   LedgerDetails `json:"details"`
}

// PortfolioState is the root aggregate. The engine is its single owner;
// hosts keep a read-only projection for rendering.
type PortfolioState struct {
	CashIrr        int64          `json:"cash_irr"`
	Holdings       []Holding      `json:"holdings"`
	TargetLayerPct map[Layer]int  `json:"target_layer_pct"` // integers summing to 100
	Loans          []Loan         `json:"loans"`
	Protections    []Protection   `json:"protections"`
	Ledger         []LedgerEntry  `json:"ledger"`
	Pending        *PendingAction `json:"pending,omitempty"`
	// LastRebalancedAt rate-limits normal drift triggers. Zero means
	// the portfolio has never rebalanced.
	LastRebalancedAt time.Time `json:"last_rebalanced_at,omitempty"`
}

// Holding returns the holding for an asset id, or nil if unknown.
func (s *PortfolioState) Holding(assetID string) *Holding {
	for i := range s.Holdings {
		if s.Holdings[i].AssetID == assetID {
			return &s.Holdings[i]
		}
	}
	return nil
}

// ActiveLoan returns the active loan with the given id, or nil.
func (s *PortfolioState) ActiveLoan(id string) *Loan {
	for i := range s.Loans {
		if s.Loans[i].ID == id && s.Loans[i].Status == LoanActive {
			return &s.Loans[i]
		}
	}
	return nil
}

// ActivePrincipalIrr sums the principals of all active loans.
func (s *PortfolioState) ActivePrincipalIrr() int64 {
	var total int64
	for _, l := range s.Loans {
		if l.Status == LoanActive {
			total += l.AmountIrr
		}
	}
	return total
}

// Clone deep-copies the state so previews never alias committed slices.
func (s PortfolioState) Clone() PortfolioState {
	next := s

	if s.Holdings != nil {
		next.Holdings = make([]Holding, len(s.Holdings))
		copy(next.Holdings, s.Holdings)
		for i := range next.Holdings {
			if s.Holdings[i].PurchasedAt != nil {
				at := *s.Holdings[i].PurchasedAt
				next.Holdings[i].PurchasedAt = &at
			}
		}
	}

	if s.Loans != nil {
		next.Loans = make([]Loan, len(s.Loans))
		copy(next.Loans, s.Loans)
		for i := range next.Loans {
			if s.Loans[i].Installments == nil {
				continue
			}
			installments := make([]Installment, len(s.Loans[i].Installments))
			copy(installments, s.Loans[i].Installments)
			next.Loans[i].Installments = installments
		}
	}

	if s.Protections != nil {
		next.Protections = make([]Protection, len(s.Protections))
		copy(next.Protections, s.Protections)
	}

	if s.Ledger != nil {
		next.Ledger = make([]LedgerEntry, len(s.Ledger))
		copy(next.Ledger, s.Ledger)
	}

	if s.TargetLayerPct != nil {
		next.TargetLayerPct = make(map[Layer]int, len(s.TargetLayerPct))
		for k, v := range s.TargetLayerPct {
			next.TargetLayerPct[k] = v
		}
	}

	if s.Pending != nil {
		pending := *s.Pending
		next.Pending = &pending
	}

	return next
}

// MarketView is the market-data input consumed by every preview:
// current USD prices, the USD→IRR rate, and an as-of timestamp.
// Determinism is over (state, view, payload).
type MarketView struct {
	AsOf      time.Time          `json:"as_of"`
	USDPrice  map[string]float64 `json:"usd_price"` // assetID -> USD price per unit
	IrrPerUSD float64            `json:"irr_per_usd"`
	// HighVolatility doubles slippage and forces the STRESS boundary check.
	HighVolatility bool `json:"high_volatility"`
}

// PriceSource supplies the current market view. The feed client implements it;
// tests substitute a fixture.
type PriceSource interface {
	View() (MarketView, error)
}
