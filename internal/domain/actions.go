package domain

// ActionKind identifies one of the closed set of portfolio actions
type ActionKind string

const (
	ActionAddFunds  ActionKind = "ADD_FUNDS"
	ActionTrade     ActionKind = "TRADE"
	ActionBorrow    ActionKind = "BORROW"
	ActionRepay     ActionKind = "REPAY"
	ActionRebalance ActionKind = "REBALANCE"
	ActionProtect   ActionKind = "PROTECT"
)

// CommitType returns the ledger entry type recorded for this action kind.
func (k ActionKind) CommitType() string {
	return string(k) + "_COMMIT"
}

// ActionPayload is the closed union of per-action payloads. Each payload is a
// concrete record type validated at the boundary before it reaches a preview,
// and the preview dispatcher switches exhaustively over the implementations.
type ActionPayload interface {
	Kind() ActionKind
}

// AddFundsPayload deposits IRR cash into the portfolio
type AddFundsPayload struct {
	AmountIrr int64 `json:"amount_irr"`
}

func (AddFundsPayload) Kind() ActionKind { return ActionAddFunds }

// TradePayload buys or sells a single asset for an IRR amount
type TradePayload struct {
	Side      TradeSide `json:"side"`
	AssetID   string    `json:"asset_id"`
	AmountIrr int64     `json:"amount_irr"`
}

func (TradePayload) Kind() ActionKind { return ActionTrade }

// BorrowPayload opens a loan against a pledged holding
type BorrowPayload struct {
	CollateralAssetID string `json:"collateral_asset_id"`
	AmountIrr         int64  `json:"amount_irr"`
	DurationDays      int    `json:"duration_days"`
}

func (BorrowPayload) Kind() ActionKind { return ActionBorrow }

// RepayPayload pays down an active loan
type RepayPayload struct {
	LoanID    string `json:"loan_id"`
	AmountIrr int64  `json:"amount_irr"`
}

func (RepayPayload) Kind() ActionKind { return ActionRepay }

// RebalanceMode selects the planner's budget strategy
type RebalanceMode string

const (
	// RebalanceHoldingsOnly caps buys at realized sells.
	RebalanceHoldingsOnly RebalanceMode = "HOLDINGS_ONLY"
	// RebalanceHoldingsPlusCash adds available cash to the buy-side budget.
	RebalanceHoldingsPlusCash RebalanceMode = "HOLDINGS_PLUS_CASH"
	// RebalanceSmart is HOLDINGS_PLUS_CASH with adaptive intra-layer weights.
	RebalanceSmart RebalanceMode = "SMART"
)

// RebalancePayload requests a portfolio rebalance
type RebalancePayload struct {
	Mode RebalanceMode `json:"mode"`
}

func (RebalancePayload) Kind() ActionKind { return ActionRebalance }

// ProtectPayload purchases downside protection on a holding
type ProtectPayload struct {
	AssetID      string  `json:"asset_id"`
	CoveragePct  float64 `json:"coverage_pct"` // (0, 1]
	DurationDays int     `json:"duration_days"`
}

func (ProtectPayload) Kind() ActionKind { return ActionProtect }
