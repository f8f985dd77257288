package engine

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blumarkets/hram/internal/domain"
)

func mustConfirm(t *testing.T, e *Engine, state domain.PortfolioState, payload domain.ActionPayload, view domain.MarketView) domain.PortfolioState {
	t.Helper()
	committed, err := e.Confirm(e.Draft(state, payload, view), view)
	require.NoError(t, err)
	return committed
}

func TestTradeBuyAppliesFriction(t *testing.T) {
	e := testEngine()
	view := testView()

	committed := mustConfirm(t, e, testState(),
		domain.TradePayload{Side: domain.SideBuy, AssetID: "BTC", AmountIrr: 1000000}, view)

	// 0.3% fee + 0.2% slippage on 1,000,000 leaves 995,000 invested
	assert.Equal(t, int64(19000000), committed.CashIrr)
	assert.InDelta(t, 0.4199, committed.Holding("BTC").Quantity, 1e-9)
}

func TestTradeBuyDoublesSlippageUnderHighVolatility(t *testing.T) {
	e := testEngine()
	view := testView()
	view.HighVolatility = true

	pending := e.Preview(testState(), domain.TradePayload{Side: domain.SideBuy, AssetID: "BTC", AmountIrr: 1000000}, view)

	require.True(t, pending.Validation.OK)
	require.Len(t, pending.FrictionCopy, 1)
	assert.Contains(t, pending.FrictionCopy[0], "High volatility")
	assert.Contains(t, pending.FrictionCopy[0], "0.7%")
	// high-volatility previews always classify as STRESS
	assert.Equal(t, domain.BoundaryStress, pending.Boundary)
}

func TestTradeSellCreditsNetProceeds(t *testing.T) {
	e := testEngine()
	view := testView()

	committed := mustConfirm(t, e, testState(),
		domain.TradePayload{Side: domain.SideSell, AssetID: "USDT", AmountIrr: 10000000}, view)

	assert.Equal(t, int64(29950000), committed.CashIrr)
	assert.InDelta(t, 40000.0, committed.Holding("USDT").Quantity, 1e-9)
}

func TestTradeValidationFailures(t *testing.T) {
	e := testEngine()
	view := testView()

	frozen := testState()
	frozen.Holdings[0].Frozen = true

	tests := []struct {
		name    string
		state   domain.PortfolioState
		payload domain.TradePayload
	}{
		{"zero amount", testState(), domain.TradePayload{Side: domain.SideBuy, AssetID: "BTC"}},
		{"unknown asset", testState(), domain.TradePayload{Side: domain.SideBuy, AssetID: "DOGE", AmountIrr: 1000}},
		{"buy beyond cash", testState(), domain.TradePayload{Side: domain.SideBuy, AssetID: "BTC", AmountIrr: 999000000}},
		{"sell without holdings", testState(), domain.TradePayload{Side: domain.SideSell, AssetID: "ETH", AmountIrr: 1000000}},
		{"sell beyond value", testState(), domain.TradePayload{Side: domain.SideSell, AssetID: "SOL", AmountIrr: 99000000}},
		{"sell frozen collateral", frozen, domain.TradePayload{Side: domain.SideSell, AssetID: "USDT", AmountIrr: 1000000}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pending := e.Preview(tc.state, tc.payload, view)
			assert.False(t, pending.Validation.OK)
			assert.NotEmpty(t, pending.Validation.Errors)
		})
	}
}

func TestBorrowFreezesCollateralAndCreditsCash(t *testing.T) {
	e := testEngine()
	view := testView()

	committed := mustConfirm(t, e, testState(),
		domain.BorrowPayload{CollateralAssetID: "BTC", AmountIrr: 8000000, DurationDays: 180}, view)

	assert.Equal(t, int64(28000000), committed.CashIrr)
	assert.True(t, committed.Holding("BTC").Frozen)

	require.Len(t, committed.Loans, 1)
	loan := committed.Loans[0]
	assert.Equal(t, "loan-0001", loan.ID)
	assert.Equal(t, domain.LoanActive, loan.Status)
	require.Len(t, loan.Installments, 6)
	// 8,000,000 × 24% × 180/365 rounds to 946,849
	assert.Equal(t, int64(8946849), loan.RemainingIrr())
}

func TestBorrowValidationFailures(t *testing.T) {
	e := testEngine()
	view := testView()

	pledged := testState()
	pledged.Holdings[1].Frozen = true

	tests := []struct {
		name    string
		state   domain.PortfolioState
		payload domain.BorrowPayload
	}{
		{"zero amount", testState(), domain.BorrowPayload{CollateralAssetID: "BTC", DurationDays: 180}},
		{"duration too short", testState(), domain.BorrowPayload{CollateralAssetID: "BTC", AmountIrr: 1000000, DurationDays: 7}},
		{"duration too long", testState(), domain.BorrowPayload{CollateralAssetID: "BTC", AmountIrr: 1000000, DurationDays: 9999}},
		{"no such holding", testState(), domain.BorrowPayload{CollateralAssetID: "ETH", AmountIrr: 1000000, DurationDays: 180}},
		{"already pledged", pledged, domain.BorrowPayload{CollateralAssetID: "BTC", AmountIrr: 1000000, DurationDays: 180}},
		// BTC collateral is worth 20,000,000, so 50% LTV caps at 10,000,000
		{"exceeds ltv", testState(), domain.BorrowPayload{CollateralAssetID: "BTC", AmountIrr: 12000000, DurationDays: 180}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pending := e.Preview(tc.state, tc.payload, view)
			assert.False(t, pending.Validation.OK)
		})
	}
}

func TestBorrowRespectsPortfolioLoanCap(t *testing.T) {
	valuer := testValuer()
	cfg := DefaultConfig()
	cfg.Loans.MaxPortfolioLoanPct = 0.05 // cap at 5,000,000 for the test state
	e := New(cfg, valuer, nil, nil, zerolog.Nop())

	pending := e.Preview(testState(),
		domain.BorrowPayload{CollateralAssetID: "BTC", AmountIrr: 8000000, DurationDays: 180}, testView())

	require.False(t, pending.Validation.OK)
	assert.Contains(t, pending.Validation.Errors[0], "portfolio loan limit")
}

func TestRepayInstallmentsThenSettle(t *testing.T) {
	e := testEngine()
	view := testView()

	state := mustConfirm(t, e, testState(),
		domain.BorrowPayload{CollateralAssetID: "BTC", AmountIrr: 8000000, DurationDays: 180}, view)

	// one installment: floor(8,946,849 / 6)
	state = mustConfirm(t, e, state,
		domain.RepayPayload{LoanID: "loan-0001", AmountIrr: 1491141}, view)

	loan := state.Loans[0]
	assert.Equal(t, domain.LoanActive, loan.Status)
	assert.Equal(t, 1, loan.InstallmentsPaid())
	assert.True(t, state.Holding("BTC").Frozen)

	// settle the rest
	state = mustConfirm(t, e, state,
		domain.RepayPayload{LoanID: "loan-0001", AmountIrr: loan.RemainingIrr()}, view)

	assert.Equal(t, domain.LoanRepaid, state.Loans[0].Status)
	assert.False(t, state.Holding("BTC").Frozen)
	assert.Equal(t, int64(28000000-8946849), state.CashIrr)
}

func TestRepayValidationFailures(t *testing.T) {
	e := testEngine()
	view := testView()

	state := mustConfirm(t, e, testState(),
		domain.BorrowPayload{CollateralAssetID: "BTC", AmountIrr: 8000000, DurationDays: 180}, view)

	for name, payload := range map[string]domain.RepayPayload{
		"zero amount":  {LoanID: "loan-0001"},
		"unknown loan": {LoanID: "loan-9999", AmountIrr: 1000000},
		"beyond cash":  {LoanID: "loan-0001", AmountIrr: 999000000},
	} {
		t.Run(name, func(t *testing.T) {
			pending := e.Preview(state, payload, view)
			assert.False(t, pending.Validation.OK)
		})
	}
}

func TestRebalancePreviewConservesValueMinusFees(t *testing.T) {
	e := testEngine()
	view := testView()
	state := testState() // 50M/20M/10M holdings vs 50/35/15 target

	pending := e.Preview(state, domain.RebalancePayload{Mode: domain.RebalanceHoldingsOnly}, view)
	require.True(t, pending.Validation.OK)
	require.NotNil(t, pending.Rebalance)
	assert.NotEmpty(t, pending.Rebalance.Trades)

	// holdings-only mode never touches cash
	committed, err := e.Confirm(e.Draft(state, domain.RebalancePayload{Mode: domain.RebalanceHoldingsOnly}, view), view)
	require.NoError(t, err)
	assert.Equal(t, state.CashIrr, committed.CashIrr)

	// sale proceeds net of fees were fully reinvested
	before := testValuer().AllocationOf(state.Holdings, view)
	after := testValuer().AllocationOf(committed.Holdings, view)
	assert.Less(t, after.TotalIrr, before.TotalIrr)
	assert.Greater(t, after.TotalIrr, before.TotalIrr-150000, "only fees may leak value")

	// and the drift is materially reduced
	assert.InDelta(t, 50, after.LayerPct[domain.LayerFoundation], 0.2)
	assert.InDelta(t, 35, after.LayerPct[domain.LayerGrowth], 0.2)
	assert.InDelta(t, 15, after.LayerPct[domain.LayerUpside], 0.2)
}

func TestRebalanceBalancedPortfolioRejected(t *testing.T) {
	e := testEngine()
	view := testView()

	state := testState()
	state.Holdings = []domain.Holding{
		{AssetID: "USDT", Quantity: 50000},
		{AssetID: "BTC", Quantity: 0.7},
		{AssetID: "SOL", Quantity: 150},
	}

	pending := e.Preview(state, domain.RebalancePayload{Mode: domain.RebalanceHoldingsOnly}, view)

	require.False(t, pending.Validation.OK)
	assert.Contains(t, pending.Validation.Errors[0], "no trades generated")
	// the plan still ships so callers can show the residual drift
	require.NotNil(t, pending.Rebalance)
	assert.InDelta(t, 0, pending.Rebalance.ResidualDriftPct, 0.01)
}

func TestProtectDebitsPremium(t *testing.T) {
	e := testEngine()
	view := testView()

	committed := mustConfirm(t, e, testState(),
		domain.ProtectPayload{AssetID: "SOL", CoveragePct: 0.5, DurationDays: 90}, view)

	// 5,000,000 notional × 3.5%/month × 3 months
	assert.Equal(t, int64(20000000-525000), committed.CashIrr)

	require.Len(t, committed.Protections, 1)
	p := committed.Protections[0]
	assert.Equal(t, "prot-0001", p.ID)
	assert.Equal(t, domain.ProtectionActive, p.Status)
	assert.Equal(t, int64(5000000), p.NotionalIrr)
	assert.Equal(t, int64(525000), p.PremiumIrr)
	assert.Equal(t, view.AsOf.AddDate(0, 0, 90), p.End)
}

func TestProtectValidationFailures(t *testing.T) {
	e := testEngine()
	view := testView()

	broke := testState()
	broke.CashIrr = 100000

	tests := []struct {
		name    string
		state   domain.PortfolioState
		payload domain.ProtectPayload
	}{
		{"nothing to protect", testState(), domain.ProtectPayload{AssetID: "ETH", CoveragePct: 0.5, DurationDays: 90}},
		{"bad coverage", testState(), domain.ProtectPayload{AssetID: "SOL", CoveragePct: 1.5, DurationDays: 90}},
		{"premium beyond cash", broke, domain.ProtectPayload{AssetID: "SOL", CoveragePct: 1.0, DurationDays: 365}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pending := e.Preview(tc.state, tc.payload, view)
			assert.False(t, pending.Validation.OK)
		})
	}
}

func TestExpireProtectionsSweep(t *testing.T) {
	e := testEngine()
	view := testView()

	state := mustConfirm(t, e, testState(),
		domain.ProtectPayload{AssetID: "SOL", CoveragePct: 0.5, DurationDays: 90}, view)

	// still covered on the last day
	unchanged, n := e.ExpireProtections(state, view.AsOf.AddDate(0, 0, 90))
	assert.Zero(t, n)
	assert.Equal(t, domain.ProtectionActive, unchanged.Protections[0].Status)

	expired, n := e.ExpireProtections(state, view.AsOf.AddDate(0, 0, 91))
	assert.Equal(t, 1, n)
	assert.Equal(t, domain.ProtectionExpired, expired.Protections[0].Status)
	// premiums are never refunded
	assert.Equal(t, state.CashIrr, expired.CashIrr)
}
