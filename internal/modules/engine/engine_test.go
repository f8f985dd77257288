package engine

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blumarkets/hram/internal/domain"
	"github.com/blumarkets/hram/internal/modules/protection"
	"github.com/blumarkets/hram/internal/modules/rebalancing"
)

func testValuer() domain.Valuer {
	return domain.Valuer{
		Universe:              domain.DefaultUniverse(),
		FixedIncomeAnnualRate: 0.20,
	}
}

func testEngine() *Engine {
	valuer := testValuer()
	planner := rebalancing.NewPlanner(rebalancing.DefaultConfig(), valuer, nil, zerolog.Nop())
	quoter := protection.NewEstimator(protection.DefaultConfig(), valuer)
	return New(DefaultConfig(), valuer, planner, quoter, zerolog.Nop())
}

// IRR per unit: USDT 1,000 / PAXG 2,000,000 / XAG 25,000 /
// BTC 50,000,000 / ETH 2,500,000 / SOL 100,000.
func testView() domain.MarketView {
	return domain.MarketView{
		AsOf:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		IrrPerUSD: 1000,
		USDPrice: map[string]float64{
			"USDT": 1,
			"PAXG": 2000,
			"XAG":  25,
			"BTC":  50000,
			"ETH":  2500,
			"SOL":  100,
		},
	}
}

func testState() domain.PortfolioState {
	return domain.PortfolioState{
		CashIrr: 20000000,
		Holdings: []domain.Holding{
			{AssetID: "USDT", Quantity: 50000}, // 50,000,000
			{AssetID: "BTC", Quantity: 0.4},    // 20,000,000
			{AssetID: "SOL", Quantity: 100},    // 10,000,000
		},
		TargetLayerPct: map[domain.Layer]int{
			domain.LayerFoundation: 50,
			domain.LayerGrowth:     35,
			domain.LayerUpside:     15,
		},
	}
}

func TestPreviewIsDeterministic(t *testing.T) {
	e := testEngine()
	state := testState()
	view := testView()

	payloads := []domain.ActionPayload{
		domain.AddFundsPayload{AmountIrr: 5000000},
		domain.TradePayload{Side: domain.SideBuy, AssetID: "BTC", AmountIrr: 1000000},
		domain.BorrowPayload{CollateralAssetID: "BTC", AmountIrr: 8000000, DurationDays: 180},
		domain.RebalancePayload{Mode: domain.RebalanceHoldingsOnly},
		domain.ProtectPayload{AssetID: "SOL", CoveragePct: 0.5, DurationDays: 90},
	}
	for _, p := range payloads {
		a := e.Preview(state, p, view)
		b := e.Preview(state, p, view)
		// ids inside quotes never reach the pending action, so the
		// whole draft must compare equal
		assert.Equalf(t, a, b, "preview of %s not deterministic", p.Kind())
	}
}

func TestPreviewNeverMutatesState(t *testing.T) {
	e := testEngine()
	state := testState()
	before := state.Clone()

	e.Preview(state, domain.TradePayload{Side: domain.SideBuy, AssetID: "BTC", AmountIrr: 1000000}, testView())
	e.Preview(state, domain.RebalancePayload{Mode: domain.RebalanceHoldingsPlusCash}, testView())

	assert.Equal(t, before, state)
}

func TestAddFundsDraftConfirm(t *testing.T) {
	e := testEngine()
	view := testView()

	drafted := e.Draft(testState(), domain.AddFundsPayload{AmountIrr: 5000000}, view)
	require.NotNil(t, drafted.Pending)
	assert.True(t, drafted.Pending.Validation.OK)
	assert.Equal(t, domain.ActionAddFunds, drafted.Pending.Kind)

	committed, err := e.Confirm(drafted, view)
	require.NoError(t, err)
	assert.Equal(t, int64(25000000), committed.CashIrr)
	assert.Nil(t, committed.Pending)

	require.Len(t, committed.Ledger, 1)
	entry := committed.Ledger[0]
	assert.Equal(t, "ADD_FUNDS_COMMIT", entry.Type)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, view.AsOf, entry.Timestamp)
	assert.Equal(t, drafted.Pending.After, entry.Details.After)
}

// Confirm replays the preview, so with no intervening change the committed
// allocation must match the draft's after snapshot exactly.
func TestConfirmReplayEquivalence(t *testing.T) {
	e := testEngine()
	view := testView()

	drafted := e.Draft(testState(), domain.TradePayload{Side: domain.SideBuy, AssetID: "ETH", AmountIrr: 4000000}, view)
	committed, err := e.Confirm(drafted, view)
	require.NoError(t, err)

	after := testValuer().AllocationOf(committed.Holdings, view)
	assert.Equal(t, drafted.Pending.After, after)
}

func TestConfirmWithoutPending(t *testing.T) {
	e := testEngine()
	_, err := e.Confirm(testState(), testView())
	assert.Error(t, err)
}

func TestConfirmBlocksInvalidDraft(t *testing.T) {
	e := testEngine()
	view := testView()
	state := testState()

	// more than available cash
	drafted := e.Draft(state, domain.TradePayload{Side: domain.SideBuy, AssetID: "BTC", AmountIrr: 999000000}, view)
	require.NotNil(t, drafted.Pending)
	assert.False(t, drafted.Pending.Validation.OK)

	_, err := e.Confirm(drafted, view)
	assert.Error(t, err)
	// the invalid draft's after snapshot equals its before snapshot
	assert.Equal(t, drafted.Pending.Before, drafted.Pending.After)
}

func TestDraftImplicitlyDiscardsPrevious(t *testing.T) {
	e := testEngine()
	view := testView()

	first := e.Draft(testState(), domain.AddFundsPayload{AmountIrr: 1000000}, view)
	second := e.Draft(first, domain.TradePayload{Side: domain.SideBuy, AssetID: "SOL", AmountIrr: 2000000}, view)

	require.NotNil(t, second.Pending)
	assert.Equal(t, domain.ActionTrade, second.Pending.Kind)

	// the discarded deposit never happened
	committed, err := e.Confirm(second, view)
	require.NoError(t, err)
	assert.Equal(t, int64(18000000), committed.CashIrr)
}

func TestCancelClearsDraftOnly(t *testing.T) {
	e := testEngine()
	view := testView()
	state := testState()

	drafted := e.Draft(state, domain.AddFundsPayload{AmountIrr: 1000000}, view)
	cancelled := e.Cancel(drafted)

	assert.Nil(t, cancelled.Pending)
	assert.Equal(t, state.CashIrr, cancelled.CashIrr)
	assert.Equal(t, state.Holdings, cancelled.Holdings)
	assert.Empty(t, cancelled.Ledger)
}
