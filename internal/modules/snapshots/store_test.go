package snapshots

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blumarkets/hram/internal/database"
	"github.com/blumarkets/hram/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return NewStore(db, zerolog.Nop())
}

func testView(asOf time.Time) domain.MarketView {
	return domain.MarketView{
		AsOf:      asOf,
		USDPrice:  map[string]float64{"USDT": 1, "BTC": 50000},
		IrrPerUSD: 1000,
	}
}

func TestCaptureFlattensState(t *testing.T) {
	valuer := domain.Valuer{Universe: domain.DefaultUniverse(), FixedIncomeAnnualRate: 0.25}
	state := domain.PortfolioState{
		CashIrr:  2_000_000,
		Holdings: []domain.Holding{{AssetID: "BTC", Quantity: 0.1}},
		TargetLayerPct: map[domain.Layer]int{
			domain.LayerFoundation: 50,
			domain.LayerGrowth:     35,
			domain.LayerUpside:     15,
		},
	}
	asOf := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

	snap := Capture(state, testView(asOf), valuer)
	assert.Equal(t, asOf, snap.TakenAt)
	assert.Equal(t, int64(2_000_000), snap.CashIrr)
	// 0.1 BTC at 50000 USD and 1000 IRR/USD.
	assert.Equal(t, int64(5_000_000), snap.LayerIrr[domain.LayerGrowth])
	assert.Equal(t, int64(7_000_000), snap.TotalIrr)
}

func TestSaveGetRoundtrip(t *testing.T) {
	store := newTestStore(t)
	asOf := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

	snap := Snapshot{
		TakenAt:  asOf,
		CashIrr:  1_000_000,
		Holdings: []domain.Holding{{AssetID: "USDT", Quantity: 500, Frozen: true}},
		LayerIrr: map[domain.Layer]int64{domain.LayerFoundation: 500_000},
	}
	id, err := store.Save(snap)
	require.NoError(t, err)

	got, err := store.Get(id)
	require.NoError(t, err)
	assert.True(t, snap.TakenAt.Equal(got.TakenAt))
	assert.Equal(t, snap.CashIrr, got.CashIrr)
	assert.Equal(t, snap.Holdings, got.Holdings)
	assert.Equal(t, snap.LayerIrr, got.LayerIrr)
}

func TestLatestAndList(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := store.Save(Snapshot{TakenAt: base.AddDate(0, 0, i), CashIrr: int64(i)})
		require.NoError(t, err)
	}

	latest, found, err := store.Latest()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(2), latest.CashIrr)

	metas, err := store.List(2)
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.True(t, metas[0].TakenAt.After(metas[1].TakenAt))
}

func TestLatestEmpty(t *testing.T) {
	store := newTestStore(t)

	_, found, err := store.Latest()
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPruneKeepsNewest(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := store.Save(Snapshot{TakenAt: base.AddDate(0, 0, i), CashIrr: int64(i)})
		require.NoError(t, err)
	}

	deleted, err := store.Prune(2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	metas, err := store.List(10)
	require.NoError(t, err)
	require.Len(t, metas, 2)

	latest, _, err := store.Latest()
	require.NoError(t, err)
	assert.Equal(t, int64(4), latest.CashIrr)
}

func TestMarketViewCache(t *testing.T) {
	store := newTestStore(t)

	_, found, err := store.LoadView()
	require.NoError(t, err)
	assert.False(t, found)

	view := testView(time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC))
	view.HighVolatility = true
	require.NoError(t, store.SaveView(view))

	got, found, err := store.LoadView()
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, got.AsOf.Equal(view.AsOf))
	assert.True(t, got.HighVolatility)
	assert.InDelta(t, 1000, got.IrrPerUSD, 1e-9)
	assert.InDelta(t, 50000, got.USDPrice["BTC"], 1e-9)

	// Single-row cache: a second save overwrites.
	view.IrrPerUSD = 1100
	require.NoError(t, store.SaveView(view))
	got, _, err = store.LoadView()
	require.NoError(t, err)
	assert.InDelta(t, 1100, got.IrrPerUSD, 1e-9)
}
