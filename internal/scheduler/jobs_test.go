package scheduler

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blumarkets/hram/internal/database"
	"github.com/blumarkets/hram/internal/domain"
	"github.com/blumarkets/hram/internal/modules/engine"
	"github.com/blumarkets/hram/internal/modules/ledger"
	"github.com/blumarkets/hram/internal/modules/portfolio"
	"github.com/blumarkets/hram/internal/modules/protection"
	"github.com/blumarkets/hram/internal/modules/rebalancing"
	"github.com/blumarkets/hram/internal/modules/snapshots"
)

type fixedPrices struct {
	view domain.MarketView
}

func (f *fixedPrices) View() (domain.MarketView, error) { return f.view, nil }

func newDB(t *testing.T, dir, name string, profile database.DatabaseProfile) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    filepath.Join(dir, name+".db"),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestService(t *testing.T, prices domain.PriceSource) (*portfolio.Service, domain.Valuer) {
	t.Helper()
	dir := t.TempDir()

	valuer := domain.Valuer{Universe: domain.DefaultUniverse(), FixedIncomeAnnualRate: 0.25}
	planner := rebalancing.NewPlanner(rebalancing.DefaultConfig(), valuer, nil, zerolog.Nop())
	quoter := protection.NewEstimator(protection.DefaultConfig(), valuer)
	eng := engine.New(engine.DefaultConfig(), valuer, planner, quoter, zerolog.Nop())

	svc, err := portfolio.NewService(
		eng,
		portfolio.NewRepository(newDB(t, dir, "portfolio", database.ProfileStandard), zerolog.Nop()),
		ledger.NewRepository(newDB(t, dir, "ledger", database.ProfileLedger), zerolog.Nop()),
		prices,
		valuer,
		zerolog.Nop(),
	)
	require.NoError(t, err)
	return svc, valuer
}

func TestProtectionExpiryJobNoProtections(t *testing.T) {
	prices := &fixedPrices{view: domain.MarketView{
		AsOf:      time.Now(),
		USDPrice:  map[string]float64{"USDT": 1},
		IrrPerUSD: 1000,
	}}
	svc, _ := newTestService(t, prices)

	job := NewProtectionExpiryJob(svc, zerolog.Nop())
	assert.Equal(t, "protection_expiry", job.Name())
	require.NoError(t, job.Run())
}

func TestSnapshotJobCapturesAndPrunes(t *testing.T) {
	prices := &fixedPrices{view: domain.MarketView{
		AsOf:      time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC),
		USDPrice:  map[string]float64{"USDT": 1, "BTC": 50000},
		IrrPerUSD: 1000,
	}}
	svc, valuer := newTestService(t, prices)
	store := snapshots.NewStore(newDB(t, t.TempDir(), "cache", database.ProfileCache), zerolog.Nop())

	job := NewSnapshotJob(svc, store, prices, valuer, 2, zerolog.Nop())
	require.NoError(t, job.Run())
	require.NoError(t, job.Run())
	require.NoError(t, job.Run())

	metas, err := store.List(10)
	require.NoError(t, err)
	assert.Len(t, metas, 2)
}

func TestSchedulerRunNow(t *testing.T) {
	prices := &fixedPrices{view: domain.MarketView{
		AsOf:      time.Now(),
		USDPrice:  map[string]float64{"USDT": 1},
		IrrPerUSD: 1000,
	}}
	svc, _ := newTestService(t, prices)

	s := New(zerolog.Nop())
	require.NoError(t, s.RunNow(NewProtectionExpiryJob(svc, zerolog.Nop())))
}

func TestSchedulerAddJobValidatesSchedule(t *testing.T) {
	prices := &fixedPrices{view: domain.MarketView{
		AsOf:      time.Now(),
		USDPrice:  map[string]float64{"USDT": 1},
		IrrPerUSD: 1000,
	}}
	svc, _ := newTestService(t, prices)
	job := NewProtectionExpiryJob(svc, zerolog.Nop())

	s := New(zerolog.Nop())
	require.NoError(t, s.AddJob("0 */5 * * * *", job))
	require.Error(t, s.AddJob("not a schedule", job))
}
