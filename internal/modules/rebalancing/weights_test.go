package rebalancing

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blumarkets/hram/internal/domain"
)

// fakeHistory serves canned closes per asset.
type fakeHistory struct {
	closes map[string][]float64
}

func (f fakeHistory) GetCloses(assetID string, limit int) ([]float64, error) {
	c := f.closes[assetID]
	if len(c) > limit {
		c = c[len(c)-limit:]
	}
	return c, nil
}

// trendingSeries builds n days of prices with a constant daily growth rate.
func trendingSeries(start, dailyGrowth float64, n int) []float64 {
	prices := make([]float64, n)
	p := start
	for i := range prices {
		prices[i] = p
		p *= 1 + dailyGrowth
	}
	return prices
}

func adaptive(h PriceHistory) *AdaptiveWeights {
	return NewAdaptiveWeights(DefaultWeightConfig(), domain.DefaultUniverse(), h, zerolog.Nop())
}

func TestAdaptiveWeightsSingleAssetLayer(t *testing.T) {
	w, err := adaptive(fakeHistory{}).Weights(domain.LayerUpside)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"SOL": 1}, w)
}

func TestAdaptiveWeightsNoHistoryFallsBackToStatic(t *testing.T) {
	w, err := adaptive(fakeHistory{}).Weights(domain.LayerGrowth)
	require.NoError(t, err)

	assert.InDelta(t, 0.60, w["BTC"], 1e-9)
	assert.InDelta(t, 0.40, w["ETH"], 1e-9)
}

func TestAdaptiveWeightsSumToOne(t *testing.T) {
	history := fakeHistory{closes: map[string][]float64{
		"BTC": trendingSeries(50000, 0.004, 90),
		"ETH": trendingSeries(2500, -0.002, 90),
	}}

	w, err := adaptive(history).Weights(domain.LayerGrowth)
	require.NoError(t, err)

	var sum float64
	for _, v := range w {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestAdaptiveWeightsFavorMomentum(t *testing.T) {
	// identical volatility profiles shifted in sign: BTC trends up,
	// ETH trends down, so the momentum factor should widen BTC's lead.
	history := fakeHistory{closes: map[string][]float64{
		"BTC": trendingSeries(50000, 0.003, 90),
		"ETH": trendingSeries(2500, -0.003, 90),
	}}

	w, err := adaptive(history).Weights(domain.LayerGrowth)
	require.NoError(t, err)

	assert.Greater(t, w["BTC"], w["ETH"])
	assert.Greater(t, w["BTC"], 0.60)
}

func TestAdaptiveWeightsRespectClampBounds(t *testing.T) {
	universe := domain.NewUniverse([]domain.Asset{
		{ID: "A1", Class: domain.ClassCrypto, Layer: domain.LayerGrowth, Weight: 0.25, Liquidity: 1},
		{ID: "A2", Class: domain.ClassCrypto, Layer: domain.LayerGrowth, Weight: 0.25, Liquidity: 1},
		{ID: "A3", Class: domain.ClassCrypto, Layer: domain.LayerGrowth, Weight: 0.25, Liquidity: 1},
		{ID: "A4", Class: domain.ClassCrypto, Layer: domain.LayerGrowth, Weight: 0.25, Liquidity: 1},
	})
	// one asset massively outperforming the rest
	history := fakeHistory{closes: map[string][]float64{
		"A1": trendingSeries(100, 0.01, 90),
		"A2": trendingSeries(100, 0.0001, 90),
		"A3": trendingSeries(100, 0.0001, 90),
		"A4": trendingSeries(100, 0.0001, 90),
	}}

	aw := NewAdaptiveWeights(DefaultWeightConfig(), universe, history, zerolog.Nop())
	w, err := aw.Weights(domain.LayerGrowth)
	require.NoError(t, err)

	cfg := DefaultWeightConfig()
	var sum float64
	for id, v := range w {
		assert.GreaterOrEqualf(t, v, cfg.MinWeight-1e-9, "weight of %s below floor", id)
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	// the winner is held near the cap rather than running away
	assert.Less(t, w["A1"], 0.55)
}

func TestAdaptiveWeightsDeterminism(t *testing.T) {
	history := fakeHistory{closes: map[string][]float64{
		"BTC": trendingSeries(50000, 0.002, 90),
		"ETH": trendingSeries(2500, 0.001, 90),
	}}

	aw := adaptive(history)
	a, err := aw.Weights(domain.LayerGrowth)
	require.NoError(t, err)
	b, err := aw.Weights(domain.LayerGrowth)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNormalizeClampedHandlesZeroScores(t *testing.T) {
	assets := domain.DefaultUniverse().LayerAssets(domain.LayerGrowth)
	w := normalizeClamped(map[string]float64{}, assets, 0.05, 0.40, 3)

	for _, a := range assets {
		assert.False(t, math.IsNaN(w[a.ID]))
		assert.InDelta(t, 0.5, w[a.ID], 1e-9)
	}
}
