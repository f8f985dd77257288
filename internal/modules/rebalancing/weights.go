package rebalancing

import (
	"github.com/rs/zerolog"

	"github.com/blumarkets/hram/internal/domain"
	"github.com/blumarkets/hram/pkg/formulas"
)

// PriceHistory supplies daily closes for the adaptive weight factors.
// The historical repository implements it; tests substitute a fixture.
type PriceHistory interface {
	GetCloses(assetID string, limit int) ([]float64, error)
}

// WeightConfig holds the adaptive weight engine's tunables.
type WeightConfig struct {
	VolatilityWindow  int     `json:"volatility_window"` // days of returns for risk parity
	MomentumWindow    int     `json:"momentum_window"`   // SMA period for trend strength
	CorrelationWindow int     `json:"correlation_window"`
	MinWeight         float64 `json:"min_weight"`
	MaxWeight         float64 `json:"max_weight"`
	Passes            int     `json:"passes"` // clamp-renormalize iterations
	MinHistoryDays    int     `json:"min_history_days"`
}

// DefaultWeightConfig returns the product factor tuning.
func DefaultWeightConfig() WeightConfig {
	return WeightConfig{
		VolatilityWindow:  30,
		MomentumWindow:    50,
		CorrelationWindow: 60,
		MinWeight:         0.05,
		MaxWeight:         0.40,
		Passes:            3,
		MinHistoryDays:    30,
	}
}

// AdaptiveWeights tilts the configured intra-layer weights by four factors:
// risk parity (inverse volatility), momentum (price over trend), correlation
// (reward for diversifying the layer) and liquidity. Assets without enough
// history keep a neutral tilt, so sparse data degrades toward the static
// weights instead of distorting the layer.
type AdaptiveWeights struct {
	cfg      WeightConfig
	universe domain.Universe
	history  PriceHistory
	log      zerolog.Logger
}

// NewAdaptiveWeights creates the adaptive weight engine.
func NewAdaptiveWeights(cfg WeightConfig, universe domain.Universe, history PriceHistory, log zerolog.Logger) *AdaptiveWeights {
	return &AdaptiveWeights{
		cfg:      cfg,
		universe: universe,
		history:  history,
		log:      log.With().Str("component", "adaptive_weights").Logger(),
	}
}

// Weights computes the adaptive weights of one layer. The result always
// sums to 1 and respects the clamp bounds as far as the layer's asset
// count allows.
func (aw *AdaptiveWeights) Weights(layer domain.Layer) (map[string]float64, error) {
	assets := aw.universe.LayerAssets(layer)
	static, err := StaticWeights{Universe: aw.universe}.Weights(layer)
	if err != nil {
		return nil, err
	}
	if len(assets) == 1 {
		return map[string]float64{assets[0].ID: 1}, nil
	}

	window := aw.cfg.CorrelationWindow
	if aw.cfg.VolatilityWindow > window {
		window = aw.cfg.VolatilityWindow
	}
	if aw.cfg.MomentumWindow > window {
		window = aw.cfg.MomentumWindow
	}

	closes := make(map[string][]float64, len(assets))
	returns := make(map[string][]float64, len(assets))
	for _, a := range assets {
		if a.Class == domain.ClassFixedIncome {
			continue // par instrument, no market history
		}
		c, err := aw.history.GetCloses(a.ID, window+1)
		if err != nil {
			aw.log.Warn().Err(err).Str("asset", a.ID).Msg("History unavailable, using neutral tilt")
			continue
		}
		closes[a.ID] = c
		returns[a.ID] = formulas.CalculateReturns(c)
	}

	scores := make(map[string]float64, len(assets))
	for _, a := range assets {
		scores[a.ID] = static[a.ID] * aw.tilt(a, closes[a.ID], returns[a.ID], assets, returns)
	}

	// The clamp must admit the static weights themselves, otherwise a
	// neutral tilt could not reproduce them.
	lo, hi := aw.cfg.MinWeight, aw.cfg.MaxWeight
	for _, a := range assets {
		if static[a.ID] > hi {
			hi = static[a.ID]
		}
		if static[a.ID] < lo {
			lo = static[a.ID]
		}
	}

	return normalizeClamped(scores, assets, lo, hi, aw.cfg.Passes), nil
}

// tilt multiplies the four factor scores for one asset. It returns 1
// (neutral) when history is too short to judge.
func (aw *AdaptiveWeights) tilt(asset domain.Asset, closes, rets []float64, peers []domain.Asset, peerReturns map[string][]float64) float64 {
	if len(closes) < aw.cfg.MinHistoryDays {
		return 1
	}

	riskParity := 1.0
	if vol := formulas.AnnualizedVolatility(tail(rets, aw.cfg.VolatilityWindow)); vol > 0 {
		riskParity = clamp(1/vol, 0.25, 4)
	}

	momentum := clamp(formulas.MomentumScore(closes, aw.cfg.MomentumWindow), 0.5, 2)

	correlation := 1.0
	if avg, ok := aw.avgPeerCorrelation(asset.ID, peers, peerReturns); ok {
		// low correlation with the rest of the layer earns a premium
		correlation = clamp(1.5-avg, 0.5, 1.5)
	}

	liquidity := asset.Liquidity
	if liquidity <= 0 {
		liquidity = 1
	}

	return riskParity * momentum * correlation * liquidity
}

func (aw *AdaptiveWeights) avgPeerCorrelation(assetID string, peers []domain.Asset, peerReturns map[string][]float64) (float64, bool) {
	own := tail(peerReturns[assetID], aw.cfg.CorrelationWindow)
	if len(own) < 2 {
		return 0, false
	}

	var sum float64
	var n int
	for _, p := range peers {
		if p.ID == assetID {
			continue
		}
		other := tail(peerReturns[p.ID], aw.cfg.CorrelationWindow)
		if len(other) != len(own) {
			if len(other) < len(own) {
				if len(other) < 2 {
					continue
				}
				own = own[len(own)-len(other):]
			} else {
				other = other[len(other)-len(own):]
			}
		}
		sum += formulas.Correlation(own, other)
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// normalizeClamped normalizes scores to weights summing to 1, then applies
// the clamp bounds with iterative renormalization. Bounds that are
// infeasible for the layer's asset count are relaxed rather than violated.
func normalizeClamped(scores map[string]float64, assets []domain.Asset, lo, hi float64, passes int) map[string]float64 {
	n := float64(len(assets))
	if hi < 1/n {
		hi = 1 / n
	}
	if lo > 1/n {
		lo = 1 / n
	}

	weights := make(map[string]float64, len(assets))
	var sum float64
	for _, a := range assets {
		if scores[a.ID] > 0 {
			sum += scores[a.ID]
		}
	}
	for _, a := range assets {
		if sum > 0 && scores[a.ID] > 0 {
			weights[a.ID] = scores[a.ID] / sum
		} else {
			weights[a.ID] = 1 / n
		}
	}

	for pass := 0; pass < passes; pass++ {
		sum = 0
		for _, a := range assets {
			weights[a.ID] = clamp(weights[a.ID], lo, hi)
			sum += weights[a.ID]
		}
		if sum > 0 {
			for _, a := range assets {
				weights[a.ID] /= sum
			}
		}
	}
	return weights
}

func tail(s []float64, n int) []float64 {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
