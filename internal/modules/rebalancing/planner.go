// Package rebalancing plans trades that move the portfolio toward its
// target layer allocation.
package rebalancing

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/blumarkets/hram/internal/domain"
	"github.com/blumarkets/hram/internal/modules/boundary"
)

// Config holds the planner's tunables.
type Config struct {
	// MinTradeIrr is the dust threshold: generated trades below it are
	// dropped and their drift is reported as residual instead.
	MinTradeIrr int64 `json:"min_trade_irr"`
}

// DefaultConfig returns the product planner tuning.
func DefaultConfig() Config {
	return Config{MinTradeIrr: 100000}
}

// WeightSource supplies intra-layer asset weights summing to 1 per layer.
type WeightSource interface {
	Weights(layer domain.Layer) (map[string]float64, error)
}

// Planner computes rebalance plans. It is a pure calculator: the same
// (holdings, cash, target, mode, view) always yields the same plan.
type Planner struct {
	cfg      Config
	valuer   domain.Valuer
	static   WeightSource
	adaptive WeightSource // used by SMART mode; may be nil
	log      zerolog.Logger
}

// NewPlanner creates a rebalance planner.
// adaptive may be nil, in which case SMART falls back to static weights.
func NewPlanner(cfg Config, valuer domain.Valuer, adaptive WeightSource, log zerolog.Logger) *Planner {
	return &Planner{
		cfg:      cfg,
		valuer:   valuer,
		static:   StaticWeights{Universe: valuer.Universe},
		adaptive: adaptive,
		log:      log.With().Str("service", "rebalancing").Logger(),
	}
}

// Plan builds the ordered trade list that moves holdings toward the target
// layer split.
//
// Frozen holdings count toward current allocation but are never sold; when
// they block a sell the shortfall is recorded and HasLockedCollateral set.
// In HOLDINGS_ONLY mode buys are capped at realized sells. In
// HOLDINGS_PLUS_CASH (and SMART) mode cash joins the buy budget and the
// target is computed over holdings plus cash, so a cash-only portfolio
// plans its initial allocation.
func (p *Planner) Plan(holdings []domain.Holding, cashIrr int64, targetPct map[domain.Layer]int, mode domain.RebalanceMode, view domain.MarketView) domain.RebalancePlan {
	layerIrr := p.valuer.LayerValuesIrr(holdings, view)
	unfrozenIrr := p.valuer.UnfrozenLayerValuesIrr(holdings, view)

	var holdingsTotal int64
	for _, layer := range domain.AllLayers() {
		holdingsTotal += layerIrr[layer]
	}

	budgetTotal := holdingsTotal
	if mode != domain.RebalanceHoldingsOnly {
		budgetTotal += cashIrr
	}

	targetIrr := apportionLayers(budgetTotal, targetPct)

	// Gap analysis. Positive gap = under-weight = buy side.
	gaps := make([]domain.LayerGap, 0, 3)
	sellWantIrr := make(map[domain.Layer]int64, 3)
	sellAmtIrr := make(map[domain.Layer]int64, 3)
	buyNeedIrr := make(map[domain.Layer]int64, 3)
	var totalSell, totalNeeds int64
	hasLocked := false

	for _, layer := range domain.AllLayers() {
		gap := targetIrr[layer] - layerIrr[layer]
		lg := domain.LayerGap{
			Layer:       layer,
			CurrentIrr:  layerIrr[layer],
			TargetPct:   float64(targetPct[layer]),
			GapIrr:      gap,
			UnfrozenIrr: unfrozenIrr[layer],
		}
		if holdingsTotal > 0 {
			lg.CurrentPct = float64(layerIrr[layer]) / float64(holdingsTotal) * 100
		}

		if gap < 0 {
			want := -gap
			avail := unfrozenIrr[layer]
			amt := want
			if amt > avail {
				amt = avail
				lg.ShortfallIrr = want - avail
				hasLocked = true
			}
			sellWantIrr[layer] = want
			sellAmtIrr[layer] = amt
			totalSell += amt
		} else if gap > 0 {
			buyNeedIrr[layer] = gap
			totalNeeds += gap
		}
		gaps = append(gaps, lg)
	}

	buyBudget := totalSell
	if mode != domain.RebalanceHoldingsOnly {
		buyBudget += cashIrr
	}
	if buyBudget > totalNeeds {
		buyBudget = totalNeeds
	}

	// When the budget cannot cover every under-weight layer, split it
	// across them in proportion to their needs.
	buyAmtIrr := buyNeedIrr
	if buyBudget < totalNeeds {
		shares := make([]share, 0, 3)
		for _, layer := range domain.AllLayers() {
			if buyNeedIrr[layer] > 0 {
				shares = append(shares, share{key: string(layer), weight: float64(buyNeedIrr[layer])})
			}
		}
		amounts := apportion(buyBudget, shares)
		buyAmtIrr = make(map[domain.Layer]int64, len(shares))
		for i, s := range shares {
			buyAmtIrr[domain.Layer(s.key)] = amounts[i]
		}
	}

	weights := p.weightSource(mode)

	// Sells first, then buys, both in canonical layer order.
	var trades []domain.Trade
	projected := make(map[domain.Layer]int64, 3)
	for _, layer := range domain.AllLayers() {
		projected[layer] = layerIrr[layer]
	}

	for _, layer := range domain.AllLayers() {
		for _, t := range p.sellTrades(layer, sellAmtIrr[layer], holdings, view) {
			trades = append(trades, t)
			projected[layer] -= t.AmountIrr
		}
	}
	for _, layer := range domain.AllLayers() {
		for _, t := range p.buyTrades(layer, buyAmtIrr[layer], weights, view) {
			trades = append(trades, t)
			projected[layer] += t.AmountIrr
		}
	}

	var planSell, planBuy int64
	for _, t := range trades {
		if t.Side == domain.SideSell {
			planSell += t.AmountIrr
		} else {
			planBuy += t.AmountIrr
		}
	}

	residual := boundary.MaxDeviationPp(domain.AllocationFromLayerIrr(projected), targetPct)

	plan := domain.RebalancePlan{
		Trades:              trades,
		GapAnalysis:         gaps,
		TotalBuyIrr:         planBuy,
		TotalSellIrr:        planSell,
		CanFullyRebalance:   !hasLocked,
		ResidualDriftPct:    residual,
		HasLockedCollateral: hasLocked,
	}

	p.log.Debug().
		Str("mode", string(mode)).
		Int("trades", len(trades)).
		Int64("total_buy_irr", planBuy).
		Int64("total_sell_irr", planSell).
		Float64("residual_drift_pct", residual).
		Msg("Built rebalance plan")

	return plan
}

func (p *Planner) weightSource(mode domain.RebalanceMode) WeightSource {
	if mode == domain.RebalanceSmart && p.adaptive != nil {
		return p.adaptive
	}
	return p.static
}

// sellTrades liquidates up to amountIrr from a layer's unfrozen holdings,
// largest position first so the trade count stays minimal.
func (p *Planner) sellTrades(layer domain.Layer, amountIrr int64, holdings []domain.Holding, view domain.MarketView) []domain.Trade {
	if amountIrr <= 0 {
		return nil
	}

	type valued struct {
		holding  domain.Holding
		valueIrr int64
		order    int
	}
	var candidates []valued
	for i, h := range holdings {
		if h.Frozen {
			continue
		}
		l, ok := p.valuer.Universe.LayerOf(h.AssetID)
		if !ok || l != layer {
			continue
		}
		v := p.valuer.HoldingValueIrr(h, view)
		if v <= 0 {
			continue
		}
		candidates = append(candidates, valued{holding: h, valueIrr: v, order: i})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].valueIrr != candidates[j].valueIrr {
			return candidates[i].valueIrr > candidates[j].valueIrr
		}
		return candidates[i].order < candidates[j].order
	})

	var trades []domain.Trade
	remaining := amountIrr
	for _, c := range candidates {
		if remaining <= 0 {
			break
		}
		amt := remaining
		if amt > c.valueIrr {
			amt = c.valueIrr
		}
		if amt < p.cfg.MinTradeIrr {
			continue
		}

		price := p.valuer.PriceIrr(c.holding.AssetID, view)
		if price <= 0 {
			continue
		}
		qty := float64(amt) / price
		if qty > c.holding.Quantity {
			qty = c.holding.Quantity
		}

		trades = append(trades, domain.Trade{
			Side:      domain.SideSell,
			AssetID:   c.holding.AssetID,
			Layer:     layer,
			AmountIrr: amt,
			Quantity:  qty,
		})
		remaining -= amt
	}
	return trades
}

// buyTrades distributes amountIrr across a layer's assets by weight, with
// largest-remainder reconciliation so the per-asset amounts sum exactly.
func (p *Planner) buyTrades(layer domain.Layer, amountIrr int64, weights WeightSource, view domain.MarketView) []domain.Trade {
	if amountIrr <= 0 {
		return nil
	}

	w, err := weights.Weights(layer)
	if err != nil {
		p.log.Warn().Err(err).Str("layer", string(layer)).Msg("Weight source failed, using static weights")
		w, _ = p.static.Weights(layer)
	}

	// Only priced assets can be bought; table order keeps the split stable.
	var shares []share
	for _, asset := range p.valuer.Universe.LayerAssets(layer) {
		if p.valuer.PriceIrr(asset.ID, view) <= 0 {
			continue
		}
		if weight := w[asset.ID]; weight > 0 {
			shares = append(shares, share{key: asset.ID, weight: weight})
		}
	}
	if len(shares) == 0 {
		return nil
	}

	amounts := apportion(amountIrr, shares)

	var trades []domain.Trade
	for i, s := range shares {
		amt := amounts[i]
		if amt < p.cfg.MinTradeIrr {
			continue
		}
		price := p.valuer.PriceIrr(s.key, view)
		trades = append(trades, domain.Trade{
			Side:      domain.SideBuy,
			AssetID:   s.key,
			Layer:     layer,
			AmountIrr: amt,
			Quantity:  float64(amt) / price,
		})
	}
	return trades
}

// StaticWeights serves the configured asset-table weights.
type StaticWeights struct {
	Universe domain.Universe
}

// Weights returns the configured weights of a layer, renormalized to 1.
func (s StaticWeights) Weights(layer domain.Layer) (map[string]float64, error) {
	assets := s.Universe.LayerAssets(layer)
	if len(assets) == 0 {
		return nil, fmt.Errorf("layer %s has no assets", layer)
	}

	var sum float64
	for _, a := range assets {
		sum += a.Weight
	}

	weights := make(map[string]float64, len(assets))
	for _, a := range assets {
		if sum > 0 {
			weights[a.ID] = a.Weight / sum
		} else {
			weights[a.ID] = 1 / float64(len(assets))
		}
	}
	return weights, nil
}

// share is one weighted claim on an integer amount being split.
type share struct {
	key    string
	weight float64
}

// apportion splits total across shares proportionally using the
// largest-remainder method, so the parts always sum to total exactly.
// Ties go to earlier shares, keeping the split deterministic.
func apportion(total int64, shares []share) []int64 {
	amounts := make([]int64, len(shares))
	if total <= 0 || len(shares) == 0 {
		return amounts
	}

	var sumW float64
	for _, s := range shares {
		sumW += s.weight
	}
	if sumW <= 0 {
		return amounts
	}

	type frac struct {
		index     int
		remainder float64
	}
	fracs := make([]frac, len(shares))

	var allocated int64
	for i, s := range shares {
		raw := float64(total) * s.weight / sumW
		base := int64(math.Floor(raw))
		amounts[i] = base
		allocated += base
		fracs[i] = frac{index: i, remainder: raw - float64(base)}
	}

	sort.SliceStable(fracs, func(i, j int) bool {
		return fracs[i].remainder > fracs[j].remainder
	})

	for i := int64(0); i < total-allocated; i++ {
		amounts[fracs[i%int64(len(fracs))].index]++
	}
	return amounts
}

// apportionLayers splits a total across the three layers by their integer
// target percentages.
func apportionLayers(total int64, targetPct map[domain.Layer]int) map[domain.Layer]int64 {
	shares := make([]share, 0, 3)
	for _, layer := range domain.AllLayers() {
		shares = append(shares, share{key: string(layer), weight: float64(targetPct[layer])})
	}
	amounts := apportion(total, shares)

	out := make(map[domain.Layer]int64, 3)
	for i, s := range shares {
		out[domain.Layer(s.key)] = amounts[i]
	}
	return out
}
