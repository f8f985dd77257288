package domain

import (
	"math"
	"time"
)

// Valuer converts holdings to IRR values against a market view.
// It is a pure value type: the same (holding, view) always prices identically.
type Valuer struct {
	Universe Universe
	// FixedIncomeAnnualRate is the simple annual accrual rate of the
	// fixed-income instrument (the local risk-free rate).
	FixedIncomeAnnualRate float64
}

// HoldingValueIrr returns the current IRR value of a holding.
// Unknown assets value to zero rather than failing: valuation is total.
func (v Valuer) HoldingValueIrr(h Holding, view MarketView) int64 {
	asset, ok := v.Universe.Asset(h.AssetID)
	if !ok || h.Quantity <= 0 {
		return 0
	}

	if asset.Class == ClassFixedIncome {
		return v.fixedIncomeValueIrr(h, view.AsOf)
	}

	price, ok := view.USDPrice[h.AssetID]
	if !ok || price <= 0 {
		return 0
	}
	return int64(math.Round(h.Quantity * price * view.IrrPerUSD))
}

// fixedIncomeValueIrr prices the fixed-income asset at par plus simple
// interest accrued by elapsed days since purchase.
func (v Valuer) fixedIncomeValueIrr(h Holding, asOf time.Time) int64 {
	principal := h.Quantity // 1 unit == 1 IRR at par
	if h.PurchasedAt == nil {
		return int64(math.Round(principal))
	}
	days := asOf.Sub(*h.PurchasedAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	accrued := principal * v.FixedIncomeAnnualRate * days / 365
	return int64(math.Round(principal + accrued))
}

// PriceIrr returns the IRR price of one unit of an asset, or 0 if unpriced.
func (v Valuer) PriceIrr(assetID string, view MarketView) float64 {
	asset, ok := v.Universe.Asset(assetID)
	if !ok {
		return 0
	}
	if asset.Class == ClassFixedIncome {
		return 1 // par; accrual applies to held units, not new purchases
	}
	price, ok := view.USDPrice[assetID]
	if !ok || price <= 0 {
		return 0
	}
	return price * view.IrrPerUSD
}

// LayerValuesIrr sums holding values per layer. Frozen holdings count toward
// current allocation even though they cannot be traded.
func (v Valuer) LayerValuesIrr(holdings []Holding, view MarketView) map[Layer]int64 {
	values := map[Layer]int64{LayerFoundation: 0, LayerGrowth: 0, LayerUpside: 0}
	for _, h := range holdings {
		layer, ok := v.Universe.LayerOf(h.AssetID)
		if !ok {
			continue
		}
		values[layer] += v.HoldingValueIrr(h, view)
	}
	return values
}

// UnfrozenLayerValuesIrr sums only the sellable (unfrozen) holding values per layer.
func (v Valuer) UnfrozenLayerValuesIrr(holdings []Holding, view MarketView) map[Layer]int64 {
	values := map[Layer]int64{LayerFoundation: 0, LayerGrowth: 0, LayerUpside: 0}
	for _, h := range holdings {
		if h.Frozen {
			continue
		}
		layer, ok := v.Universe.LayerOf(h.AssetID)
		if !ok {
			continue
		}
		values[layer] += v.HoldingValueIrr(h, view)
	}
	return values
}

// AllocationOf builds the layer allocation snapshot for a set of holdings.
func (v Valuer) AllocationOf(holdings []Holding, view MarketView) Allocation {
	layerIrr := v.LayerValuesIrr(holdings, view)

	var total int64
	for _, layer := range AllLayers() {
		total += layerIrr[layer]
	}

	layerPct := make(map[Layer]float64, 3)
	for _, layer := range AllLayers() {
		if total > 0 {
			layerPct[layer] = float64(layerIrr[layer]) / float64(total) * 100
		} else {
			layerPct[layer] = 0
		}
	}

	return Allocation{TotalIrr: total, LayerIrr: layerIrr, LayerPct: layerPct}
}

// AllocationFromLayerIrr builds an allocation snapshot from per-layer values,
// for projected states where no holdings list exists yet.
func AllocationFromLayerIrr(layerIrr map[Layer]int64) Allocation {
	var total int64
	for _, layer := range AllLayers() {
		total += layerIrr[layer]
	}

	values := make(map[Layer]int64, 3)
	layerPct := make(map[Layer]float64, 3)
	for _, layer := range AllLayers() {
		values[layer] = layerIrr[layer]
		if total > 0 {
			layerPct[layer] = float64(layerIrr[layer]) / float64(total) * 100
		} else {
			layerPct[layer] = 0
		}
	}

	return Allocation{TotalIrr: total, LayerIrr: values, LayerPct: layerPct}
}

// PortfolioValueIrr is total holdings value plus cash.
func (v Valuer) PortfolioValueIrr(state PortfolioState, view MarketView) int64 {
	alloc := v.AllocationOf(state.Holdings, view)
	return alloc.TotalIrr + state.CashIrr
}
