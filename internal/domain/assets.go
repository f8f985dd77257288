package domain

// AssetClass represents the kind of instrument behind an asset id
type AssetClass string

const (
	ClassStablecoin    AssetClass = "STABLECOIN"
	ClassPreciousMetal AssetClass = "PRECIOUS_METAL"
	ClassCrypto        AssetClass = "CRYPTO"
	ClassFixedIncome   AssetClass = "FIXED_INCOME"
)

// FixedIncomeAssetID is the IRR fixed-income instrument. It is priced at par
// (1 IRR per unit) and accrues simple interest from Holding.PurchasedAt.
const FixedIncomeAssetID = "FIXB"

// Asset is one row of the static asset table. Layer membership and the
// intra-layer weight are product configuration, not user state.
type Asset struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Class  AssetClass `json:"class"`
	Layer  Layer      `json:"layer"`
	Weight float64    `json:"weight"` // weight within its layer, sums to 1 per layer
	// Liquidity is the liquidity factor used by the adaptive weight engine.
	// Majors carry a modest premium over alts.
	Liquidity float64 `json:"liquidity"`
}

// Universe is the static asset table keyed by asset id, with a stable order.
type Universe struct {
	byID  map[string]Asset
	order []string
}

// NewUniverse builds a universe from an ordered asset list.
func NewUniverse(assets []Asset) Universe {
	u := Universe{byID: make(map[string]Asset, len(assets))}
	for _, a := range assets {
		if _, dup := u.byID[a.ID]; dup {
			continue
		}
		u.byID[a.ID] = a
		u.order = append(u.order, a.ID)
	}
	return u
}

// DefaultUniverse returns the product asset table: stablecoin, gold and
// silver tokens plus the fixed-income instrument in Foundation, the two
// majors in Growth, and the high-beta asset in Upside.
func DefaultUniverse() Universe {
	return NewUniverse([]Asset{
		{ID: "USDT", Name: "Tether USD", Class: ClassStablecoin, Layer: LayerFoundation, Weight: 0.35, Liquidity: 1.1},
		{ID: "PAXG", Name: "Pax Gold", Class: ClassPreciousMetal, Layer: LayerFoundation, Weight: 0.25, Liquidity: 1.0},
		{ID: "XAG", Name: "Tokenized Silver", Class: ClassPreciousMetal, Layer: LayerFoundation, Weight: 0.15, Liquidity: 1.0},
		{ID: FixedIncomeAssetID, Name: "IRR Fixed Income", Class: ClassFixedIncome, Layer: LayerFoundation, Weight: 0.25, Liquidity: 1.0},
		{ID: "BTC", Name: "Bitcoin", Class: ClassCrypto, Layer: LayerGrowth, Weight: 0.60, Liquidity: 1.1},
		{ID: "ETH", Name: "Ethereum", Class: ClassCrypto, Layer: LayerGrowth, Weight: 0.40, Liquidity: 1.1},
		{ID: "SOL", Name: "Solana", Class: ClassCrypto, Layer: LayerUpside, Weight: 1.00, Liquidity: 1.0},
	})
}

// Asset looks up an asset by id.
func (u Universe) Asset(id string) (Asset, bool) {
	a, ok := u.byID[id]
	return a, ok
}

// IDs returns all asset ids in table order.
func (u Universe) IDs() []string {
	ids := make([]string, len(u.order))
	copy(ids, u.order)
	return ids
}

// LayerAssets returns the assets of one layer in table order.
func (u Universe) LayerAssets(layer Layer) []Asset {
	var assets []Asset
	for _, id := range u.order {
		if a := u.byID[id]; a.Layer == layer {
			assets = append(assets, a)
		}
	}
	return assets
}

// LayerOf returns the layer an asset id belongs to.
func (u Universe) LayerOf(id string) (Layer, bool) {
	a, ok := u.byID[id]
	if !ok {
		return "", false
	}
	return a.Layer, true
}

// EmptyHoldings returns one zero-quantity holding per known asset,
// the canonical shape of a fresh portfolio.
func (u Universe) EmptyHoldings() []Holding {
	holdings := make([]Holding, 0, len(u.order))
	for _, id := range u.order {
		holdings = append(holdings, Holding{AssetID: id})
	}
	return holdings
}
