// Package protection prices and manages downside protections.
//
// The production system delegates pricing to an external Black-Scholes
// service; this package only defines the quote contract and the simplified
// proportional estimator used as the local fallback.
package protection

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/blumarkets/hram/internal/domain"
)

// Config holds the proportional premium rates
type Config struct {
	// MonthlyRateByLayer is the premium rate per month of coverage,
	// by the covered asset's layer.
	MonthlyRateByLayer map[domain.Layer]float64 `json:"monthly_rate_by_layer"`
	// QuoteTTL is how long an issued quote stays valid.
	QuoteTTL time.Duration `json:"quote_ttl"`
}

// DefaultConfig returns the product default rates.
func DefaultConfig() Config {
	return Config{
		MonthlyRateByLayer: map[domain.Layer]float64{
			domain.LayerFoundation: 0.005,
			domain.LayerGrowth:     0.020,
			domain.LayerUpside:     0.035,
		},
		QuoteTTL: 15 * time.Minute,
	}
}

// Quote is a priced protection offer
type Quote struct {
	QuoteID     string    `json:"quote_id"`
	PremiumIrr  int64     `json:"premium_irr"`
	NotionalIrr int64     `json:"notional_irr"`
	Expiry      time.Time `json:"expiry"`
}

// Quoter is the narrow pricing contract. The authoritative Black-Scholes
// collaborator implements it in production; Estimator is the local fallback.
// Substituting one for the other must not touch the rest of the pipeline.
type Quoter interface {
	GetQuote(holding domain.Holding, coveragePct float64, durationDays int, view domain.MarketView) (Quote, error)
}

// EstimatePremiumIrr is the simplified proportional premium:
// notional × monthlyRate(layer) × months, months = days/30.
func EstimatePremiumIrr(notionalIrr int64, monthlyRate float64, durationDays int) int64 {
	months := float64(durationDays) / 30
	return int64(math.Round(float64(notionalIrr) * monthlyRate * months))
}

// Estimator is the local proportional premium quoter.
type Estimator struct {
	cfg    Config
	valuer domain.Valuer
}

// NewEstimator creates the local premium estimator.
func NewEstimator(cfg Config, valuer domain.Valuer) *Estimator {
	return &Estimator{cfg: cfg, valuer: valuer}
}

// GetQuote prices coverage on a holding. The notional is the covered
// fraction of the holding's current value under the given market view.
func (e *Estimator) GetQuote(holding domain.Holding, coveragePct float64, durationDays int, view domain.MarketView) (Quote, error) {
	asset, ok := e.valuer.Universe.Asset(holding.AssetID)
	if !ok {
		return Quote{}, fmt.Errorf("unknown asset %q", holding.AssetID)
	}
	rate, ok := e.cfg.MonthlyRateByLayer[asset.Layer]
	if !ok {
		return Quote{}, fmt.Errorf("no premium rate configured for layer %s", asset.Layer)
	}
	if coveragePct <= 0 || coveragePct > 1 {
		return Quote{}, fmt.Errorf("coverage must be in (0, 1], got %v", coveragePct)
	}
	if durationDays <= 0 {
		return Quote{}, fmt.Errorf("duration must be positive, got %d days", durationDays)
	}

	value := e.valuer.HoldingValueIrr(holding, view)
	if value <= 0 {
		return Quote{}, fmt.Errorf("holding %s has no value to cover", holding.AssetID)
	}

	notional := int64(math.Round(float64(value) * coveragePct))
	return Quote{
		QuoteID:     uuid.NewString(),
		PremiumIrr:  EstimatePremiumIrr(notional, rate, durationDays),
		NotionalIrr: notional,
		Expiry:      view.AsOf.Add(e.cfg.QuoteTTL),
	}, nil
}
