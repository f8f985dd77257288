package formulas

import (
	"github.com/markcheno/go-talib"
)

// SMA calculates the simple moving average over the given period and
// returns the latest value, or nil if there is insufficient data.
func SMA(closes []float64, period int) *float64 {
	if period <= 0 || len(closes) < period {
		return nil
	}

	sma := talib.Sma(closes, period)
	if len(sma) > 0 && !isNaN(sma[len(sma)-1]) {
		result := sma[len(sma)-1]
		return &result
	}
	return nil
}

// MomentumScore measures trend strength as the ratio of the current price
// to its simple moving average. A value above 1 means the asset trades
// above trend. Returns 1 (neutral) when there is not enough history.
func MomentumScore(closes []float64, period int) float64 {
	if len(closes) == 0 {
		return 1
	}

	sma := SMA(closes, period)
	if sma == nil || *sma == 0 {
		return 1
	}
	return closes[len(closes)-1] / *sma
}
