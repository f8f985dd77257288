// Package boundary classifies allocation drift into risk boundaries.
package boundary

import (
	"math"

	"github.com/blumarkets/hram/internal/domain"
)

// Config holds the ascending drift thresholds, in percentage points.
// These are product-tuned and injected, never hard-coded at call sites.
type Config struct {
	SafeMaxPp       float64 `json:"safe_max_pp"`       // below: SAFE
	DriftMaxPp      float64 `json:"drift_max_pp"`      // below: DRIFT
	StructuralMaxPp float64 `json:"structural_max_pp"` // below: STRUCTURAL, above: STRESS
}

// DefaultConfig mirrors the product's rebalance trigger tuning:
// 5 pp normal threshold, 10 pp emergency threshold.
func DefaultConfig() Config {
	return Config{SafeMaxPp: 5, DriftMaxPp: 10, StructuralMaxPp: 20}
}

// Classifier maps allocation drift to a boundary. It is pure and total:
// it never fails, only returns the most severe applicable category.
type Classifier struct {
	cfg Config
}

// New creates a classifier with the given thresholds.
func New(cfg Config) Classifier {
	return Classifier{cfg: cfg}
}

// MaxDeviationPp returns the maximum absolute percentage-point deviation of
// an allocation from the integer layer targets.
func MaxDeviationPp(alloc domain.Allocation, target map[domain.Layer]int) float64 {
	var maxDev float64
	for _, layer := range domain.AllLayers() {
		dev := math.Abs(alloc.LayerPct[layer] - float64(target[layer]))
		if dev > maxDev {
			maxDev = dev
		}
	}
	return maxDev
}

// Classify maps the after-allocation's drift from target to a boundary.
// The before-allocation is accepted for symmetry with previews but the
// severity is judged on where the action lands, not where it started.
// A set stress flag short-circuits to STRESS.
func (c Classifier) Classify(before, after domain.Allocation, target map[domain.Layer]int, stress bool) domain.Boundary {
	if stress {
		return domain.BoundaryStress
	}

	dev := MaxDeviationPp(after, target)
	switch {
	case dev < c.cfg.SafeMaxPp:
		return domain.BoundarySafe
	case dev < c.cfg.DriftMaxPp:
		return domain.BoundaryDrift
	case dev < c.cfg.StructuralMaxPp:
		return domain.BoundaryStructural
	default:
		return domain.BoundaryStress
	}
}
