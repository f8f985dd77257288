package boundary

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blumarkets/hram/internal/domain"
)

func allocWithPct(foundation, growth, upside float64) domain.Allocation {
	return domain.Allocation{
		TotalIrr: 1_000_000_000,
		LayerPct: map[domain.Layer]float64{
			domain.LayerFoundation: foundation,
			domain.LayerGrowth:     growth,
			domain.LayerUpside:     upside,
		},
	}
}

func TestClassify(t *testing.T) {
	target := map[domain.Layer]int{
		domain.LayerFoundation: 50,
		domain.LayerGrowth:     35,
		domain.LayerUpside:     15,
	}
	c := New(DefaultConfig())

	tests := []struct {
		name     string
		after    domain.Allocation
		stress   bool
		expected domain.Boundary
	}{
		{"exactly on target", allocWithPct(50, 35, 15), false, domain.BoundarySafe},
		{"small drift", allocWithPct(53, 33, 14), false, domain.BoundarySafe},
		{"moderate drift", allocWithPct(57, 30, 13), false, domain.BoundaryDrift},
		{"structural drift", allocWithPct(62, 26, 12), false, domain.BoundaryStructural},
		{"severe drift", allocWithPct(75, 15, 10), false, domain.BoundaryStress},
		{"stress flag wins over safe drift", allocWithPct(50, 35, 15), true, domain.BoundaryStress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(allocWithPct(50, 35, 15), tt.after, target, tt.stress)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestClassifyThresholdEdges(t *testing.T) {
	target := map[domain.Layer]int{
		domain.LayerFoundation: 50,
		domain.LayerGrowth:     35,
		domain.LayerUpside:     15,
	}
	c := New(Config{SafeMaxPp: 5, DriftMaxPp: 10, StructuralMaxPp: 20})

	// Deviation exactly at a threshold belongs to the more severe category.
	assert.Equal(t, domain.BoundaryDrift,
		c.Classify(domain.Allocation{}, allocWithPct(55, 35, 10), target, false))
	assert.Equal(t, domain.BoundaryStructural,
		c.Classify(domain.Allocation{}, allocWithPct(60, 30, 10), target, false))
	assert.Equal(t, domain.BoundaryStress,
		c.Classify(domain.Allocation{}, allocWithPct(70, 20, 10), target, false))
}

func TestClassifyZeroValuePortfolio(t *testing.T) {
	// An empty portfolio has 0% everywhere. Against a non-zero target this is
	// severe drift, but the classifier must still return a category, never fail.
	target := map[domain.Layer]int{
		domain.LayerFoundation: 50,
		domain.LayerGrowth:     35,
		domain.LayerUpside:     15,
	}
	c := New(DefaultConfig())
	got := c.Classify(domain.Allocation{}, allocWithPct(0, 0, 0), target, false)
	assert.Equal(t, domain.BoundaryStress, got)
}

func TestMaxDeviationPp(t *testing.T) {
	target := map[domain.Layer]int{
		domain.LayerFoundation: 50,
		domain.LayerGrowth:     35,
		domain.LayerUpside:     15,
	}
	assert.InDelta(t, 7.0, MaxDeviationPp(allocWithPct(57, 30, 13), target), 1e-9)
	assert.InDelta(t, 0.0, MaxDeviationPp(allocWithPct(50, 35, 15), target), 1e-9)
}
