package protection

import (
	"time"

	"github.com/blumarkets/hram/internal/domain"
)

// ExpireDue flips ACTIVE protections past their end date to EXPIRED.
// It returns the updated slice and the protections it expired, without
// mutating the input. Premiums are never refunded on expiry.
func ExpireDue(protections []domain.Protection, now time.Time) ([]domain.Protection, []domain.Protection) {
	updated := make([]domain.Protection, len(protections))
	copy(updated, protections)

	var expired []domain.Protection
	for i := range updated {
		if updated[i].Status != domain.ProtectionActive {
			continue
		}
		if now.After(updated[i].End) {
			updated[i].Status = domain.ProtectionExpired
			expired = append(expired, updated[i])
		}
	}
	return updated, expired
}

// ActiveCoverageIrr sums the notional of active protections on an asset.
func ActiveCoverageIrr(protections []domain.Protection, assetID string) int64 {
	var total int64
	for _, p := range protections {
		if p.Status == domain.ProtectionActive && p.AssetID == assetID {
			total += p.NotionalIrr
		}
	}
	return total
}
