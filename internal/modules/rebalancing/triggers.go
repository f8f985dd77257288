package rebalancing

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/blumarkets/hram/internal/domain"
	"github.com/blumarkets/hram/internal/modules/boundary"
)

// normalTriggerCooldown rate-limits normal-drift triggers: at most one
// suggested rebalance per day. Emergency drift is never rate-limited.
const normalTriggerCooldown = 24 * time.Hour

// TriggerConfig holds the drift thresholds for event-driven rebalancing.
type TriggerConfig struct {
	NormalPp    float64 `json:"normal_pp"`    // suggest a rebalance
	EmergencyPp float64 `json:"emergency_pp"` // always rebalance
	Enabled     bool    `json:"enabled"`
}

// DefaultTriggerConfig returns the product trigger tuning.
func DefaultTriggerConfig() TriggerConfig {
	return TriggerConfig{NormalPp: 5, EmergencyPp: 10, Enabled: true}
}

// TriggerResult reports the outcome of a trigger check.
type TriggerResult struct {
	ShouldRebalance bool    `json:"should_rebalance"`
	Emergency       bool    `json:"emergency"`
	DriftPp         float64 `json:"drift_pp"`
	Reason          string  `json:"reason"`
}

// TriggerChecker decides whether portfolio drift warrants rebalancing.
type TriggerChecker struct {
	cfg TriggerConfig
	log zerolog.Logger
}

// NewTriggerChecker creates a trigger checker.
func NewTriggerChecker(cfg TriggerConfig, log zerolog.Logger) *TriggerChecker {
	return &TriggerChecker{
		cfg: cfg,
		log: log.With().Str("component", "rebalancing_triggers").Logger(),
	}
}

// Check measures allocation drift against the trigger thresholds.
// Emergency drift always triggers, even when event-driven rebalancing
// is disabled. A normal-drift trigger is suppressed while the last
// rebalance is less than a day old; a zero lastRebalancedAt means the
// portfolio has never rebalanced.
func (tc *TriggerChecker) Check(alloc domain.Allocation, targetPct map[domain.Layer]int, lastRebalancedAt, now time.Time) TriggerResult {
	drift := boundary.MaxDeviationPp(alloc, targetPct)

	if drift >= tc.cfg.EmergencyPp {
		return TriggerResult{
			ShouldRebalance: true,
			Emergency:       true,
			DriftPp:         drift,
			Reason:          fmt.Sprintf("drift %.1f pp exceeds emergency threshold %.1f pp", drift, tc.cfg.EmergencyPp),
		}
	}

	if !tc.cfg.Enabled {
		return TriggerResult{DriftPp: drift, Reason: "event-driven rebalancing disabled"}
	}

	if drift >= tc.cfg.NormalPp {
		if !lastRebalancedAt.IsZero() && now.Sub(lastRebalancedAt) < normalTriggerCooldown {
			return TriggerResult{
				DriftPp: drift,
				Reason:  fmt.Sprintf("drift %.1f pp exceeds threshold %.1f pp but a rebalance ran within the last day", drift, tc.cfg.NormalPp),
			}
		}
		return TriggerResult{
			ShouldRebalance: true,
			DriftPp:         drift,
			Reason:          fmt.Sprintf("drift %.1f pp exceeds threshold %.1f pp", drift, tc.cfg.NormalPp),
		}
	}

	return TriggerResult{DriftPp: drift, Reason: "no triggers met"}
}
