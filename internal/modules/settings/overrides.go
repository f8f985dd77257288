package settings

import (
	"fmt"

	"github.com/blumarkets/hram/internal/modules/boundary"
	"github.com/blumarkets/hram/internal/modules/engine"
	"github.com/blumarkets/hram/internal/modules/rebalancing"
)

// Setting keys recognised by the override loaders. Anything not stored
// falls back to the compiled-in defaults.
const (
	KeyBaseFeePct          = "friction.base_fee_pct"
	KeyBaseSlippagePct     = "friction.base_slippage_pct"
	KeyLoanAnnualRate      = "loans.annual_rate"
	KeyLoanMaxLTV          = "loans.max_ltv"
	KeyLoanMaxPortfolioPct = "loans.max_portfolio_loan_pct"
	KeyBoundarySafeMaxPp   = "boundary.safe_max_pp"
	KeyBoundaryDriftMaxPp  = "boundary.drift_max_pp"
	KeyBoundaryStructPp    = "boundary.structural_max_pp"
	KeyTriggerNormalPp     = "triggers.normal_pp"
	KeyTriggerEmergencyPp  = "triggers.emergency_pp"
	KeyTriggersEnabled     = "triggers.enabled"
	KeyMinTradeIrr         = "rebalance.min_trade_irr"
)

// EngineConfig overlays stored settings on top of the default engine
// tuning. Missing keys keep their defaults; malformed values error out
// rather than silently running with half-applied tuning.
func (r *Repository) EngineConfig() (engine.Config, error) {
	cfg := engine.DefaultConfig()

	var err error
	if cfg.Friction.BaseFeePct, err = r.GetFloat(KeyBaseFeePct, cfg.Friction.BaseFeePct); err != nil {
		return engine.Config{}, fmt.Errorf("load engine config: %w", err)
	}
	if cfg.Friction.BaseSlippagePct, err = r.GetFloat(KeyBaseSlippagePct, cfg.Friction.BaseSlippagePct); err != nil {
		return engine.Config{}, fmt.Errorf("load engine config: %w", err)
	}
	if cfg.Loans.AnnualRate, err = r.GetFloat(KeyLoanAnnualRate, cfg.Loans.AnnualRate); err != nil {
		return engine.Config{}, fmt.Errorf("load engine config: %w", err)
	}
	if cfg.Loans.MaxLTV, err = r.GetFloat(KeyLoanMaxLTV, cfg.Loans.MaxLTV); err != nil {
		return engine.Config{}, fmt.Errorf("load engine config: %w", err)
	}
	if cfg.Loans.MaxPortfolioLoanPct, err = r.GetFloat(KeyLoanMaxPortfolioPct, cfg.Loans.MaxPortfolioLoanPct); err != nil {
		return engine.Config{}, fmt.Errorf("load engine config: %w", err)
	}

	b, err := r.boundaryConfig(cfg.Boundary)
	if err != nil {
		return engine.Config{}, fmt.Errorf("load engine config: %w", err)
	}
	cfg.Boundary = b
	return cfg, nil
}

func (r *Repository) boundaryConfig(base boundary.Config) (boundary.Config, error) {
	var err error
	if base.SafeMaxPp, err = r.GetFloat(KeyBoundarySafeMaxPp, base.SafeMaxPp); err != nil {
		return boundary.Config{}, err
	}
	if base.DriftMaxPp, err = r.GetFloat(KeyBoundaryDriftMaxPp, base.DriftMaxPp); err != nil {
		return boundary.Config{}, err
	}
	if base.StructuralMaxPp, err = r.GetFloat(KeyBoundaryStructPp, base.StructuralMaxPp); err != nil {
		return boundary.Config{}, err
	}
	return base, nil
}

// TriggerConfig overlays stored settings on the default drift-trigger
// thresholds.
func (r *Repository) TriggerConfig() (rebalancing.TriggerConfig, error) {
	cfg := rebalancing.DefaultTriggerConfig()

	var err error
	if cfg.NormalPp, err = r.GetFloat(KeyTriggerNormalPp, cfg.NormalPp); err != nil {
		return rebalancing.TriggerConfig{}, fmt.Errorf("load trigger config: %w", err)
	}
	if cfg.EmergencyPp, err = r.GetFloat(KeyTriggerEmergencyPp, cfg.EmergencyPp); err != nil {
		return rebalancing.TriggerConfig{}, fmt.Errorf("load trigger config: %w", err)
	}
	if cfg.Enabled, err = r.GetBool(KeyTriggersEnabled, cfg.Enabled); err != nil {
		return rebalancing.TriggerConfig{}, fmt.Errorf("load trigger config: %w", err)
	}
	return cfg, nil
}

// PlannerConfig overlays stored settings on the default planner tuning.
func (r *Repository) PlannerConfig() (rebalancing.Config, error) {
	cfg := rebalancing.DefaultConfig()
	minTrade, err := r.GetInt(KeyMinTradeIrr, cfg.MinTradeIrr)
	if err != nil {
		return rebalancing.Config{}, fmt.Errorf("load planner config: %w", err)
	}
	cfg.MinTradeIrr = minTrade
	return cfg, nil
}
