package engine

import (
	"fmt"
	"math"

	"github.com/blumarkets/hram/internal/domain"
	"github.com/blumarkets/hram/internal/modules/lending"
)

func (e *Engine) previewAddFunds(next *domain.PortfolioState, p domain.AddFundsPayload) previewOutcome {
	if p.AmountIrr <= 0 {
		return fail("deposit amount must be positive")
	}
	next.CashIrr += p.AmountIrr
	return previewOutcome{}
}

func (e *Engine) previewTrade(next *domain.PortfolioState, p domain.TradePayload, view domain.MarketView) previewOutcome {
	if p.AmountIrr <= 0 {
		return fail("trade amount must be positive")
	}
	if _, ok := e.valuer.Universe.Asset(p.AssetID); !ok {
		return fail(fmt.Sprintf("unknown asset %s", p.AssetID))
	}
	price := e.valuer.PriceIrr(p.AssetID, view)
	if price <= 0 {
		return fail(fmt.Sprintf("asset %s has no price", p.AssetID))
	}

	fee := frictionIrr(p.AmountIrr, e.cfg.Friction.rate(view))

	switch p.Side {
	case domain.SideBuy:
		if p.AmountIrr > next.CashIrr {
			return fail(fmt.Sprintf("insufficient cash: need %d, have %d", p.AmountIrr, next.CashIrr))
		}
		next.CashIrr -= p.AmountIrr
		e.credit(next, p.AssetID, float64(p.AmountIrr-fee)/price, view)

	case domain.SideSell:
		holding := next.Holding(p.AssetID)
		if holding == nil || holding.Quantity <= 0 {
			return fail(fmt.Sprintf("no holdings of %s to sell", p.AssetID))
		}
		if holding.Frozen {
			return fail(fmt.Sprintf("%s is frozen as loan collateral", p.AssetID))
		}
		value := e.valuer.HoldingValueIrr(*holding, view)
		if p.AmountIrr > value {
			return fail(fmt.Sprintf("insufficient holdings: selling %d, holding worth %d", p.AmountIrr, value))
		}

		qty := float64(p.AmountIrr) / price
		if qty > holding.Quantity {
			qty = holding.Quantity
		}
		holding.Quantity -= qty
		next.CashIrr += p.AmountIrr - fee

	default:
		return fail(fmt.Sprintf("unknown trade side %s", p.Side))
	}

	return previewOutcome{frictionCopy: []string{e.frictionCopy(fee, view)}}
}

func (e *Engine) previewBorrow(next *domain.PortfolioState, p domain.BorrowPayload, view domain.MarketView) previewOutcome {
	if p.AmountIrr <= 0 {
		return fail("loan amount must be positive")
	}
	if p.DurationDays < e.cfg.Loans.MinDurationDays || p.DurationDays > e.cfg.Loans.MaxDurationDays {
		return fail(fmt.Sprintf("loan duration must be between %d and %d days",
			e.cfg.Loans.MinDurationDays, e.cfg.Loans.MaxDurationDays))
	}

	holding := next.Holding(p.CollateralAssetID)
	if holding == nil || holding.Quantity <= 0 {
		return fail(fmt.Sprintf("no holdings of %s to pledge", p.CollateralAssetID))
	}
	if holding.Frozen {
		return fail(fmt.Sprintf("%s is already pledged as collateral", p.CollateralAssetID))
	}

	collateralValue := e.valuer.HoldingValueIrr(*holding, view)
	maxLoan := int64(math.Floor(float64(collateralValue) * e.cfg.Loans.MaxLTV))
	if p.AmountIrr > maxLoan {
		return fail(fmt.Sprintf("exceeds LTV limit: max %d against collateral worth %d", maxLoan, collateralValue))
	}

	portfolioValue := e.valuer.PortfolioValueIrr(*next, view)
	maxTotal := int64(math.Floor(float64(portfolioValue) * e.cfg.Loans.MaxPortfolioLoanPct))
	if next.ActivePrincipalIrr()+p.AmountIrr > maxTotal {
		return fail(fmt.Sprintf("exceeds portfolio loan limit of %d", maxTotal))
	}

	id := fmt.Sprintf("loan-%04d", len(next.Loans)+1)
	loan := lending.NewLoan(id, *holding, p.AmountIrr, e.cfg.Loans, p.DurationDays, view.AsOf)

	holding.Frozen = true
	next.CashIrr += p.AmountIrr
	next.Loans = append(next.Loans, loan)

	interest := loan.RemainingIrr() - loan.AmountIrr
	return previewOutcome{frictionCopy: []string{
		fmt.Sprintf("Repaying over %d installments adds %d IRR of interest", len(loan.Installments), interest),
	}}
}

func (e *Engine) previewRepay(next *domain.PortfolioState, p domain.RepayPayload) previewOutcome {
	if p.AmountIrr <= 0 {
		return fail("payment amount must be positive")
	}
	loan := next.ActiveLoan(p.LoanID)
	if loan == nil {
		return fail(fmt.Sprintf("no active loan %s", p.LoanID))
	}
	if p.AmountIrr > next.CashIrr {
		return fail(fmt.Sprintf("insufficient cash: need %d, have %d", p.AmountIrr, next.CashIrr))
	}

	updated, result := lending.ApplyPayment(*loan, p.AmountIrr)
	*loan = updated
	next.CashIrr -= result.AppliedIrr

	if result.Settled {
		e.unfreezeIfUnpledged(next, updated.CollateralAssetID)
		return previewOutcome{frictionCopy: []string{"Loan settled in full, collateral released"}}
	}
	return previewOutcome{}
}

func (e *Engine) previewRebalance(next *domain.PortfolioState, p domain.RebalancePayload, view domain.MarketView) previewOutcome {
	switch p.Mode {
	case domain.RebalanceHoldingsOnly, domain.RebalanceHoldingsPlusCash, domain.RebalanceSmart:
	default:
		return fail(fmt.Sprintf("unknown rebalance mode %s", p.Mode))
	}

	plan := e.planner.Plan(next.Holdings, next.CashIrr, next.TargetLayerPct, p.Mode, view)
	if len(plan.Trades) == 0 {
		out := fail("no trades generated")
		out.plan = &plan
		return out
	}

	rate := e.cfg.Friction.rate(view)
	var totalFees int64

	// Sells first: their net proceeds join the buy funding.
	funds := next.CashIrr
	if p.Mode == domain.RebalanceHoldingsOnly {
		funds = 0
	}
	for _, t := range plan.Trades {
		if t.Side != domain.SideSell {
			continue
		}
		holding := next.Holding(t.AssetID)
		if holding == nil {
			continue
		}
		qty := t.Quantity
		if qty > holding.Quantity {
			qty = holding.Quantity
		}
		holding.Quantity -= qty

		fee := frictionIrr(t.AmountIrr, rate)
		totalFees += fee
		funds += t.AmountIrr - fee
		if p.Mode != domain.RebalanceHoldingsOnly {
			next.CashIrr += t.AmountIrr - fee
		}
	}

	// Fees shrink the funding below the plan's buy total, so buys scale
	// down proportionally rather than overdrawing cash.
	buys := scaleBuys(plan.Trades, funds)
	for _, t := range buys {
		price := e.valuer.PriceIrr(t.AssetID, view)
		if price <= 0 || t.AmountIrr <= 0 {
			continue
		}
		fee := frictionIrr(t.AmountIrr, rate)
		totalFees += fee

		if p.Mode == domain.RebalanceHoldingsOnly {
			// buys here are funded purely by sale proceeds held in transit
			e.credit(next, t.AssetID, float64(t.AmountIrr-fee)/price, view)
			funds -= t.AmountIrr
		} else {
			next.CashIrr -= t.AmountIrr
			e.credit(next, t.AssetID, float64(t.AmountIrr-fee)/price, view)
		}
	}
	if p.Mode == domain.RebalanceHoldingsOnly && funds > 0 {
		// proceeds that could not be redeployed settle as cash
		next.CashIrr += funds
	}

	out := previewOutcome{plan: &plan}
	out.frictionCopy = append(out.frictionCopy, e.frictionCopy(totalFees, view))
	if plan.HasLockedCollateral {
		out.frictionCopy = append(out.frictionCopy, "Some drift cannot be corrected while collateral is locked")
	}
	return out
}

func (e *Engine) previewProtect(next *domain.PortfolioState, p domain.ProtectPayload, view domain.MarketView) previewOutcome {
	holding := next.Holding(p.AssetID)
	if holding == nil || holding.Quantity <= 0 {
		return fail(fmt.Sprintf("no holdings of %s to protect", p.AssetID))
	}

	quote, err := e.quoter.GetQuote(*holding, p.CoveragePct, p.DurationDays, view)
	if err != nil {
		return fail(fmt.Sprintf("cannot quote protection: %v", err))
	}
	if quote.PremiumIrr > next.CashIrr {
		return fail(fmt.Sprintf("insufficient cash for premium: need %d, have %d", quote.PremiumIrr, next.CashIrr))
	}

	next.CashIrr -= quote.PremiumIrr
	next.Protections = append(next.Protections, domain.Protection{
		ID:           fmt.Sprintf("prot-%04d", len(next.Protections)+1),
		AssetID:      p.AssetID,
		NotionalIrr:  quote.NotionalIrr,
		PremiumIrr:   quote.PremiumIrr,
		DurationDays: p.DurationDays,
		Start:        view.AsOf,
		End:          view.AsOf.AddDate(0, 0, p.DurationDays),
		Status:       domain.ProtectionActive,
	})

	return previewOutcome{frictionCopy: []string{
		fmt.Sprintf("Non-refundable premium of %d IRR covers %d IRR for %d days",
			quote.PremiumIrr, quote.NotionalIrr, p.DurationDays),
	}}
}

// credit adds quantity to an asset's holding, creating it if absent.
// First acquisition of the fixed-income instrument stamps the accrual start.
func (e *Engine) credit(next *domain.PortfolioState, assetID string, qty float64, view domain.MarketView) {
	holding := next.Holding(assetID)
	if holding == nil {
		next.Holdings = append(next.Holdings, domain.Holding{AssetID: assetID})
		holding = &next.Holdings[len(next.Holdings)-1]
	}
	holding.Quantity += qty
	if assetID == domain.FixedIncomeAssetID && holding.PurchasedAt == nil {
		at := view.AsOf
		holding.PurchasedAt = &at
	}
}

// unfreezeIfUnpledged releases collateral unless another active loan still
// pledges the same asset.
func (e *Engine) unfreezeIfUnpledged(next *domain.PortfolioState, assetID string) {
	for _, l := range next.Loans {
		if l.Status == domain.LoanActive && l.CollateralAssetID == assetID {
			return
		}
	}
	if holding := next.Holding(assetID); holding != nil {
		holding.Frozen = false
	}
}

func (e *Engine) frictionCopy(feeIrr int64, view domain.MarketView) string {
	pct := e.cfg.Friction.rate(view) * 100
	if view.HighVolatility {
		return fmt.Sprintf("High volatility: execution costs of ~%.1f%% (%d IRR) apply", pct, feeIrr)
	}
	return fmt.Sprintf("Execution costs of ~%.1f%% (%d IRR) apply", pct, feeIrr)
}

// frictionIrr is the integer fee charged on a gross trade amount.
func frictionIrr(amountIrr int64, rate float64) int64 {
	return int64(math.Round(float64(amountIrr) * rate))
}

// scaleBuys shrinks the plan's buy legs proportionally to fit the funds
// actually available after fees. Largest-remainder reconciliation keeps
// the scaled amounts summing to at most funds.
func scaleBuys(trades []domain.Trade, funds int64) []domain.Trade {
	var buys []domain.Trade
	var total int64
	for _, t := range trades {
		if t.Side == domain.SideBuy {
			buys = append(buys, t)
			total += t.AmountIrr
		}
	}
	if total <= funds || total == 0 {
		return buys
	}

	scaled := make([]domain.Trade, len(buys))
	var allocated int64
	for i, t := range buys {
		amt := int64(math.Floor(float64(funds) * float64(t.AmountIrr) / float64(total)))
		scaled[i] = t
		scaled[i].AmountIrr = amt
		allocated += amt
	}
	// hand the rounding slack to the largest leg
	if rest := funds - allocated; rest > 0 && len(scaled) > 0 {
		largest := 0
		for i := range scaled {
			if scaled[i].AmountIrr > scaled[largest].AmountIrr {
				largest = i
			}
		}
		scaled[largest].AmountIrr += rest
	}
	return scaled
}

func fail(msgs ...string) previewOutcome {
	return previewOutcome{errors: msgs}
}
