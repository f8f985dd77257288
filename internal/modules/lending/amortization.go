// Package lending builds loan installment schedules and applies repayments.
package lending

import (
	"math"
	"time"

	"github.com/blumarkets/hram/internal/domain"
)

// Config holds loan product parameters
type Config struct {
	AnnualRate float64 `json:"annual_rate"` // simple annual interest
	// MaxLTV limits the principal to a fraction of collateral value.
	MaxLTV float64 `json:"max_ltv"`
	// MaxPortfolioLoanPct limits total active principal to a fraction of
	// portfolio value.
	MaxPortfolioLoanPct float64 `json:"max_portfolio_loan_pct"`
	MinDurationDays     int     `json:"min_duration_days"`
	MaxDurationDays     int     `json:"max_duration_days"`
}

// DefaultConfig returns the product defaults: 24% annual, 50% LTV,
// 30% portfolio cap, 30 days to 2 years.
func DefaultConfig() Config {
	return Config{
		AnnualRate:          0.24,
		MaxLTV:              0.50,
		MaxPortfolioLoanPct: 0.30,
		MinDurationDays:     30,
		MaxDurationDays:     730,
	}
}

// installmentPeriodDays is the length of one installment period.
const installmentPeriodDays = 30

// TotalInterestIrr computes simple interest on a principal for a duration,
// rounded to the nearest rial.
func TotalInterestIrr(principalIrr int64, annualRate float64, durationDays int) int64 {
	return int64(math.Round(float64(principalIrr) * annualRate * float64(durationDays) / 365))
}

// BuildSchedule divides principal plus interest into equal installments via
// integer division, with the final installment absorbing the rounding
// remainder so that sum(installments) == principal + interest exactly.
func BuildSchedule(principalIrr int64, annualRate float64, durationDays int, from time.Time) ([]domain.Installment, int64) {
	interest := TotalInterestIrr(principalIrr, annualRate, durationDays)
	total := principalIrr + interest

	n := durationDays / installmentPeriodDays
	if n < 1 {
		n = 1
	}

	per := total / int64(n)
	installments := make([]domain.Installment, n)
	var allocated int64
	for i := 0; i < n; i++ {
		amount := per
		if i == n-1 {
			amount = total - allocated
		}
		allocated += amount
		installments[i] = domain.Installment{
			Number:   i + 1,
			DueDate:  from.AddDate(0, 0, (i+1)*installmentPeriodDays),
			TotalIrr: amount,
			Status:   domain.InstallmentPending,
		}
	}

	return installments, interest
}

// NewLoan creates an active loan with its full schedule.
func NewLoan(id string, collateral domain.Holding, principalIrr int64, cfg Config, durationDays int, at time.Time) domain.Loan {
	installments, _ := BuildSchedule(principalIrr, cfg.AnnualRate, durationDays, at)
	return domain.Loan{
		ID:                 id,
		CollateralAssetID:  collateral.AssetID,
		CollateralQuantity: collateral.Quantity,
		AmountIrr:          principalIrr,
		InterestRate:       cfg.AnnualRate,
		DurationDays:       durationDays,
		Installments:       installments,
		Status:             domain.LoanActive,
		CreatedAt:          at,
	}
}

// PaymentResult reports the effect of a repayment
type PaymentResult struct {
	AppliedIrr int64 // amount actually consumed, never more than the remaining balance
	Settled    bool  // true when the loan is now fully repaid
}

// ApplyPayment applies a payment to a loan's installments in order, marking
// each PAID when fully covered or PARTIAL otherwise. A payment covering the
// full remaining balance settles the loan; any excess is left with the payer.
// The input loan is not mutated.
func ApplyPayment(loan domain.Loan, amountIrr int64) (domain.Loan, PaymentResult) {
	if loan.Status != domain.LoanActive || amountIrr <= 0 {
		return loan, PaymentResult{}
	}

	next := loan
	next.Installments = make([]domain.Installment, len(loan.Installments))
	copy(next.Installments, loan.Installments)

	remaining := loan.RemainingIrr()
	toApply := amountIrr
	if toApply > remaining {
		toApply = remaining
	}
	applied := toApply

	for i := range next.Installments {
		if toApply == 0 {
			break
		}
		inst := &next.Installments[i]
		due := inst.TotalIrr - inst.PaidIrr
		if due <= 0 {
			continue
		}
		pay := toApply
		if pay > due {
			pay = due
		}
		inst.PaidIrr += pay
		toApply -= pay
		if inst.PaidIrr == inst.TotalIrr {
			inst.Status = domain.InstallmentPaid
		} else {
			inst.Status = domain.InstallmentPartial
		}
	}

	result := PaymentResult{AppliedIrr: applied}
	if next.RemainingIrr() == 0 {
		next.Status = domain.LoanRepaid
		result.Settled = true
	}
	return next, result
}
