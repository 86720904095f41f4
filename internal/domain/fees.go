package domain

import "github.com/shopspring/decimal"

// Default fee rules.
var (
	DefaultLateFeeRate       = decimal.RequireFromString("0.15")
	DefaultFeeScale    int32 = 2
)

// FeePolicy computes rental and late fees.
type FeePolicy struct {
	// LateFeeRate is the fraction of the book price charged per late day.
	LateFeeRate decimal.Decimal
	// Scale is the number of decimal places late fees are rounded to.
	Scale int32
}

// DefaultFeePolicy charges 15% of the book price per late day, rounded to cents.
func DefaultFeePolicy() FeePolicy {
	return FeePolicy{LateFeeRate: DefaultLateFeeRate, Scale: DefaultFeeScale}
}

// TotalFee returns dailyRate × rentalDays, or zero for negative rentalDays.
func (p FeePolicy) TotalFee(dailyRate decimal.Decimal, rentalDays int) decimal.Decimal {
	if rentalDays < 0 {
		return decimal.Zero
	}
	return dailyRate.Mul(decimal.NewFromInt(int64(rentalDays)))
}

// LateFee returns price × LateFeeRate × daysLate rounded half-up to Scale
// places, or zero when the book is not late.
func (p FeePolicy) LateFee(price decimal.Decimal, daysLate int) decimal.Decimal {
	if daysLate <= 0 {
		return decimal.Zero
	}
	// Round is half away from zero, which is half-up for non-negative fees.
	return price.Mul(p.LateFeeRate).Mul(decimal.NewFromInt(int64(daysLate))).Round(p.Scale)
}
