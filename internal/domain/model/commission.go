package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SplitGross divides gross minor units into platform commission and creator earnings.
// commission = round(gross * rate), half away from zero; earnings = gross - commission.
func SplitGross(gross int64, rate float64) (commission, earnings int64) {
	if gross <= 0 {
		return 0, 0
	}
	if rate <= 0 {
		return 0, gross
	}
	c := decimal.NewFromInt(gross).Mul(decimal.NewFromFloat(rate)).Round(0).IntPart()
	if c > gross {
		c = gross
	}
	return c, gross - c
}

// NewSettlement computes the split for a confirmed charge. The provider amount is
// authoritative; a difference from expected is flagged for review, not rejected.
func NewSettlement(expected, providerAmount int64, providerRef string, rate float64, paidAt time.Time) Settlement {
	gross := providerAmount
	if gross <= 0 {
		gross = expected
	}
	c, e := SplitGross(gross, rate)
	return Settlement{
		ProviderRef:     providerRef,
		Gross:           gross,
		Commission:      c,
		CreatorEarnings: e,
		AmountMismatch:  gross != expected,
		PaidAt:          paidAt,
	}
}
