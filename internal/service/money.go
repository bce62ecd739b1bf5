package service

import "github.com/shopspring/decimal"

// percentOf returns amountCents × pct / 100 rounded half-up to the minor unit.
func percentOf(amountCents int64, pct float64) int64 {
	return decimal.NewFromInt(amountCents).
		Mul(decimal.NewFromFloat(pct)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}
