// Package risk sizes positions and enforces notional guard-rails for
// signals before they reach the ledger.
package risk

import (
	"github.com/shopspring/decimal"
)

// Limits caps per-trade exposure in quote currency.
type Limits struct {
	MaxNotionalPerTrade float64
}

// Allow reports whether a trade of the given notional fits the cap.
// A non-positive cap disables the check.
func (l Limits) Allow(notional float64) bool {
	if l.MaxNotionalPerTrade <= 0 {
		return true
	}
	return notional <= l.MaxNotionalPerTrade
}

// Sizer turns account equity and a stop distance into an order
// quantity. Arithmetic runs on decimals so lot rounding is exact.
type Sizer struct {
	EquityUSD    float64
	RiskFraction float64
	LotStep      float64
}

// Quantity returns the base-asset quantity that risks EquityUSD *
// RiskFraction between entry and stop, floored to LotStep. Degenerate
// inputs (no equity, no stop distance) size to zero.
func (s Sizer) Quantity(entry, stop float64) float64 {
	if s.EquityUSD <= 0 || s.RiskFraction <= 0 {
		return 0
	}
	riskPerUnit := decimal.NewFromFloat(entry).Sub(decimal.NewFromFloat(stop)).Abs()
	if riskPerUnit.IsZero() {
		return 0
	}
	budget := decimal.NewFromFloat(s.EquityUSD).Mul(decimal.NewFromFloat(s.RiskFraction))
	qty := budget.Div(riskPerUnit)

	if s.LotStep > 0 {
		step := decimal.NewFromFloat(s.LotStep)
		qty = qty.Div(step).Floor().Mul(step)
	}
	out, _ := qty.Float64()
	return out
}

// Notional is the quote-currency value of a quantity at the entry price.
func Notional(entry, qty float64) float64 {
	out, _ := decimal.NewFromFloat(entry).Mul(decimal.NewFromFloat(qty)).Float64()
	return out
}
