package money

import (
	"github.com/shopspring/decimal"
)

// Cents is an amount in the smallest currency unit. All pool, stake, and
// ledger arithmetic happens on this type; floats never enter a calculation
// path.
type Cents int64

// BpsDenominator is the basis-point scale: 10_000 bps = 100%.
const BpsDenominator = 10_000

// Fee returns the fee charged on amount at the given basis points,
// floored toward zero. Negative inputs yield 0.
func Fee(amount Cents, bps int64) Cents {
	if amount <= 0 || bps <= 0 {
		return 0
	}
	return Cents(int64(amount) * bps / BpsDenominator)
}

// Sum adds amounts; convenience for pool aggregation.
func Sum(amounts ...Cents) Cents {
	var total Cents
	for _, a := range amounts {
		total += a
	}
	return total
}

// Format renders cents as a fixed two-decimal currency string ("412.88").
// Display only.
func Format(amount Cents) string {
	return decimal.New(int64(amount), -2).StringFixed(2)
}
