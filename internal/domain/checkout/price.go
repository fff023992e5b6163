package checkout

import "github.com/shopspring/decimal"

// Breakdown is the full price derivation for a session. All fields are
// decimals rounded to two places; Total reconciles exactly against the
// persisted order line snapshots.
type Breakdown struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// Subtotal sums UnitPrice * Quantity over the lines.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

// Compute derives the breakdown: subtotal - discount + shipping, floored at
// zero. Discount is the coupon discount; the catalog discount is already
// folded into each line's UnitPrice.
func Compute(lines []Line, discount, shipping decimal.Decimal) Breakdown {
	subtotal := Subtotal(lines)

	total := subtotal.Sub(discount).Add(shipping)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Breakdown{
		Subtotal: subtotal.Round(2),
		Discount: discount.Round(2),
		Shipping: shipping.Round(2),
		Total:    total.Round(2),
	}
}
