package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// amountFor calculates the discount a coupon grants on the given subtotal.
// Eligibility (expiry, usage, minimum spend) is the Evaluator's job; this is
// pure arithmetic.
func amountFor(c *Coupon, subtotal decimal.Decimal) (decimal.Decimal, error) {
	switch c.DiscountType {
	case DiscountPercentage:
		amount := subtotal.Mul(c.Value).Div(hundred)
		if c.MaxDiscount.IsPositive() {
			amount = decimal.Min(amount, c.MaxDiscount)
		}
		return floorAtZero(amount).Round(2), nil
	case DiscountDirect:
		// A flat discount cannot exceed the subtotal.
		amount := decimal.Min(c.Value, subtotal)
		return floorAtZero(amount).Round(2), nil
	default:
		return decimal.Zero, errors.Errorf("unsupported discount type: %q", c.DiscountType)
	}
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
