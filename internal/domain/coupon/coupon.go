package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage off the subtotal, optionally
	// capped by MaxDiscount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountDirect takes a flat amount off the subtotal, never more than
	// the subtotal itself.
	DiscountDirect DiscountType = "direct"
)

var (
	// ErrNotFound is returned when no available coupon carries the code.
	ErrNotFound = errors.New("coupon not found")
	// ErrExpired is returned when the coupon's end date has passed.
	ErrExpired = errors.New("coupon expired")
	// ErrAlreadyUsed is returned when the customer has consumed the coupon before.
	ErrAlreadyUsed = errors.New("coupon already used")
	// ErrConditionNotMet is returned when the subtotal is below the
	// coupon's minimum spend.
	ErrConditionNotMet = errors.New("coupon minimum spend not met")
)

// Coupon is a promotion rule. Read-only to checkout; the back office owns it.
type Coupon struct {
	ID           string
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	// MaxDiscount caps a percentage discount. Not positive means no cap;
	// the back office seeds 0 for uncapped coupons.
	MaxDiscount decimal.Decimal
	MinSpend    decimal.Decimal
	EndsAt      *time.Time
	Active      bool
}

// Discount is a computed, not-yet-committed coupon application. Usage is
// recorded only at order commit, so previews are side-effect free.
type Discount struct {
	CouponID string
	Code     string
	Amount   decimal.Decimal
}

// Repository provides coupon lookup and per-customer usage checks.
type Repository interface {
	// FindByCode returns the available coupon carrying code, or ErrNotFound.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// Used reports whether the customer has already consumed the coupon.
	Used(ctx context.Context, couponID, customerID string) (bool, error)
}
