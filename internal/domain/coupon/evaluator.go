package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Evaluator validates a coupon code against a subtotal and a customer and
// computes the resulting discount. Evaluation is read-only and safe to
// repeat: the apply-coupon preview and the final admission check at order
// commit share this exact logic.
type Evaluator struct {
	repo Repository
	now  func() time.Time
}

// NewEvaluator creates an Evaluator backed by the given Repository.
func NewEvaluator(repo Repository) *Evaluator {
	return &Evaluator{repo: repo, now: time.Now}
}

// Evaluate checks the coupon carrying code for the customer and subtotal.
// Checks run in a fixed order, first failure wins:
//
//  1. an available coupon with the code exists        → ErrNotFound
//  2. the end date, when set, has not passed          → ErrExpired
//  3. the customer has not consumed the coupon before → ErrAlreadyUsed
//  4. the subtotal reaches the minimum spend          → ErrConditionNotMet
//
// On success it returns the computed discount and the coupon identity for
// usage recording at commit time. Nothing is mutated here.
func (e *Evaluator) Evaluate(ctx context.Context, code, customerID string, subtotal decimal.Decimal) (*Discount, error) {
	c, err := e.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}
	if !c.Active {
		return nil, ErrNotFound
	}

	if c.EndsAt != nil && e.now().After(*c.EndsAt) {
		return nil, ErrExpired
	}

	used, err := e.repo.Used(ctx, c.ID, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "check coupon usage")
	}
	if used {
		return nil, ErrAlreadyUsed
	}

	if subtotal.LessThan(c.MinSpend) {
		return nil, ErrConditionNotMet
	}

	amount, err := amountFor(c, subtotal)
	if err != nil {
		return nil, err
	}

	return &Discount{
		CouponID: c.ID,
		Code:     c.Code,
		Amount:   amount,
	}, nil
}
