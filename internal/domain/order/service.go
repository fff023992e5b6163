package order

import (
	"context"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/voltmart/checkout/internal/domain/checkout"
	"github.com/voltmart/checkout/internal/domain/coupon"
	"github.com/voltmart/checkout/internal/domain/stock"
)

// CouponEvaluator re-validates a coupon against the authoritative subtotal
// at commit time. Satisfied by *coupon.Evaluator.
type CouponEvaluator interface {
	Evaluate(ctx context.Context, code, customerID string, subtotal decimal.Decimal) (*coupon.Discount, error)
}

// PlaceRequest holds the input for placing an order.
type PlaceRequest struct {
	CustomerID string
	Lines      []checkout.Line
	CouponCode string
	Shipping   ShippingInfo
	// BuyNow skips clearing the persisted cart after commit.
	BuyNow bool
}

// Service orchestrates order placement and the status lifecycle.
type Service struct {
	store       Store
	coupons     CouponEvaluator
	events      Publisher
	shippingFee decimal.Decimal
	now         func() time.Time
}

// NewService creates an order Service.
func NewService(store Store, coupons CouponEvaluator, events Publisher, shippingFee decimal.Decimal) *Service {
	return &Service{
		store:       store,
		coupons:     coupons,
		events:      events,
		shippingFee: shippingFee,
		now:         time.Now,
	}
}

// PlaceOrder turns session lines into a persisted order in one all-or-nothing
// transaction: the coupon is re-evaluated, every line's stock is reserved in
// stable key order, the order and its snapshots are written, coupon usage is
// recorded, and the source cart is cleared. Any reservation failure rejects
// the whole placement with a *RejectedError naming every failing line; the
// transaction rollback returns all acquired reservations.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceRequest) (*Order, error) {
	if len(req.Lines) == 0 {
		return nil, ErrNoLines
	}

	lines := make([]checkout.Line, len(req.Lines))
	copy(lines, req.Lines)
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].ProductID != lines[j].ProductID {
			return lines[i].ProductID < lines[j].ProductID
		}
		return lines[i].ColorID < lines[j].ColorID
	})

	o := &Order{
		ID:         uuid.New().String(),
		CustomerID: req.CustomerID,
		Status:     StatusPlaced,
		PlacedAt:   s.now().UTC(),
		Shipping:   req.Shipping,
	}

	err := s.store.Place(ctx, func(tx PlacementTx) error {
		subtotal := checkout.Subtotal(lines)

		// Preview acceptance is no guarantee: usage and expiry may have
		// changed since, so the coupon is evaluated again here.
		var disc *coupon.Discount
		if req.CouponCode != "" {
			d, err := s.coupons.Evaluate(ctx, req.CouponCode, req.CustomerID, subtotal)
			if err != nil {
				return err
			}
			disc = d
		}

		var failures []stock.InsufficientError
		for _, l := range lines {
			err := tx.TryReserve(ctx, l.Key(), l.Quantity)
			if err != nil {
				var insufficient *stock.InsufficientError
				if errors.As(err, &insufficient) {
					failures = append(failures, *insufficient)
					continue
				}
				return errors.Wrapf(err, "reserve %s", l.Key())
			}
		}
		if len(failures) > 0 {
			return &RejectedError{Failures: failures}
		}

		discountAmount := decimal.Zero
		if disc != nil {
			discountAmount = disc.Amount
			o.CouponCode = disc.Code
		}
		breakdown := checkout.Compute(lines, discountAmount, s.shippingFee)
		o.Subtotal = breakdown.Subtotal
		o.Discount = breakdown.Discount
		o.ShippingCost = breakdown.Shipping
		o.Total = breakdown.Total

		o.Lines = make([]Line, len(lines))
		for i, l := range lines {
			o.Lines[i] = Line{
				ProductID: l.ProductID,
				ColorID:   l.ColorID,
				Quantity:  l.Quantity,
				UnitPrice: l.UnitPrice,
				UnitCost:  l.UnitCost,
			}
		}

		if err := tx.CreateOrder(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}
		if disc != nil {
			if err := tx.RecordCouponUsage(ctx, disc.CouponID, req.CustomerID); err != nil {
				return errors.Wrap(err, "record coupon usage")
			}
		}
		if !req.BuyNow {
			if err := tx.ClearCart(ctx, req.CustomerID); err != nil {
				return errors.Wrap(err, "clear cart")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.OrderPlaced(ctx, o)
	return o, nil
}

// Get loads an order owned by the customer. Foreign orders come back as
// ErrNotFound rather than a permission error.
func (s *Service) Get(ctx context.Context, orderID, customerID string) (*Order, error) {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != customerID {
		return nil, ErrNotFound
	}
	return o, nil
}

// Cancel performs a customer-initiated cancellation: allowed only from
// OrderPlaced or OrderProcessing, and restores exactly the quantities the
// order reserved.
func (s *Service) Cancel(ctx context.Context, orderID, customerID string) error {
	return s.store.Transition(ctx, orderID, func(tx TransitionTx, o *Order) error {
		if o.CustomerID != customerID {
			return ErrNotFound
		}
		return s.apply(ctx, tx, o, StatusCanceled)
	})
}

// Transition moves an order to the requested status, enforcing the
// transition table. Cancellation releases the order's stock; no other
// transition touches inventory.
func (s *Service) Transition(ctx context.Context, orderID string, to Status) error {
	return s.store.Transition(ctx, orderID, func(tx TransitionTx, o *Order) error {
		return s.apply(ctx, tx, o, to)
	})
}

func (s *Service) apply(ctx context.Context, tx TransitionTx, o *Order, to Status) error {
	if !CanTransition(o.Status, to) {
		return &InvalidTransitionError{From: o.Status, To: to}
	}
	if err := tx.SetStatus(ctx, o.ID, to); err != nil {
		return errors.Wrapf(err, "set status %s", to)
	}
	if to == StatusCanceled {
		for _, l := range o.Lines {
			if err := tx.ReleaseStock(ctx, l.Key(), l.Quantity); err != nil {
				return errors.Wrapf(err, "release %s", l.Key())
			}
		}
	}
	return nil
}
