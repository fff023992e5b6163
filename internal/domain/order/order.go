package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/voltmart/checkout/internal/domain/stock"
)

// ErrNotFound is returned when an order does not exist or belongs to
// another customer.
var ErrNotFound = errors.New("order not found")

// ErrNoLines is returned when a placement request carries no session lines.
var ErrNoLines = errors.New("no lines to order")

// Order is a placed customer order. Its lines are immutable price/cost
// snapshots; its status changes only through the transition table. Orders
// are never deleted, only moved to a terminal status.
type Order struct {
	ID         string
	CustomerID string
	Status     Status
	PlacedAt   time.Time
	Shipping   ShippingInfo
	CouponCode string

	Subtotal     decimal.Decimal
	Discount     decimal.Decimal
	ShippingCost decimal.Decimal
	Total        decimal.Decimal

	Lines []Line
}

// Line is one order line snapshot. UnitPrice and UnitCost are copied at
// commit time and stay immune to later catalog changes.
type Line struct {
	ProductID string
	ColorID   string
	Quantity  int
	UnitPrice decimal.Decimal
	UnitCost  decimal.Decimal
}

// Key returns the stock ledger key for the line.
func (l Line) Key() stock.Key {
	return stock.Key{ProductID: l.ProductID, ColorID: l.ColorID}
}

// ShippingInfo is the billing/shipping snapshot captured with the order.
type ShippingInfo struct {
	Name    string
	Phone   string
	Address string
	Note    string
}

// RejectedError reports a placement refused for lack of stock, naming every
// failing line. No partial order exists when it is returned.
type RejectedError struct {
	Failures []stock.InsufficientError
}

func (e *RejectedError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("order rejected: %s", strings.Join(parts, "; "))
}

// Store is the transactional persistence contract for orders.
type Store interface {
	// Place runs fn inside a single atomic transaction and commits only when
	// fn returns nil. Stock reservations made through the PlacementTx roll
	// back with the transaction. Transient conflicts are retried a small
	// bounded number of times before the error surfaces.
	Place(ctx context.Context, fn func(tx PlacementTx) error) error

	// Get loads an order with its lines, or ErrNotFound.
	Get(ctx context.Context, orderID string) (*Order, error)

	// Transition runs fn with the order row locked. fn validates and applies
	// the status change through the TransitionTx.
	Transition(ctx context.Context, orderID string, fn func(tx TransitionTx, o *Order) error) error
}

// PlacementTx is the transaction-scoped view used while placing an order.
type PlacementTx interface {
	stock.Ledger

	CreateOrder(ctx context.Context, o *Order) error
	// RecordCouponUsage marks the coupon consumed by the customer. A
	// concurrent duplicate surfaces as coupon.ErrAlreadyUsed and aborts the
	// transaction.
	RecordCouponUsage(ctx context.Context, couponID, customerID string) error
	ClearCart(ctx context.Context, customerID string) error
}

// TransitionTx is the transaction-scoped view used while changing status.
type TransitionTx interface {
	SetStatus(ctx context.Context, orderID string, s Status) error
	ReleaseStock(ctx context.Context, key stock.Key, qty int) error
}

// Publisher emits order lifecycle events for downstream systems
// (notification, shipping). Publishing happens after commit and must never
// fail the request.
type Publisher interface {
	OrderPlaced(ctx context.Context, o *Order)
}
