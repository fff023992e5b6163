package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/voltmart/checkout/internal/domain/coupon"
	"github.com/voltmart/checkout/internal/domain/order"
	"github.com/voltmart/checkout/internal/domain/stock"
)

const (
	createOrderSQL = `INSERT INTO orders (id, customer_id, status, placed_at,
			ship_name, ship_phone, ship_address, note, coupon_code,
			subtotal, discount, shipping_cost, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	createOrderLineSQL = `INSERT INTO order_lines (order_id, product_id, color_id, quantity, unit_price, unit_cost)
		VALUES ($1, $2, $3, $4, $5, $6)`

	recordCouponUsageSQL = `INSERT INTO coupon_usages (coupon_id, customer_id, used_at)
		VALUES ($1, $2, now())`

	clearCartSQL = `DELETE FROM cart_lines WHERE customer_id = $1`

	getOrderSQL = `SELECT id, customer_id, status, placed_at,
			ship_name, ship_phone, ship_address, note, coupon_code,
			subtotal, discount, shipping_cost, total
		FROM orders WHERE id = $1`

	getOrderForUpdateSQL = getOrderSQL + ` FOR UPDATE`

	getOrderLinesSQL = `SELECT product_id, color_id, quantity, unit_price, unit_cost
		FROM order_lines WHERE order_id = $1 ORDER BY product_id, color_id`

	setOrderStatusSQL = `UPDATE orders SET status = $2 WHERE id = $1`
)

const (
	placeAttempts = 3
	placeBackoff  = 25 * time.Millisecond
)

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by PostgreSQL. Every placement
// and transition runs in a single transaction; stock reservations roll back
// with it, so a half-created order is never visible.
type OrderStore struct {
	pool *pgxpool.Pool
	lg   *zap.Logger
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool, lg *zap.Logger) *OrderStore {
	return &OrderStore{pool: pool, lg: lg}
}

// Place runs fn inside one transaction, retrying a bounded number of times
// on serialization conflicts and lock timeouts before surfacing the error.
func (s *OrderStore) Place(ctx context.Context, fn func(tx order.PlacementTx) error) error {
	var lastErr error
	for attempt := 0; attempt < placeAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(placeBackoff << attempt):
			}
		}

		err := s.placeOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		s.lg.Warn("placement conflict, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		lastErr = err
	}
	return errors.Wrap(lastErr, "placement retries exhausted")
}

func (s *OrderStore) placeOnce(ctx context.Context, fn func(tx order.PlacementTx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin placement: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&placementTx{tx: tx, lg: s.lg}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Get loads an order with its lines.
func (s *OrderStore) Get(ctx context.Context, orderID string) (*order.Order, error) {
	o, err := scanOrderRow(s.pool.QueryRow(ctx, getOrderSQL, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", orderID, err)
	}

	rows, err := s.pool.Query(ctx, getOrderLinesSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting lines of order %q: %w", orderID, err)
	}
	o.Lines, err = pgx.CollectRows(rows, scanOrderLine)
	if err != nil {
		return nil, fmt.Errorf("getting lines of order %q: %w", orderID, err)
	}
	return o, nil
}

// Transition locks the order row, loads the aggregate, and runs fn. The
// status change and any stock release commit together.
func (s *OrderStore) Transition(ctx context.Context, orderID string, fn func(tx order.TransitionTx, o *order.Order) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback(ctx)

	o, err := scanOrderRow(tx.QueryRow(ctx, getOrderForUpdateSQL, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.ErrNotFound
		}
		return fmt.Errorf("locking order %q: %w", orderID, err)
	}

	rows, err := tx.Query(ctx, getOrderLinesSQL, orderID)
	if err != nil {
		return fmt.Errorf("getting lines of order %q: %w", orderID, err)
	}
	o.Lines, err = pgx.CollectRows(rows, scanOrderLine)
	if err != nil {
		return fmt.Errorf("getting lines of order %q: %w", orderID, err)
	}

	if err := fn(&transitionTx{tx: tx, lg: s.lg}, o); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// placementTx implements order.PlacementTx over a pgx transaction.
type placementTx struct {
	tx pgx.Tx
	lg *zap.Logger
}

func (p *placementTx) TryReserve(ctx context.Context, key stock.Key, qty int) error {
	return reserveStock(ctx, p.tx, key, qty)
}

func (p *placementTx) Release(ctx context.Context, key stock.Key, qty int) error {
	return releaseStock(ctx, p.tx, p.lg, key, qty)
}

func (p *placementTx) CreateOrder(ctx context.Context, o *order.Order) error {
	_, err := p.tx.Exec(ctx, createOrderSQL,
		o.ID, o.CustomerID, string(o.Status), o.PlacedAt,
		o.Shipping.Name, o.Shipping.Phone, o.Shipping.Address, o.Shipping.Note,
		o.CouponCode, o.Subtotal, o.Discount, o.ShippingCost, o.Total,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	for _, l := range o.Lines {
		_, err := p.tx.Exec(ctx, createOrderLineSQL,
			o.ID, l.ProductID, l.ColorID, l.Quantity, l.UnitPrice, l.UnitCost,
		)
		if err != nil {
			return fmt.Errorf("creating line %s of order %q: %w", l.Key(), o.ID, err)
		}
	}
	return nil
}

func (p *placementTx) RecordCouponUsage(ctx context.Context, couponID, customerID string) error {
	_, err := p.tx.Exec(ctx, recordCouponUsageSQL, couponID, customerID)
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrAlreadyUsed
		}
		return fmt.Errorf("recording usage of coupon %q: %w", couponID, err)
	}
	return nil
}

func (p *placementTx) ClearCart(ctx context.Context, customerID string) error {
	_, err := p.tx.Exec(ctx, clearCartSQL, customerID)
	if err != nil {
		return fmt.Errorf("clearing cart of %q: %w", customerID, err)
	}
	return nil
}

// transitionTx implements order.TransitionTx over a pgx transaction.
type transitionTx struct {
	tx pgx.Tx
	lg *zap.Logger
}

func (t *transitionTx) SetStatus(ctx context.Context, orderID string, s order.Status) error {
	_, err := t.tx.Exec(ctx, setOrderStatusSQL, orderID, string(s))
	if err != nil {
		return fmt.Errorf("setting status of order %q: %w", orderID, err)
	}
	return nil
}

func (t *transitionTx) ReleaseStock(ctx context.Context, key stock.Key, qty int) error {
	return releaseStock(ctx, t.tx, t.lg, key, qty)
}

func scanOrderRow(row pgx.Row) (*order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.CustomerID, &status, &o.PlacedAt,
		&o.Shipping.Name, &o.Shipping.Phone, &o.Shipping.Address, &o.Shipping.Note,
		&o.CouponCode, &o.Subtotal, &o.Discount, &o.ShippingCost, &o.Total,
	)
	if err != nil {
		return nil, err
	}

	// A status outside the transition table means the row was written by
	// something other than this service; refuse to act on it.
	o.Status, err = order.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("order %q: %w", o.ID, err)
	}
	return &o, nil
}

func scanOrderLine(row pgx.CollectableRow) (order.Line, error) {
	var l order.Line
	err := row.Scan(&l.ProductID, &l.ColorID, &l.Quantity, &l.UnitPrice, &l.UnitCost)
	return l, err
}

// isRetryable reports whether err is a transient transaction conflict:
// serialization failure, deadlock, or lock timeout.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "55P03":
		return true
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
