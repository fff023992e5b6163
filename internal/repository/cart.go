package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltmart/checkout/internal/domain/cart"
)

const getCartLinesSQL = `SELECT product_id, color_id, quantity
	FROM cart_lines WHERE customer_id = $1 ORDER BY product_id, color_id`

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository reads customer carts from PostgreSQL. Cart mutation belongs
// to the storefront service; checkout clears lines only inside a placement
// transaction (see OrderStore).
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Lines returns the customer's current cart lines in stable key order.
func (r *CartRepository) Lines(ctx context.Context, customerID string) ([]cart.Line, error) {
	rows, err := r.pool.Query(ctx, getCartLinesSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("reading cart of %q: %w", customerID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Line, error) {
		var l cart.Line
		err := row.Scan(&l.ProductID, &l.ColorID, &l.Quantity)
		return l, err
	})
}
