package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/voltmart/checkout/internal/domain/stock"
)

const (
	getAvailableSQL = `SELECT quantity FROM stock WHERE product_id = $1 AND color_id = $2`

	// Conditional decrement: the WHERE guard makes check-and-decrement one
	// indivisible statement; RowsAffected tells reservation from refusal.
	reserveStockSQL = `UPDATE stock SET quantity = quantity - $3
		WHERE product_id = $1 AND color_id = $2 AND quantity >= $3`

	releaseStockSQL = `UPDATE stock SET quantity = quantity + $3
		WHERE product_id = $1 AND color_id = $2`
)

var _ stock.Reader = (*StockRepository)(nil)

// StockRepository reads availability snapshots from PostgreSQL. Mutation
// happens only through transaction-scoped ledgers (see OrderStore).
type StockRepository struct {
	pool *pgxpool.Pool
}

// NewStockRepository returns a StockRepository that uses the given pool.
func NewStockRepository(pool *pgxpool.Pool) *StockRepository {
	return &StockRepository{pool: pool}
}

// Available returns the current quantity for the key, zero when the key is
// unknown. The value is a preview snapshot, not an admission guarantee.
func (r *StockRepository) Available(ctx context.Context, key stock.Key) (int, error) {
	var qty int
	err := r.pool.QueryRow(ctx, getAvailableSQL, key.ProductID, key.ColorID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading stock for %s: %w", key, err)
	}
	return qty, nil
}

// reserveStock performs the conditional decrement inside tx. When the guard
// refuses, the current quantity is re-read to report what was available.
func reserveStock(ctx context.Context, tx pgx.Tx, key stock.Key, qty int) error {
	tag, err := tx.Exec(ctx, reserveStockSQL, key.ProductID, key.ColorID, qty)
	if err != nil {
		return fmt.Errorf("reserving %d of %s: %w", qty, key, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var available int
	err = tx.QueryRow(ctx, getAvailableSQL, key.ProductID, key.ColorID).Scan(&available)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("reading stock for %s: %w", key, err)
	}
	return &stock.InsufficientError{Key: key, Requested: qty, Available: available}
}

// releaseStock adds qty back inside tx. An unknown key is a no-op logged as
// an inconsistency.
func releaseStock(ctx context.Context, tx pgx.Tx, lg *zap.Logger, key stock.Key, qty int) error {
	tag, err := tx.Exec(ctx, releaseStockSQL, key.ProductID, key.ColorID, qty)
	if err != nil {
		return fmt.Errorf("releasing %d of %s: %w", qty, key, err)
	}
	if tag.RowsAffected() == 0 {
		lg.Warn("release for unknown stock key",
			zap.String("product_id", key.ProductID),
			zap.String("color_id", key.ColorID),
			zap.Int("quantity", qty),
		)
	}
	return nil
}
