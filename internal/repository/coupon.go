package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltmart/checkout/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT id, code, discount_type, value, max_discount, min_spend, ends_at, active
		FROM coupons WHERE UPPER(code) = UPPER($1) AND active = TRUE`

	couponUsageExistsSQL = `SELECT EXISTS (
		SELECT 1 FROM coupon_usages WHERE coupon_id = $1 AND customer_id = $2)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up an available coupon by its code (case-insensitive).
// Returns coupon.ErrNotFound when no matching coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// Used reports whether a usage row exists for the (coupon, customer) pair.
func (r *CouponRepository) Used(ctx context.Context, couponID, customerID string) (bool, error) {
	var used bool
	err := r.pool.QueryRow(ctx, couponUsageExistsSQL, couponID, customerID).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("checking usage of coupon %q: %w", couponID, err)
	}
	return used, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
	)
	err := row.Scan(
		&c.ID, &c.Code, &discountType, &c.Value,
		&c.MaxDiscount, &c.MinSpend, &c.EndsAt, &c.Active,
	)
	c.DiscountType = coupon.DiscountType(discountType)
	return c, err
}
