package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltmart/checkout/internal/domain/customer"
)

const getCustomerByTokenHashSQL = `SELECT c.id, c.name, c.email, c.phone, c.address
	FROM customers c
	JOIN customer_tokens t ON t.customer_id = c.id
	WHERE t.token_hash = $1 AND t.revoked = FALSE`

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository provides customer session lookups backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// FindByTokenHash looks up the customer owning an unrevoked session token by
// the token's HMAC-SHA256 hash.
func (r *CustomerRepository) FindByTokenHash(ctx context.Context, hash string) (*customer.Info, error) {
	var info customer.Info
	err := r.pool.QueryRow(ctx, getCustomerByTokenHashSQL, hash).Scan(
		&info.ID, &info.Name, &info.Email, &info.Phone, &info.Address,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, errors.Wrap(err, "find customer by token hash")
	}
	return &info, nil
}
