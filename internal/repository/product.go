package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltmart/checkout/internal/domain/product"
)

const (
	getProductByIDSQL = `SELECT id, name, price, sale_price, cost
		FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT id, name, price, sale_price, cost
		FROM products WHERE id = ANY($1) ORDER BY id`

	getColorsByProductIDsSQL = `SELECT product_id, id, name
		FROM product_colors WHERE product_id = ANY($1) ORDER BY product_id, id`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID returns a single product with its color variants.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	if err := r.attachColors(ctx, []*product.Product{&p}); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs, colors included.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}

	refs := make([]*product.Product, len(products))
	for i := range products {
		refs[i] = &products[i]
	}
	if err := r.attachColors(ctx, refs); err != nil {
		return nil, err
	}
	return products, nil
}

// attachColors loads the color variants for the given products in one query.
func (r *ProductRepository) attachColors(ctx context.Context, products []*product.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]string, len(products))
	byID := make(map[string]*product.Product, len(products))
	for i, p := range products {
		ids[i] = p.ID
		byID[p.ID] = p
	}

	rows, err := r.pool.Query(ctx, getColorsByProductIDsSQL, ids)
	if err != nil {
		return fmt.Errorf("getting product colors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			productID string
			c         product.Color
		)
		if err := rows.Scan(&productID, &c.ID, &c.Name); err != nil {
			return fmt.Errorf("scanning product color: %w", err)
		}
		if p, ok := byID[productID]; ok {
			p.Colors = append(p.Colors, c)
		}
	}
	return rows.Err()
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.SalePrice, &p.Cost)
	return p, err
}
