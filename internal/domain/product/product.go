package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// ErrUnknownColor is returned when a requested color variant does not belong
// to the product.
var ErrUnknownColor = errors.New("unknown product color")

// Product is the checkout-side view of a catalog item: identity, pricing and
// color variants. Catalog management owns the full record.
type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	SalePrice decimal.Decimal // discounted price; zero when no catalog discount
	Cost      decimal.Decimal // wholesale cost, snapshotted into order lines
	Colors    []Color
}

// Color is a purchasable variant of a product.
type Color struct {
	ID   string
	Name string
}

// UnitPrice returns the price a customer pays right now: the catalog sale
// price when one is set, the list price otherwise.
func (p *Product) UnitPrice() decimal.Decimal {
	if p.SalePrice.IsPositive() {
		return p.SalePrice
	}
	return p.Price
}

// HasColor reports whether id names one of the product's color variants.
// The empty id is valid only for products without variants.
func (p *Product) HasColor(id string) bool {
	if id == "" {
		return len(p.Colors) == 0
	}
	for _, c := range p.Colors {
		if c.ID == id {
			return true
		}
	}
	return false
}

// Repository defines read operations against the product catalog.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
