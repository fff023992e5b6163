// Package checkout builds the "thing being purchased", either the customer's
// persisted cart or a single buy-now line, and computes the price breakdown
// for it.
package checkout

import (
	"context"
	"sort"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/voltmart/checkout/internal/domain/cart"
	"github.com/voltmart/checkout/internal/domain/product"
	"github.com/voltmart/checkout/internal/domain/stock"
)

// ErrEmptyCart is returned when a cart-mode session finds no cart lines.
var ErrEmptyCart = errors.New("cart is empty")

// ErrInvalidQuantity is returned when a buy-now session requests a
// non-positive quantity.
var ErrInvalidQuantity = errors.New("quantity must be greater than 0")

// Line is one priced session line. UnitPrice is the current
// price-after-catalog-discount. Available is a non-authoritative stock
// snapshot for preview purposes only; admission is re-checked atomically at
// order commit.
type Line struct {
	ProductID   string
	ProductName string
	ColorID     string
	Quantity    int
	UnitPrice   decimal.Decimal
	UnitCost    decimal.Decimal
	Available   int
}

// Total returns UnitPrice * Quantity for the line.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Key returns the stock ledger key for the line.
func (l Line) Key() stock.Key {
	return stock.Key{ProductID: l.ProductID, ColorID: l.ColorID}
}

// Mode selects the session source.
type Mode struct {
	buyNow bool
	line   cart.Line
}

// FromCart builds the session from the customer's persisted cart.
func FromCart() Mode { return Mode{} }

// BuyNow builds a single-line session bypassing the persisted cart.
func BuyNow(productID, colorID string, quantity int) Mode {
	return Mode{buyNow: true, line: cart.Line{
		ProductID: productID,
		ColorID:   colorID,
		Quantity:  quantity,
	}}
}

// IsBuyNow reports whether the mode bypasses the persisted cart.
func (m Mode) IsBuyNow() bool { return m.buyNow }

// Builder assembles priced session lines from the cart and catalog.
type Builder struct {
	carts    cart.Repository
	products product.Repository
	stocks   stock.Reader
}

// NewBuilder creates a Builder with the required collaborators.
func NewBuilder(carts cart.Repository, products product.Repository, stocks stock.Reader) *Builder {
	return &Builder{carts: carts, products: products, stocks: stocks}
}

// Build produces the normalized, priced session lines for the customer in
// the given mode. Lines come back in a stable (productID, colorID) order so
// downstream reservation never deadlocks between overlapping orders.
func (b *Builder) Build(ctx context.Context, customerID string, mode Mode) ([]Line, error) {
	var (
		src  []cart.Line
		byID map[string]*product.Product
	)
	if mode.buyNow {
		if mode.line.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		p, err := b.products.GetByID(ctx, mode.line.ProductID)
		if err != nil {
			return nil, errors.Wrapf(err, "product %s", mode.line.ProductID)
		}
		src = []cart.Line{mode.line}
		byID = map[string]*product.Product{p.ID: p}
	} else {
		lines, err := b.carts.Lines(ctx, customerID)
		if err != nil {
			return nil, errors.Wrap(err, "read cart")
		}
		if len(lines) == 0 {
			return nil, ErrEmptyCart
		}
		src = lines

		// Batch fetch all referenced products in a single query.
		ids := make([]string, len(src))
		for i, l := range src {
			ids[i] = l.ProductID
		}
		fetched, err := b.products.GetByIDs(ctx, ids)
		if err != nil {
			return nil, errors.Wrap(err, "get products")
		}
		byID = make(map[string]*product.Product, len(fetched))
		for i := range fetched {
			byID[fetched[i].ID] = &fetched[i]
		}
	}

	out := make([]Line, 0, len(src))
	for _, l := range src {
		p, ok := byID[l.ProductID]
		if !ok {
			return nil, errors.Wrapf(product.ErrNotFound, "product %s", l.ProductID)
		}
		if !p.HasColor(l.ColorID) {
			return nil, errors.Wrapf(product.ErrUnknownColor, "product %s color %q", l.ProductID, l.ColorID)
		}

		key := stock.Key{ProductID: l.ProductID, ColorID: l.ColorID}
		available, err := b.stocks.Available(ctx, key)
		if err != nil {
			return nil, errors.Wrapf(err, "stock snapshot for %s", key)
		}

		out = append(out, Line{
			ProductID:   l.ProductID,
			ProductName: p.Name,
			ColorID:     l.ColorID,
			Quantity:    l.Quantity,
			UnitPrice:   p.UnitPrice(),
			UnitCost:    p.Cost,
			Available:   available,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].ColorID < out[j].ColorID
	})

	return out, nil
}
