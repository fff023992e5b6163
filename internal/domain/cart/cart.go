// Package cart exposes the read side of the customer cart. Cart mutation
// (add/update/remove) belongs to the storefront; checkout only consumes the
// lines and clears them inside a successful order placement.
package cart

import "context"

// Line is one (product, color, quantity) tuple awaiting purchase.
// ColorID is empty for products without color variants.
type Line struct {
	ProductID string
	ColorID   string
	Quantity  int
}

// Repository reads the persisted cart of a customer.
type Repository interface {
	Lines(ctx context.Context, customerID string) ([]Line, error)
}
