// Package customer is the checkout-side view of the identity service.
package customer

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no customer owns the presented token.
var ErrNotFound = errors.New("customer not found")

// Info holds the identity and default shipping data of a customer session.
type Info struct {
	ID      string
	Name    string
	Email   string
	Phone   string
	Address string
}

// Repository provides customer lookup by session token hash.
// Token issuance and account management live in the identity service.
type Repository interface {
	FindByTokenHash(ctx context.Context, hash string) (*Info, error)
}
