// Package stock defines the inventory ledger contract used by checkout.
//
// The ledger tracks available quantity per (product, color variant) key.
// Reservations are conditional decrements: they must be indivisible with
// respect to concurrent reservations for the same key, so that two
// reservations against a stock of one produce exactly one success.
package stock

import (
	"context"
	"fmt"
)

// Key identifies one stock record. ColorID is empty for products without
// color variants.
type Key struct {
	ProductID string
	ColorID   string
}

func (k Key) String() string {
	if k.ColorID == "" {
		return k.ProductID
	}
	return k.ProductID + "/" + k.ColorID
}

// InsufficientError reports a failed reservation together with the quantity
// that was actually available at the time of the attempt.
type InsufficientError struct {
	Key       Key
	Requested int
	Available int
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.Key, e.Requested, e.Available)
}

// Ledger exposes atomic stock mutations.
//
// TryReserve decrements the available quantity by qty only when at least qty
// units are available, as a single indivisible operation. It returns
// *InsufficientError when the stock cannot cover the request.
//
// Release adds qty units back. It is used for cancellations only; releasing
// an unknown key is a no-op that the implementation logs as an inconsistency.
type Ledger interface {
	TryReserve(ctx context.Context, key Key, qty int) error
	Release(ctx context.Context, key Key, qty int) error
}

// Reader provides non-authoritative availability snapshots for previews.
// The value may be stale by the time an order is committed; admission is
// re-checked by TryReserve inside the placement transaction.
type Reader interface {
	Available(ctx context.Context, key Key) (int, error)
}
