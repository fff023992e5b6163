package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltmart/checkout/internal/domain/checkout"
	"github.com/voltmart/checkout/internal/domain/coupon"
	"github.com/voltmart/checkout/internal/domain/stock"
)

// --- Mock implementations ---

// fakeStore is an in-memory Store with the same atomicity contract as the
// real one: reservations are conditional decrements, and a failed placement
// leaves stock and orders untouched.
type fakeStore struct {
	mu           sync.Mutex
	stock        map[stock.Key]int
	orders       map[string]*Order
	usages       map[string]bool
	clearedCarts []string
}

func newFakeStore(levels map[stock.Key]int) *fakeStore {
	s := &fakeStore{
		stock:  make(map[stock.Key]int, len(levels)),
		orders: make(map[string]*Order),
		usages: make(map[string]bool),
	}
	for k, v := range levels {
		s.stock[k] = v
	}
	return s
}

func (s *fakeStore) Place(_ context.Context, fn func(tx PlacementTx) error) error {
	tx := &fakePlacementTx{store: s, reserved: make(map[stock.Key]int)}
	if err := fn(tx); err != nil {
		// Roll back: return every acquired reservation.
		s.mu.Lock()
		for k, qty := range tx.reserved {
			s.stock[k] += qty
		}
		s.mu.Unlock()
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.order != nil {
		s.orders[tx.order.ID] = tx.order
	}
	for u := range tx.usages {
		s.usages[u] = true
	}
	s.clearedCarts = append(s.clearedCarts, tx.cleared...)
	return nil
}

func (s *fakeStore) Get(_ context.Context, orderID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *fakeStore) Transition(_ context.Context, orderID string, fn func(tx TransitionTx, o *Order) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	return fn(&fakeTransitionTx{store: s}, o)
}

func (s *fakeStore) available(k stock.Key) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stock[k]
}

type fakePlacementTx struct {
	store    *fakeStore
	reserved map[stock.Key]int
	order    *Order
	usages   map[string]bool
	cleared  []string
}

func (t *fakePlacementTx) TryReserve(_ context.Context, key stock.Key, qty int) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.store.stock[key] < qty {
		return &stock.InsufficientError{Key: key, Requested: qty, Available: t.store.stock[key]}
	}
	t.store.stock[key] -= qty
	t.reserved[key] += qty
	return nil
}

func (t *fakePlacementTx) Release(_ context.Context, key stock.Key, qty int) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.stock[key] += qty
	t.reserved[key] -= qty
	return nil
}

func (t *fakePlacementTx) CreateOrder(_ context.Context, o *Order) error {
	t.order = o
	return nil
}

func (t *fakePlacementTx) RecordCouponUsage(_ context.Context, couponID, customerID string) error {
	if t.usages == nil {
		t.usages = make(map[string]bool)
	}
	t.usages[couponID+"/"+customerID] = true
	return nil
}

func (t *fakePlacementTx) ClearCart(_ context.Context, customerID string) error {
	t.cleared = append(t.cleared, customerID)
	return nil
}

type fakeTransitionTx struct {
	store    *fakeStore
	released map[stock.Key]int
}

func (t *fakeTransitionTx) SetStatus(_ context.Context, orderID string, s Status) error {
	t.store.orders[orderID].Status = s
	return nil
}

func (t *fakeTransitionTx) ReleaseStock(_ context.Context, key stock.Key, qty int) error {
	t.store.stock[key] += qty
	if t.released == nil {
		t.released = make(map[stock.Key]int)
	}
	t.released[key] += qty
	return nil
}

type fakeEvaluator struct {
	discount *coupon.Discount
	err      error

	lastSubtotal decimal.Decimal
}

func (f *fakeEvaluator) Evaluate(_ context.Context, _, _ string, subtotal decimal.Decimal) (*coupon.Discount, error) {
	f.lastSubtotal = subtotal
	return f.discount, f.err
}

type fakePublisher struct {
	mu     sync.Mutex
	placed []*Order
}

func (f *fakePublisher) OrderPlaced(_ context.Context, o *Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, o)
}

// --- Helpers ---

var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestService(store *fakeStore, eval *fakeEvaluator, pub *fakePublisher) *Service {
	svc := NewService(store, eval, pub, dec("50.00"))
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func sessionLine(productID, colorID string, qty int, price string) checkout.Line {
	return checkout.Line{
		ProductID: productID,
		ColorID:   colorID,
		Quantity:  qty,
		UnitPrice: dec(price),
		UnitCost:  dec(price).Div(decimal.NewFromInt(2)),
	}
}

// --- Tests ---

func TestPlaceOrder_EmptyLines(t *testing.T) {
	svc := newTestService(newFakeStore(nil), &fakeEvaluator{}, &fakePublisher{})

	_, err := svc.PlaceOrder(context.Background(), PlaceRequest{CustomerID: "cust-1"})
	require.ErrorIs(t, err, ErrNoLines)
}

func TestPlaceOrder_Success(t *testing.T) {
	store := newFakeStore(map[stock.Key]int{
		{ProductID: "vm-1001"}:                 10,
		{ProductID: "vm-1002", ColorID: "blk"}: 10,
	})
	pub := &fakePublisher{}
	svc := newTestService(store, &fakeEvaluator{}, pub)

	o, err := svc.PlaceOrder(context.Background(), PlaceRequest{
		CustomerID: "cust-1",
		Lines: []checkout.Line{
			sessionLine("vm-1002", "blk", 2, "2490.00"),
			sessionLine("vm-1001", "", 1, "7990.00"),
		},
		Shipping: ShippingInfo{Name: "Demo", Address: "99 Sukhumvit Rd"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, o.ID)

	assert.Equal(t, StatusPlaced, o.Status)
	assert.Equal(t, fixedNow, o.PlacedAt)
	assert.True(t, o.Subtotal.Equal(dec("12970.00")), "got %s", o.Subtotal)
	assert.True(t, o.Discount.Equal(decimal.Zero))
	assert.True(t, o.ShippingCost.Equal(dec("50.00")))
	assert.True(t, o.Total.Equal(dec("13020.00")), "got %s", o.Total)

	// Line snapshots come in stable (productID, colorID) order.
	require.Len(t, o.Lines, 2)
	assert.Equal(t, "vm-1001", o.Lines[0].ProductID)
	assert.Equal(t, "vm-1002", o.Lines[1].ProductID)

	// Stock is decremented and the cart cleared.
	assert.Equal(t, 9, store.available(stock.Key{ProductID: "vm-1001"}))
	assert.Equal(t, 8, store.available(stock.Key{ProductID: "vm-1002", ColorID: "blk"}))
	assert.Equal(t, []string{"cust-1"}, store.clearedCarts)

	// The order survives in the store and the event went out.
	stored, err := store.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Total, stored.Total)
	require.Len(t, pub.placed, 1)
	assert.Equal(t, o.ID, pub.placed[0].ID)
}

func TestPlaceOrder_WithCoupon(t *testing.T) {
	store := newFakeStore(map[stock.Key]int{{ProductID: "vm-1001"}: 5})
	eval := &fakeEvaluator{discount: &coupon.Discount{
		CouponID: "c1",
		Code:     "SS2025",
		Amount:   dec("1000"),
	}}
	svc := newTestService(store, eval, &fakePublisher{})

	o, err := svc.PlaceOrder(context.Background(), PlaceRequest{
		CustomerID: "cust-1",
		Lines:      []checkout.Line{sessionLine("vm-1001", "", 2, "7990.00")},
		CouponCode: "SS2025",
	})
	require.NoError(t, err)

	// The evaluator saw the authoritative subtotal, not a client value.
	assert.True(t, eval.lastSubtotal.Equal(dec("15980.00")))
	assert.Equal(t, "SS2025", o.CouponCode)
	assert.True(t, o.Discount.Equal(dec("1000.00")))
	assert.True(t, o.Total.Equal(dec("15030.00")), "got %s", o.Total)
	assert.True(t, store.usages["c1/cust-1"], "coupon usage must be recorded")
}

func TestPlaceOrder_CouponRejectedAbortsPlacement(t *testing.T) {
	key := stock.Key{ProductID: "vm-1001"}
	store := newFakeStore(map[stock.Key]int{key: 5})
	eval := &fakeEvaluator{err: coupon.ErrAlreadyUsed}
	svc := newTestService(store, eval, &fakePublisher{})

	_, err := svc.PlaceOrder(context.Background(), PlaceRequest{
		CustomerID: "cust-1",
		Lines:      []checkout.Line{sessionLine("vm-1001", "", 1, "7990.00")},
		CouponCode: "ONCE",
	})
	require.ErrorIs(t, err, coupon.ErrAlreadyUsed)

	// Nothing committed.
	assert.Equal(t, 5, store.available(key))
	assert.Empty(t, store.orders)
	assert.Empty(t, store.clearedCarts)
}

func TestPlaceOrder_RejectedNamesEveryFailingLine(t *testing.T) {
	okKey := stock.Key{ProductID: "vm-1001"}
	lowKey := stock.Key{ProductID: "vm-1003", ColorID: "nvy"}
	outKey := stock.Key{ProductID: "vm-1004"}
	store := newFakeStore(map[stock.Key]int{okKey: 10, lowKey: 1, outKey: 0})
	pub := &fakePublisher{}
	svc := newTestService(store, &fakeEvaluator{}, pub)

	_, err := svc.PlaceOrder(context.Background(), PlaceRequest{
		CustomerID: "cust-1",
		Lines: []checkout.Line{
			sessionLine("vm-1001", "", 2, "7990.00"),
			sessionLine("vm-1003", "nvy", 3, "2990.00"),
			sessionLine("vm-1004", "", 1, "990.00"),
		},
	})

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	require.Len(t, rejected.Failures, 2)
	assert.Equal(t, lowKey, rejected.Failures[0].Key)
	assert.Equal(t, 3, rejected.Failures[0].Requested)
	assert.Equal(t, 1, rejected.Failures[0].Available)
	assert.Equal(t, outKey, rejected.Failures[1].Key)

	// The successful reservation rolled back with the transaction.
	assert.Equal(t, 10, store.available(okKey))
	assert.Equal(t, 1, store.available(lowKey))
	assert.Empty(t, store.orders)
	assert.Empty(t, pub.placed)
}

func TestPlaceOrder_BuyNowKeepsCart(t *testing.T) {
	store := newFakeStore(map[stock.Key]int{{ProductID: "vm-1001"}: 5})
	svc := newTestService(store, &fakeEvaluator{}, &fakePublisher{})

	_, err := svc.PlaceOrder(context.Background(), PlaceRequest{
		CustomerID: "cust-1",
		Lines:      []checkout.Line{sessionLine("vm-1001", "", 1, "7990.00")},
		BuyNow:     true,
	})
	require.NoError(t, err)
	assert.Empty(t, store.clearedCarts)
}

// Concurrent placements racing for the last unit: exactly one wins, the
// rest are rejected, and stock never goes negative.
func TestPlaceOrder_LastUnitRace(t *testing.T) {
	key := stock.Key{ProductID: "vm-1003", ColorID: "nvy"}
	store := newFakeStore(map[stock.Key]int{key: 1})
	svc := newTestService(store, &fakeEvaluator{}, &fakePublisher{})

	const attempts = 8
	results := make(chan error, attempts)

	var wg sync.WaitGroup
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PlaceOrder(context.Background(), PlaceRequest{
				CustomerID: "cust-1",
				Lines:      []checkout.Line{sessionLine("vm-1003", "nvy", 1, "2990.00")},
				BuyNow:     true,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, rejections int
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		var rejected *RejectedError
		require.ErrorAs(t, err, &rejected)
		rejections++
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, rejections)
	assert.Equal(t, 0, store.available(key))
	assert.Len(t, store.orders, 1)
}

func TestGet_OwnershipHidesForeignOrders(t *testing.T) {
	store := newFakeStore(map[stock.Key]int{{ProductID: "vm-1001"}: 5})
	svc := newTestService(store, &fakeEvaluator{}, &fakePublisher{})

	o, err := svc.PlaceOrder(context.Background(), PlaceRequest{
		CustomerID: "cust-1",
		Lines:      []checkout.Line{sessionLine("vm-1001", "", 1, "7990.00")},
	})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), o.ID, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = svc.Get(context.Background(), o.ID, "cust-2")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Get(context.Background(), "missing", "cust-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCancel_ReleasesReservedStock(t *testing.T) {
	key := stock.Key{ProductID: "vm-1001"}
	store := newFakeStore(map[stock.Key]int{key: 10})
	svc := newTestService(store, &fakeEvaluator{}, &fakePublisher{})

	o, err := svc.PlaceOrder(context.Background(), PlaceRequest{
		CustomerID: "cust-1",
		Lines:      []checkout.Line{sessionLine("vm-1001", "", 3, "7990.00")},
	})
	require.NoError(t, err)
	require.Equal(t, 7, store.available(key))

	require.NoError(t, svc.Cancel(context.Background(), o.ID, "cust-1"))

	got, err := store.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, got.Status)
	assert.Equal(t, 10, store.available(key))
}

func TestCancel_ForeignOrder(t *testing.T) {
	store := newFakeStore(map[stock.Key]int{{ProductID: "vm-1001"}: 5})
	svc := newTestService(store, &fakeEvaluator{}, &fakePublisher{})

	o, err := svc.PlaceOrder(context.Background(), PlaceRequest{
		CustomerID: "cust-1",
		Lines:      []checkout.Line{sessionLine("vm-1001", "", 1, "7990.00")},
	})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Cancel(context.Background(), o.ID, "cust-2"), ErrNotFound)
}

func TestTransition_EnforcesTable(t *testing.T) {
	key := stock.Key{ProductID: "vm-1001"}
	store := newFakeStore(map[stock.Key]int{key: 5})
	svc := newTestService(store, &fakeEvaluator{}, &fakePublisher{})

	o, err := svc.PlaceOrder(context.Background(), PlaceRequest{
		CustomerID: "cust-1",
		Lines:      []checkout.Line{sessionLine("vm-1001", "", 1, "7990.00")},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Transition(context.Background(), o.ID, StatusProcessing))
	require.NoError(t, svc.Transition(context.Background(), o.ID, StatusShipped))

	// Cancellation after shipping is not allowed.
	err = svc.Cancel(context.Background(), o.ID, "cust-1")
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, StatusShipped, invalid.From)
	assert.Equal(t, StatusCanceled, invalid.To)

	// The failed cancellation released nothing.
	assert.Equal(t, 4, store.available(key))

	// Skipping ahead is not allowed either.
	err = svc.Transition(context.Background(), o.ID, StatusCompleted)
	require.ErrorAs(t, err, &invalid)

	require.NoError(t, svc.Transition(context.Background(), o.ID, StatusOutForDelivery))
	require.NoError(t, svc.Transition(context.Background(), o.ID, StatusDelivered))
	require.NoError(t, svc.Transition(context.Background(), o.ID, StatusCompleted))
	require.NoError(t, svc.Transition(context.Background(), o.ID, StatusReturned))
}
