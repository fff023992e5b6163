package checkout

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltmart/checkout/internal/domain/cart"
	"github.com/voltmart/checkout/internal/domain/product"
	"github.com/voltmart/checkout/internal/domain/stock"
)

// --- Mock implementations ---

type mockCartRepo struct {
	lines map[string][]cart.Line
	err   error
}

func (m *mockCartRepo) Lines(_ context.Context, customerID string) ([]cart.Line, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.lines[customerID], nil
}

type mockProductRepo struct {
	byID map[string]*product.Product
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	out := make([]product.Product, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

type mockStockReader struct {
	available map[stock.Key]int
}

func (m *mockStockReader) Available(_ context.Context, key stock.Key) (int, error) {
	return m.available[key], nil
}

// --- Helpers ---

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newCatalog() (*mockProductRepo, *mockStockReader) {
	products := &mockProductRepo{byID: map[string]*product.Product{
		"vm-1001": {
			ID:        "vm-1001",
			Name:      "Monitor",
			Price:     dec("8990.00"),
			SalePrice: dec("7990.00"),
			Cost:      dec("5200.00"),
		},
		"vm-1002": {
			ID:    "vm-1002",
			Name:  "Keyboard",
			Price: dec("2490.00"),
			Cost:  dec("1300.00"),
			Colors: []product.Color{
				{ID: "blk", Name: "Black"},
				{ID: "wht", Name: "White"},
			},
		},
	}}
	stocks := &mockStockReader{available: map[stock.Key]int{
		{ProductID: "vm-1001"}:                 14,
		{ProductID: "vm-1002", ColorID: "blk"}: 40,
		{ProductID: "vm-1002", ColorID: "wht"}: 22,
	}}
	return products, stocks
}

// --- Tests ---

func TestBuild_FromCart(t *testing.T) {
	products, stocks := newCatalog()
	carts := &mockCartRepo{lines: map[string][]cart.Line{
		"cust-1": {
			{ProductID: "vm-1002", ColorID: "blk", Quantity: 2},
			{ProductID: "vm-1001", Quantity: 1},
		},
	}}
	b := NewBuilder(carts, products, stocks)

	lines, err := b.Build(context.Background(), "cust-1", FromCart())
	require.NoError(t, err)
	require.Len(t, lines, 2)

	// Lines are ordered by (productID, colorID) regardless of cart order.
	assert.Equal(t, "vm-1001", lines[0].ProductID)
	assert.Equal(t, "vm-1002", lines[1].ProductID)

	// The sale price wins when set.
	assert.True(t, lines[0].UnitPrice.Equal(dec("7990.00")))
	assert.True(t, lines[1].UnitPrice.Equal(dec("2490.00")))
	assert.Equal(t, "Monitor", lines[0].ProductName)
	assert.Equal(t, 14, lines[0].Available)
	assert.Equal(t, 40, lines[1].Available)
}

func TestBuild_EmptyCart(t *testing.T) {
	products, stocks := newCatalog()
	b := NewBuilder(&mockCartRepo{lines: map[string][]cart.Line{}}, products, stocks)

	_, err := b.Build(context.Background(), "cust-1", FromCart())
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestBuild_BuyNow(t *testing.T) {
	products, stocks := newCatalog()
	// Buy-now never touches the cart.
	carts := &mockCartRepo{err: errors.New("must not be called")}
	b := NewBuilder(carts, products, stocks)

	lines, err := b.Build(context.Background(), "cust-1", BuyNow("vm-1002", "wht", 3))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "wht", lines[0].ColorID)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.Equal(t, 22, lines[0].Available)
}

func TestBuild_BuyNowInvalidQuantity(t *testing.T) {
	products, stocks := newCatalog()
	b := NewBuilder(&mockCartRepo{}, products, stocks)

	_, err := b.Build(context.Background(), "cust-1", BuyNow("vm-1002", "blk", 0))
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = b.Build(context.Background(), "cust-1", BuyNow("vm-1002", "blk", -3))
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestBuild_UnknownProduct(t *testing.T) {
	products, stocks := newCatalog()
	b := NewBuilder(&mockCartRepo{}, products, stocks)

	_, err := b.Build(context.Background(), "cust-1", BuyNow("vm-9999", "", 1))
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestBuild_UnknownColor(t *testing.T) {
	products, stocks := newCatalog()
	b := NewBuilder(&mockCartRepo{}, products, stocks)

	_, err := b.Build(context.Background(), "cust-1", BuyNow("vm-1002", "red", 1))
	require.ErrorIs(t, err, product.ErrUnknownColor)
}

func TestBuild_ColorRequiredForVariantProduct(t *testing.T) {
	products, stocks := newCatalog()
	b := NewBuilder(&mockCartRepo{}, products, stocks)

	// vm-1002 has color variants, so an empty color is invalid.
	_, err := b.Build(context.Background(), "cust-1", BuyNow("vm-1002", "", 1))
	require.ErrorIs(t, err, product.ErrUnknownColor)

	// vm-1001 has no variants, so empty is the only valid color.
	_, err = b.Build(context.Background(), "cust-1", BuyNow("vm-1001", "", 1))
	require.NoError(t, err)
	_, err = b.Build(context.Background(), "cust-1", BuyNow("vm-1001", "blk", 1))
	require.ErrorIs(t, err, product.ErrUnknownColor)
}

func TestSubtotal(t *testing.T) {
	lines := []Line{
		{UnitPrice: dec("7990.00"), Quantity: 1},
		{UnitPrice: dec("2490.00"), Quantity: 2},
	}
	assert.True(t, Subtotal(lines).Equal(dec("12970.00")))
	assert.True(t, Subtotal(nil).Equal(decimal.Zero))
}

func TestCompute(t *testing.T) {
	lines := []Line{
		{UnitPrice: dec("7990.00"), Quantity: 1},
		{UnitPrice: dec("2490.00"), Quantity: 2},
	}

	b := Compute(lines, dec("1000"), dec("50"))
	assert.True(t, b.Subtotal.Equal(dec("12970.00")))
	assert.True(t, b.Discount.Equal(dec("1000.00")))
	assert.True(t, b.Shipping.Equal(dec("50.00")))
	assert.True(t, b.Total.Equal(dec("12020.00")))
}

func TestCompute_TotalFlooredAtZero(t *testing.T) {
	lines := []Line{{UnitPrice: dec("100.00"), Quantity: 1}}

	b := Compute(lines, dec("500"), decimal.Zero)
	assert.True(t, b.Total.Equal(decimal.Zero), "got %s", b.Total)
}
