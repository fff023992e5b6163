// Package handler exposes the checkout API over HTTP.
package handler

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/voltmart/checkout/internal/domain/checkout"
	"github.com/voltmart/checkout/internal/domain/customer"
	"github.com/voltmart/checkout/internal/domain/order"
)

// SummaryCache is the slice of redis the handler uses for order confirmation
// summaries. Satisfied by *redis.Client.
type SummaryCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ShippingFee is the flat shipping cost quoted in previews and charged
	// on orders. Server-authoritative; never taken from the request.
	ShippingFee decimal.Decimal
}

// Handler serves the checkout endpoints, delegating business logic to the
// session builder, coupon evaluator and order service.
type Handler struct {
	builder     *checkout.Builder
	coupons     order.CouponEvaluator
	orders      *order.Service
	shippingFee decimal.Decimal

	// cache holds order confirmation summaries. Optional and read-through;
	// the database stays authoritative.
	cache SummaryCache
}

// New constructs a Handler with the required domain dependencies.
// cache may be nil.
func New(cfg Config, builder *checkout.Builder, coupons order.CouponEvaluator, orders *order.Service, cache SummaryCache) *Handler {
	return &Handler{
		builder:     builder,
		coupons:     coupons,
		orders:      orders,
		shippingFee: cfg.ShippingFee,
		cache:       cache,
	}
}

// Routes mounts the checkout endpoints behind customer authentication.
func (h *Handler) Routes(customers customer.Repository, pepper []byte) chi.Router {
	r := chi.NewRouter()
	r.Use(Authenticate(customers, pepper))

	r.Get("/check-out", h.checkOut)
	r.Post("/apply-coupon", h.applyCoupon)
	r.Post("/buy-now", h.buyNow)
	r.Post("/place-order", h.placeOrder)
	r.Get("/order-success/{orderID}", h.orderSuccess)
	r.Post("/cancel-order/{orderID}", h.cancelOrder)

	return r
}
