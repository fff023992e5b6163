package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/voltmart/checkout/internal/domain/checkout"
	"github.com/voltmart/checkout/internal/domain/order"
)

const (
	orderCacheKeyPrefix = "checkout:order:"
	// An in-flight summary can still change status; a terminal one cannot.
	orderCacheTTL         = 10 * time.Minute
	terminalOrderCacheTTL = 24 * time.Hour
)

type previewLine struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	ColorID     string          `json:"colorId,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
	Available   int             `json:"available"`
}

type previewResponse struct {
	Success     bool            `json:"success"`
	Lines       []previewLine   `json:"lines"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	ShippingFee decimal.Decimal `json:"shippingFee"`
	// Default shipping details from the customer profile, for prefill.
	ShipName    string `json:"shipName"`
	ShipPhone   string `json:"shipPhone"`
	ShipAddress string `json:"shipAddress"`
}

type shippingInfoRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Note    string `json:"note"`
}

type buyNowRequest struct {
	ProductID string `json:"productId"`
	ColorID   string `json:"colorId"`
	Quantity  int    `json:"quantity"`
}

type applyCouponRequest struct {
	Code     string `json:"code"`
	IsBuyNow bool   `json:"isBuyNow"`
	buyNowRequest
}

type placeOrderRequest struct {
	CouponCode   string              `json:"couponCode"`
	ShippingInfo shippingInfoRequest `json:"shippingInfo"`
	IsBuyNow     bool                `json:"isBuyNow"`
	buyNowRequest
}

// checkOut returns the cart-based checkout preview.
func (h *Handler) checkOut(w http.ResponseWriter, r *http.Request) {
	cust, ok := CustomerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing credentials")
		return
	}

	lines, err := h.builder.Build(r.Context(), cust.ID, checkout.FromCart())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	resp := h.preview(lines)
	resp.ShipName = cust.Name
	resp.ShipPhone = cust.Phone
	resp.ShipAddress = cust.Address
	writeJSON(w, http.StatusOK, resp)
}

// buyNow returns a single-line checkout preview bypassing the cart.
func (h *Handler) buyNow(w http.ResponseWriter, r *http.Request) {
	cust, ok := CustomerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing credentials")
		return
	}

	var req buyNowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ProductID == "" || req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "productId and a positive quantity are required")
		return
	}

	lines, err := h.builder.Build(r.Context(), cust.ID, checkout.BuyNow(req.ProductID, req.ColorID, req.Quantity))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	resp := h.preview(lines)
	resp.ShipName = cust.Name
	resp.ShipPhone = cust.Phone
	resp.ShipAddress = cust.Address
	writeJSON(w, http.StatusOK, resp)
}

// applyCoupon evaluates a coupon against the current session subtotal.
// Side-effect free: usage is recorded only when an order commits.
func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	cust, ok := CustomerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing credentials")
		return
	}

	var req applyCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "coupon code is required")
		return
	}

	lines, err := h.builder.Build(r.Context(), cust.ID, sessionMode(req.IsBuyNow, req.buyNowRequest))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	disc, err := h.coupons.Evaluate(r.Context(), req.Code, cust.ID, checkout.Subtotal(lines))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"discount": disc.Amount,
		"message":  "coupon applied",
	})
}

// placeOrder commits the checkout session as an order.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	cust, ok := CustomerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing credentials")
		return
	}

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	lines, err := h.builder.Build(r.Context(), cust.ID, sessionMode(req.IsBuyNow, req.buyNowRequest))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	shipping := order.ShippingInfo{
		Name:    req.ShippingInfo.Name,
		Phone:   req.ShippingInfo.Phone,
		Address: req.ShippingInfo.Address,
		Note:    req.ShippingInfo.Note,
	}
	if shipping.Name == "" {
		shipping.Name = cust.Name
	}
	if shipping.Phone == "" {
		shipping.Phone = cust.Phone
	}
	if shipping.Address == "" {
		shipping.Address = cust.Address
	}
	if shipping.Address == "" {
		writeError(w, http.StatusBadRequest, "shipping address is required")
		return
	}

	o, err := h.orders.PlaceOrder(r.Context(), order.PlaceRequest{
		CustomerID: cust.ID,
		Lines:      lines,
		CouponCode: req.CouponCode,
		Shipping:   shipping,
		BuyNow:     req.IsBuyNow,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"orderId": o.ID,
	})
}

type orderLineResponse struct {
	ProductID string          `json:"productId"`
	ColorID   string          `json:"colorId,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type orderSummaryResponse struct {
	Success      bool                `json:"success"`
	OrderID      string              `json:"orderId"`
	Status       string              `json:"status"`
	PlacedAt     time.Time           `json:"placedAt"`
	Lines        []orderLineResponse `json:"lines"`
	Subtotal     decimal.Decimal     `json:"subtotal"`
	Discount     decimal.Decimal     `json:"discount"`
	ShippingCost decimal.Decimal     `json:"shippingCost"`
	Total        decimal.Decimal     `json:"total"`
	CouponCode   string              `json:"couponCode,omitempty"`
	ShipName     string              `json:"shipName"`
	ShipPhone    string              `json:"shipPhone"`
	ShipAddress  string              `json:"shipAddress"`
	Note         string              `json:"note,omitempty"`
}

// orderSuccess returns the confirmation summary for an order owned by the
// requesting customer. Summaries are immutable apart from status, so they
// are served from cache when possible.
func (h *Handler) orderSuccess(w http.ResponseWriter, r *http.Request) {
	cust, ok := CustomerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing credentials")
		return
	}
	orderID := chi.URLParam(r, "orderID")

	cacheKey := orderCacheKeyPrefix + cust.ID + ":" + orderID
	if h.cache != nil {
		if raw, err := h.cache.Get(r.Context(), cacheKey).Result(); err == nil && raw != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(raw))
			return
		}
	}

	o, err := h.orders.Get(r.Context(), orderID, cust.ID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	resp := summarize(o)
	if h.cache != nil {
		ttl := orderCacheTTL
		if o.Status.Terminal() {
			ttl = terminalOrderCacheTTL
		}
		if body, err := json.Marshal(resp); err == nil {
			if err := h.cache.Set(r.Context(), cacheKey, body, ttl).Err(); err != nil {
				zctx.From(r.Context()).Debug("order summary cache write failed", zap.Error(err))
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// cancelOrder performs a customer-initiated cancellation, releasing the
// order's reserved stock.
func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	cust, ok := CustomerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing credentials")
		return
	}
	orderID := chi.URLParam(r, "orderID")

	if err := h.orders.Cancel(r.Context(), orderID, cust.ID); err != nil {
		respondDomainError(w, r, err)
		return
	}

	if h.cache != nil {
		h.cache.Del(r.Context(), orderCacheKeyPrefix+cust.ID+":"+orderID)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) preview(lines []checkout.Line) previewResponse {
	out := make([]previewLine, len(lines))
	for i, l := range lines {
		out[i] = previewLine{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			ColorID:     l.ColorID,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			LineTotal:   l.Total().Round(2),
			Available:   l.Available,
		}
	}
	return previewResponse{
		Success:     true,
		Lines:       out,
		Subtotal:    checkout.Subtotal(lines).Round(2),
		ShippingFee: h.shippingFee,
	}
}

func summarize(o *order.Order) orderSummaryResponse {
	lines := make([]orderLineResponse, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = orderLineResponse{
			ProductID: l.ProductID,
			ColorID:   l.ColorID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		}
	}
	return orderSummaryResponse{
		Success:      true,
		OrderID:      o.ID,
		Status:       string(o.Status),
		PlacedAt:     o.PlacedAt,
		Lines:        lines,
		Subtotal:     o.Subtotal,
		Discount:     o.Discount,
		ShippingCost: o.ShippingCost,
		Total:        o.Total,
		CouponCode:   o.CouponCode,
		ShipName:     o.Shipping.Name,
		ShipPhone:    o.Shipping.Phone,
		ShipAddress:  o.Shipping.Address,
		Note:         o.Shipping.Note,
	}
}

func sessionMode(isBuyNow bool, req buyNowRequest) checkout.Mode {
	if isBuyNow {
		return checkout.BuyNow(req.ProductID, req.ColorID, req.Quantity)
	}
	return checkout.FromCart()
}
