package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/voltmart/checkout/internal/domain/checkout"
	"github.com/voltmart/checkout/internal/domain/coupon"
	"github.com/voltmart/checkout/internal/domain/order"
	"github.com/voltmart/checkout/internal/domain/product"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]any{
		"success": false,
		"message": message,
	})
}

// stockFailure is the per-line detail of an insufficient-stock rejection.
type stockFailure struct {
	ProductID string `json:"productId"`
	ColorID   string `json:"colorId,omitempty"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// respondDomainError maps domain errors to HTTP responses. User-correctable
// failures surface verbatim; everything else is logged and answered
// generically.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrAlreadyUsed),
		errors.Is(err, coupon.ErrConditionNotMet),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrInvalidQuantity),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, product.ErrUnknownColor),
		errors.Is(err, order.ErrNoLines):
		writeError(w, http.StatusUnprocessableEntity, err.Error())

	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")

	default:
		var rejected *order.RejectedError
		if errors.As(err, &rejected) {
			failures := make([]stockFailure, len(rejected.Failures))
			for i, f := range rejected.Failures {
				failures[i] = stockFailure{
					ProductID: f.Key.ProductID,
					ColorID:   f.Key.ColorID,
					Requested: f.Requested,
					Available: f.Available,
				}
			}
			writeJSON(w, http.StatusConflict, map[string]any{
				"success":  false,
				"message":  "insufficient stock",
				"failures": failures,
			})
			return
		}

		var invalid *order.InvalidTransitionError
		if errors.As(err, &invalid) {
			writeError(w, http.StatusConflict, "order cannot be changed in its current status")
			return
		}

		zctx.From(r.Context()).Error("checkout request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "something went wrong, please try again")
	}
}
