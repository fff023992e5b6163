package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/voltmart/checkout/internal/domain/customer"
)

type customerKey struct{}

// CustomerFromContext extracts the authenticated customer from the context.
func CustomerFromContext(ctx context.Context) (*customer.Info, bool) {
	info, ok := ctx.Value(customerKey{}).(*customer.Info)
	return info, ok
}

// Authenticate validates the Authorization bearer token by computing its
// HMAC-SHA256 with the server pepper and looking the hash up in the customer
// repository. Tokens are stored only as hashes; a database leak does not
// leak usable sessions. The resolved customer is placed in the request
// context and passed explicitly into every checkout call from there.
func Authenticate(customers customer.Repository, pepper []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "missing credentials")
				return
			}

			mac := hmac.New(sha256.New, pepper)
			mac.Write([]byte(token))
			hash := hex.EncodeToString(mac.Sum(nil))

			info, err := customers.FindByTokenHash(r.Context(), hash)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid credentials")
				return
			}

			ctx := context.WithValue(r.Context(), customerKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}
