package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"subvault/internal/ledger"
	"subvault/pkg/hash"
	"subvault/pkg/jwt"
)

type contextKey string

// WalletKey holds the authenticated wallet address in the request context.
const WalletKey contextKey = "wallet"

// BasicAuth guards ops endpoints. The password is checked against a bcrypt hash.
func BasicAuth(username, passwordHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || !constantTimeCompare(user, username) || !hash.CheckPassword(passwordHash, pass) {
				w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// constantTimeCompare compares two strings without leaking the position of the first difference.
func constantTimeCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	result := 0
	for i := range a {
		result |= int(a[i] ^ b[i])
	}
	return result == 0
}

// JWTAuth accepts a bearer token issued at wallet login and stores the wallet in the context.
func JWTAuth(tokens *jwt.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, found := strings.CutPrefix(header, "Bearer ")
			if !found || raw == "" {
				unauthorized(w, "missing bearer token")
				return
			}
			subject, err := tokens.Parse(raw)
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}
			wallet, err := ledger.ParseAddress(subject)
			if err != nil {
				unauthorized(w, "invalid token subject")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), WalletKey, wallet)))
		})
	}
}

// WalletFromContext returns the wallet set by JWTAuth.
func WalletFromContext(ctx context.Context) (ledger.Address, bool) {
	wallet, ok := ctx.Value(WalletKey).(ledger.Address)
	return wallet, ok
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}
