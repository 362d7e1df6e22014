package bridge

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const (
	secretHeader = "X-Webhook-Secret"
	secretQuery  = "secret"
)

// SecretFromRequest returns the presented webhook secret, header first.
func SecretFromRequest(r *http.Request) string {
	if s := r.Header.Get(secretHeader); s != "" {
		return s
	}
	return r.URL.Query().Get(secretQuery)
}

// Authorized reports whether presented matches a non-empty expected secret.
func Authorized(expected, presented string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}

// BearerAuth guards the admin API with a single shared token.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if token == "" || !strings.HasPrefix(auth, prefix) ||
				subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
