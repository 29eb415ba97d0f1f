package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BearerAuth guards privileged routes with a static API token.
// When token is empty, authentication is disabled (local development).
// Comparison is constant-time to avoid leaking the token length prefix.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			presented, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid or missing token"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
