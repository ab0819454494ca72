package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/davidbz/runrelay/internal/config"
)

const bearerPrefix = "Bearer "

// BearerAuth rejects requests whose bearer token does not match the
// configured secret. The token is hashed once and compared in constant time.
// An empty secret lets every request through.
func BearerAuth(cfg *config.AuthConfig) Middleware {
	if cfg == nil || cfg.SecretToken == "" {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	expected := sha256.Sum256([]byte(cfg.SecretToken))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, bearerPrefix) {
				unauthorized(w)
				return
			}

			token := sha256.Sum256([]byte(strings.TrimPrefix(header, bearerPrefix)))
			if subtle.ConstantTimeCompare(token[:], expected[:]) != 1 {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm=""`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"success":false,"error":"unauthorized"}`))
}
