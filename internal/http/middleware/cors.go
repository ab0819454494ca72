package middleware

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/davidbz/runrelay/internal/config"
)

// CORS handles cross-origin requests from browser clients of the chat
// endpoints. Trace headers are exposed so clients can report them.
func CORS(cfg *config.CORSConfig) Middleware {
	if cfg == nil {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   []string{"X-Trace-Id", requestIDHeader},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})

	return c.Handler
}
