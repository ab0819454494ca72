package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/davidbz/runrelay/internal/observability"
)

const unmatchedRoute = "unmatched"

// Metrics records request counts and durations labelled by the chi route
// pattern. It must run inside the router so the pattern is known.
func Metrics() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := newStatusWriter(w)

			next.ServeHTTP(sw, r)

			route := unmatchedRoute
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}

			status := strconv.Itoa(sw.status/100) + "xx"
			observability.HTTPRequestsTotal.WithLabelValues(r.Method, status, route).Inc()
			observability.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}
