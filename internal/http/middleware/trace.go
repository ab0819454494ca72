package middleware

import (
	"net/http"
	"time"

	"github.com/davidbz/runrelay/internal/observability"
)

const requestIDHeader = "X-Request-Id"

// Trace creates a middleware that injects trace, span and request ids into
// every request and logs its start and end. An inbound X-Request-Id is kept.
func Trace() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()

			traceID := observability.GenerateTraceID()
			ctx = observability.WithTraceID(ctx, traceID)

			spanID := observability.GenerateSpanID()
			ctx = observability.WithSpanID(ctx, spanID)

			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = observability.GenerateRequestID()
			}
			ctx = observability.WithRequestID(ctx, requestID)

			w.Header().Set("X-Trace-Id", traceID)
			w.Header().Set(requestIDHeader, requestID)

			logger := observability.FromContext(ctx)
			logger.Info("request started",
				observability.String("method", r.Method),
				observability.String("path", r.URL.Path),
				observability.String("remote_addr", r.RemoteAddr),
			)

			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r.WithContext(ctx))

			logger.Info("request finished",
				observability.Int("status", sw.status),
				observability.Duration("duration", time.Since(start)),
			)
		})
	}
}
