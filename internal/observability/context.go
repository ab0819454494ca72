package observability

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

type contextKey string

// Trace and span ids use the W3C trace-context widths so they can be handed
// to a tracing backend later without reformatting.
const (
	traceIDBytes = 16
	spanIDBytes  = 8
)

// Keys of the request-scoped values FromContext turns into log fields.
const (
	TraceIDKey   contextKey = "trace_id"
	SpanIDKey    contextKey = "span_id"
	RequestIDKey contextKey = "request_id"

	// JobIDKey is set once the backend accepted a job, so every poll and
	// relay log line of a request names the job it follows.
	JobIDKey contextKey = "job_id"

	// ModelKey is the catalog model id the request was routed to.
	ModelKey contextKey = "model"
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func WithSpanID(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, SpanIDKey, spanID)
}

// WithRequestID stores the id echoed back in the X-Request-Id header.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithJobID records the backend job a request is relaying.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, JobIDKey, jobID)
}

// WithModel records the catalog model id of a request.
func WithModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, ModelKey, model)
}

func GetTraceID(ctx context.Context) string   { return stringValue(ctx, TraceIDKey) }
func GetSpanID(ctx context.Context) string    { return stringValue(ctx, SpanIDKey) }
func GetRequestID(ctx context.Context) string { return stringValue(ctx, RequestIDKey) }
func GetJobID(ctx context.Context) string     { return stringValue(ctx, JobIDKey) }
func GetModel(ctx context.Context) string     { return stringValue(ctx, ModelKey) }

// stringValue returns the string stored under key, or "" when unset.
func stringValue(ctx context.Context, key contextKey) string {
	value, _ := ctx.Value(key).(string)
	return value
}

// GenerateTraceID returns 32 hex chars, falling back to a uuid when the
// system random source fails.
func GenerateTraceID() string {
	return randomHex(traceIDBytes, func() string { return uuid.NewString() })
}

// GenerateSpanID returns 16 hex chars.
func GenerateSpanID() string {
	return randomHex(spanIDBytes, func() string { return uuid.NewString()[:2*spanIDBytes] })
}

// GenerateRequestID is used when the caller sent no X-Request-Id.
func GenerateRequestID() string {
	return uuid.NewString()
}

func randomHex(size int, fallback func() string) string {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return fallback()
	}
	return hex.EncodeToString(buf)
}
