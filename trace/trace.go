// Package trace carries request correlation identifiers through a context and
// writes them onto outgoing requests.
package trace

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/propagation"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// contextKey is the type for context keys to avoid collisions
type contextKey string

const (
	// traceIDKey is the context key for trace ID values
	traceIDKey contextKey = "trace_id"
	// traceParentKey is the context key for W3C Trace Context header value
	traceParentKey contextKey = "traceparent"

	// HeaderXRequestID is the default header carrying the request ID
	HeaderXRequestID = "X-Request-ID"
	// HeaderTraceParent is the W3C trace context header name
	HeaderTraceParent = "traceparent"
)

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// IDFromContext returns a trace ID from context if present
func IDFromContext(ctx context.Context) (string, bool) {
	if traceID, ok := ctx.Value(traceIDKey).(string); ok && traceID != "" {
		return traceID, true
	}
	return "", false
}

// EnsureTraceID returns the context's trace ID and a context carrying it,
// generating a UUID when none is present.
func EnsureTraceID(ctx context.Context) (context.Context, string) {
	if traceID, ok := IDFromContext(ctx); ok {
		return ctx, traceID
	}
	traceID := uuid.New().String()
	return WithTraceID(ctx, traceID), traceID
}

// WithTraceParent adds a W3C traceparent value to the context
func WithTraceParent(ctx context.Context, traceParent string) context.Context {
	return context.WithValue(ctx, traceParentKey, traceParent)
}

// ParentFromContext returns a traceparent from context if present
func ParentFromContext(ctx context.Context) (string, bool) {
	if tp, ok := ctx.Value(traceParentKey).(string); ok && tp != "" {
		return tp, true
	}
	return "", false
}

// InjectHeaders writes the request ID and traceparent for ctx into h. Headers
// the caller already set are left alone. A recording OpenTelemetry span wins
// over a traceparent stored with WithTraceParent; without either, a fresh
// traceparent is generated.
func InjectHeaders(ctx context.Context, h http.Header, requestIDHeader string) {
	if requestIDHeader != "" && h.Get(requestIDHeader) == "" {
		if id, ok := IDFromContext(ctx); ok {
			h.Set(requestIDHeader, id)
		}
	}

	if h.Get(HeaderTraceParent) != "" {
		return
	}
	if sc := oteltrace.SpanContextFromContext(ctx); sc.IsValid() {
		propagation.TraceContext{}.Inject(ctx, propagation.HeaderCarrier(h))
		return
	}
	if tp, ok := ParentFromContext(ctx); ok {
		h.Set(HeaderTraceParent, tp)
		return
	}
	h.Set(HeaderTraceParent, GenerateTraceParent())
}

// GenerateTraceParent creates a sampled W3C traceparent value with random IDs.
// Format: version(2)-trace-id(32)-span-id(16)-flags(2).
func GenerateTraceParent() string {
	traceID := make([]byte, 16)
	spanID := make([]byte, 8)
	_, _ = crand.Read(traceID)
	_, _ = crand.Read(spanID)
	// All-zero IDs are invalid.
	if allZero(traceID) {
		traceID[len(traceID)-1] = 0x01
	}
	if allZero(spanID) {
		spanID[len(spanID)-1] = 0x01
	}
	return "00-" + hex.EncodeToString(traceID) + "-" + hex.EncodeToString(spanID) + "-01"
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
