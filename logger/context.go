package logger

import (
	"context"
	"sync/atomic"
	"time"
)

// contextKey is the type for context keys to avoid collisions
type contextKey string

const (
	// retryCounterKey is the context key for tracking retries per logical request
	retryCounterKey contextKey = "retry_counter"
	// retryWaitKey is the context key for tracking total backoff time per logical request
	retryWaitKey contextKey = "retry_wait_nanos"
)

// WithRetryCounter creates a new context with a retry counter and a backoff time tracker.
// Request-scoped middleware reads them back to log totals once the request completes.
func WithRetryCounter(ctx context.Context) context.Context {
	counter := int64(0)
	wait := int64(0)
	ctx = context.WithValue(ctx, retryCounterKey, &counter)
	ctx = context.WithValue(ctx, retryWaitKey, &wait)
	return ctx
}

// IncrementRetryCounter increments the retry counter in the context
func IncrementRetryCounter(ctx context.Context) {
	if counter, ok := ctx.Value(retryCounterKey).(*int64); ok && counter != nil {
		atomic.AddInt64(counter, 1)
	}
}

// GetRetryCounter returns the number of retries recorded in the context
func GetRetryCounter(ctx context.Context) int64 {
	if counter, ok := ctx.Value(retryCounterKey).(*int64); ok && counter != nil {
		return atomic.LoadInt64(counter)
	}
	return 0
}

// AddRetryWait adds a backoff delay to the total recorded in the context
func AddRetryWait(ctx context.Context, d time.Duration) {
	if wait, ok := ctx.Value(retryWaitKey).(*int64); ok && wait != nil {
		atomic.AddInt64(wait, int64(d))
	}
}

// GetRetryWait returns the total backoff delay recorded in the context
func GetRetryWait(ctx context.Context) time.Duration {
	if wait, ok := ctx.Value(retryWaitKey).(*int64); ok && wait != nil {
		return time.Duration(atomic.LoadInt64(wait))
	}
	return 0
}
