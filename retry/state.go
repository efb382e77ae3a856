package retry

import (
	"context"
	"slices"
	"sync/atomic"
	"time"
)

// contextKey is the type for context keys to avoid collisions
type contextKey string

const (
	// AttemptKey names the retry attempt annotation in contexts, headers,
	// log fields and metric attributes.
	AttemptKey = "retry.attempt"

	attemptContextKey contextKey = AttemptKey
	signalContextKey  contextKey = "retry.signal"
)

// WithAttempt annotates ctx with a 1-based retry number.
func WithAttempt(ctx context.Context, retry int) context.Context {
	return context.WithValue(ctx, attemptContextKey, retry)
}

// AttemptFromContext returns the 1-based retry number of the attempt that
// owns ctx. It reports false on the first attempt.
func AttemptFromContext(ctx context.Context) (int, bool) {
	if ctx == nil {
		return 0, false
	}
	n, ok := ctx.Value(attemptContextKey).(int)
	return n, ok
}

// State is the per-request retry state. It is owned by one Execute call and
// never shared between requests.
type State struct {
	schedule []time.Duration
	// retries counts retries already started; it is also the schedule index
	// consulted when deciding the next one.
	retries int
}

// NewState creates a State that owns schedule.
func NewState(schedule []time.Duration) *State {
	return &State{schedule: schedule}
}

// Attempt returns the 1-based retry number of the current attempt, or false
// while the first attempt is in flight.
func (s *State) Attempt() (int, bool) {
	if s.retries == 0 {
		return 0, false
	}
	return s.retries, true
}

// Index returns the 0-based index of the current attempt.
func (s *State) Index() int {
	return s.retries
}

// Schedule returns a copy of the backoff schedule.
func (s *State) Schedule() []time.Duration {
	return slices.Clone(s.schedule)
}

// Exhausted reports whether no retries remain.
func (s *State) Exhausted() bool {
	return s.retries >= len(s.schedule)
}

// ScheduledDelay returns the delay before the next retry, or false when exhausted.
func (s *State) ScheduledDelay() (time.Duration, bool) {
	if s.Exhausted() {
		return 0, false
	}
	return s.schedule[s.retries], true
}

func (s *State) advance() {
	s.retries++
}

// signal is the per-attempt slot a downstream component raises to request a retry.
type signal struct {
	raised atomic.Bool
}

func withSignal(ctx context.Context) (context.Context, *signal) {
	sig := &signal{}
	return context.WithValue(ctx, signalContextKey, sig), sig
}

// SignalRetry asks the executor to treat the current attempt as retryable
// under SignalPolicy. It reports false when ctx does not belong to an attempt.
func SignalRetry(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	sig, ok := ctx.Value(signalContextKey).(*signal)
	if !ok || sig == nil {
		return false
	}
	sig.raised.Store(true)
	return true
}

// Signaled reports whether SignalRetry was called for the attempt owning ctx.
func Signaled(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	sig, ok := ctx.Value(signalContextKey).(*signal)
	return ok && sig != nil && sig.raised.Load()
}
