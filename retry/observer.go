package retry

import (
	"context"
	"time"
)

// EventType identifies an executor lifecycle event.
type EventType string

const (
	// EventAttempt is emitted after every attempt with its outcome.
	EventAttempt EventType = "attempt"
	// EventRetryAfter is emitted when a 503 or 429 response was evaluated.
	EventRetryAfter EventType = "retry_after"
	// EventRetry is emitted before sleeping towards another attempt.
	EventRetry EventType = "retry"
	// EventDone is emitted once, with the final outcome.
	EventDone EventType = "done"
	// EventCanceled is emitted when the caller's context ends.
	EventCanceled EventType = "canceled"
)

// Event describes one step of an Execute call.
type Event struct {
	Type EventType
	// Attempt is the 1-based attempt number; 1 is the first attempt.
	Attempt     int
	StatusCode  int
	Err         error
	FailureKind FailureKind
	Signaled    bool
	// Delay is the sleep before the next attempt, set on EventRetry.
	Delay      time.Duration
	RetryAfter *RetryAfterResult
	// Exhausted is set on EventDone when the last outcome was retryable.
	Exhausted bool
	Phase     Phase
}

// Observer receives executor events. Observe is called synchronously from the
// request goroutine and must not block.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

// Observe calls f(ctx, ev).
func (f ObserverFunc) Observe(ctx context.Context, ev Event) {
	f(ctx, ev)
}

type nopObserver struct{}

func (nopObserver) Observe(context.Context, Event) {}

// Observers fans events out to every non-nil observer in order.
func Observers(observers ...Observer) Observer {
	filtered := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	switch len(filtered) {
	case 0:
		return nopObserver{}
	case 1:
		return filtered[0]
	default:
		return filtered
	}
}

type multiObserver []Observer

func (m multiObserver) Observe(ctx context.Context, ev Event) {
	for _, o := range m {
		o.Observe(ctx, ev)
	}
}
