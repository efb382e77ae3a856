package retry

import (
	"context"
	"net/http"
	"time"

	"github.com/gaborage/httpretry/backoff"
)

// SendFunc performs one attempt. It must honour ctx and must be safe to call
// repeatedly; the executor calls it at most Settings.MaxAttempts times.
type SendFunc func(ctx context.Context) (*http.Response, error)

// Executor runs a SendFunc under the retry policy. It is safe for concurrent
// use; every Execute call owns its own schedule and state.
type Executor struct {
	settings  Settings
	policy    Policy
	scheduler *backoff.Scheduler
	observer  Observer
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithPolicy replaces DefaultPolicy.
func WithPolicy(p Policy) Option {
	return func(e *Executor) {
		if p != nil {
			e.policy = p
		}
	}
}

// WithObserver installs an event observer. Use Observers to combine several.
func WithObserver(o Observer) Option {
	return func(e *Executor) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithScheduler sets the backoff scheduler, typically one with a fixed Source in tests.
func WithScheduler(s *backoff.Scheduler) Option {
	return func(e *Executor) {
		if s != nil {
			e.scheduler = s
		}
	}
}

// WithClock sets the time source used to evaluate Retry-After dates.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithSleeper replaces the context-aware sleep between attempts.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) {
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

// NewExecutor validates settings and creates an Executor.
func NewExecutor(settings Settings, opts ...Option) (*Executor, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	e := &Executor{
		settings:  settings,
		policy:    DefaultPolicy(),
		scheduler: backoff.NewScheduler(nil),
		observer:  nopObserver{},
		sleep:     backoff.Sleep,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Settings returns the executor's retry settings.
func (e *Executor) Settings() Settings {
	return e.settings
}

// Execute runs send until the policy stops retrying or the retry budget is
// spent, and returns the last outcome. Responses that are not returned are
// drained and closed before the next attempt. If ctx ends first, the error is
// a *CanceledError.
func (e *Executor) Execute(ctx context.Context, send SendFunc) (*http.Response, error) {
	if send == nil {
		return nil, ErrNilSend
	}

	st := NewState(e.scheduler.Schedule(e.settings.RetryDelay, e.settings.RetryCount))

	for {
		attempt := st.Index() + 1
		attemptCtx, sig := withSignal(attemptContext(ctx, st))

		resp, err := send(attemptCtx)
		if err != nil && ctx.Err() != nil {
			discard(resp)
			return nil, e.canceled(ctx, attempt, PhaseSend)
		}

		o := outcomeOf(resp, err)
		o.Signaled = sig.raised.Load()

		v := e.policy.Decide(o, st, e.now())

		e.observer.Observe(ctx, Event{
			Type:        EventAttempt,
			Attempt:     attempt,
			StatusCode:  o.StatusCode(),
			Err:         o.Err,
			FailureKind: o.Kind,
			Signaled:    o.Signaled,
		})
		if v.RetryAfter != nil && v.RetryAfter.Applicable() {
			e.observer.Observe(ctx, Event{
				Type:       EventRetryAfter,
				Attempt:    attempt,
				StatusCode: o.StatusCode(),
				RetryAfter: v.RetryAfter,
			})
		}

		if !v.Retry {
			e.observer.Observe(ctx, Event{
				Type:        EventDone,
				Attempt:     attempt,
				StatusCode:  o.StatusCode(),
				Err:         o.Err,
				FailureKind: o.Kind,
				Exhausted:   v.Exhausted,
			})
			return o.result()
		}

		discard(o.Response)
		e.observer.Observe(ctx, Event{
			Type:        EventRetry,
			Attempt:     attempt,
			StatusCode:  o.StatusCode(),
			Err:         o.Err,
			FailureKind: o.Kind,
			Signaled:    o.Signaled,
			Delay:       v.Delay,
		})

		if err := e.sleep(ctx, v.Delay); err != nil {
			return nil, e.canceled(ctx, attempt, PhaseWait)
		}
		st.advance()
	}
}

func (e *Executor) canceled(ctx context.Context, attempt int, phase Phase) error {
	cause := ctx.Err()
	if cause == nil {
		cause = context.Canceled
	}
	e.observer.Observe(ctx, Event{
		Type:    EventCanceled,
		Attempt: attempt,
		Err:     cause,
		Phase:   phase,
	})
	return &CanceledError{Attempt: attempt, Phase: phase, Err: cause}
}

// attemptContext annotates retries with their number. The first attempt
// carries no annotation, even when ctx inherited one from an outer executor.
func attemptContext(ctx context.Context, st *State) context.Context {
	if n, ok := st.Attempt(); ok {
		return WithAttempt(ctx, n)
	}
	if _, inherited := AttemptFromContext(ctx); inherited {
		return context.WithValue(ctx, attemptContextKey, nil)
	}
	return ctx
}

func outcomeOf(resp *http.Response, err error) Outcome {
	switch {
	case err != nil:
		// A response returned alongside an error is never surfaced.
		discard(resp)
		return FailureOutcome(err)
	case resp == nil:
		return FailureOutcome(Permanent(ErrNilResponse))
	default:
		return ResponseOutcome(resp)
	}
}
