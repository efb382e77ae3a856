package retry

import (
	"time"
)

// Verdict is a policy decision for one attempt.
type Verdict struct {
	// Retry is true when another attempt should follow.
	Retry bool
	// Delay is the scheduled sleep before that attempt.
	Delay time.Duration
	// Exhausted is true when the outcome was retryable but no retries remain.
	Exhausted bool
	// RetryAfter holds the Retry-After evaluation when the policy consulted it.
	RetryAfter *RetryAfterResult
}

// Policy decides whether an outcome is retried. Implementations must be pure
// functions of their inputs; State is read-only to them.
type Policy interface {
	Decide(o Outcome, st *State, now time.Time) Verdict
}

// PolicyFunc adapts a predicate to Policy. The delay and exhaustion handling
// come from the State.
type PolicyFunc func(o Outcome, st *State) bool

// Decide implements Policy.
func (f PolicyFunc) Decide(o Outcome, st *State, _ time.Time) Verdict {
	return verdictFor(f(o, st), st, nil)
}

// DefaultPolicy retries per ShouldRetry, consulting Retry-After for responses.
func DefaultPolicy() Policy {
	return retryAfterPolicy{}
}

type retryAfterPolicy struct{}

func (retryAfterPolicy) Decide(o Outcome, st *State, now time.Time) Verdict {
	var ra *RetryAfterResult
	valid := false
	if !o.IsFailure() && o.Response != nil {
		r := st.evaluateRetryAfter(o, now)
		ra = &r
		valid = r.Valid
	}
	return verdictFor(ShouldRetry(o, valid), st, ra)
}

// SignalPolicy retries connection and timeout failures, and any attempt for
// which SignalRetry was called. Status codes and Retry-After are ignored.
func SignalPolicy() Policy {
	return PolicyFunc(func(o Outcome, _ *State) bool {
		if o.IsFailure() {
			return ShouldRetry(o, false)
		}
		return o.Signaled
	})
}

// evaluateRetryAfter runs the Retry-After policy against the scheduled delay
// for the current attempt. Once the schedule is exhausted it is always invalid.
func (s *State) evaluateRetryAfter(o Outcome, now time.Time) RetryAfterResult {
	value, present := retryAfterHeader(o.Response.Header)
	scheduled, ok := s.ScheduledDelay()
	if !ok {
		return RetryAfterResult{
			StatusCode: o.Response.StatusCode,
			Present:    present,
			Value:      value,
			Reason:     ReasonExhausted,
		}
	}
	return EvaluateRetryAfter(o.Response.StatusCode, value, present, scheduled, now)
}

func verdictFor(retryable bool, st *State, ra *RetryAfterResult) Verdict {
	v := Verdict{RetryAfter: ra}
	if !retryable {
		return v
	}
	delay, ok := st.ScheduledDelay()
	if !ok {
		v.Exhausted = true
		return v
	}
	v.Retry = true
	v.Delay = delay
	return v
}
