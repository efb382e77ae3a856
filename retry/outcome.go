package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
)

// FailureKind classifies a transport failure.
type FailureKind int

const (
	// FailureNone means the attempt produced a response.
	FailureNone FailureKind = iota
	// FailureConnection covers connection resets, refused dials, broken
	// protocol exchanges and every other error from the transport.
	FailureConnection
	// FailureTimeout means the attempt timed out.
	FailureTimeout
	// FailurePermanent means the error must not be retried.
	FailurePermanent
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureConnection:
		return "connection"
	case FailureTimeout:
		return "timeout"
	case FailurePermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Outcome is the result of one attempt: either a Response or a transport
// failure (Err with its Kind), never both.
type Outcome struct {
	Response *http.Response
	Err      error
	Kind     FailureKind
	// Signaled is set when a downstream component called SignalRetry for this attempt.
	Signaled bool
}

// ResponseOutcome wraps a completed response.
func ResponseOutcome(resp *http.Response) Outcome {
	return Outcome{Response: resp, Kind: FailureNone}
}

// FailureOutcome wraps a transport error and classifies it.
func FailureOutcome(err error) Outcome {
	return Outcome{Err: err, Kind: ClassifyError(err)}
}

// IsFailure reports whether the attempt failed without a response.
func (o Outcome) IsFailure() bool {
	return o.Err != nil
}

// StatusCode returns the response status, or 0 for failures.
func (o Outcome) StatusCode() int {
	if o.Response == nil {
		return 0
	}
	return o.Response.StatusCode
}

// result converts the outcome into Execute's return values.
func (o Outcome) result() (*http.Response, error) {
	if o.Err != nil {
		return nil, unwrapPermanent(o.Err)
	}
	return o.Response, nil
}

// ClassifyError maps a transport error to a FailureKind.
//
// Timeouts are recognised through context.DeadlineExceeded and net.Error.
// Errors marked Permanent and context.Canceled are permanent. Every other
// error is treated as a connection or protocol failure.
func ClassifyError(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	if IsPermanent(err) || errors.Is(err, context.Canceled) {
		return FailurePermanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	return FailureConnection
}

// maxDrainBytes bounds how much of a discarded body is read so the
// connection can be reused.
const maxDrainBytes = 64 << 10

// discard releases a response that will never reach the caller.
func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	_ = resp.Body.Close()
}
