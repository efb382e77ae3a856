package retry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// DefaultAttemptHeader carries the retry number on retried requests.
const DefaultAttemptHeader = "X-Retry-Attempt"

// Transport is an http.RoundTripper that retries through an Executor.
type Transport struct {
	next          http.RoundTripper
	exec          *Executor
	attemptHeader string
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithAttemptHeader sets the header that carries the retry number. An empty
// name disables the header; the context annotation is always set.
func WithAttemptHeader(name string) TransportOption {
	return func(t *Transport) {
		t.attemptHeader = name
	}
}

// NewTransport wraps next, which defaults to http.DefaultTransport. A nil
// exec sends every request once without retrying.
func NewTransport(next http.RoundTripper, exec *Executor, opts ...TransportOption) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	if exec == nil {
		// Zero settings always validate.
		exec, _ = NewExecutor(Settings{})
	}
	t := &Transport{
		next:          next,
		exec:          exec,
		attemptHeader: DefaultAttemptHeader,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundTrip implements http.RoundTripper. Each attempt sends a clone of req
// with a fresh body. Bodies without GetBody are buffered once up front.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	getBody, err := rewindableBody(req)
	if err != nil {
		return nil, err
	}

	return t.exec.Execute(req.Context(), func(ctx context.Context) (*http.Response, error) {
		attemptReq := req.Clone(ctx)
		if getBody != nil {
			body, err := getBody()
			if err != nil {
				return nil, Permanent(fmt.Errorf("rewind request body: %w", err))
			}
			attemptReq.Body = body
			attemptReq.GetBody = getBody
		}
		if n, ok := AttemptFromContext(ctx); ok && t.attemptHeader != "" {
			if attemptReq.Header == nil {
				attemptReq.Header = make(http.Header)
			}
			attemptReq.Header.Set(t.attemptHeader, strconv.Itoa(n))
		}
		return t.next.RoundTrip(attemptReq)
	})
}

// rewindableBody returns a function yielding a fresh copy of req's body, or
// nil when there is no body.
func rewindableBody(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		_ = req.Body.Close()
		return req.GetBody, nil
	}

	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("buffer request body: %w", err)
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, nil
}
