package retry

import "net/http"

// SignalingTransport raises the retry signal for responses matching a
// condition. It sits below a Transport configured with SignalPolicy, so
// decisions can be made by code that sees the raw response.
type SignalingTransport struct {
	next http.RoundTripper
	cond func(*http.Response) bool
}

// NewSignalingTransport wraps next, which defaults to http.DefaultTransport.
// A nil cond signals every non-2xx response.
func NewSignalingTransport(next http.RoundTripper, cond func(*http.Response) bool) *SignalingTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	if cond == nil {
		cond = func(resp *http.Response) bool {
			return resp.StatusCode < 200 || resp.StatusCode > 299
		}
	}
	return &SignalingTransport{next: next, cond: cond}
}

// RoundTrip implements http.RoundTripper.
func (t *SignalingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err == nil && resp != nil && t.cond(resp) {
		SignalRetry(req.Context())
	}
	return resp, err
}
