package retry

import "net/http"

// ShouldRetry is the single retry predicate over an attempt outcome.
//
// Transport failures of kind connection or timeout always retry. 503 and 429
// retry only when retryAfterValid is true; 503 is deliberately kept out of the
// blanket 5xx rule so that a vetoing Retry-After stops the retry. Other 5xx
// responses retry, and everything else does not.
func ShouldRetry(o Outcome, retryAfterValid bool) bool {
	if o.IsFailure() {
		switch o.Kind {
		case FailureConnection, FailureTimeout:
			return true
		default:
			return false
		}
	}

	if o.Response == nil {
		return false
	}

	switch code := o.Response.StatusCode; {
	case code == http.StatusServiceUnavailable, code == http.StatusTooManyRequests:
		return retryAfterValid
	case code >= 500 && code < 600:
		return true
	default:
		return false
	}
}
