package retry

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HeaderRetryAfter is the response header consulted for 503 and 429 responses.
const HeaderRetryAfter = "Retry-After"

// lenientDateLayouts are tried after http.ParseTime's RFC 7231 formats.
var lenientDateLayouts = []string{
	"Mon, 02 Jan2006 15:04:05 MST",
	"Mon, _2 Jan 2006 15:04:05 MST",
	time.RFC1123Z,
	time.RFC3339,
}

// RetryAfterReason explains a RetryAfterResult.
type RetryAfterReason string

const (
	ReasonNotApplicable   RetryAfterReason = "not_applicable"
	ReasonExhausted       RetryAfterReason = "exhausted"
	ReasonAbsent          RetryAfterReason = "absent"
	ReasonUnparseable     RetryAfterReason = "unparseable"
	ReasonExceedsSchedule RetryAfterReason = "exceeds_schedule"
	ReasonWithinSchedule  RetryAfterReason = "within_schedule"
)

// RetryAfterResult is the structured verdict of the Retry-After policy.
type RetryAfterResult struct {
	StatusCode int
	// Present reports whether the response carried a Retry-After header.
	Present bool
	// Value is the raw header value.
	Value string
	// Parsed reports whether Value was a valid delay or date.
	Parsed bool
	// Delay is the header-implied delay, clamped at zero for past dates.
	Delay time.Duration
	// Scheduled is the jittered delay for this attempt.
	Scheduled time.Duration
	Valid     bool
	Reason    RetryAfterReason
}

// Applicable reports whether the status is one the Retry-After policy governs.
func (r RetryAfterResult) Applicable() bool {
	return r.StatusCode == http.StatusServiceUnavailable || r.StatusCode == http.StatusTooManyRequests
}

// ParseRetryAfter interprets a Retry-After value relative to now. It accepts
// a non-negative number of seconds first, then an HTTP date. Dates in the
// past yield zero.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if math.IsNaN(secs) || math.IsInf(secs, 0) || secs < 0 {
			return 0, false
		}
		d := secs * float64(time.Second)
		if d >= float64(math.MaxInt64) {
			return time.Duration(math.MaxInt64), true
		}
		return time.Duration(d), true
	}

	date, ok := parseHTTPDate(value)
	if !ok {
		return 0, false
	}
	// A stale date is network latency, not an invalid header.
	return max(date.Sub(now), 0), true
}

func parseHTTPDate(value string) (time.Time, bool) {
	if t, err := http.ParseTime(value); err == nil {
		return t, true
	}
	for _, layout := range lenientDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// EvaluateRetryAfter applies the Retry-After policy:
//
//	503, header absent            -> valid
//	503 or 429, header <= delay   -> valid
//	503 or 429, header bad/longer -> invalid
//	429, header absent            -> invalid
//	any other status              -> invalid
//
// scheduled is the jittered delay the executor will sleep before the next
// retry. The header only permits or vetoes the retry.
func EvaluateRetryAfter(statusCode int, value string, present bool, scheduled time.Duration, now time.Time) RetryAfterResult {
	r := RetryAfterResult{
		StatusCode: statusCode,
		Present:    present,
		Value:      value,
		Scheduled:  scheduled,
	}

	if !r.Applicable() {
		r.Reason = ReasonNotApplicable
		return r
	}

	if !present {
		r.Reason = ReasonAbsent
		r.Valid = statusCode == http.StatusServiceUnavailable
		return r
	}

	delay, ok := ParseRetryAfter(value, now)
	if !ok {
		r.Reason = ReasonUnparseable
		return r
	}
	r.Parsed = true
	r.Delay = delay

	if delay <= scheduled {
		r.Reason = ReasonWithinSchedule
		r.Valid = true
		return r
	}
	r.Reason = ReasonExceedsSchedule
	return r
}

// IsRetryAfterValid is EvaluateRetryAfter reduced to its verdict, using the current time.
func IsRetryAfterValid(statusCode int, value string, present bool, scheduled time.Duration) bool {
	return EvaluateRetryAfter(statusCode, value, present, scheduled, time.Now()).Valid
}

// retryAfterHeader performs a case-insensitive lookup of Retry-After.
func retryAfterHeader(h http.Header) (string, bool) {
	if h == nil {
		return "", false
	}
	if values, ok := h[HeaderRetryAfter]; ok && len(values) > 0 {
		return values[0], true
	}
	for key, values := range h {
		if strings.EqualFold(key, HeaderRetryAfter) && len(values) > 0 {
			return values[0], true
		}
	}
	return "", false
}
