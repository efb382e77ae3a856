package retry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gaborage/httpretry/backoff"
)

var errConnReset = errors.New("connection reset by peer")

// timeoutErr satisfies net.Error with Timeout() true.
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

type trackedBody struct {
	io.Reader
	closed atomic.Bool
}

func (b *trackedBody) Close() error {
	b.closed.Store(true)
	return nil
}

// step is one scripted attempt result.
type step struct {
	status int
	header http.Header
	err    error
	signal bool
	// withResponse returns a response alongside err.
	withResponse bool
}

func okStep() step { return step{status: http.StatusOK} }

func status(code int) step { return step{status: code} }

func failure(err error) step { return step{err: err} }

func signaled(code int) step { return step{status: code, signal: true} }

func retryAfter(code int, value string) step {
	return step{status: code, header: http.Header{HeaderRetryAfter: []string{value}}}
}

// script replays steps in order, repeating the last one, and records what
// each attempt saw.
type script struct {
	mu          sync.Mutex
	steps       []step
	calls       int
	annotations []int
	bodies      []*trackedBody
}

func newScript(steps ...step) *script {
	return &script{steps: steps}
}

func (s *script) send(ctx context.Context) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, _ := AttemptFromContext(ctx)
	s.annotations = append(s.annotations, n)

	st := s.steps[min(s.calls, len(s.steps)-1)]
	s.calls++

	if st.signal {
		SignalRetry(ctx)
	}

	var resp *http.Response
	if st.err == nil || st.withResponse {
		code := st.status
		if code == 0 {
			code = http.StatusOK
		}
		body := &trackedBody{Reader: strings.NewReader("payload")}
		s.bodies = append(s.bodies, body)
		header := st.header
		if header == nil {
			header = http.Header{}
		}
		resp = &http.Response{StatusCode: code, Header: header, Body: body}
	}
	return resp, st.err
}

func (s *script) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// eventLog collects observer events.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Observe(_ context.Context, ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventType, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Type)
	}
	return out
}

func (l *eventLog) ofType(t EventType) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, ev := range l.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// sleepRecorder replaces the backoff sleep and records requested delays.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func fixedScheduler() *backoff.Scheduler {
	return backoff.NewScheduler(backoff.SourceFunc(func() float64 { return 0.5 }))
}

func newTestExecutor(t *testing.T, retryCount int, delay time.Duration, opts ...Option) (*Executor, *sleepRecorder) {
	t.Helper()
	rec := &sleepRecorder{}
	all := append([]Option{WithScheduler(fixedScheduler()), WithSleeper(rec.sleep)}, opts...)
	exec, err := NewExecutor(Settings{RetryCount: retryCount, RetryDelay: delay}, all...)
	require.NoError(t, err)
	return exec, rec
}
