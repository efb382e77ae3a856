package http

import (
	"context"
	nethttp "net/http"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/gaborage/httpretry/retry"
)

// Client defines the REST client interface for making HTTP requests
type Client interface {
	Get(ctx context.Context, req *Request) (*Response, error)
	Post(ctx context.Context, req *Request) (*Response, error)
	Put(ctx context.Context, req *Request) (*Response, error)
	Patch(ctx context.Context, req *Request) (*Response, error)
	Delete(ctx context.Context, req *Request) (*Response, error)
	Do(ctx context.Context, method string, req *Request) (*Response, error)
}

// Request represents an HTTP request with all necessary data
type Request struct {
	// URL is absolute, or relative to the client's base URL.
	URL     string
	Headers map[string]string
	Body    []byte
	Auth    *BasicAuth
}

// Response represents an HTTP response with tracking information
type Response struct {
	StatusCode int
	Body       []byte
	Headers    nethttp.Header
	Stats      Stats
}

// Stats contains request execution statistics
type Stats struct {
	// ElapsedTime covers every attempt and backoff sleep.
	ElapsedTime time.Duration
	// CallCount is the client-wide sequence number of this request.
	CallCount int64
	// Attempts is the number of attempts made, including the first.
	Attempts int
	// RequestID is the correlation ID sent on every attempt.
	RequestID string
}

// BasicAuth contains basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// RequestInterceptor is called before every attempt is sent. ctx is the
// attempt context. A returned error aborts the request without retrying.
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor is called after every attempt receives a response.
// It may call retry.SignalRetry(ctx) to request a retry under
// retry.SignalPolicy. A returned error aborts the request without retrying.
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error

// Config holds the REST client configuration
type Config struct {
	BaseURL string
	// Timeout bounds each attempt, not the whole request.
	Timeout time.Duration
	// MaxRetries is the retry budget after the first attempt.
	MaxRetries int
	// RetryDelay is the median delay before the first retry.
	RetryDelay           time.Duration
	RetryPolicy          retry.Policy
	RetryObservers       []retry.Observer
	RetryOptions         []retry.Option
	AttemptHeader        string
	TraceIDHeader        string
	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor
	BasicAuth            *BasicAuth
	DefaultHeaders       map[string]string
	Transport            nethttp.RoundTripper
	TracerProvider       oteltrace.TracerProvider
}
