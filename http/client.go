package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/gaborage/httpretry/logger"
	"github.com/gaborage/httpretry/retry"
	"github.com/gaborage/httpretry/trace"
)

const (
	// DefaultTimeout is the default per-attempt timeout
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the default maximum number of retries for failed requests
	DefaultMaxRetries = 0

	// DefaultRetryDelay is the default median delay before the first retry
	DefaultRetryDelay = 1 * time.Second

	tracerName = "github.com/gaborage/httpretry/http"
)

// client implements the Client interface
type client struct {
	httpClient *nethttp.Client
	logger     logger.Logger
	config     *Config
	baseURL    *url.URL
	exec       *retry.Executor
	tracer     oteltrace.Tracer
	callCount  int64
}

// NewClient creates a new REST client with default configuration
func NewClient(log logger.Logger) Client {
	c, err := newClient(defaultConfig(), log)
	if err != nil {
		// The defaults are always valid.
		panic(err)
	}
	return c
}

func defaultConfig() *Config {
	return &Config{
		Timeout:              DefaultTimeout,
		MaxRetries:           DefaultMaxRetries,
		RetryDelay:           DefaultRetryDelay,
		AttemptHeader:        retry.DefaultAttemptHeader,
		TraceIDHeader:        trace.HeaderXRequestID,
		RequestInterceptors:  []RequestInterceptor{},
		ResponseInterceptors: []ResponseInterceptor{},
		DefaultHeaders:       make(map[string]string),
	}
}

func newClient(cfg *Config, log logger.Logger) (*client, error) {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Timeout < 0 {
		return nil, NewValidationError("timeout cannot be negative", "timeout")
	}

	var base *url.URL
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, NewValidationError(fmt.Sprintf("base URL %q must be absolute", cfg.BaseURL), "base_url")
		}
		base = u
	}

	observers := []retry.Observer{retry.NewLogObserver(log)}
	transport := cfg.Transport
	if transport == nil {
		transport = nethttp.DefaultTransport
	}
	var tracer oteltrace.Tracer
	if cfg.TracerProvider != nil {
		transport = otelhttp.NewTransport(transport, otelhttp.WithTracerProvider(cfg.TracerProvider))
		tracer = cfg.TracerProvider.Tracer(tracerName)
		observers = append(observers, retry.NewTraceObserver())
	}
	observers = append(observers, cfg.RetryObservers...)

	opts := make([]retry.Option, 0, len(cfg.RetryOptions)+2)
	opts = append(opts, retry.WithPolicy(cfg.RetryPolicy), retry.WithObserver(retry.Observers(observers...)))
	opts = append(opts, cfg.RetryOptions...)

	exec, err := retry.NewExecutor(retry.Settings{
		RetryCount: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("http client: %w", err)
	}

	return &client{
		httpClient: &nethttp.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		logger:  log,
		config:  cfg,
		baseURL: base,
		exec:    exec,
		tracer:  tracer,
	}, nil
}

// Builder provides a fluent interface for configuring the REST client
type Builder struct {
	config *Config
	logger logger.Logger
}

// NewBuilder creates a new client builder
func NewBuilder(log logger.Logger) *Builder {
	return &Builder{
		config: defaultConfig(),
		logger: log,
	}
}

// WithBaseURL resolves relative request URLs against base.
func (b *Builder) WithBaseURL(base string) *Builder {
	b.config.BaseURL = base
	return b
}

// WithTimeout sets the per-attempt timeout
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithRetries sets the retry budget and the median delay before the first retry
func (b *Builder) WithRetries(maxRetries int, retryDelay time.Duration) *Builder {
	b.config.MaxRetries = maxRetries
	b.config.RetryDelay = retryDelay
	return b
}

// WithRetrySettings applies validated retry settings.
func (b *Builder) WithRetrySettings(s retry.Settings) *Builder {
	return b.WithRetries(s.RetryCount, s.RetryDelay)
}

// WithRetryPolicy replaces the default status and Retry-After policy.
func (b *Builder) WithRetryPolicy(p retry.Policy) *Builder {
	b.config.RetryPolicy = p
	return b
}

// WithRetryObserver adds an observer for retry events.
func (b *Builder) WithRetryObserver(o retry.Observer) *Builder {
	b.config.RetryObservers = append(b.config.RetryObservers, o)
	return b
}

// WithRetryOptions passes extra options to the retry executor.
func (b *Builder) WithRetryOptions(opts ...retry.Option) *Builder {
	b.config.RetryOptions = append(b.config.RetryOptions, opts...)
	return b
}

// WithAttemptHeader sets the header carrying the retry number. Empty disables it.
func (b *Builder) WithAttemptHeader(name string) *Builder {
	b.config.AttemptHeader = name
	return b
}

// WithTraceIDHeader sets the request ID header. Empty disables it.
func (b *Builder) WithTraceIDHeader(name string) *Builder {
	b.config.TraceIDHeader = name
	return b
}

// WithBasicAuth sets basic authentication credentials
func (b *Builder) WithBasicAuth(username, password string) *Builder {
	b.config.BasicAuth = &BasicAuth{
		Username: username,
		Password: password,
	}
	return b
}

// WithDefaultHeader adds a default header that will be sent with all requests
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

// WithRequestInterceptor adds a request interceptor
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, interceptor)
	return b
}

// WithResponseInterceptor adds a response interceptor
func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, interceptor)
	return b
}

// WithTransport sets the round tripper used for every attempt.
func (b *Builder) WithTransport(rt nethttp.RoundTripper) *Builder {
	b.config.Transport = rt
	return b
}

// WithTracerProvider enables OpenTelemetry tracing: one span per logical
// request with retry events, and a client span per attempt.
func (b *Builder) WithTracerProvider(tp oteltrace.TracerProvider) *Builder {
	b.config.TracerProvider = tp
	return b
}

// Build creates the REST client. Invalid retry settings or a relative base
// URL are reported here rather than on the first request.
func (b *Builder) Build() (Client, error) {
	return newClient(b.config, b.logger)
}

// Get performs a GET request
func (c *client) Get(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodGet, req)
}

// Post performs a POST request
func (c *client) Post(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPost, req)
}

// Put performs a PUT request
func (c *client) Put(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPut, req)
}

// Patch performs a PATCH request
func (c *client) Patch(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPatch, req)
}

// Delete performs a DELETE request
func (c *client) Delete(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodDelete, req)
}

// Do performs an HTTP request with the specified method. Every attempt is
// rebuilt from req and carries the same request ID.
func (c *client) Do(ctx context.Context, method string, req *Request) (resp *Response, err error) {
	if err := c.validateRequest(req); err != nil {
		return nil, err
	}
	target, err := c.resolveURL(req.URL)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	callCount := atomic.AddInt64(&c.callCount, 1)

	if c.tracer != nil {
		var span oteltrace.Span
		ctx, span = c.tracer.Start(ctx, "HTTP "+method, oteltrace.WithSpanKind(oteltrace.SpanKindInternal))
		defer func() {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
		}()
	}

	ctx, requestID := trace.EnsureTraceID(ctx)
	if _, ok := trace.ParentFromContext(ctx); !ok && !oteltrace.SpanContextFromContext(ctx).IsValid() {
		ctx = trace.WithTraceParent(ctx, trace.GenerateTraceParent())
	}

	c.logRequest(method, target, requestID, req)

	attempts := 0
	httpResp, err := c.exec.Execute(ctx, func(attemptCtx context.Context) (*nethttp.Response, error) {
		attempts++
		return c.attempt(attemptCtx, method, target, req)
	})
	if err != nil {
		return nil, c.mapError(err)
	}
	defer httpResp.Body.Close()

	// The body was buffered by the attempt, so this read cannot fail on the wire.
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, NewNetworkError("failed to read response body", err)
	}

	resp = &Response{
		StatusCode: httpResp.StatusCode,
		Body:       body,
		Headers:    httpResp.Header,
		Stats: Stats{
			ElapsedTime: time.Since(start),
			CallCount:   callCount,
			Attempts:    attempts,
			RequestID:   requestID,
		},
	}
	c.logResponse(resp)

	if !IsSuccessStatus(resp.StatusCode) {
		return resp, NewHTTPError(
			fmt.Sprintf("HTTP request failed with status %d", resp.StatusCode),
			resp.StatusCode,
			resp.Body,
		)
	}
	return resp, nil
}

// attempt sends one request. The response body is read here so that body
// read failures count as failed attempts.
func (c *client) attempt(ctx context.Context, method, target string, req *Request) (*nethttp.Response, error) {
	httpReq, err := c.buildRequest(ctx, method, target, req)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}

	if err := c.runResponseInterceptors(ctx, httpReq, httpResp); err != nil {
		_ = httpResp.Body.Close()
		return nil, retry.Permanent(NewInterceptorError("response interceptor failed", "response", err))
	}

	body, err := io.ReadAll(httpResp.Body)
	_ = httpResp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	httpResp.Body = io.NopCloser(bytes.NewReader(body))
	return httpResp, nil
}

// mapError converts executor errors into the ClientError taxonomy.
func (c *client) mapError(err error) error {
	var canceled *retry.CanceledError
	if errors.As(err, &canceled) {
		return NewCanceledError(err)
	}
	var clientErr ClientError
	if errors.As(err, &clientErr) {
		return clientErr
	}
	if retry.ClassifyError(err) == retry.FailureTimeout {
		return NewTimeoutError("request timeout", c.config.Timeout, err)
	}
	return NewNetworkError("request execution failed", err)
}

// validateRequest validates the request before sending
func (c *client) validateRequest(req *Request) error {
	if req == nil {
		return NewValidationError("request cannot be nil", "request")
	}
	if req.URL == "" {
		return NewValidationError("URL cannot be empty", "url")
	}
	return nil
}

func (c *client) resolveURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", NewValidationError(fmt.Sprintf("invalid URL: %v", err), "url")
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	if c.baseURL == nil {
		return "", NewValidationError("relative URL requires a base URL", "url")
	}
	return c.baseURL.ResolveReference(u).String(), nil
}

// applyHeaders applies headers to the HTTP request
func (c *client) applyHeaders(ctx context.Context, httpReq *nethttp.Request, req *Request) {
	// Apply default headers first
	for key, value := range c.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}

	// Apply request-specific headers (these override defaults)
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	// Set Content-Type if not already set and body is present
	if httpReq.Header.Get("Content-Type") == "" && req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if n, ok := retry.AttemptFromContext(ctx); ok && c.config.AttemptHeader != "" {
		httpReq.Header.Set(c.config.AttemptHeader, strconv.Itoa(n))
	}

	trace.InjectHeaders(ctx, httpReq.Header, c.config.TraceIDHeader)
}

// applyAuth applies authentication to the HTTP request
func (c *client) applyAuth(httpReq *nethttp.Request, req *Request) {
	// Request-specific auth takes precedence
	auth := req.Auth
	if auth == nil {
		auth = c.config.BasicAuth
	}

	if auth != nil {
		httpReq.SetBasicAuth(auth.Username, auth.Password)
	}
}

// buildRequest constructs the request for one attempt, applies headers and
// auth, and runs request interceptors with the attempt context.
func (c *client) buildRequest(ctx context.Context, method, target string, req *Request) (*nethttp.Request, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := nethttp.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, retry.Permanent(NewValidationError(fmt.Sprintf("failed to create HTTP request: %v", err), "request"))
	}

	c.applyHeaders(ctx, httpReq, req)
	c.applyAuth(httpReq, req)

	if err := c.runRequestInterceptors(ctx, httpReq); err != nil {
		return nil, retry.Permanent(NewInterceptorError("request interceptor failed", "request", err))
	}
	return httpReq, nil
}

// runRequestInterceptors executes all request interceptors
func (c *client) runRequestInterceptors(ctx context.Context, req *nethttp.Request) error {
	for _, interceptor := range c.config.RequestInterceptors {
		if err := interceptor(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// runResponseInterceptors executes all response interceptors
func (c *client) runResponseInterceptors(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error {
	for _, interceptor := range c.config.ResponseInterceptors {
		if err := interceptor(ctx, req, resp); err != nil {
			return err
		}
	}
	return nil
}

// logRequest logs the outgoing request
func (c *client) logRequest(method, target, requestID string, req *Request) {
	logEvent := c.logger.Debug().
		Str("direction", "outbound").
		Str("method", method).
		Str("url", target).
		Str("request_id", requestID)

	if len(req.Headers) > 0 {
		logEvent.Interface("headers", req.Headers)
	}

	if len(req.Body) > 0 {
		logEvent.Int("body_bytes", len(req.Body))
	}

	logEvent.Msg("REST client request")
}

// logResponse logs the final response
func (c *client) logResponse(resp *Response) {
	logEvent := c.logger.Info().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Dur("elapsed", resp.Stats.ElapsedTime).
		Int64("call_count", resp.Stats.CallCount).
		Int("attempts", resp.Stats.Attempts).
		Str("request_id", resp.Stats.RequestID)

	if len(resp.Body) > 0 {
		logEvent.Int("body_bytes", len(resp.Body))
	}

	logEvent.Msg("REST client response")
}
