package retry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/httpretry/observability"
)

const instrumentationName = "github.com/gaborage/httpretry/retry"

// Metric instrument names.
const (
	MetricAttempts   = "http.client.retry.attempts"
	MetricRetries    = "http.client.retry.retries"
	MetricDelay      = "http.client.retry.delay"
	MetricRetryAfter = "http.client.retry.retry_after"
	MetricCanceled   = "http.client.retry.canceled"
	MetricExhausted  = "http.client.retry.exhausted"
)

type metricsObserver struct {
	attempts   metric.Int64Counter
	retries    metric.Int64Counter
	delay      metric.Float64Histogram
	retryAfter metric.Int64Counter
	canceled   metric.Int64Counter
	exhausted  metric.Int64Counter
}

// NewMetricsObserver records executor events as OpenTelemetry metrics on a
// meter obtained from mp.
func NewMetricsObserver(mp metric.MeterProvider) (Observer, error) {
	if mp == nil {
		return nopObserver{}, nil
	}
	meter := mp.Meter(instrumentationName)

	var (
		m   metricsObserver
		err error
	)
	if m.attempts, err = observability.CreateCounter(meter, MetricAttempts, "HTTP attempts made, including the first"); err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricAttempts, err)
	}
	if m.retries, err = observability.CreateCounter(meter, MetricRetries, "Retries scheduled"); err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricRetries, err)
	}
	if m.delay, err = observability.CreateHistogram(meter, MetricDelay, "Backoff delay before a retry",
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricDelay, err)
	}
	if m.retryAfter, err = observability.CreateCounter(meter, MetricRetryAfter, "Retry-After evaluations by reason"); err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricRetryAfter, err)
	}
	if m.canceled, err = observability.CreateCounter(meter, MetricCanceled, "Requests canceled by the caller"); err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricCanceled, err)
	}
	if m.exhausted, err = observability.CreateCounter(meter, MetricExhausted, "Requests that ran out of retries"); err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricExhausted, err)
	}
	return &m, nil
}

func (m *metricsObserver) Observe(ctx context.Context, ev Event) {
	switch ev.Type {
	case EventAttempt:
		m.attempts.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", ev.FailureKind.String()),
			attribute.Int("http.response.status_code", ev.StatusCode),
		))
	case EventRetry:
		m.retries.Add(ctx, 1, metric.WithAttributes(attribute.Int(AttemptKey, ev.Attempt)))
		m.delay.Record(ctx, float64(ev.Delay.Microseconds())/1000)
	case EventRetryAfter:
		if ev.RetryAfter != nil {
			m.retryAfter.Add(ctx, 1, metric.WithAttributes(
				attribute.String("reason", string(ev.RetryAfter.Reason)),
				attribute.Bool("valid", ev.RetryAfter.Valid),
			))
		}
	case EventCanceled:
		m.canceled.Add(ctx, 1, metric.WithAttributes(attribute.String("phase", string(ev.Phase))))
	case EventDone:
		if ev.Exhausted {
			m.exhausted.Add(ctx, 1)
		}
	}
}

type traceObserver struct{}

// NewTraceObserver adds executor events to the span carried by the request context.
func NewTraceObserver() Observer {
	return traceObserver{}
}

func (traceObserver) Observe(ctx context.Context, ev Event) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	attrs := []attribute.KeyValue{attribute.Int(AttemptKey, ev.Attempt)}
	if ev.StatusCode != 0 {
		attrs = append(attrs, attribute.Int("http.response.status_code", ev.StatusCode))
	}

	switch ev.Type {
	case EventRetry:
		attrs = append(attrs,
			attribute.String("retry.outcome", ev.FailureKind.String()),
			attribute.Int64("retry.delay_ms", ev.Delay.Milliseconds()),
		)
		span.AddEvent("retry", trace.WithAttributes(attrs...))
	case EventRetryAfter:
		if ev.RetryAfter != nil {
			attrs = append(attrs,
				attribute.String("retry.retry_after.reason", string(ev.RetryAfter.Reason)),
				attribute.Bool("retry.retry_after.valid", ev.RetryAfter.Valid),
			)
		}
		span.AddEvent("retry_after", trace.WithAttributes(attrs...))
	case EventDone:
		span.SetAttributes(
			attribute.Int("retry.attempts", ev.Attempt),
			attribute.Bool("retry.exhausted", ev.Exhausted),
		)
	case EventCanceled:
		attrs = append(attrs, attribute.String("retry.phase", string(ev.Phase)))
		span.AddEvent("retry_canceled", trace.WithAttributes(attrs...))
	}
}
