// Package testing provides in-memory OpenTelemetry providers and assertion
// helpers for tests of retry instrumentation.
//
// Usage:
//
//	mp := NewTestMeterProvider()
//	obs, _ := retry.NewMetricsObserver(mp)
//	// run requests...
//	rm := mp.Collect(t)
//	assert.Equal(t, int64(2), SumValue(rm, retry.MetricRetries))
package testing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTraceProvider wraps the SDK TracerProvider and in-memory exporter for testing.
type TestTraceProvider struct {
	*sdktrace.TracerProvider
	Exporter *tracetest.InMemoryExporter
}

// NewTestTraceProvider creates a TracerProvider that records every span synchronously in memory.
func NewTestTraceProvider() *TestTraceProvider {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)

	return &TestTraceProvider{
		TracerProvider: provider,
		Exporter:       exporter,
	}
}

// TestMeterProvider wraps the SDK MeterProvider and manual reader for testing.
type TestMeterProvider struct {
	*sdkmetric.MeterProvider
	Reader *sdkmetric.ManualReader
}

// NewTestMeterProvider creates a MeterProvider with a manual reader for on-demand collection.
func NewTestMeterProvider() *TestMeterProvider {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
	)

	return &TestMeterProvider{
		MeterProvider: provider,
		Reader:        reader,
	}
}

// Collect reads all metrics from the provider.
func (tmp *TestMeterProvider) Collect(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	err := tmp.Reader.Collect(context.Background(), &rm)
	require.NoError(t, err, "failed to collect metrics")
	return rm
}

// FindMetric finds a metric by name in the ResourceMetrics.
// Returns nil if not found.
func FindMetric(rm metricdata.ResourceMetrics, metricName string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == metricName {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// SumValue totals every data point of an int64 Sum metric. Missing metrics total zero.
func SumValue(rm metricdata.ResourceMetrics, metricName string) int64 {
	return SumValueWhere(rm, metricName, nil)
}

// SumValueWhere totals the data points of an int64 Sum metric that carry
// every attribute in attrs.
func SumValueWhere(rm metricdata.ResourceMetrics, metricName string, attrs []attribute.KeyValue) int64 {
	m := FindMetric(rm, metricName)
	if m == nil {
		return 0
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		return 0
	}

	var total int64
	for _, dp := range sum.DataPoints {
		if hasAttributes(dp.Attributes, attrs) {
			total += dp.Value
		}
	}
	return total
}

// HistogramCount totals the recorded values of a float64 Histogram metric.
func HistogramCount(rm metricdata.ResourceMetrics, metricName string) uint64 {
	m := FindMetric(rm, metricName)
	if m == nil {
		return 0
	}
	hist, ok := m.Data.(metricdata.Histogram[float64])
	if !ok {
		return 0
	}

	var total uint64
	for _, dp := range hist.DataPoints {
		total += dp.Count
	}
	return total
}

// EventNames lists the names of a span's events in order.
func EventNames(span tracetest.SpanStub) []string {
	names := make([]string, 0, len(span.Events))
	for _, ev := range span.Events {
		names = append(names, ev.Name)
	}
	return names
}

// SpanAttribute returns the value of a span attribute.
func SpanAttribute(span tracetest.SpanStub, key string) (attribute.Value, bool) {
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			return attr.Value, true
		}
	}
	return attribute.Value{}, false
}

func hasAttributes(set attribute.Set, attrs []attribute.KeyValue) bool {
	for _, want := range attrs {
		got, ok := set.Value(want.Key)
		if !ok || got != want.Value {
			return false
		}
	}
	return true
}
