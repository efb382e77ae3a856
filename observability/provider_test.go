package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	obstest "github.com/gaborage/httpretry/observability/testing"
)

func TestNewProviderDisabledReturnsNoop(t *testing.T) {
	p, err := NewProvider(&Config{})
	require.NoError(t, err)

	_, ok := p.(*noopProvider)
	assert.True(t, ok)
	assert.NotNil(t, p.TracerProvider())
	assert.NotNil(t, p.MeterProvider())
	assert.NoError(t, p.ForceFlush(context.Background()))
	assert.NoError(t, Shutdown(p, time.Second))
}

func TestNewProviderRejectsInvalidConfig(t *testing.T) {
	_, err := NewProvider(&Config{Enabled: true})
	assert.ErrorIs(t, err, ErrMissingServiceName)

	_, err = NewProvider(nil)
	assert.ErrorIs(t, err, ErrNilConfig)
}

func TestNewProviderDoesNotMutateCallerConfig(t *testing.T) {
	cfg := &Config{}
	_, err := NewProvider(cfg)
	require.NoError(t, err)
	assert.Nil(t, cfg.Trace.Enabled)
	assert.Empty(t, cfg.Trace.Endpoint)
}

func TestNewProviderTracingOnlyUsesNoopMeter(t *testing.T) {
	p, err := NewProvider(&Config{
		Enabled: true,
		Service: ServiceConfig{Name: "retryctl"},
		Metrics: MetricsConfig{Enabled: BoolPtr(false)},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Shutdown(p, time.Second) })

	impl, ok := p.(*provider)
	require.True(t, ok)
	assert.NotNil(t, impl.tracerProvider)
	assert.Nil(t, impl.meterProvider)
	assert.NotNil(t, p.MeterProvider())
}

func TestShutdownNilProvider(t *testing.T) {
	assert.NoError(t, Shutdown(nil, 0))
}

func TestCreateInstruments(t *testing.T) {
	mp := obstest.NewTestMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	meter := mp.Meter("test")

	counter, err := CreateCounter(meter, "test.counter", "a counter")
	require.NoError(t, err)
	hist, err := CreateHistogram(meter, "test.histogram", "a histogram", metric.WithUnit("ms"))
	require.NoError(t, err)

	ctx := context.Background()
	counter.Add(ctx, 2, metric.WithAttributes(attribute.String("k", "a")))
	counter.Add(ctx, 3, metric.WithAttributes(attribute.String("k", "b")))
	hist.Record(ctx, 12.5)

	rm := mp.Collect(t)
	assert.Equal(t, int64(5), obstest.SumValue(rm, "test.counter"))
	assert.Equal(t, int64(3), obstest.SumValueWhere(rm, "test.counter", []attribute.KeyValue{attribute.String("k", "b")}))
	assert.Equal(t, uint64(1), obstest.HistogramCount(rm, "test.histogram"))

	m := obstest.FindMetric(rm, "test.counter")
	require.NotNil(t, m)
	assert.Equal(t, "a counter", m.Description)
}
