package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"google.golang.org/grpc/credentials/insecure"
)

func (p *provider) initMeterProvider(res *resource.Resource) error {
	exporter, err := p.createMetricExporter()
	if err != nil {
		return fmt.Errorf("failed to create metric exporter: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(
		exporter,
		sdkmetric.WithInterval(p.config.Metrics.Interval),
		sdkmetric.WithTimeout(p.config.Metrics.ExportTimeout),
	)

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	return nil
}

// createMetricExporter creates a metric exporter based on the configured endpoint.
// Metrics reuse the trace TLS and header settings.
func (p *provider) createMetricExporter() (sdkmetric.Exporter, error) {
	cfg := p.config.Metrics
	if cfg.Endpoint == EndpointStdout {
		return stdoutmetric.New(stdoutmetric.WithPrettyPrint())
	}

	switch cfg.Protocol {
	case ProtocolHTTP:
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpointURL(cfg.Endpoint)}
		if p.config.Trace.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		if len(p.config.Trace.Headers) > 0 {
			opts = append(opts, otlpmetrichttp.WithHeaders(p.config.Trace.Headers))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case ProtocolGRPC:
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
		if p.config.Trace.Insecure {
			opts = append(opts, otlpmetricgrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		if len(p.config.Trace.Headers) > 0 {
			opts = append(opts, otlpmetricgrpc.WithHeaders(p.config.Trace.Headers))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("metrics protocol '%s': %w", cfg.Protocol, ErrInvalidProtocol)
	}
}

// CreateCounter creates a monotonically increasing counter.
//
// Example:
//
//	counter, err := CreateCounter(meter, "http.client.retry.retries", "Retries scheduled")
//	if err != nil {
//	    return err
//	}
//	counter.Add(ctx, 1, metric.WithAttributes(attribute.Int("retry.attempt", 2)))
func CreateCounter(meter metric.Meter, name, description string, opts ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	return meter.Int64Counter(
		name,
		append([]metric.Int64CounterOption{
			metric.WithDescription(description),
		}, opts...)...,
	)
}

// CreateHistogram creates a histogram for value distributions such as backoff delays.
func CreateHistogram(meter metric.Meter, name, description string, opts ...metric.Float64HistogramOption) (metric.Float64Histogram, error) {
	return meter.Float64Histogram(
		name,
		append([]metric.Float64HistogramOption{
			metric.WithDescription(description),
		}, opts...)...,
	)
}
