package observability

import (
	"maps"
	"strings"
	"time"
)

const (
	// EndpointStdout is a special endpoint value that outputs to stdout (for local development).
	EndpointStdout = "stdout"

	// ProtocolHTTP specifies OTLP over HTTP/protobuf.
	ProtocolHTTP = "http"

	// ProtocolGRPC specifies OTLP over gRPC.
	ProtocolGRPC = "grpc"

	// EnvironmentDevelopment is the default environment name.
	EnvironmentDevelopment = "development"
)

// BoolPtr returns a pointer to the provided bool value.
func BoolPtr(v bool) *bool {
	return &v
}

// Float64Ptr returns a pointer to the provided float64 value.
func Float64Ptr(v float64) *float64 {
	return &v
}

// Config controls tracing and metrics export for the retry client.
type Config struct {
	// Enabled controls whether observability is active.
	// When false, all observability operations become no-ops.
	Enabled bool `koanf:"enabled" mapstructure:"enabled"`

	Service ServiceConfig `koanf:"service" mapstructure:"service"`

	// Environment indicates the deployment environment (e.g., production, staging, development).
	Environment string `koanf:"environment" mapstructure:"environment"`

	Trace   TraceConfig   `koanf:"trace" mapstructure:"trace"`
	Metrics MetricsConfig `koanf:"metrics" mapstructure:"metrics"`
}

// ServiceConfig contains service identification metadata.
type ServiceConfig struct {
	// Name identifies the service in traces and metrics.
	// This is required when observability is enabled.
	Name    string `koanf:"name" mapstructure:"name"`
	Version string `koanf:"version" mapstructure:"version"`
}

// TraceConfig defines configuration for distributed tracing.
type TraceConfig struct {
	// Enabled: nil = default (true when observability is enabled).
	Enabled *bool `koanf:"enabled" mapstructure:"enabled"`

	// Endpoint specifies where to send trace data. "stdout" prints spans locally.
	Endpoint string `koanf:"endpoint" mapstructure:"endpoint"`

	// Protocol is "http" or "grpc"; ignored for stdout.
	Protocol string `koanf:"protocol" mapstructure:"protocol"`

	// Insecure disables TLS for OTLP endpoints.
	Insecure bool `koanf:"insecure" mapstructure:"insecure"`

	// Headers are sent with every OTLP export, e.g. authentication tokens.
	Headers map[string]string `koanf:"headers" mapstructure:"headers"`

	// SampleRate is the fraction of traces collected. nil = default (1.0).
	SampleRate *float64 `koanf:"samplerate" mapstructure:"samplerate"`

	// BatchTimeout is how long spans wait before a batch is exported.
	BatchTimeout time.Duration `koanf:"batchtimeout" mapstructure:"batchtimeout"`

	// ExportTimeout bounds each export call.
	ExportTimeout time.Duration `koanf:"exporttimeout" mapstructure:"exporttimeout"`
}

// MetricsConfig defines configuration for metrics collection.
type MetricsConfig struct {
	// Enabled: nil = default (true when observability is enabled).
	Enabled *bool `koanf:"enabled" mapstructure:"enabled"`

	// Endpoint specifies where to send metric data. "stdout" prints metrics locally.
	Endpoint string `koanf:"endpoint" mapstructure:"endpoint"`

	// Protocol is "http" or "grpc". Empty inherits the trace protocol.
	Protocol string `koanf:"protocol" mapstructure:"protocol"`

	// Interval specifies how often to export metrics.
	Interval time.Duration `koanf:"interval" mapstructure:"interval"`

	// ExportTimeout bounds each export call.
	ExportTimeout time.Duration `koanf:"exporttimeout" mapstructure:"exporttimeout"`
}

// ApplyDefaults sets default values for any config fields that are not specified.
func (c *Config) ApplyDefaults() {
	if c.Service.Version == "" {
		c.Service.Version = "unknown"
	}
	if c.Environment == "" {
		c.Environment = EnvironmentDevelopment
	}

	if c.Trace.Enabled == nil {
		c.Trace.Enabled = BoolPtr(true)
	}
	if c.Trace.Endpoint == "" {
		c.Trace.Endpoint = EndpointStdout
	}
	if c.Trace.Protocol == "" {
		c.Trace.Protocol = ProtocolHTTP
	}
	if c.Trace.SampleRate == nil {
		c.Trace.SampleRate = Float64Ptr(1.0)
	}
	if c.Trace.BatchTimeout == 0 {
		c.Trace.BatchTimeout = 5 * time.Second
	}
	if c.Trace.ExportTimeout == 0 {
		c.Trace.ExportTimeout = 30 * time.Second
	}
	c.Trace.Headers = cloneHeaderMap(c.Trace.Headers)

	if c.Metrics.Enabled == nil {
		c.Metrics.Enabled = BoolPtr(true)
	}
	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = c.Trace.Endpoint
	}
	if c.Metrics.Protocol == "" {
		c.Metrics.Protocol = c.Trace.Protocol
	}
	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = 10 * time.Second
	}
	if c.Metrics.ExportTimeout == 0 {
		c.Metrics.ExportTimeout = 30 * time.Second
	}
}

// Validate checks the configuration. A disabled config is always valid.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if !c.Enabled {
		return nil
	}
	if c.Service.Name == "" {
		return ErrMissingServiceName
	}

	if rate := c.Trace.SampleRate; rate != nil && (*rate < 0.0 || *rate > 1.0) {
		return ErrInvalidSampleRate
	}
	if err := validateEndpoint(c.Trace.Endpoint, c.Trace.Protocol); err != nil {
		return err
	}

	protocol := c.Metrics.Protocol
	if protocol == "" {
		protocol = c.Trace.Protocol
	}
	return validateEndpoint(c.Metrics.Endpoint, protocol)
}

// validateEndpoint checks that the endpoint format matches the protocol.
// gRPC endpoints use "host:port"; HTTP endpoints carry a scheme.
func validateEndpoint(endpoint, protocol string) error {
	if endpoint == EndpointStdout || endpoint == "" {
		return nil
	}
	if protocol == "" {
		protocol = ProtocolHTTP
	}

	hasScheme := strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")
	switch protocol {
	case ProtocolGRPC:
		if hasScheme {
			return ErrInvalidEndpointFormat
		}
	case ProtocolHTTP:
		if !hasScheme {
			return ErrInvalidEndpointFormat
		}
	default:
		return ErrInvalidProtocol
	}
	return nil
}

func cloneHeaderMap(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	clone := make(map[string]string, len(headers))
	maps.Copy(clone, headers)
	return clone
}
