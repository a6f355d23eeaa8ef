// Package observability provides OpenTelemetry tracing for the operations
// that talk to source servers or stream descriptors.
//
// Spans are started on the global tracer provider, so library code can trace
// unconditionally: until Init installs an SDK provider every span is a no-op.
package observability

import (
	"context"
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/nebula-sourceinfo/pkg/errors"
)

const instrumentationName = "github.com/ajitpratap0/nebula-sourceinfo"

// TracingConfig contains tracing configuration
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled" yaml:"enabled"`
	ServiceName  string  `mapstructure:"service_name" yaml:"service_name"`
	Exporter     string  `mapstructure:"exporter" yaml:"exporter"` // "stdout"
	SamplingRate float64 `mapstructure:"sampling_rate" yaml:"sampling_rate"`
}

// DefaultTracingConfig returns tracing disabled, sampling everything once enabled
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName:  "sourceinfo",
		Exporter:     "stdout",
		SamplingRate: 1.0,
	}
}

// ShutdownFunc flushes pending spans and releases the provider
type ShutdownFunc func(ctx context.Context) error

// Validate checks the exporter and sampling rate
func (c TracingConfig) Validate() error {
	switch strings.ToLower(c.Exporter) {
	case "", "stdout":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported trace exporter %q", c.Exporter)
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return errors.Newf(errors.ErrorTypeConfig, "sampling_rate %v is outside [0, 1]", c.SamplingRate)
	}
	return nil
}

// Init installs a global tracer provider exporting to w (stderr when nil).
// A disabled config leaves the no-op provider in place.
func Init(cfg TracingConfig, serviceVersion string, w io.Writer) (ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return noop, nil
	}
	if err := cfg.Validate(); err != nil {
		return noop, err
	}
	if w == nil {
		w = os.Stderr
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(serviceVersion),
		),
	)
	if err != nil {
		return noop, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create trace resource")
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return noop, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create stdout exporter")
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SamplingRate <= 0:
		sampler = sdktrace.NeverSample()
	case cfg.SamplingRate >= 1:
		sampler = sdktrace.AlwaysSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SamplingRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// StartSpan starts a span on the global provider
func StartSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, operation, trace.WithAttributes(attrs...))
}

// EndSpan records err, if any, as the span status and ends the span
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
