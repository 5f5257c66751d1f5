// Package otel sets up the OpenTelemetry meter and tracer providers and holds
// the instruments shared across packages.
package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ScopeName is the instrumentation scope for every bay instrument and span
const ScopeName = "github.com/onkernel/bay"

// Provider owns the meter and tracer providers for the life of the process.
type Provider struct {
	meters  *sdkmetric.MeterProvider
	tracers *sdktrace.TracerProvider
}

// Init creates the providers. Metrics and spans are exported over OTLP/gRPC
// only when endpoint is set; otherwise they stay in process.
func Init(ctx context.Context, endpoint string) (*Provider, error) {
	var meterOpts []sdkmetric.Option
	var tracerOpts []sdktrace.TracerProviderOption
	if endpoint != "" {
		metricExporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpointURL(endpoint))
		if err != nil {
			return nil, fmt.Errorf("create otlp metric exporter: %w", err)
		}
		meterOpts = append(meterOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)))

		traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpointURL(endpoint))
		if err != nil {
			return nil, fmt.Errorf("create otlp trace exporter: %w", err)
		}
		tracerOpts = append(tracerOpts, sdktrace.WithBatcher(traceExporter))
	}
	return &Provider{
		meters:  sdkmetric.NewMeterProvider(meterOpts...),
		tracers: sdktrace.NewTracerProvider(tracerOpts...),
	}, nil
}

// Meter returns the bay meter.
func (p *Provider) Meter() metric.Meter {
	return p.meters.Meter(ScopeName)
}

// Tracer returns the bay tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracers.Tracer(ScopeName)
}

// Shutdown flushes pending metrics and spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	return errors.Join(p.tracers.Shutdown(ctx), p.meters.Shutdown(ctx))
}

// StartSpan starts a span on tracer. A nil tracer yields a span that records
// nothing.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, noop.Span{}
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan marks span failed when err is set and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
