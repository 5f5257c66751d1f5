package builds

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/onkernel/bay/lib/otel"
)

// Metrics provides OpenTelemetry metrics for the build orchestrator
type Metrics struct {
	buildDuration metric.Float64Histogram
	buildTotal    metric.Int64Counter
	pullTotal     metric.Int64Counter
	tracer        trace.Tracer
}

// NewMetrics creates a new Metrics instance. tracer may be nil.
func NewMetrics(meter metric.Meter, tracer trace.Tracer) (*Metrics, error) {
	buildDuration, err := meter.Float64Histogram(
		"bay_build_duration_seconds",
		metric.WithDescription("Duration of image builds in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	buildTotal, err := meter.Int64Counter(
		"bay_builds_total",
		metric.WithDescription("Total number of image builds"),
	)
	if err != nil {
		return nil, err
	}

	pullTotal, err := meter.Int64Counter(
		"bay_image_pulls_total",
		metric.WithDescription("Total number of image pull attempts"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		buildDuration: buildDuration,
		buildTotal:    buildTotal,
		pullTotal:     pullTotal,
		tracer:        tracer,
	}, nil
}

// RecordBuild records metrics for a completed build
func (m *Metrics) RecordBuild(ctx context.Context, container, status string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("container", container),
		attribute.String("status", status),
	}

	m.buildDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.buildTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPull records one pull attempt
func (m *Metrics) RecordPull(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.pullTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// startSpan starts a span when tracing is enabled
func (m *Metrics) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if m == nil {
		return otel.StartSpan(ctx, nil, name)
	}
	return otel.StartSpan(ctx, m.tracer, name, attrs...)
}
