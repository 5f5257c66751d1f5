package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitWithoutEndpoint(t *testing.T) {
	p, err := Init(context.Background(), "")
	require.NoError(t, err)

	_, err = NewVolumeMetrics(p.Meter())
	require.NoError(t, err)
	_, span := StartSpan(context.Background(), p.Tracer(), "ResolveBuild")
	EndSpan(span, nil)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestVolumeMetricsRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	ctx := context.Background()

	m, err := NewVolumeMetrics(provider.Meter(ScopeName))
	require.NoError(t, err)
	m.ProvisionsTotal.Add(ctx, 2)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	var found bool
	for _, metric := range rm.ScopeMetrics[0].Metrics {
		if metric.Name != "bay_volume_provisions_total" {
			continue
		}
		found = true
		sum, ok := metric.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, sum.DataPoints, 1)
		assert.Equal(t, int64(2), sum.DataPoints[0].Value)
	}
	assert.True(t, found)
}

func TestSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer(ScopeName)
	ctx := context.Background()

	_, succeeded := StartSpan(ctx, tracer, "BuildContainer", attribute.String("container", "web"))
	EndSpan(succeeded, nil)
	_, failed := StartSpan(ctx, tracer, "BuildContainer", attribute.String("container", "db"))
	EndSpan(failed, errors.New("exit 1"))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "exit 1", spans[1].Status().Description)
	assert.Contains(t, spans[1].Attributes(), attribute.String("container", "db"))
}

func TestStartSpanWithoutTracer(t *testing.T) {
	ctx := context.Background()
	got, span := StartSpan(ctx, nil, "RunBuild")
	assert.Equal(t, ctx, got)
	assert.False(t, span.IsRecording())
	EndSpan(span, errors.New("ignored"))
}
