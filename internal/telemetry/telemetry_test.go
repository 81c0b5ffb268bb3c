package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNoopTracer(t *testing.T) {
	tracer := NoopTracer()
	assert.NotNil(t, tracer)

	_, span := tracer.Start(context.Background(), "test")
	assert.NotNil(t, span)
	span.End()
}

func TestNoopInstruments(t *testing.T) {
	inst := NoopInstruments()
	require.NotNil(t, inst)

	// Should not panic.
	ctx := context.Background()
	inst.IncrementAnalysisCount(ctx)
	inst.IncrementAnalysisFailures(ctx)
	inst.RecordAnalysisDuration(ctx, 100)
	inst.RecordProbeDuration(ctx, "date_range", 12)
	inst.IncrementProbeFailures(ctx, "date_range")
	inst.RecordToolDuration(ctx, 5)
}

func TestInit_Disabled(t *testing.T) {
	p, err := Init(context.Background(), Options{ServiceName: "partwise", Version: "test"})
	require.NoError(t, err)
	assert.NotNil(t, p.Tracer())
	assert.NotNil(t, p.Instruments())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestProvider_Nil(t *testing.T) {
	var p *Provider
	assert.NoError(t, p.Shutdown(context.Background()))
	assert.NotNil(t, p.Tracer())
	assert.NotNil(t, p.Instruments())
}

func TestSpanRecording(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()
	tracer := tp.Tracer("test")

	ctx := context.Background()
	_, span := tracer.Start(ctx, "Analyzer.AnalyzeTable")
	span.SetAttributes(attribute.String("db.collection.name", "sales.orders"))
	span.End()

	require.NoError(t, tp.ForceFlush(ctx))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "Analyzer.AnalyzeTable", spans[0].Name)
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestInstruments_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()
	inst := NewInstruments(mp.Meter(scopeName))

	ctx := context.Background()
	inst.IncrementAnalysisCount(ctx)
	inst.IncrementAnalysisCount(ctx)
	inst.IncrementAnalysisFailures(ctx)
	inst.RecordAnalysisDuration(ctx, 250)
	inst.RecordProbeDuration(ctx, "date_range", 40)
	inst.IncrementProbeFailures(ctx, "distinct_days")
	inst.RecordToolDuration(ctx, 3)

	metrics := collect(t, reader)
	for _, name := range []string{
		"partwise.analysis.count",
		"partwise.analysis.failures",
		"partwise.analysis.duration",
		"partwise.probe.duration",
		"partwise.probe.failures",
		"partwise.tool.duration",
	} {
		assert.Contains(t, metrics, name)
	}

	count, ok := metrics["partwise.analysis.count"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, count.DataPoints, 1)
	assert.Equal(t, int64(2), count.DataPoints[0].Value)

	failures, ok := metrics["partwise.probe.failures"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, failures.DataPoints, 1)
	probe, found := failures.DataPoints[0].Attributes.Value("partwise.probe")
	require.True(t, found)
	assert.Equal(t, "distinct_days", probe.AsString())

	assert.Equal(t, "ms", metrics["partwise.probe.duration"].Unit)
}
