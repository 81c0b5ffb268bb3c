package telemetry

import (
	"context"

	"github.com/guillermoBallester/partwise/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const scopeName = "github.com/guillermoBallester/partwise"

var _ port.Instrumentation = (*Instruments)(nil)

// Instruments holds pre-created OTel metric instruments.
type Instruments struct {
	AnalysisCount    metric.Int64Counter
	AnalysisFailures metric.Int64Counter
	AnalysisDuration metric.Float64Histogram
	ProbeDuration    metric.Float64Histogram
	ProbeFailures    metric.Int64Counter
	ToolDuration     metric.Float64Histogram
}

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *Instruments {
	return NewInstruments(noop.NewMeterProvider().Meter(scopeName))
}

// NewInstruments creates the partwise instruments on meter.
func NewInstruments(meter metric.Meter) *Instruments {
	// OTel SDK returns noop instruments on error; safe to discard.
	analysisCount, _ := meter.Int64Counter("partwise.analysis.count",
		metric.WithDescription("Total number of table analyses started"),
	)
	analysisFailures, _ := meter.Int64Counter("partwise.analysis.failures",
		metric.WithDescription("Total number of table analyses that failed"),
	)
	analysisDuration, _ := meter.Float64Histogram("partwise.analysis.duration",
		metric.WithDescription("Table analysis duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	probeDuration, _ := meter.Float64Histogram("partwise.probe.duration",
		metric.WithDescription("Sampling probe duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	probeFailures, _ := meter.Int64Counter("partwise.probe.failures",
		metric.WithDescription("Total number of failed sampling probes"),
	)
	toolDuration, _ := meter.Float64Histogram("partwise.tool.duration",
		metric.WithDescription("MCP tool call duration in milliseconds"),
		metric.WithUnit("ms"),
	)

	return &Instruments{
		AnalysisCount:    analysisCount,
		AnalysisFailures: analysisFailures,
		AnalysisDuration: analysisDuration,
		ProbeDuration:    probeDuration,
		ProbeFailures:    probeFailures,
		ToolDuration:     toolDuration,
	}
}

func probeAttr(probe string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("partwise.probe", probe))
}

func (i *Instruments) RecordAnalysisDuration(ctx context.Context, ms float64) {
	i.AnalysisDuration.Record(ctx, ms)
}

func (i *Instruments) IncrementAnalysisCount(ctx context.Context) {
	i.AnalysisCount.Add(ctx, 1)
}

func (i *Instruments) IncrementAnalysisFailures(ctx context.Context) {
	i.AnalysisFailures.Add(ctx, 1)
}

func (i *Instruments) RecordProbeDuration(ctx context.Context, probe string, ms float64) {
	i.ProbeDuration.Record(ctx, ms, probeAttr(probe))
}

func (i *Instruments) IncrementProbeFailures(ctx context.Context, probe string) {
	i.ProbeFailures.Add(ctx, 1, probeAttr(probe))
}

func (i *Instruments) RecordToolDuration(ctx context.Context, ms float64) {
	i.ToolDuration.Record(ctx, ms)
}
