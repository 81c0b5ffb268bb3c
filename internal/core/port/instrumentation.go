package port

import "context"

// Instrumentation records application-level metrics.
type Instrumentation interface {
	RecordAnalysisDuration(ctx context.Context, ms float64)
	IncrementAnalysisCount(ctx context.Context)
	IncrementAnalysisFailures(ctx context.Context)
	RecordProbeDuration(ctx context.Context, probe string, ms float64)
	IncrementProbeFailures(ctx context.Context, probe string)
	RecordToolDuration(ctx context.Context, ms float64)
}

// NoopInstrumentation discards all metrics.
type NoopInstrumentation struct{}

func (NoopInstrumentation) RecordAnalysisDuration(context.Context, float64)      {}
func (NoopInstrumentation) IncrementAnalysisCount(context.Context)               {}
func (NoopInstrumentation) IncrementAnalysisFailures(context.Context)            {}
func (NoopInstrumentation) RecordProbeDuration(context.Context, string, float64) {}
func (NoopInstrumentation) IncrementProbeFailures(context.Context, string)       {}
func (NoopInstrumentation) RecordToolDuration(context.Context, float64)          {}
