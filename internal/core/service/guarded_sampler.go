package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/guillermoBallester/partwise/internal/core/domain"
	"github.com/guillermoBallester/partwise/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// GuardedSampler decorates a Sampler with a per-probe timeout, tracing,
// metrics and audit. Every error it returns is a *domain.SamplingError.
type GuardedSampler struct {
	sampler port.Sampler
	auditor port.ProbeAuditor
	logger  *slog.Logger
	timeout time.Duration
	tracer  trace.Tracer
	inst    port.Instrumentation
}

var _ port.Sampler = (*GuardedSampler)(nil)

func NewGuardedSampler(sampler port.Sampler, auditor port.ProbeAuditor, logger *slog.Logger, timeout time.Duration, tracer trace.Tracer, inst port.Instrumentation) *GuardedSampler {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	return &GuardedSampler{
		sampler: sampler,
		auditor: auditor,
		logger:  logger,
		timeout: timeout,
		tracer:  tracer,
		inst:    inst,
	}
}

func (s *GuardedSampler) ProbeDateRange(ctx context.Context, req port.ProbeRequest) (domain.DateRange, error) {
	return guard(ctx, s, port.ProbeDateRange, req, func(ctx context.Context) (domain.DateRange, error) {
		return s.sampler.ProbeDateRange(ctx, req)
	})
}

func (s *GuardedSampler) ProbeTimeComponent(ctx context.Context, req port.ProbeRequest) (bool, error) {
	return guard(ctx, s, port.ProbeTimeComponent, req, func(ctx context.Context) (bool, error) {
		return s.sampler.ProbeTimeComponent(ctx, req)
	})
}

func (s *GuardedSampler) ProbeDistinctDays(ctx context.Context, req port.ProbeRequest) (int64, error) {
	return guard(ctx, s, port.ProbeDistinctDays, req, func(ctx context.Context) (int64, error) {
		return s.sampler.ProbeDistinctDays(ctx, req)
	})
}

func (s *GuardedSampler) ProbeNumericRange(ctx context.Context, req port.ProbeRequest) (domain.NumericRange, error) {
	return guard(ctx, s, port.ProbeNumericRange, req, func(ctx context.Context) (domain.NumericRange, error) {
		return s.sampler.ProbeNumericRange(ctx, req)
	})
}

type sampledValue struct {
	value string
	ok    bool
}

func (s *GuardedSampler) ProbeSampleValue(ctx context.Context, req port.ProbeRequest) (string, bool, error) {
	v, err := guard(ctx, s, port.ProbeSampleValue, req, func(ctx context.Context) (sampledValue, error) {
		value, ok, err := s.sampler.ProbeSampleValue(ctx, req)
		return sampledValue{value, ok}, err
	})
	return v.value, v.ok, err
}

func (s *GuardedSampler) ProbeFormatMatch(ctx context.Context, req port.ProbeRequest, pattern domain.TextDatePattern) (int64, error) {
	return guard(ctx, s, port.ProbeFormatMatch, req, func(ctx context.Context) (int64, error) {
		return s.sampler.ProbeFormatMatch(ctx, req, pattern)
	})
}

func guard[T any](ctx context.Context, s *GuardedSampler, probe string, req port.ProbeRequest, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := s.tracer.Start(ctx, "Sampler."+probe,
		trace.WithAttributes(
			attribute.String("db.collection.name", req.Table.String()),
			attribute.String("db.operation.name", probe),
			attribute.String("partwise.column", req.Column),
			attribute.Int("partwise.parallel_hint", req.ParallelHint),
		),
	)
	defer span.End()

	probeCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	v, err := fn(probeCtx)
	durationMS := time.Since(start).Milliseconds()

	s.inst.RecordProbeDuration(ctx, probe, float64(durationMS))
	if s.auditor != nil {
		s.auditor.Record(ctx, port.ProbeEntry{
			Probe:        probe,
			Table:        req.Table,
			Column:       req.Column,
			ParallelHint: req.ParallelHint,
			DurationMS:   durationMS,
			Err:          err,
		})
	}

	if err == nil {
		return v, nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.inst.IncrementProbeFailures(ctx, probe)
	s.logger.WarnContext(ctx, "probe failed",
		slog.String("db.operation.name", probe),
		slog.String("db.collection.name", req.Table.String()),
		slog.String("column", req.Column),
		slog.String("error.type", domain.ErrorClass(err)),
		slog.String("error", err.Error()),
	)

	var samplingErr *domain.SamplingError
	if errors.As(err, &samplingErr) {
		return v, err
	}
	return v, &domain.SamplingError{Probe: probe, Table: req.Table, Column: req.Column, Err: err}
}
