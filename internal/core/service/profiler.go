package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/guillermoBallester/partwise/internal/core/domain"
	"github.com/guillermoBallester/partwise/internal/core/port"
)

// ColumnProfiler turns date-range probes on one temporal column into a
// ColumnProfile.
type ColumnProfiler struct {
	sampler port.Sampler
	th      domain.Thresholds
	logger  *slog.Logger
}

func NewColumnProfiler(sampler port.Sampler, th domain.Thresholds, logger *slog.Logger) *ColumnProfiler {
	return &ColumnProfiler{sampler: sampler, th: th, logger: logger}
}

// ProfileOutcome is the result of profiling one column. Usable is false when
// the column was excluded from candidacy, either for lack of data or because a
// probe failed.
type ProfileOutcome struct {
	Profile  domain.ColumnProfile
	Usable   bool
	Warnings []domain.Warning
}

// Profile probes col and builds its profile. A probe failure excludes the
// column and is reported as a warning; the returned error is non-nil only when
// ctx itself is done.
func (p *ColumnProfiler) Profile(ctx context.Context, table domain.TableRef, col domain.ColumnDescriptor, hint, usage int) (ProfileOutcome, error) {
	req := port.ProbeRequest{Table: table, Column: col.Name, ParallelHint: hint}

	raw, err := p.sampler.ProbeDateRange(ctx, req)
	if err != nil {
		return p.failed(ctx, col, err)
	}
	in := domain.ProfileInput{Column: col, Raw: raw, UsageScore: usage}
	if raw.Min == nil && raw.Max == nil {
		p.logger.DebugContext(ctx, "column has no data", slog.String("column", col.Name))
		return ProfileOutcome{}, nil
	}

	if domain.YearsOutOfBounds(raw, p.th) {
		filteredReq := req
		filteredReq.YearBounds = &domain.YearBounds{Min: p.th.MinSaneYear, Max: p.th.MaxSaneYear}
		filtered, err := p.sampler.ProbeDateRange(ctx, filteredReq)
		if err != nil {
			return p.failed(ctx, col, err)
		}
		in.Filtered = &filtered
	}

	if !domain.ClockHasTime(raw) {
		in.TimeComponent, err = p.sampler.ProbeTimeComponent(ctx, req)
		if err != nil {
			return p.failed(ctx, col, err)
		}
	}

	if in.TimeComponent || domain.ClockHasTime(raw) {
		days, err := p.sampler.ProbeDistinctDays(ctx, req)
		if err != nil {
			return p.failed(ctx, col, err)
		}
		in.DistinctDays = &days
	}

	profile, warnings, ok := domain.BuildColumnProfile(in, p.th)
	return ProfileOutcome{Profile: profile, Usable: ok, Warnings: warnings}, nil
}

func (p *ColumnProfiler) failed(ctx context.Context, col domain.ColumnDescriptor, err error) (ProfileOutcome, error) {
	if ctx.Err() != nil {
		return ProfileOutcome{}, fmt.Errorf("profiling %s: %w", col.Name, ctx.Err())
	}
	return ProfileOutcome{Warnings: []domain.Warning{samplingWarning(col.Name, err)}}, nil
}

func samplingWarning(column string, err error) domain.Warning {
	return domain.Warning{
		Code:    domain.WarnSamplingFailed,
		Column:  column,
		Message: fmt.Sprintf("excluded from candidacy (%s): %v", domain.ErrorClass(err), err),
	}
}
