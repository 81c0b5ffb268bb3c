package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/guillermoBallester/partwise/internal/core/domain"
	"github.com/guillermoBallester/partwise/internal/core/port"
)

// NonStandardDetector finds dates encoded in integer or text columns. It runs a
// numeric pass, then a text pass only when the numeric pass found nothing.
type NonStandardDetector struct {
	sampler port.Sampler
	dialect domain.Dialect
	th      domain.Thresholds
	logger  *slog.Logger
}

func NewNonStandardDetector(sampler port.Sampler, dialect domain.Dialect, th domain.Thresholds, logger *slog.Logger) *NonStandardDetector {
	return &NonStandardDetector{sampler: sampler, dialect: dialect, th: th, logger: logger}
}

// Detect returns at most one candidate: the first column, in column order, that
// matches any rule of the pass being run.
func (d *NonStandardDetector) Detect(ctx context.Context, table domain.TableRef, cols []domain.ColumnDescriptor, hint int) ([]domain.NonStandardCandidate, []domain.Warning, error) {
	var warnings []domain.Warning

	for _, col := range cols {
		if col.Category() != domain.CategoryInteger || !domain.DateLikeName(col.Name) {
			continue
		}
		r, err := d.sampler.ProbeNumericRange(ctx, port.ProbeRequest{Table: table, Column: col.Name, ParallelHint: hint})
		if err != nil {
			if ctx.Err() != nil {
				return nil, warnings, fmt.Errorf("detecting non-standard dates: %w", ctx.Err())
			}
			warnings = append(warnings, samplingWarning(col.Name, err))
			continue
		}
		format, ok := domain.ClassifyNumericRange(r, d.th)
		if !ok {
			continue
		}
		evidence := fmt.Sprintf("values %d..%d over %d rows", *r.Min, *r.Max, r.Count)
		if c, ok := d.candidate(ctx, col, format, evidence); ok {
			return []domain.NonStandardCandidate{c}, append(warnings, nonStandardWarning(c)), nil
		}
	}

	for _, col := range cols {
		if col.Category() != domain.CategoryText || !domain.DateLikeName(col.Name) {
			continue
		}
		c, ok, err := d.detectText(ctx, table, col, hint)
		if err != nil {
			if ctx.Err() != nil {
				return nil, warnings, fmt.Errorf("detecting non-standard dates: %w", ctx.Err())
			}
			warnings = append(warnings, samplingWarning(col.Name, err))
			continue
		}
		if ok {
			return []domain.NonStandardCandidate{c}, append(warnings, nonStandardWarning(c)), nil
		}
	}
	return nil, warnings, nil
}

func (d *NonStandardDetector) detectText(ctx context.Context, table domain.TableRef, col domain.ColumnDescriptor, hint int) (domain.NonStandardCandidate, bool, error) {
	req := port.ProbeRequest{Table: table, Column: col.Name, ParallelHint: hint, SampleRows: d.th.FormatSampleRows}
	value, ok, err := d.sampler.ProbeSampleValue(ctx, req)
	if err != nil || !ok {
		return domain.NonStandardCandidate{}, false, err
	}
	for _, pattern := range domain.TextDatePatterns {
		if !pattern.Accepts(value) {
			continue
		}
		n, err := d.sampler.ProbeFormatMatch(ctx, req, pattern)
		if err != nil {
			return domain.NonStandardCandidate{}, false, err
		}
		if n == 0 {
			continue
		}
		evidence := fmt.Sprintf("sample %q, %d of %d sampled rows match", value, n, d.th.FormatSampleRows)
		if c, ok := d.candidate(ctx, col, pattern.Format, evidence); ok {
			return c, true, nil
		}
	}
	return domain.NonStandardCandidate{}, false, nil
}

func (d *NonStandardDetector) candidate(ctx context.Context, col domain.ColumnDescriptor, format domain.DateFormat, evidence string) (domain.NonStandardCandidate, bool) {
	c := domain.NewNonStandardCandidate(d.dialect, col, format, evidence)
	if d.dialect == domain.DialectPostgres {
		if err := domain.ValidateExpression(c.Expression); err != nil {
			d.logger.WarnContext(ctx, "generated conversion expression does not parse",
				slog.String("column", col.Name),
				slog.String("expression", c.Expression),
				slog.String("error", err.Error()),
			)
			return domain.NonStandardCandidate{}, false
		}
	}
	return c, true
}

func nonStandardWarning(c domain.NonStandardCandidate) domain.Warning {
	return domain.Warning{
		Code:    domain.WarnNonStandardDate,
		Column:  c.Column,
		Message: fmt.Sprintf("dates stored as %s; key requires conversion %s", c.Format, c.Expression),
	}
}
