package oracle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/guillermoBallester/partwise/internal/core/domain"
	"github.com/guillermoBallester/partwise/internal/core/port"
	"github.com/jmoiron/sqlx"
)

const defaultSampleRows = 1000

var _ port.Sampler = (*Sampler)(nil)

// Sampler runs bounded probes as single SELECT statements. Cancellation relies
// on the driver honouring ctx; the parallel hint becomes a PARALLEL optimizer
// hint capped at maxParallel.
type Sampler struct {
	db          *sqlx.DB
	catalog     *Catalog
	maxParallel int
}

func NewSampler(db *sqlx.DB, catalog *Catalog, maxParallel int) *Sampler {
	return &Sampler{db: db, catalog: catalog, maxParallel: maxParallel}
}

func (s *Sampler) degree(hint int) int {
	if s.maxParallel <= 0 {
		return 0
	}
	return min(hint, s.maxParallel)
}

// probe renders the template for the request's column and table.
func (s *Sampler) probe(ctx context.Context, tmpl string, req port.ProbeRequest) (string, error) {
	ref, err := s.catalog.Resolve(ctx, req.Table)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(tmpl, parallelHint(s.degree(req.ParallelHint)), domain.QuoteIdent(req.Column), qualifiedName(ref)), nil
}

func sampleRows(req port.ProbeRequest) int {
	if req.SampleRows > 0 {
		return req.SampleRows
	}
	return defaultSampleRows
}

// dateRangeSQL builds the min/max probe, optionally restricted to sane years.
func dateRangeSQL(hint string, ref domain.TableRef, column string, bounds *domain.YearBounds) (string, []any) {
	col := domain.QuoteIdent(column)
	if bounds == nil {
		return fmt.Sprintf(queryProbeDateRange, hint, col, qualifiedName(ref), ""), nil
	}
	filter := fmt.Sprintf(yearFilter, col)
	return fmt.Sprintf(queryProbeDateRange, hint, col, qualifiedName(ref), filter), []any{bounds.Min, bounds.Max}
}

type dateRangeRow struct {
	Min      sql.NullTime   `db:"min_value"`
	Max      sql.NullTime   `db:"max_value"`
	Total    int64          `db:"total"`
	NonNull  int64          `db:"non_null"`
	ClockMin sql.NullString `db:"clock_min"`
	ClockMax sql.NullString `db:"clock_max"`
}

func (s *Sampler) ProbeDateRange(ctx context.Context, req port.ProbeRequest) (domain.DateRange, error) {
	ref, err := s.catalog.Resolve(ctx, req.Table)
	if err != nil {
		return domain.DateRange{}, err
	}
	query, args := dateRangeSQL(parallelHint(s.degree(req.ParallelHint)), ref, req.Column, req.YearBounds)

	var row dateRangeRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		return domain.DateRange{}, probeError(ctx, err)
	}
	r := domain.DateRange{
		Total:    row.Total,
		NonNull:  row.NonNull,
		ClockMin: row.ClockMin.String,
		ClockMax: row.ClockMax.String,
	}
	if row.Min.Valid {
		r.Min = &row.Min.Time
	}
	if row.Max.Valid {
		r.Max = &row.Max.Time
	}
	return r, nil
}

func (s *Sampler) ProbeTimeComponent(ctx context.Context, req port.ProbeRequest) (bool, error) {
	query, err := s.probe(ctx, queryProbeTimeComponent, req)
	if err != nil {
		return false, err
	}
	var found int
	if err := s.db.GetContext(ctx, &found, query, sampleRows(req)); err != nil {
		return false, probeError(ctx, err)
	}
	return found == 1, nil
}

func (s *Sampler) ProbeDistinctDays(ctx context.Context, req port.ProbeRequest) (int64, error) {
	query, err := s.probe(ctx, queryProbeDistinctDays, req)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.GetContext(ctx, &n, query); err != nil {
		return 0, probeError(ctx, err)
	}
	return n, nil
}

type numericRangeRow struct {
	Min   sql.NullInt64 `db:"min_value"`
	Max   sql.NullInt64 `db:"max_value"`
	Count int64         `db:"non_null"`
}

func (s *Sampler) ProbeNumericRange(ctx context.Context, req port.ProbeRequest) (domain.NumericRange, error) {
	query, err := s.probe(ctx, queryProbeNumericRange, req)
	if err != nil {
		return domain.NumericRange{}, err
	}
	var row numericRangeRow
	if err := s.db.GetContext(ctx, &row, query); err != nil {
		return domain.NumericRange{}, probeError(ctx, err)
	}
	r := domain.NumericRange{Count: row.Count}
	if row.Min.Valid {
		r.Min = &row.Min.Int64
	}
	if row.Max.Valid {
		r.Max = &row.Max.Int64
	}
	return r, nil
}

func (s *Sampler) ProbeSampleValue(ctx context.Context, req port.ProbeRequest) (string, bool, error) {
	query, err := s.probe(ctx, queryProbeSampleValue, req)
	if err != nil {
		return "", false, err
	}
	var value string
	if err := s.db.GetContext(ctx, &value, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, probeError(ctx, err)
	}
	return value, true, nil
}

func (s *Sampler) ProbeFormatMatch(ctx context.Context, req port.ProbeRequest, pattern domain.TextDatePattern) (int64, error) {
	query, err := s.probe(ctx, queryProbeFormatMatch, req)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.GetContext(ctx, &n, query, sampleRows(req), pattern.Regex.String()); err != nil {
		return 0, probeError(ctx, err)
	}
	return n, nil
}
