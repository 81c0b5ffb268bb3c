package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/guillermoBallester/partwise/internal/core/domain"
	"github.com/guillermoBallester/partwise/internal/core/port"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultSampleRows = 1000

var _ port.Sampler = (*Sampler)(nil)

// Sampler runs bounded probes inside read-only transactions.
type Sampler struct {
	pool    *pgxpool.Pool
	catalog *Catalog
	// maxParallel caps max_parallel_workers_per_gather; 0 leaves the server setting.
	maxParallel int
}

func NewSampler(pool *pgxpool.Pool, catalog *Catalog, maxParallel int) *Sampler {
	return &Sampler{pool: pool, catalog: catalog, maxParallel: maxParallel}
}

// readOnly runs fn in a read-only transaction. When ctx carries a deadline the
// server-side statement_timeout is set to match, so PostgreSQL cancels the
// probe even if the client stops waiting first.
func (s *Sampler) readOnly(ctx context.Context, req port.ProbeRequest, fn func(pgx.Tx, domain.TableRef) error) error {
	ref, err := s.catalog.Resolve(ctx, req.Table)
	if err != nil {
		return err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if deadline, ok := ctx.Deadline(); ok {
		ms := max(time.Until(deadline).Milliseconds(), 1)
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%d'", ms)); err != nil {
			return fmt.Errorf("setting statement timeout: %w", err)
		}
	}
	if workers := s.parallelWorkers(req.ParallelHint); workers > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL max_parallel_workers_per_gather = %d", workers)); err != nil {
			return fmt.Errorf("setting parallel workers: %w", err)
		}
	}

	if err := fn(tx, ref); err != nil {
		return probeError(ctx, err)
	}
	return tx.Commit(ctx)
}

func (s *Sampler) parallelWorkers(hint int) int {
	if s.maxParallel <= 0 || hint <= 1 {
		return 0
	}
	return min(hint, s.maxParallel)
}

// probeError prefers the context error over the driver's cancellation error so
// callers can tell a timeout from a failed query.
func probeError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return mapError(err)
}

func sampleRows(req port.ProbeRequest) int {
	if req.SampleRows > 0 {
		return req.SampleRows
	}
	return defaultSampleRows
}

// dateRangeSQL builds the min/max probe, optionally restricted to sane years.
func dateRangeSQL(ref domain.TableRef, column string, bounds *domain.YearBounds) (string, []any) {
	col := domain.QuoteIdent(column)
	if bounds == nil {
		return fmt.Sprintf(queryProbeDateRange, col, qualifiedName(ref), ""), nil
	}
	filter := fmt.Sprintf(yearFilter, col)
	return fmt.Sprintf(queryProbeDateRange, col, qualifiedName(ref), filter), []any{bounds.Min, bounds.Max}
}

func (s *Sampler) ProbeDateRange(ctx context.Context, req port.ProbeRequest) (domain.DateRange, error) {
	var r domain.DateRange
	err := s.readOnly(ctx, req, func(tx pgx.Tx, ref domain.TableRef) error {
		query, args := dateRangeSQL(ref, req.Column, req.YearBounds)
		return tx.QueryRow(ctx, query, args...).Scan(&r.Min, &r.Max, &r.Total, &r.NonNull, &r.ClockMin, &r.ClockMax)
	})
	return r, err
}

func (s *Sampler) ProbeTimeComponent(ctx context.Context, req port.ProbeRequest) (bool, error) {
	var found bool
	err := s.readOnly(ctx, req, func(tx pgx.Tx, ref domain.TableRef) error {
		query := fmt.Sprintf(queryProbeTimeComponent, domain.QuoteIdent(req.Column), qualifiedName(ref))
		return tx.QueryRow(ctx, query, sampleRows(req)).Scan(&found)
	})
	return found, err
}

func (s *Sampler) ProbeDistinctDays(ctx context.Context, req port.ProbeRequest) (int64, error) {
	var n int64
	err := s.readOnly(ctx, req, func(tx pgx.Tx, ref domain.TableRef) error {
		query := fmt.Sprintf(queryProbeDistinctDays, domain.QuoteIdent(req.Column), qualifiedName(ref))
		return tx.QueryRow(ctx, query).Scan(&n)
	})
	return n, err
}

func (s *Sampler) ProbeNumericRange(ctx context.Context, req port.ProbeRequest) (domain.NumericRange, error) {
	var r domain.NumericRange
	err := s.readOnly(ctx, req, func(tx pgx.Tx, ref domain.TableRef) error {
		query := fmt.Sprintf(queryProbeNumericRange, domain.QuoteIdent(req.Column), qualifiedName(ref))
		return tx.QueryRow(ctx, query).Scan(&r.Min, &r.Max, &r.Count)
	})
	return r, err
}

func (s *Sampler) ProbeSampleValue(ctx context.Context, req port.ProbeRequest) (string, bool, error) {
	var value string
	found := true
	err := s.readOnly(ctx, req, func(tx pgx.Tx, ref domain.TableRef) error {
		query := fmt.Sprintf(queryProbeSampleValue, domain.QuoteIdent(req.Column), qualifiedName(ref))
		err := tx.QueryRow(ctx, query).Scan(&value)
		if errors.Is(err, pgx.ErrNoRows) {
			found = false
			return nil
		}
		return err
	})
	if err != nil {
		return "", false, err
	}
	return value, found, nil
}

func (s *Sampler) ProbeFormatMatch(ctx context.Context, req port.ProbeRequest, pattern domain.TextDatePattern) (int64, error) {
	var n int64
	err := s.readOnly(ctx, req, func(tx pgx.Tx, ref domain.TableRef) error {
		query := fmt.Sprintf(queryProbeFormatMatch, domain.QuoteIdent(req.Column), qualifiedName(ref))
		return tx.QueryRow(ctx, query, pattern.Regex.String(), sampleRows(req)).Scan(&n)
	})
	return n, err
}
