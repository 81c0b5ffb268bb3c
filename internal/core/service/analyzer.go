package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/guillermoBallester/partwise/internal/core/domain"
	"github.com/guillermoBallester/partwise/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const statusWriteTimeout = 10 * time.Second

// Analyzer runs the full recommendation pipeline for one table and persists
// the result of a task.
type Analyzer struct {
	catalog port.Catalog
	sampler port.Sampler
	store   port.TaskStore
	th      domain.Thresholds
	logger  *slog.Logger
	tracer  trace.Tracer
	inst    port.Instrumentation
	now     func() time.Time
}

func NewAnalyzer(catalog port.Catalog, sampler port.Sampler, store port.TaskStore, th domain.Thresholds, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *Analyzer {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	return &Analyzer{
		catalog: catalog,
		sampler: sampler,
		store:   store,
		th:      th,
		logger:  logger,
		tracer:  tracer,
		inst:    inst,
		now:     time.Now,
	}
}

// AnalyzeTask claims the task, analyzes its table and persists the result.
// On any failure the task is marked FAILED and no result is written.
func (a *Analyzer) AnalyzeTask(ctx context.Context, id int64) (*domain.AnalysisResult, error) {
	ctx, span := a.tracer.Start(ctx, "Analyzer.AnalyzeTask",
		trace.WithAttributes(attribute.Int64("partwise.task.id", id)),
	)
	defer span.End()

	task, err := a.store.ClaimTask(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("claiming task %d: %w", id, err)
	}

	start := a.now()
	result, err := a.analyzeClaimed(ctx, task)
	a.inst.RecordAnalysisDuration(ctx, float64(a.now().Sub(start).Milliseconds()))
	if err == nil {
		err = a.store.SaveResult(ctx, *result)
		if err != nil {
			err = fmt.Errorf("saving result: %w", err)
		}
	}

	if err != nil {
		aerr := &domain.AnalysisError{TaskID: id, Err: err}
		a.markFailed(ctx, task, aerr)
		span.RecordError(aerr)
		span.SetStatus(codes.Error, aerr.Error())
		return nil, aerr
	}

	a.inst.IncrementAnalysisCount(ctx)
	span.SetAttributes(
		attribute.String("partwise.readiness", string(result.Readiness)),
		attribute.String("partwise.scheme", string(result.Recommendation.Scheme)),
	)
	a.logger.InfoContext(ctx, "task analyzed",
		slog.Int64("task_id", id),
		slog.String("db.collection.name", task.Ref().String()),
		slog.String("scheme", string(result.Recommendation.Scheme)),
		slog.String("readiness", string(result.Readiness)),
		slog.Int64("duration_ms", result.DurationMS),
	)
	return result, nil
}

func (a *Analyzer) analyzeClaimed(ctx context.Context, task domain.Task) (result *domain.AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("panic during analysis: %v", r)
		}
	}()
	result, err = a.AnalyzeTable(ctx, task.Ref())
	if err != nil {
		return nil, err
	}
	result.TaskID = task.ID
	return result, nil
}

// markFailed writes the FAILED status even when ctx has been canceled.
func (a *Analyzer) markFailed(ctx context.Context, task domain.Task, err error) {
	a.inst.IncrementAnalysisFailures(ctx)
	a.logger.ErrorContext(ctx, "task analysis failed",
		slog.Int64("task_id", task.ID),
		slog.String("db.collection.name", task.Ref().String()),
		slog.String("error.type", domain.ErrorClass(err)),
		slog.String("error", err.Error()),
	)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()
	update := domain.TaskUpdate{Status: domain.StatusFailed, ErrorMessage: err.Error()}
	if uerr := a.store.UpdateTaskStatus(writeCtx, task.ID, update); uerr != nil {
		a.logger.ErrorContext(ctx, "marking task failed",
			slog.Int64("task_id", task.ID),
			slog.String("error", uerr.Error()),
		)
	}
}

// run carries the per-analysis state.
type run struct {
	facts    TableFacts
	hint     int
	usage    *UsageScorer
	profiles map[string]ProfileOutcome
	warnings []domain.Warning
}

func (r *run) warn(ws ...domain.Warning) {
	r.warnings = append(r.warnings, ws...)
}

// AnalyzeTable runs the pipeline without touching the task store. The returned
// result has a zero TaskID.
func (a *Analyzer) AnalyzeTable(ctx context.Context, ref domain.TableRef) (*domain.AnalysisResult, error) {
	ctx, span := a.tracer.Start(ctx, "Analyzer.AnalyzeTable",
		trace.WithAttributes(
			attribute.String("db.system", string(a.catalog.Dialect())),
			attribute.String("db.collection.name", ref.String()),
		),
	)
	defer span.End()

	start := a.now()
	result, err := a.analyze(ctx, ref)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	result.DurationMS = a.now().Sub(start).Milliseconds()
	span.SetAttributes(attribute.Int("partwise.complexity", result.Complexity))
	return result, nil
}

func (a *Analyzer) analyze(ctx context.Context, ref domain.TableRef) (*domain.AnalysisResult, error) {
	facts, warnings, err := a.loadFacts(ctx, ref)
	if err != nil {
		return nil, err
	}

	r := &run{
		facts:    facts,
		hint:     domain.ParallelHint(facts.Table.RowCount, facts.Table.SizeMB, a.th),
		usage:    NewUsageScorer(a.catalog, ref, a.th.Weights, a.logger),
		profiles: make(map[string]ProfileOutcome),
		warnings: warnings,
	}

	stereotype := domain.DetectStereotype(facts.Table, facts.Columns)
	validated, err := a.validateStereotype(ctx, r, stereotype)
	if err != nil {
		return nil, err
	}

	var candidates domain.CandidateSet
	var selected *domain.ColumnProfile
	if validated == nil {
		candidates.Profiles, err = a.profileTemporal(ctx, r)
		if err != nil {
			return nil, err
		}
		selected = domain.SelectCandidate(candidates.Profiles, a.th)
		if len(candidates.Profiles) == 0 {
			detector := NewNonStandardDetector(a.sampler, a.catalog.Dialect(), a.th, a.logger)
			found, ws, err := detector.Detect(ctx, ref, facts.Columns, r.hint)
			if err != nil {
				return nil, err
			}
			r.warn(ws...)
			candidates.NonStandard = found
		}
	} else {
		candidates.Profiles = []domain.ColumnProfile{r.profiles[strings.ToLower(validated.Column)].Profile}
		selected = &candidates.Profiles[0]
	}

	rec := domain.Recommend(domain.RecommendInput{
		Table:       facts.Table,
		Stereotype:  validated,
		Selected:    selected,
		NonStandard: candidates.NonStandard,
		PrimaryKey:  facts.PrimaryKey(),
	}, a.th)
	if selected != nil {
		if w, ok := domain.SparseDays(*selected, rec); ok {
			r.warn(w)
		}
	}

	deps, issues, err := NewDependencyAnalyzer(a.catalog, r.usage).Analyze(ctx, facts, analyzedColumns(candidates))
	if err != nil {
		return nil, err
	}
	structure := StructureFacts(facts, deps)
	complexity := domain.ComplexityScore(structure)

	if issues == nil {
		issues = []domain.BlockingIssue{}
	}
	if r.warnings == nil {
		r.warnings = []domain.Warning{}
	}
	return &domain.AnalysisResult{
		RunID:           uuid.New(),
		Table:           facts.Table,
		Stereotype:      stereotype,
		Candidates:      candidates,
		Selected:        selected,
		Recommendation:  rec,
		Complexity:      complexity,
		DowntimeMinutes: domain.EstimateDowntime(facts.Table.SizeMB, complexity, structure, a.th.MigrationMethod),
		Method:          a.th.MigrationMethod,
		ParallelHint:    r.hint,
		Dependencies:    deps,
		BlockingIssues:  issues,
		Warnings:        r.warnings,
		Readiness:       domain.ReadinessFor(issues),
		AnalyzedAt:      a.now().UTC(),
	}, nil
}

func (a *Analyzer) loadFacts(ctx context.Context, ref domain.TableRef) (TableFacts, []domain.Warning, error) {
	var (
		facts    TableFacts
		warnings []domain.Warning
		err      error
	)
	catalogErr := func(op string, err error) error {
		return &domain.CatalogAccessError{Op: op, Table: ref, Err: err}
	}

	facts.Table = domain.TableDescriptor{Owner: ref.Owner, Name: ref.Name}
	if facts.Table.Kind, err = a.catalog.GetTableKind(ctx, ref); err != nil {
		return facts, nil, catalogErr("table kind", err)
	}
	if facts.Table.RowCount, err = a.catalog.GetRowCountEstimate(ctx, ref); err != nil {
		return facts, nil, catalogErr("row count", err)
	}
	if facts.Table.RowCount < 0 {
		facts.Table.RowCount = 0
		warnings = append(warnings, domain.Warning{
			Code:    domain.WarnStatsMissing,
			Message: "no optimizer statistics; row count treated as 0",
		})
	}
	if facts.Table.SizeMB, err = a.catalog.GetSizeEstimate(ctx, ref); err != nil {
		return facts, nil, catalogErr("size", err)
	}
	if facts.Columns, err = a.catalog.GetColumns(ctx, ref); err != nil {
		return facts, nil, catalogErr("columns", err)
	}
	if len(facts.Columns) == 0 {
		return facts, nil, catalogErr("columns", domain.ErrNoColumns)
	}
	slices.SortStableFunc(facts.Columns, func(x, y domain.ColumnDescriptor) int {
		return cmp.Compare(x.Position, y.Position)
	})
	if facts.Indexes, err = a.catalog.GetIndexes(ctx, ref); err != nil {
		return facts, nil, catalogErr("indexes", err)
	}
	if facts.Constraints, err = a.catalog.GetConstraints(ctx, ref); err != nil {
		return facts, nil, catalogErr("constraints", err)
	}
	if facts.Triggers, err = a.catalog.GetTriggers(ctx, ref); err != nil {
		return facts, nil, catalogErr("triggers", err)
	}
	return facts, warnings, nil
}

// profile profiles one column at most once per run.
func (a *Analyzer) profile(ctx context.Context, r *run, col domain.ColumnDescriptor) (ProfileOutcome, error) {
	key := strings.ToLower(col.Name)
	if out, ok := r.profiles[key]; ok {
		return out, nil
	}
	usage, w, err := r.usage.Score(ctx, col.Name, r.facts.Indexes)
	if err != nil {
		return ProfileOutcome{}, err
	}
	if w != nil {
		r.warn(*w)
	}
	out, err := NewColumnProfiler(a.sampler, a.th, a.logger).Profile(ctx, r.facts.Table.Ref(), col, r.hint, usage)
	if err != nil {
		return ProfileOutcome{}, err
	}
	for _, w := range out.Warnings {
		a.logger.WarnContext(ctx, "column warning",
			slog.String("db.collection.name", r.facts.Table.Ref().String()),
			slog.String("column", w.Column),
			slog.String("code", string(w.Code)),
			slog.String("message", w.Message),
		)
	}
	r.warn(out.Warnings...)
	r.profiles[key] = out
	return out, nil
}

// validateStereotype puts the stereotype column through the profiler. A
// quality-flagged or unusable column discards the stereotype.
func (a *Analyzer) validateStereotype(ctx context.Context, r *run, m domain.StereotypeMatch) (*domain.StereotypeMatch, error) {
	if !m.Matched() {
		return nil, nil
	}
	col, ok := findColumn(r.facts.Columns, m.Column)
	if !ok {
		return nil, nil
	}
	out, err := a.profile(ctx, r, col)
	if err != nil {
		return nil, err
	}
	switch {
	case !out.Usable:
		r.warn(domain.Warning{
			Code:    domain.WarnStereotypeRejected,
			Column:  m.Column,
			Message: fmt.Sprintf("%s column holds no usable data", m.Archetype),
		})
		return nil, nil
	case out.Profile.QualityFlag:
		r.warn(domain.Warning{
			Code:    domain.WarnStereotypeRejected,
			Column:  m.Column,
			Message: fmt.Sprintf("%s column has implausible dates; falling back to column analysis", m.Archetype),
		})
		return nil, nil
	}
	a.logger.DebugContext(ctx, "stereotype validated",
		slog.String("archetype", string(m.Archetype)),
		slog.String("column", m.Column),
	)
	return &m, nil
}

func (a *Analyzer) profileTemporal(ctx context.Context, r *run) ([]domain.ColumnProfile, error) {
	var profiles []domain.ColumnProfile
	for _, col := range r.facts.Columns {
		if col.Category() != domain.CategoryTemporal {
			continue
		}
		out, err := a.profile(ctx, r, col)
		if err != nil {
			return nil, err
		}
		if out.Usable {
			profiles = append(profiles, out.Profile)
		}
	}
	return profiles, nil
}

func findColumn(cols []domain.ColumnDescriptor, name string) (domain.ColumnDescriptor, bool) {
	for _, c := range cols {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return domain.ColumnDescriptor{}, false
}

func analyzedColumns(c domain.CandidateSet) []string {
	var out []string
	for _, p := range c.Profiles {
		out = append(out, p.Column)
	}
	for _, n := range c.NonStandard {
		if !slices.Contains(out, n.Column) {
			out = append(out, n.Column)
		}
	}
	return out
}

// IsSkippable reports whether an AnalyzeTask error means the task was not
// claimed, as opposed to an analysis that ran and failed.
func IsSkippable(err error) bool {
	var aerr *domain.AnalysisError
	if errors.As(err, &aerr) {
		return false
	}
	return errors.Is(err, domain.ErrTaskLocked) || errors.Is(err, domain.ErrNotFound)
}
