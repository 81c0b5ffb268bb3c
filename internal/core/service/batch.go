package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/guillermoBallester/partwise/internal/core/domain"
	"github.com/guillermoBallester/partwise/internal/core/port"
	"golang.org/x/sync/errgroup"
)

// TaskAnalyzer analyzes one task end to end.
type TaskAnalyzer interface {
	AnalyzeTask(ctx context.Context, id int64) (*domain.AnalysisResult, error)
}

// BatchReport tallies one batch run. Skipped counts tasks another worker or
// process had already claimed.
type BatchReport struct {
	Analyzed int `json:"analyzed"`
	Ready    int `json:"ready"`
	Blocked  int `json:"blocked"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// BatchRunner analyzes every PENDING task with a bounded number of workers.
// A failing task never stops the others.
type BatchRunner struct {
	store    port.TaskStore
	analyzer TaskAnalyzer
	workers  int
	logger   *slog.Logger
}

func NewBatchRunner(store port.TaskStore, analyzer TaskAnalyzer, workers int, logger *slog.Logger) *BatchRunner {
	if workers < 1 {
		workers = 1
	}
	return &BatchRunner{store: store, analyzer: analyzer, workers: workers, logger: logger}
}

// Run processes the tasks that are PENDING when it starts. It returns ctx's
// error if the run was interrupted; tasks not yet started stay PENDING.
func (b *BatchRunner) Run(ctx context.Context) (BatchReport, error) {
	tasks, err := b.store.ListTasks(ctx, domain.StatusPending)
	if err != nil {
		return BatchReport{}, fmt.Errorf("listing pending tasks: %w", err)
	}
	b.logger.InfoContext(ctx, "batch started", slog.Int("tasks", len(tasks)), slog.Int("workers", b.workers))

	var (
		mu     sync.Mutex
		report BatchReport
	)
	var g errgroup.Group
	g.SetLimit(b.workers)

	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			result, err := b.analyzer.AnalyzeTask(ctx, task.ID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil && IsSkippable(err):
				report.Skipped++
				b.logger.InfoContext(ctx, "task skipped", slog.Int64("task_id", task.ID), slog.String("reason", err.Error()))
			case err != nil:
				report.Failed++
			default:
				report.Analyzed++
				if result.Readiness == domain.ReadinessBlocked {
					report.Blocked++
				} else {
					report.Ready++
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	b.logger.InfoContext(ctx, "batch finished",
		slog.Int("analyzed", report.Analyzed),
		slog.Int("ready", report.Ready),
		slog.Int("blocked", report.Blocked),
		slog.Int("failed", report.Failed),
		slog.Int("skipped", report.Skipped),
	)
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("batch interrupted: %w", err)
	}
	return report, nil
}
