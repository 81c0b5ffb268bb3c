package port

import (
	"context"

	"github.com/guillermoBallester/partwise/internal/core/domain"
)

// TaskStore persists tasks and their analysis results.
type TaskStore interface {
	CreateTask(ctx context.Context, table domain.TableRef) (domain.Task, error)
	GetTask(ctx context.Context, id int64) (domain.Task, error)
	// ClaimTask atomically moves a claimable task to ANALYZING. It returns
	// domain.ErrTaskLocked when the task is already being analyzed and
	// domain.ErrNotFound when it does not exist. The result of a previous run
	// and the task's readiness are cleared.
	ClaimTask(ctx context.Context, id int64) (domain.Task, error)
	// SaveResult replaces any prior result of the task and marks the task
	// ANALYZED with the result's readiness, in one transaction.
	SaveResult(ctx context.Context, result domain.AnalysisResult) error
	// UpdateTaskStatus drops the task's result when the new status is FAILED.
	UpdateTaskStatus(ctx context.Context, id int64, update domain.TaskUpdate) error
	GetResult(ctx context.Context, taskID int64) (*domain.AnalysisResult, error)
	// ListTasks returns tasks ordered by id. An empty status lists all tasks.
	ListTasks(ctx context.Context, status domain.TaskStatus) ([]domain.Task, error)
}
