package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/guillermoBallester/partwise/internal/core/domain"
	"github.com/guillermoBallester/partwise/internal/core/port"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ port.TaskStore = (*TaskStore)(nil)

// TaskStore keeps tasks and results in partition_tasks and
// partition_analysis_results.
type TaskStore struct {
	pool *pgxpool.Pool
}

func NewTaskStore(pool *pgxpool.Pool) *TaskStore {
	return &TaskStore{pool: pool}
}

// Migrate creates the task store tables if they do not exist.
func (s *TaskStore) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrating task store: %w", err)
		}
	}
	return nil
}

func collectTask(rows pgx.Rows) (domain.Task, error) {
	return pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[domain.Task])
}

func (s *TaskStore) CreateTask(ctx context.Context, table domain.TableRef) (domain.Task, error) {
	rows, err := s.pool.Query(ctx, queryInsertTask, table.Owner, table.Name)
	if err != nil {
		return domain.Task{}, fmt.Errorf("creating task: %w", err)
	}
	task, err := collectTask(rows)
	if err != nil {
		return domain.Task{}, fmt.Errorf("creating task: %w", err)
	}
	return task, nil
}

func (s *TaskStore) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	rows, err := s.pool.Query(ctx, queryGetTask, id)
	if err != nil {
		return domain.Task{}, fmt.Errorf("getting task %d: %w", id, err)
	}
	task, err := collectTask(rows)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Task{}, fmt.Errorf("task %d %w", id, domain.ErrNotFound)
		}
		return domain.Task{}, fmt.Errorf("getting task %d: %w", id, err)
	}
	return task, nil
}

// ClaimTask locks the task row so two workers can never both claim it. The
// result of any previous run is dropped in the same transaction.
func (s *TaskStore) ClaimTask(ctx context.Context, id int64) (domain.Task, error) {
	var task domain.Task
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var status domain.TaskStatus
		if err := tx.QueryRow(ctx, queryLockTask, id).Scan(&status); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("task %d %w", id, domain.ErrNotFound)
			}
			return err
		}
		if !status.Claimable() {
			return fmt.Errorf("task %d: %w", id, domain.ErrTaskLocked)
		}
		if _, err := tx.Exec(ctx, queryDeleteResult, id); err != nil {
			return fmt.Errorf("dropping previous result: %w", err)
		}
		rows, err := tx.Query(ctx, queryClaimTask, id)
		if err != nil {
			return err
		}
		task, err = collectTask(rows)
		return err
	})
	if err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

func (s *TaskStore) SaveResult(ctx context.Context, result domain.AnalysisResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, queryMarkAnalyzed, result.TaskID, string(result.Readiness), result.AnalyzedAt)
		if err != nil {
			return fmt.Errorf("marking task analyzed: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("task %d %w", result.TaskID, domain.ErrNotFound)
		}
		if _, err := tx.Exec(ctx, queryUpsertResult, result.TaskID, result.RunID, payload, result.AnalyzedAt); err != nil {
			return fmt.Errorf("saving result: %w", err)
		}
		return nil
	})
}

// UpdateTaskStatus writes a status transition. A FAILED task never keeps a
// result.
func (s *TaskStore) UpdateTaskStatus(ctx context.Context, id int64, u domain.TaskUpdate) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, queryUpdateStatus, id, string(u.Status), string(u.Readiness), u.ErrorMessage)
		if err != nil {
			return fmt.Errorf("updating task %d: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("task %d %w", id, domain.ErrNotFound)
		}
		if u.Status == domain.StatusFailed {
			if _, err := tx.Exec(ctx, queryDeleteResult, id); err != nil {
				return fmt.Errorf("dropping result of task %d: %w", id, err)
			}
		}
		return nil
	})
}

func (s *TaskStore) GetResult(ctx context.Context, taskID int64) (*domain.AnalysisResult, error) {
	var payload []byte
	if err := s.pool.QueryRow(ctx, queryGetResult, taskID).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("result for task %d %w", taskID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting result for task %d: %w", taskID, err)
	}
	var result domain.AnalysisResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decoding result for task %d: %w", taskID, err)
	}
	return &result, nil
}

func (s *TaskStore) ListTasks(ctx context.Context, status domain.TaskStatus) ([]domain.Task, error) {
	rows, err := s.pool.Query(ctx, queryListTasks, string(status))
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	tasks, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.Task])
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return tasks, nil
}
