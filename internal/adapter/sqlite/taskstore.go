package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/guillermoBallester/partwise/internal/core/domain"
	"github.com/guillermoBallester/partwise/internal/core/port"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

var _ port.TaskStore = (*TaskStore)(nil)

// TaskStore keeps tasks and results in a local SQLite file for single-node
// runs. An empty path opens an in-memory database.
type TaskStore struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewTaskStore(ctx context.Context, path string) (*TaskStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating task store directory: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening task store: %w", err)
	}
	// One connection serialises writers and keeps an in-memory database alive.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &TaskStore{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *TaskStore) Close() error {
	return s.db.Close()
}

func (s *TaskStore) migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating task store: %w", err)
		}
	}
	return nil
}

func (s *TaskStore) CreateTask(ctx context.Context, table domain.TableRef) (domain.Task, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx, queryInsertTask, table.Owner, table.Name, now, now)
	if err != nil {
		return domain.Task{}, fmt.Errorf("creating task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Task{}, fmt.Errorf("creating task: %w", err)
	}
	return s.GetTask(ctx, id)
}

func (s *TaskStore) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	var task domain.Task
	if err := s.db.GetContext(ctx, &task, queryGetTask, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Task{}, fmt.Errorf("task %d %w", id, domain.ErrNotFound)
		}
		return domain.Task{}, fmt.Errorf("getting task %d: %w", id, err)
	}
	return task, nil
}

// ClaimTask moves a claimable task to ANALYZING with a conditional update, so
// two workers can never both claim it. The result of any previous run is
// dropped in the same transaction.
func (s *TaskStore) ClaimTask(ctx context.Context, id int64) (domain.Task, error) {
	var task domain.Task
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, queryClaimTask, s.now(), id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var status domain.TaskStatus
			if err := tx.GetContext(ctx, &status, queryTaskStatus, id); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("task %d %w", id, domain.ErrNotFound)
				}
				return err
			}
			return fmt.Errorf("task %d: %w", id, domain.ErrTaskLocked)
		}
		if _, err := tx.ExecContext(ctx, queryDeleteResult, id); err != nil {
			return fmt.Errorf("dropping previous result: %w", err)
		}
		return tx.GetContext(ctx, &task, queryGetTask, id)
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
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, queryMarkAnalyzed, string(result.Readiness), result.AnalyzedAt.UTC(), s.now(), result.TaskID)
		if err != nil {
			return fmt.Errorf("marking task analyzed: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("task %d %w", result.TaskID, domain.ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, queryUpsertResult, result.TaskID, result.RunID.String(), string(payload), result.AnalyzedAt.UTC()); err != nil {
			return fmt.Errorf("saving result: %w", err)
		}
		return nil
	})
}

// UpdateTaskStatus writes a status transition. A FAILED task never keeps a
// result.
func (s *TaskStore) UpdateTaskStatus(ctx context.Context, id int64, u domain.TaskUpdate) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, queryUpdateStatus, string(u.Status), string(u.Readiness), u.ErrorMessage, s.now(), id)
		if err != nil {
			return fmt.Errorf("updating task %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("task %d %w", id, domain.ErrNotFound)
		}
		if u.Status == domain.StatusFailed {
			if _, err := tx.ExecContext(ctx, queryDeleteResult, id); err != nil {
				return fmt.Errorf("dropping result of task %d: %w", id, err)
			}
		}
		return nil
	})
}

func (s *TaskStore) GetResult(ctx context.Context, taskID int64) (*domain.AnalysisResult, error) {
	var payload string
	if err := s.db.GetContext(ctx, &payload, queryGetResult, taskID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("result for task %d %w", taskID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting result for task %d: %w", taskID, err)
	}
	var result domain.AnalysisResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("decoding result for task %d: %w", taskID, err)
	}
	return &result, nil
}

func (s *TaskStore) ListTasks(ctx context.Context, status domain.TaskStatus) ([]domain.Task, error) {
	tasks := []domain.Task{}
	if err := s.db.SelectContext(ctx, &tasks, queryListTasks, string(status), string(status)); err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return tasks, nil
}

func (s *TaskStore) inTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
