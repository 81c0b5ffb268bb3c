package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/guillermoBallester/partwise/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *TaskStore {
	t.Helper()
	s, err := NewTaskStore(context.Background(), filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTaskStore_CreateAndGet(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, domain.TableRef{Owner: "sales", Name: "orders"})
	require.NoError(t, err)
	assert.NotZero(t, task.ID)
	assert.Equal(t, domain.StatusPending, task.Status)
	assert.Equal(t, domain.TableRef{Owner: "sales", Name: "orders"}, task.Ref())
	assert.Nil(t, task.AnalyzedAt)
	assert.False(t, task.CreatedAt.IsZero())

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, "orders", got.TableName)

	_, err = s.GetTask(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTaskStore_Claim(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, domain.TableRef{Owner: "sales", Name: "orders"})
	require.NoError(t, err)

	claimed, err := s.ClaimTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAnalyzing, claimed.Status)

	_, err = s.ClaimTask(ctx, task.ID)
	assert.ErrorIs(t, err, domain.ErrTaskLocked)

	_, err = s.ClaimTask(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.UpdateTaskStatus(ctx, task.ID, domain.TaskUpdate{
		Status:       domain.StatusFailed,
		ErrorMessage: "catalog access: insufficient privileges",
	}))
	failed, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, failed.Status)
	assert.Equal(t, "catalog access: insufficient privileges", failed.ErrorMessage)

	reclaimed, err := s.ClaimTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAnalyzing, reclaimed.Status)
	assert.Empty(t, reclaimed.ErrorMessage)
}

func TestTaskStore_ConcurrentClaimHasOneWinner(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, domain.TableRef{Owner: "sales", Name: "orders"})
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
		locked  atomic.Int32
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ClaimTask(ctx, task.ID)
			switch {
			case err == nil:
				winners.Add(1)
			case errors.Is(err, domain.ErrTaskLocked):
				locked.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
	assert.Equal(t, int32(7), locked.Load())
}

func TestTaskStore_SaveResultReplacesPrior(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, domain.TableRef{Owner: "sales", Name: "orders"})
	require.NoError(t, err)
	_, err = s.ClaimTask(ctx, task.ID)
	require.NoError(t, err)

	first := domain.AnalysisResult{
		TaskID:     task.ID,
		RunID:      uuid.New(),
		Table:      domain.TableDescriptor{Owner: "sales", Name: "orders", RowCount: 1000},
		Readiness:  domain.ReadinessBlocked,
		Complexity: 6,
		AnalyzedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveResult(ctx, first))

	analyzed, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAnalyzed, analyzed.Status)
	assert.Equal(t, domain.ReadinessBlocked, analyzed.Readiness)
	require.NotNil(t, analyzed.AnalyzedAt)
	assert.True(t, first.AnalyzedAt.Equal(*analyzed.AnalyzedAt))

	second := first
	second.RunID = uuid.New()
	second.Readiness = domain.ReadinessReady
	second.Complexity = 1
	require.NoError(t, s.SaveResult(ctx, second))

	got, err := s.GetResult(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, second.RunID, got.RunID)
	assert.Equal(t, 1, got.Complexity)
	assert.Equal(t, domain.ReadinessReady, got.Readiness)
	assert.Equal(t, int64(1000), got.Table.RowCount)

	_, err = s.GetResult(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTaskStore_RerunDropsPriorResult(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, domain.TableRef{Owner: "sales", Name: "orders"})
	require.NoError(t, err)
	_, err = s.ClaimTask(ctx, task.ID)
	require.NoError(t, err)
	require.NoError(t, s.SaveResult(ctx, domain.AnalysisResult{
		TaskID:     task.ID,
		RunID:      uuid.New(),
		Readiness:  domain.ReadinessReady,
		AnalyzedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}))

	claimed, err := s.ClaimTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAnalyzing, claimed.Status)
	assert.Empty(t, claimed.Readiness)
	assert.Nil(t, claimed.AnalyzedAt)
	_, err = s.GetResult(ctx, task.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.UpdateTaskStatus(ctx, task.ID, domain.TaskUpdate{
		Status:       domain.StatusFailed,
		ErrorMessage: "catalog access: connection refused",
	}))
	failed, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, failed.Status)
	assert.Empty(t, failed.Readiness)
	_, err = s.GetResult(ctx, task.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTaskStore_FailedStatusDropsResult(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, domain.TableRef{Name: "orders"})
	require.NoError(t, err)
	_, err = s.ClaimTask(ctx, task.ID)
	require.NoError(t, err)
	require.NoError(t, s.SaveResult(ctx, domain.AnalysisResult{TaskID: task.ID, RunID: uuid.New(), AnalyzedAt: time.Now()}))

	require.NoError(t, s.UpdateTaskStatus(ctx, task.ID, domain.TaskUpdate{Status: domain.StatusFailed, ErrorMessage: "boom"}))
	_, err = s.GetResult(ctx, task.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTaskStore_SaveResultForMissingTask(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	err := s.SaveResult(context.Background(), domain.AnalysisResult{TaskID: 42, RunID: uuid.New(), AnalyzedAt: time.Now()})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.GetResult(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTaskStore_UpdateMissingTask(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	err := s.UpdateTaskStatus(context.Background(), 7, domain.TaskUpdate{Status: domain.StatusFailed})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTaskStore_ListTasks(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	empty, err := s.ListTasks(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, empty)

	var ids []int64
	for _, name := range []string{"orders", "customers", "order_lines"} {
		task, err := s.CreateTask(ctx, domain.TableRef{Owner: "sales", Name: name})
		require.NoError(t, err)
		ids = append(ids, task.ID)
	}
	_, err = s.ClaimTask(ctx, ids[1])
	require.NoError(t, err)

	all, err := s.ListTasks(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids, []int64{all[0].ID, all[1].ID, all[2].ID})

	pending, err := s.ListTasks(ctx, domain.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "orders", pending[0].TableName)
	assert.Equal(t, "order_lines", pending[1].TableName)

	analyzing, err := s.ListTasks(ctx, domain.StatusAnalyzing)
	require.NoError(t, err)
	require.Len(t, analyzing, 1)
	assert.Equal(t, "customers", analyzing[0].TableName)
}

func TestNewTaskStore_InMemory(t *testing.T) {
	t.Parallel()
	s, err := NewTaskStore(context.Background(), "")
	require.NoError(t, err)
	defer s.Close()

	task, err := s.CreateTask(context.Background(), domain.TableRef{Name: "orders"})
	require.NoError(t, err)
	assert.Empty(t, task.Owner)
}
