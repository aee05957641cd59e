//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/platform/postgres"
	"github.com/phrazzld/taskflow-api/internal/store"
	"github.com/phrazzld/taskflow-api/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTask(t *testing.T, s store.TaskStore, title string) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(title, "integration", domain.DefaultPriority)
	require.NoError(t, err)
	require.NoError(t, s.Create(context.Background(), task))
	return task
}

func TestTaskStoreIntegration_CreateAndGet(t *testing.T) {
	db := testdb.GetTestDB(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		s := postgres.NewPostgresTaskStore(tx, nil)
		created := createTask(t, s, "Create and get")

		assert.NotZero(t, created.ID)

		fetched, err := s.GetByID(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Create and get", fetched.Title)
		assert.Equal(t, domain.TaskStatusPending, fetched.Status)
		assert.Equal(t, domain.DefaultPriority, fetched.Priority)
		assert.False(t, fetched.UpdatedAt.Before(fetched.CreatedAt))
		assert.True(t, created.CreatedAt.Equal(fetched.CreatedAt),
			"created_at %s != stored %s", created.CreatedAt, fetched.CreatedAt)
		assert.True(t, created.UpdatedAt.Equal(fetched.UpdatedAt),
			"updated_at %s != stored %s", created.UpdatedAt, fetched.UpdatedAt)

		_, err = s.GetByID(context.Background(), created.ID+1_000_000)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})
}

func TestTaskStoreIntegration_TransitionWritesLog(t *testing.T) {
	db := testdb.GetTestDB(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		s := postgres.NewPostgresTaskStore(tx, nil)
		task := createTask(t, s, "Transition")

		for _, status := range []domain.TaskStatus{
			domain.TaskStatusInProgress,
			domain.TaskStatusCompleted,
		} {
			_, err := s.ApplyTransition(ctx, task.ID, status, time.Now())
			require.NoError(t, err)
		}

		fetched, err := s.GetByID(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusCompleted, fetched.Status)

		logs, err := s.ListLogs(ctx, task.ID)
		require.NoError(t, err)
		require.Len(t, logs, 2)
		assert.Equal(t, domain.TaskStatusInProgress, logs[0].Status)
		assert.Equal(t, domain.TaskStatusCompleted, logs[1].Status)
		assert.Equal(t, fetched.UpdatedAt, logs[1].CreatedAt)

		_, err = s.ApplyTransition(ctx, task.ID+1_000_000, domain.TaskStatusCompleted, time.Now())
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})
}

func TestTaskStoreIntegration_ListFilters(t *testing.T) {
	db := testdb.GetTestDB(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		s := postgres.NewPostgresTaskStore(tx, nil)
		_, err := tx.ExecContext(ctx, "DELETE FROM tasks")
		require.NoError(t, err)

		a := createTask(t, s, "Buy MILK")
		b := createTask(t, s, "buy bread")
		c := createTask(t, s, "100% done")
		_, err = s.ApplyTransition(ctx, b.ID, domain.TaskStatusCompleted, time.Now())
		require.NoError(t, err)

		tasks, err := s.List(ctx, domain.TaskFilter{Title: "buy"})
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		assert.Equal(t, a.ID, tasks[0].ID)
		assert.Equal(t, b.ID, tasks[1].ID)

		completed := domain.TaskStatusCompleted
		tasks, err = s.List(ctx, domain.TaskFilter{Title: "buy", Status: &completed})
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, b.ID, tasks[0].ID)

		tasks, err = s.List(ctx, domain.TaskFilter{Title: "%"})
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, c.ID, tasks[0].ID)

		tasks, err = s.List(ctx, domain.TaskFilter{Offset: 1, Limit: 1})
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, b.ID, tasks[0].ID)
	})
}

func TestTaskStoreIntegration_PagesAreDisjoint(t *testing.T) {
	db := testdb.GetTestDB(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		s := postgres.NewPostgresTaskStore(tx, nil)
		_, err := tx.ExecContext(ctx, "DELETE FROM tasks")
		require.NoError(t, err)

		want := make(map[int64]bool)
		for i := 0; i < 7; i++ {
			want[createTask(t, s, fmt.Sprintf("page task %d", i)).ID] = true
		}

		const pageSize = 3
		seen := make(map[int64]bool)
		var lastID int64
		for offset := 0; ; offset += pageSize {
			page, err := s.List(ctx, domain.TaskFilter{Offset: offset, Limit: pageSize})
			require.NoError(t, err)
			if len(page) == 0 {
				break
			}
			assert.LessOrEqual(t, len(page), pageSize)
			for _, task := range page {
				assert.False(t, seen[task.ID], "task %d appears on two pages", task.ID)
				assert.Greater(t, task.ID, lastID, "pages follow id order")
				seen[task.ID] = true
				lastID = task.ID
			}
		}

		assert.Equal(t, want, seen)
	})
}

func TestTaskStoreIntegration_DeleteCascades(t *testing.T) {
	db := testdb.GetTestDB(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		s := postgres.NewPostgresTaskStore(tx, nil)
		task := createTask(t, s, "Delete me")
		_, err := s.ApplyTransition(ctx, task.ID, domain.TaskStatusInProgress, time.Now())
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, task.ID))

		var remaining int
		require.NoError(t, tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM task_logs WHERE task_id = $1", task.ID).Scan(&remaining))
		assert.Zero(t, remaining)

		assert.ErrorIs(t, s.Delete(ctx, task.ID), store.ErrTaskNotFound)
	})
}

func TestTaskStoreIntegration_CheckConstraint(t *testing.T) {
	db := testdb.GetTestDB(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		_, err := tx.ExecContext(context.Background(),
			"INSERT INTO tasks (title, status) VALUES ('x', 'archived')")
		require.Error(t, err)
		assert.True(t, postgres.IsCheckConstraintViolation(err))
		assert.ErrorIs(t, postgres.MapError(err), store.ErrInvalidEntity)
	})
}
