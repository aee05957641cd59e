package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var taskRowColumns = []string{"id", "title", "description", "status", "priority", "created_at", "updated_at"}

func newMockStore(t *testing.T) (*PostgresTaskStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log, _ := logger.NewTestLogger()
	return NewPostgresTaskStore(db, log), mock
}

func TestNewPostgresTaskStore_NilDB(t *testing.T) {
	assert.Panics(t, func() { NewPostgresTaskStore(nil, nil) })
}

func TestPostgresTaskStore_Create(t *testing.T) {
	s, mock := newMockStore(t)
	stored := time.Date(2026, 3, 1, 9, 30, 0, 123456000, time.UTC)

	mock.ExpectQuery(`(?s)` + regexp.QuoteMeta("INSERT INTO tasks (title, description, status, priority, created_at, updated_at)") + `.*RETURNING id, created_at, updated_at`).
		WithArgs("Write report", "quarterly", domain.TaskStatusPending, 3, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(42), stored, stored))

	task, err := domain.NewTask("Write report", "quarterly", 3)
	require.NoError(t, err)

	require.NoError(t, s.Create(context.Background(), task))
	assert.Equal(t, int64(42), task.ID)
	assert.True(t, task.CreatedAt.Equal(stored), "created_at is the stored value")
	assert.True(t, task.UpdatedAt.Equal(stored), "updated_at is the stored value")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTaskStore_Create_InvalidTask(t *testing.T) {
	s, mock := newMockStore(t)

	err := s.Create(context.Background(), &domain.Task{Title: "   "})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTaskStore_Create_ConnectionFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO tasks").
		WillReturnError(&pgconn.PgError{Code: "08006", Message: "connection failure"})

	task, err := domain.NewTask("t", "", 1)
	require.NoError(t, err)

	err = s.Create(context.Background(), task)
	assert.ErrorIs(t, err, store.ErrStorage)
	var storeErr *store.StoreError
	assert.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "create", storeErr.Operation)
}

func TestPostgresTaskStore_GetByID(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM tasks WHERE id = $1")).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows(taskRowColumns).
				AddRow(int64(7), "Title", "Desc", "in_progress", 2, now, now.Add(time.Minute)))

		task, err := s.GetByID(context.Background(), 7)
		require.NoError(t, err)
		assert.Equal(t, int64(7), task.ID)
		assert.Equal(t, domain.TaskStatusInProgress, task.Status)
		assert.Equal(t, 2, task.Priority)
		assert.Equal(t, now.Add(time.Minute), task.UpdatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery("FROM tasks").
			WithArgs(int64(8)).
			WillReturnRows(sqlmock.NewRows(taskRowColumns))

		task, err := s.GetByID(context.Background(), 8)
		assert.Nil(t, task)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})

	t.Run("for update takes a row lock", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 FOR UPDATE")).
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows(taskRowColumns).
				AddRow(int64(9), "Title", "", "pending", 1, now, now))

		task, err := s.GetByIDForUpdate(context.Background(), 9)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusPending, task.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresTaskStore_List(t *testing.T) {
	now := time.Now().UTC()

	t.Run("no filter uses default pagination", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, description, status, priority, created_at, updated_at FROM tasks ORDER BY id ASC LIMIT $1 OFFSET $2")).
			WithArgs(domain.DefaultListLimit, 0).
			WillReturnRows(sqlmock.NewRows(taskRowColumns).
				AddRow(int64(1), "a", "", "pending", 1, now, now).
				AddRow(int64(2), "b", "", "completed", 1, now, now))

		tasks, err := s.List(context.Background(), domain.TaskFilter{})
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		assert.Equal(t, int64(1), tasks[0].ID)
		assert.Equal(t, int64(2), tasks[1].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("title and status filters with capped limit", func(t *testing.T) {
		s, mock := newMockStore(t)
		status := domain.TaskStatusPending
		mock.ExpectQuery(regexp.QuoteMeta(`WHERE title ILIKE $1 ESCAPE '\' AND status = $2 ORDER BY id ASC LIMIT $3 OFFSET $4`)).
			WithArgs(`%50\%\_off%`, "pending", domain.MaxListLimit, 5).
			WillReturnRows(sqlmock.NewRows(taskRowColumns))

		tasks, err := s.List(context.Background(), domain.TaskFilter{
			Title:  "50%_off",
			Status: &status,
			Offset: 5,
			Limit:  500,
		})
		require.NoError(t, err)
		assert.Empty(t, tasks)
		assert.NotNil(t, tasks)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query failure", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery("FROM tasks").WillReturnError(errors.New("connection reset"))

		_, err := s.List(context.Background(), domain.TaskFilter{})
		assert.ErrorIs(t, err, store.ErrStorage)
	})
}

func TestPostgresTaskStore_ApplyTransition(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("applies update and log together", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery(`WITH updated AS \(\s*UPDATE tasks`).
			WithArgs(int64(3), "completed", at).
			WillReturnRows(sqlmock.NewRows([]string{"id", "task_id", "status", "created_at"}).
				AddRow(int64(11), int64(3), "completed", at))

		entry, err := s.ApplyTransition(context.Background(), 3, domain.TaskStatusCompleted, at)
		require.NoError(t, err)
		assert.Equal(t, int64(11), entry.ID)
		assert.Equal(t, int64(3), entry.TaskID)
		assert.Equal(t, domain.TaskStatusCompleted, entry.Status)
		assert.Equal(t, at, entry.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing task", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery("WITH updated AS").
			WithArgs(int64(4), "in_progress", at).
			WillReturnRows(sqlmock.NewRows([]string{"id", "task_id", "status", "created_at"}))

		entry, err := s.ApplyTransition(context.Background(), 4, domain.TaskStatusInProgress, at)
		assert.Nil(t, entry)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})

	t.Run("unknown status never reaches the database", func(t *testing.T) {
		s, mock := newMockStore(t)

		_, err := s.ApplyTransition(context.Background(), 4, domain.TaskStatus("archived"), at)
		assert.ErrorIs(t, err, domain.ErrInvalidTaskStatus)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("storage failure", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery("WITH updated AS").WillReturnError(errors.New("broken pipe"))

		_, err := s.ApplyTransition(context.Background(), 4, domain.TaskStatusInProgress, at)
		assert.ErrorIs(t, err, store.ErrStorage)
		assert.NotErrorIs(t, err, store.ErrNotFound)
	})
}

func TestPostgresTaskStore_ListLogs(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at ASC, id ASC")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "task_id", "status", "created_at"}).
			AddRow(int64(1), int64(5), "in_progress", at).
			AddRow(int64(2), int64(5), "completed", at.Add(time.Second)))

	entries, err := s.ListLogs(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.TaskStatusInProgress, entries[0].Status)
	assert.Equal(t, domain.TaskStatusCompleted, entries[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTaskStore_Delete(t *testing.T) {
	t.Run("deleted", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tasks WHERE id = $1")).
			WithArgs(int64(6)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, s.Delete(context.Background(), 6))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec("DELETE FROM tasks").
			WithArgs(int64(6)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, s.Delete(context.Background(), 6), store.ErrTaskNotFound)
	})
}

func TestPostgresTaskStore_WithTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := NewPostgresTaskStore(db, nil)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM tasks").WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)

	txStore := s.WithTx(tx)
	require.IsType(t, &PostgresTaskStore{}, txStore)
	assert.Same(t, tx, txStore.(*PostgresTaskStore).db)
	assert.NoError(t, txStore.Delete(context.Background(), 1))
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}
