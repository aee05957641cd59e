package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/store"
)

const taskColumns = `id, title, description, status, priority, created_at, updated_at`

// likeEscaper escapes the LIKE metacharacters so titles match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// Create implements store.TaskStore.Create.
// Returns validation errors from the domain Task if data is invalid.
// The id and timestamps are read back as stored, so the caller sees the
// database's microsecond precision rather than the Go clock's.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if task.Status == "" {
		task.Status = domain.TaskStatusPending
	}
	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()))
		return err
	}

	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.Before(task.CreatedAt) {
		task.UpdatedAt = task.CreatedAt
	}

	query := `
		INSERT INTO tasks (title, description, status, priority, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(
		ctx,
		query,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.CreatedAt,
		task.UpdatedAt,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("title", task.Title))
		return store.NewStoreError("task", "create", "failed to insert task", MapError(err))
	}

	log.Info("task created successfully",
		slog.Int64("task_id", task.ID),
		slog.String("status", string(task.Status)))
	return nil
}

// GetByID implements store.TaskStore.GetByID.
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	return s.getByID(ctx, id, false)
}

// GetByIDForUpdate implements store.TaskStore.GetByIDForUpdate.
func (s *PostgresTaskStore) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Task, error) {
	return s.getByID(ctx, id, true)
}

func (s *PostgresTaskStore) getByID(ctx context.Context, id int64, lock bool) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	log.Debug("retrieving task by ID", slog.Int64("task_id", id), slog.Bool("for_update", lock))

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.Int64("task_id", id))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by ID",
			slog.String("error", err.Error()),
			slog.Int64("task_id", id))
		return nil, store.NewStoreError("task", "get", "failed to query task", MapError(err))
	}

	return task, nil
}

// List implements store.TaskStore.List.
func (s *PostgresTaskStore) List(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	filter = filter.Normalize()

	var (
		conditions []string
		args       []any
	)
	if filter.Title != "" {
		args = append(args, "%"+likeEscaper.Replace(filter.Title)+"%")
		conditions = append(conditions, fmt.Sprintf(`title ILIKE $%d ESCAPE '\'`, len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conditions = append(conditions, fmt.Sprintf(`status = $%d`, len(args)))
	}

	var query strings.Builder
	query.WriteString(`SELECT ` + taskColumns + ` FROM tasks`)
	if len(conditions) > 0 {
		query.WriteString(` WHERE ` + strings.Join(conditions, ` AND `))
	}
	args = append(args, filter.Limit, filter.Offset)
	fmt.Fprintf(&query, ` ORDER BY id ASC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		log.Error("failed to list tasks", slog.String("error", err.Error()))
		return nil, store.NewStoreError("task", "list", "failed to query tasks", MapError(err))
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Error("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	tasks := make([]*domain.Task, 0, filter.Limit)
	for rows.Next() {
		task, scanErr := scanTask(rows)
		if scanErr != nil {
			log.Error("failed to scan task row", slog.String("error", scanErr.Error()))
			return nil, store.NewStoreError("task", "list", "failed to scan task", MapError(scanErr))
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating task rows", slog.String("error", err.Error()))
		return nil, store.NewStoreError("task", "list", "failed to read tasks", MapError(err))
	}

	log.Debug("listed tasks",
		slog.Int("count", len(tasks)),
		slog.Int("offset", filter.Offset),
		slog.Int("limit", filter.Limit))
	return tasks, nil
}

// ApplyTransition implements store.TaskStore.ApplyTransition.
// The status update and the log insert run as one statement, so a failure
// leaves neither behind.
func (s *PostgresTaskStore) ApplyTransition(
	ctx context.Context,
	id int64,
	status domain.TaskStatus,
	at time.Time,
) (*domain.TaskLogEntry, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !status.IsValid() {
		return nil, domain.NewValidationError("status", "is not a known status", domain.ErrInvalidTaskStatus)
	}

	query := `
		WITH updated AS (
			UPDATE tasks
			SET status = $2, updated_at = GREATEST($3, created_at)
			WHERE id = $1
			RETURNING id, updated_at
		)
		INSERT INTO task_logs (task_id, status, created_at)
		SELECT id, $2, updated_at FROM updated
		RETURNING id, task_id, status, created_at
	`

	var entry domain.TaskLogEntry
	err := s.db.QueryRowContext(ctx, query, id, string(status), at.UTC()).Scan(
		&entry.ID,
		&entry.TaskID,
		&entry.Status,
		&entry.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found for transition", slog.Int64("task_id", id))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to apply task transition",
			slog.String("error", err.Error()),
			slog.Int64("task_id", id),
			slog.String("status", string(status)))
		return nil, store.NewStoreError("task", "transition", "failed to apply transition", MapError(err))
	}

	log.Info("task transition applied",
		slog.Int64("task_id", id),
		slog.String("status", string(status)),
		slog.Int64("log_id", entry.ID))
	return &entry, nil
}

// ListLogs implements store.TaskStore.ListLogs.
func (s *PostgresTaskStore) ListLogs(ctx context.Context, taskID int64) ([]*domain.TaskLogEntry, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, task_id, status, created_at
		FROM task_logs
		WHERE task_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		log.Error("failed to list task logs",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID))
		return nil, store.NewStoreError("task_log", "list", "failed to query task logs", MapError(err))
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Error("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	entries := []*domain.TaskLogEntry{}
	for rows.Next() {
		var entry domain.TaskLogEntry
		if err := rows.Scan(&entry.ID, &entry.TaskID, &entry.Status, &entry.CreatedAt); err != nil {
			return nil, store.NewStoreError("task_log", "list", "failed to scan task log", MapError(err))
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("task_log", "list", "failed to read task logs", MapError(err))
	}

	return entries, nil
}

// Delete implements store.TaskStore.Delete.
// Log entries go with the task through ON DELETE CASCADE.
func (s *PostgresTaskStore) Delete(ctx context.Context, id int64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete task",
			slog.String("error", err.Error()),
			slog.Int64("task_id", id))
		return store.NewStoreError("task", "delete", "failed to delete task", MapError(err))
	}

	if err := CheckRowsAffected(result, store.ErrTaskNotFound); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Debug("task not found for deletion", slog.Int64("task_id", id))
		}
		return err
	}

	log.Info("task deleted successfully", slog.Int64("task_id", id))
	return nil
}

// WithTx implements store.TaskStore.WithTx.
// It returns a new TaskStore instance that uses the provided transaction.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{
		db:     tx,
		logger: s.logger,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var status string
	if err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&status,
		&task.Priority,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, err
	}
	task.Status = domain.TaskStatus(status)
	return &task, nil
}
