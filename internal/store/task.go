package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/phrazzld/taskflow-api/internal/domain"
)

// TaskStore defines the interface for task and audit-log persistence.
type TaskStore interface {
	// Create saves a new task. The store assigns ID, CreatedAt and UpdatedAt
	// and writes them back into task.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Task, error)

	// GetByIDForUpdate is GetByID with a row lock held until the surrounding
	// transaction ends. Only meaningful on a store bound with WithTx.
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Task, error)

	// List returns the tasks matching filter ordered by ID. The filter is
	// normalized before use.
	List(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error)

	// ApplyTransition sets the task's status and updated_at to at and appends
	// the matching log entry, as one atomic unit.
	// Returns ErrTaskNotFound if the task does not exist.
	ApplyTransition(
		ctx context.Context,
		id int64,
		status domain.TaskStatus,
		at time.Time,
	) (*domain.TaskLogEntry, error)

	// ListLogs returns the audit trail of a task, oldest first.
	// An unknown task yields an empty slice.
	ListLogs(ctx context.Context, taskID int64) ([]*domain.TaskLogEntry, error)

	// Delete removes a task and, through the foreign key cascade, its log.
	// Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id int64) error

	// WithTx returns a new TaskStore instance that uses the provided transaction.
	// This allows for multiple operations to be executed within a single transaction.
	WithTx(tx *sql.Tx) TaskStore
}
