package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/events"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// StatusAck confirms a status update.
type StatusAck struct {
	TaskID  int64             `json:"task_id"`
	Status  domain.TaskStatus `json:"status"`
	Message string            `json:"message"`
}

// Ack confirms an operation on a task.
type Ack struct {
	TaskID  int64  `json:"task_id"`
	Message string `json:"message"`
}

// TaskService provides task lifecycle operations
type TaskService interface {
	// CreateTask validates and persists a new pending task
	CreateTask(ctx context.Context, title, description string, priority int) (*domain.Task, error)

	// GetTask retrieves a task by its ID
	GetTask(ctx context.Context, id int64) (*domain.Task, error)

	// ListTasks returns tasks matching filter, ordered by ID
	ListTasks(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error)

	// UpdateStatus moves a task to status, records the transition in the
	// audit log and emits a StatusChangedEvent once both are committed
	UpdateStatus(ctx context.Context, id int64, status domain.TaskStatus) (*StatusAck, error)

	// DeleteTask removes a task together with its audit log
	DeleteTask(ctx context.Context, id int64) (*Ack, error)

	// TaskLogs returns the audit trail of an existing task, oldest first
	TaskLogs(ctx context.Context, id int64) ([]*domain.TaskLogEntry, error)
}

// taskServiceImpl implements the TaskService interface
type taskServiceImpl struct {
	tasks        store.TaskStore
	transactor   store.Transactor
	eventEmitter events.EventEmitter
	policy       domain.TransitionPolicy
	now          func() time.Time
	logger       *slog.Logger
}

// NewTaskService creates a new TaskService.
// It returns an error if any of the required dependencies are nil.
// A nil policy selects domain.PermissivePolicy.
func NewTaskService(
	tasks store.TaskStore,
	transactor store.Transactor,
	eventEmitter events.EventEmitter,
	policy domain.TransitionPolicy,
	logger *slog.Logger,
) (TaskService, error) {
	if tasks == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "tasks cannot be nil"}
	}
	if transactor == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "transactor cannot be nil"}
	}
	if eventEmitter == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "eventEmitter cannot be nil"}
	}
	if policy == nil {
		policy = domain.PermissivePolicy{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &taskServiceImpl{
		tasks:        tasks,
		transactor:   transactor,
		eventEmitter: eventEmitter,
		policy:       policy,
		now:          func() time.Time { return time.Now().UTC() },
		logger: logger.With(
			slog.String("component", "task_service"),
			slog.String("transition_policy", policy.Name()),
		),
	}, nil
}

// CreateTask implements TaskService.
func (s *taskServiceImpl) CreateTask(
	ctx context.Context,
	title, description string,
	priority int,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := domain.NewTask(title, description, priority)
	if err != nil {
		log.Debug("rejected invalid task", slog.String("error", err.Error()))
		return nil, err
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		log.Error("failed to create task", slog.String("error", err.Error()))
		return nil, NewTaskServiceError("create_task", "failed to save task", err)
	}

	log.Info("task created", slog.Int64("task_id", task.ID))
	return task, nil
}

// GetTask implements TaskService.
func (s *taskServiceImpl) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, NewTaskServiceError("get_task", "failed to retrieve task", err)
	}
	return task, nil
}

// ListTasks implements TaskService.
func (s *taskServiceImpl) ListTasks(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, domain.NewValidationError("status", "is not a known status", domain.ErrInvalidTaskStatus)
	}

	tasks, err := s.tasks.List(ctx, filter.Normalize())
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list tasks",
			slog.String("error", err.Error()))
		return nil, NewTaskServiceError("list_tasks", "failed to list tasks", err)
	}
	return tasks, nil
}

// UpdateStatus implements TaskService.
// The status change and its log entry commit together; the event is emitted
// only after the commit and its failure never fails the update.
func (s *taskServiceImpl) UpdateStatus(
	ctx context.Context,
	id int64,
	status domain.TaskStatus,
) (*StatusAck, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.Int64("task_id", id),
		slog.String("target_status", string(status)),
	)

	if !status.IsValid() {
		return nil, domain.NewValidationError("status", "is not a known status", domain.ErrInvalidTaskStatus)
	}

	var entry *domain.TaskLogEntry
	err := s.transactor.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		txTasks := s.tasks.WithTx(tx)

		if s.policy.RequiresCurrent() {
			current, err := txTasks.GetByIDForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if err := s.policy.Allow(current.Status, status); err != nil {
				log.Info("status transition rejected",
					slog.String("current_status", string(current.Status)))
				return err
			}
		}

		var err error
		entry, err = txTasks.ApplyTransition(ctx, id, status, s.now())
		return err
	})
	if err != nil {
		mapped := NewTaskServiceError("update_status",
			fmt.Sprintf("failed to update status to %s", status), err)
		if _, unexpected := mapped.(*TaskServiceError); unexpected {
			log.Error("failed to update task status", slog.String("error", err.Error()))
		}
		return nil, mapped
	}

	event := events.NewStatusChangedEvent(id, status)
	if emitErr := s.eventEmitter.EmitEvent(ctx, event); emitErr != nil {
		log.Error("failed to emit status change event",
			slog.String("error", emitErr.Error()),
			slog.String("event_id", event.ID.String()))
	}

	log.Info("task status updated",
		slog.Int64("log_id", entry.ID),
		slog.String("event_id", event.ID.String()))

	return &StatusAck{
		TaskID:  id,
		Status:  status,
		Message: fmt.Sprintf("Task %d status updated to %s", id, status),
	}, nil
}

// DeleteTask implements TaskService.
func (s *taskServiceImpl) DeleteTask(ctx context.Context, id int64) (*Ack, error) {
	if err := s.tasks.Delete(ctx, id); err != nil {
		return nil, NewTaskServiceError("delete_task", "failed to delete task", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("task deleted", slog.Int64("task_id", id))
	return &Ack{
		TaskID:  id,
		Message: fmt.Sprintf("Task %d has been deleted", id),
	}, nil
}

// TaskLogs implements TaskService.
func (s *taskServiceImpl) TaskLogs(ctx context.Context, id int64) ([]*domain.TaskLogEntry, error) {
	if _, err := s.tasks.GetByID(ctx, id); err != nil {
		return nil, NewTaskServiceError("task_logs", "failed to retrieve task", err)
	}

	entries, err := s.tasks.ListLogs(ctx, id)
	if err != nil {
		return nil, NewTaskServiceError("task_logs", "failed to list task logs", err)
	}
	return entries, nil
}
