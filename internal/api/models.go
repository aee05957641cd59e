package api

import (
	"time"

	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/notify"
)

// CreateTaskRequest defines the payload for creating a task.
// Description defaults to empty and Priority to domain.DefaultPriority.
type CreateTaskRequest struct {
	Title       string  `json:"title"       validate:"required,max=255"`
	Description *string `json:"description"`
	Priority    *int    `json:"priority"`
}

// UpdateStatusRequest is the optional JSON body of PUT /tasks/{id}.
// The status query parameter takes precedence over it.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// TaskResponse is the wire form of a task.
type TaskResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Priority    int       `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TaskLogResponse is the wire form of one audit entry.
type TaskLogResponse struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// HealthResponse reports liveness and notification counters.
type HealthResponse struct {
	Status        string       `json:"status"`
	Notifications notify.Stats `json:"notifications"`
}

func taskToResponse(task *domain.Task) TaskResponse {
	return TaskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status.String(),
		Priority:    task.Priority,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

func tasksToResponse(tasks []*domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, taskToResponse(task))
	}
	return out
}

func logsToResponse(entries []*domain.TaskLogEntry) []TaskLogResponse {
	out := make([]TaskLogResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, TaskLogResponse{
			ID:        entry.ID,
			TaskID:    entry.TaskID,
			Status:    entry.Status.String(),
			CreatedAt: entry.CreatedAt,
		})
	}
	return out
}
