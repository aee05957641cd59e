package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// TaskStatus represents the lifecycle state of a task
type TaskStatus string

// Possible task status values. The set is closed.
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Task field limits and defaults
const (
	MaxTitleLength   = 255
	DefaultPriority  = 1
	DefaultListLimit = 10
	MaxListLimit     = 100
)

// IsValid reports whether s is one of the known task statuses.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	default:
		return false
	}
}

// String returns the persisted label of the status.
func (s TaskStatus) String() string {
	return string(s)
}

// ParseTaskStatus converts a label into a TaskStatus.
// Returns a ValidationError wrapping ErrInvalidTaskStatus for unknown labels.
func ParseTaskStatus(label string) (TaskStatus, error) {
	status := TaskStatus(label)
	if !status.IsValid() {
		return "", NewValidationError("status",
			fmt.Sprintf("must be one of %s, %s, %s",
				TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted),
			ErrInvalidTaskStatus)
	}
	return status, nil
}

// Task is a unit of trackable work.
// ID, CreatedAt and UpdatedAt are assigned by the store on creation.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Priority    int        `json:"priority"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewTask creates a pending Task that has not been persisted yet.
// Returns a ValidationError if the title is empty or too long.
func NewTask(title, description string, priority int) (*Task, error) {
	task := &Task{
		Title:       title,
		Description: description,
		Status:      TaskStatusPending,
		Priority:    priority,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks the fields a client controls.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return NewValidationError("title", "cannot be empty", ErrValidation)
	}

	if utf8.RuneCountInString(t.Title) > MaxTitleLength {
		return NewValidationError("title",
			fmt.Sprintf("cannot exceed %d characters", MaxTitleLength), ErrValidation)
	}

	if !t.Status.IsValid() {
		return NewValidationError("status", "is not a known status", ErrInvalidTaskStatus)
	}

	return nil
}

// TaskLogEntry is an immutable audit record of a status a task transitioned to.
type TaskLogEntry struct {
	ID        int64      `json:"id"`
	TaskID    int64      `json:"task_id"`
	Status    TaskStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// TaskFilter selects and paginates tasks for listing.
type TaskFilter struct {
	// Title is matched as a case-insensitive substring. Empty means no filter.
	Title string
	// Status restricts results to an exact status. Nil means no filter.
	Status *TaskStatus
	Offset int
	Limit  int
}

// Normalize applies the default limit, caps it at MaxListLimit and clamps
// negative offsets to zero.
func (f TaskFilter) Normalize() TaskFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
