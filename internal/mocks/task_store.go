package mocks

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// MockTaskStore implements store.TaskStore with in-memory state.
// It is safe for concurrent use.
type MockTaskStore struct {
	// Function fields for customizable behavior
	CreateFn           func(ctx context.Context, task *domain.Task) error
	GetByIDFn          func(ctx context.Context, id int64) (*domain.Task, error)
	GetByIDForUpdateFn func(ctx context.Context, id int64) (*domain.Task, error)
	ListFn             func(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error)
	ApplyTransitionFn  func(ctx context.Context, id int64, status domain.TaskStatus, at time.Time) (*domain.TaskLogEntry, error)
	ListLogsFn         func(ctx context.Context, taskID int64) ([]*domain.TaskLogEntry, error)
	DeleteFn           func(ctx context.Context, id int64) error

	mu      sync.Mutex
	tasks   map[int64]*domain.Task
	logs    []*domain.TaskLogEntry
	nextID  int64
	nextLog int64

	// WithTxCalls counts how many times WithTx was called.
	WithTxCalls int
	// ForUpdateCalls counts calls to GetByIDForUpdate.
	ForUpdateCalls int
}

// NewMockTaskStore creates an empty in-memory store.
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{tasks: make(map[int64]*domain.Task)}
}

var _ store.TaskStore = (*MockTaskStore)(nil)

// Create implements store.TaskStore.
func (m *MockTaskStore) Create(ctx context.Context, task *domain.Task) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, task)
	}
	if err := task.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	now := time.Now().UTC()
	task.ID = m.nextID
	task.CreatedAt = now
	task.UpdatedAt = now
	stored := *task
	m.tasks[task.ID] = &stored
	return nil
}

// GetByID implements store.TaskStore.
func (m *MockTaskStore) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return m.get(id)
}

// GetByIDForUpdate implements store.TaskStore.
func (m *MockTaskStore) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Task, error) {
	m.mu.Lock()
	m.ForUpdateCalls++
	m.mu.Unlock()

	if m.GetByIDForUpdateFn != nil {
		return m.GetByIDForUpdateFn(ctx, id)
	}
	return m.get(id)
}

func (m *MockTaskStore) get(id int64) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

// List implements store.TaskStore.
func (m *MockTaskStore) List(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, filter)
	}
	filter = filter.Normalize()

	m.mu.Lock()
	defer m.mu.Unlock()

	matched := make([]*domain.Task, 0, len(m.tasks))
	for _, task := range m.tasks {
		if filter.Title != "" &&
			!strings.Contains(strings.ToLower(task.Title), strings.ToLower(filter.Title)) {
			continue
		}
		if filter.Status != nil && task.Status != *filter.Status {
			continue
		}
		copied := *task
		matched = append(matched, &copied)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	if filter.Offset >= len(matched) {
		return []*domain.Task{}, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// ApplyTransition implements store.TaskStore.
func (m *MockTaskStore) ApplyTransition(
	ctx context.Context,
	id int64,
	status domain.TaskStatus,
	at time.Time,
) (*domain.TaskLogEntry, error) {
	if m.ApplyTransitionFn != nil {
		return m.ApplyTransitionFn(ctx, id, status, at)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	if at.Before(task.CreatedAt) {
		at = task.CreatedAt
	}
	task.Status = status
	task.UpdatedAt = at

	m.nextLog++
	entry := &domain.TaskLogEntry{ID: m.nextLog, TaskID: id, Status: status, CreatedAt: at}
	m.logs = append(m.logs, entry)
	copied := *entry
	return &copied, nil
}

// ListLogs implements store.TaskStore.
func (m *MockTaskStore) ListLogs(ctx context.Context, taskID int64) ([]*domain.TaskLogEntry, error) {
	if m.ListLogsFn != nil {
		return m.ListLogsFn(ctx, taskID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entries := []*domain.TaskLogEntry{}
	for _, entry := range m.logs {
		if entry.TaskID == taskID {
			copied := *entry
			entries = append(entries, &copied)
		}
	}
	return entries, nil
}

// Delete implements store.TaskStore. Log entries are removed with the task.
func (m *MockTaskStore) Delete(ctx context.Context, id int64) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[id]; !ok {
		return store.ErrTaskNotFound
	}
	delete(m.tasks, id)

	kept := m.logs[:0]
	for _, entry := range m.logs {
		if entry.TaskID != id {
			kept = append(kept, entry)
		}
	}
	m.logs = kept
	return nil
}

// WithTx implements store.TaskStore. The mock has no transactions, so it
// returns itself.
func (m *MockTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	m.mu.Lock()
	m.WithTxCalls++
	m.mu.Unlock()
	return m
}

// Logs returns every log entry in insertion order.
func (m *MockTaskStore) Logs() []*domain.TaskLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.TaskLogEntry(nil), m.logs...)
}
