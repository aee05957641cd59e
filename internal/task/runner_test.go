package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/mocks"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runnerFixture struct {
	runner  *Runner
	svc     service.TaskService
	tasks   *mocks.MockTaskStore
	emitter *mocks.MockEventEmitter
	logs    *logger.TestLogBuffer
}

func newRunnerFixture(t *testing.T, config RunnerConfig) *runnerFixture {
	t.Helper()
	log, buf := logger.NewTestLogger()
	f := &runnerFixture{
		tasks:   mocks.NewMockTaskStore(),
		emitter: &mocks.MockEventEmitter{},
		logs:    buf,
	}

	svc, err := service.NewTaskService(f.tasks, &mocks.MockTransactor{}, f.emitter, nil, log)
	require.NoError(t, err)
	f.svc = svc

	runner, err := NewRunner(svc, config, log)
	require.NoError(t, err)
	f.runner = runner

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = runner.Stop(ctx)
	})
	return f
}

func (f *runnerFixture) createTask(t *testing.T) *domain.Task {
	t.Helper()
	task, err := f.svc.CreateTask(context.Background(), "background", "", 1)
	require.NoError(t, err)
	return task
}

func (f *runnerFixture) status(t *testing.T, id int64) domain.TaskStatus {
	t.Helper()
	task, err := f.svc.GetTask(context.Background(), id)
	require.NoError(t, err)
	return task.Status
}

func logStatuses(entries []*domain.TaskLogEntry) []domain.TaskStatus {
	statuses := make([]domain.TaskStatus, len(entries))
	for i, entry := range entries {
		statuses[i] = entry.Status
	}
	return statuses
}

func TestNewRunner_Validation(t *testing.T) {
	_, err := NewRunner(nil, DefaultRunnerConfig(), nil)
	assert.Error(t, err)

	svc, err := service.NewTaskService(mocks.NewMockTaskStore(), &mocks.MockTransactor{}, &mocks.MockEventEmitter{}, nil, nil)
	require.NoError(t, err)
	_, err = NewRunner(svc, RunnerConfig{ProcessingDelay: -time.Second}, nil)
	assert.Error(t, err)

	assert.Equal(t, 5*time.Second, DefaultRunnerConfig().ProcessingDelay)
	assert.False(t, DefaultRunnerConfig().DedupeRuns)
}

func TestRunner_TriggerCompletesTask(t *testing.T) {
	f := newRunnerFixture(t, RunnerConfig{ProcessingDelay: 150 * time.Millisecond})
	task := f.createTask(t)

	require.NoError(t, f.runner.Trigger(context.Background(), task.ID))

	// Trigger returns before the run finishes.
	assert.NotEqual(t, domain.TaskStatusCompleted, f.status(t, task.ID))

	assert.Eventually(t, func() bool {
		return f.status(t, task.ID) == domain.TaskStatusInProgress
	}, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return f.status(t, task.ID) == domain.TaskStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	logs, err := f.svc.TaskLogs(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t,
		[]domain.TaskStatus{domain.TaskStatusInProgress, domain.TaskStatusCompleted},
		logStatuses(logs))

	emitted := f.emitter.Events()
	require.Len(t, emitted, 2)
	assert.Equal(t, domain.TaskStatusInProgress, emitted[0].NewStatus)
	assert.Equal(t, domain.TaskStatusCompleted, emitted[1].NewStatus)
}

func TestRunner_TriggerUnknownTask(t *testing.T) {
	f := newRunnerFixture(t, RunnerConfig{ProcessingDelay: time.Millisecond})

	err := f.runner.Trigger(context.Background(), 77)
	assert.ErrorIs(t, err, service.ErrTaskNotFound)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, f.tasks.Logs())
	assert.Empty(t, f.emitter.Events())
}

func TestRunner_DuplicateTriggersRunIndependently(t *testing.T) {
	f := newRunnerFixture(t, RunnerConfig{ProcessingDelay: 100 * time.Millisecond})
	task := f.createTask(t)

	require.NoError(t, f.runner.Trigger(context.Background(), task.ID))
	require.NoError(t, f.runner.Trigger(context.Background(), task.ID))

	assert.Eventually(t, func() bool {
		return len(f.tasks.Logs()) == 4
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, domain.TaskStatusCompleted, f.status(t, task.ID))
}

func TestRunner_DedupeCoalescesConcurrentRuns(t *testing.T) {
	f := newRunnerFixture(t, RunnerConfig{ProcessingDelay: 200 * time.Millisecond, DedupeRuns: true})
	task := f.createTask(t)

	require.NoError(t, f.runner.Trigger(context.Background(), task.ID))
	assert.Eventually(t, func() bool {
		return f.status(t, task.ID) == domain.TaskStatusInProgress
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, f.runner.Trigger(context.Background(), task.ID))

	assert.Eventually(t, func() bool {
		return f.status(t, task.ID) == domain.TaskStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
	f.runner.wg.Wait()

	assert.Len(t, f.tasks.Logs(), 2)
}

func TestRunner_StopInterruptsDelay(t *testing.T) {
	f := newRunnerFixture(t, RunnerConfig{ProcessingDelay: time.Hour})
	task := f.createTask(t)

	require.NoError(t, f.runner.Trigger(context.Background(), task.ID))
	assert.Eventually(t, func() bool {
		return f.status(t, task.ID) == domain.TaskStatusInProgress
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.runner.Stop(ctx))

	assert.Equal(t, domain.TaskStatusInProgress, f.status(t, task.ID))
	assert.Len(t, f.logs.EntriesWithMessage("background run interrupted by shutdown, task left in progress"), 1)

	assert.ErrorIs(t, f.runner.RunAsync(task.ID), ErrRunnerStopped)
	assert.ErrorIs(t, f.runner.Trigger(context.Background(), task.ID), ErrRunnerStopped)
}

// stubLifecycle lets tests fail individual lifecycle calls.
type stubLifecycle struct {
	mu      sync.Mutex
	updates []domain.TaskStatus
	err     error
}

func (s *stubLifecycle) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	return &domain.Task{ID: id, Status: domain.TaskStatusPending}, nil
}

func (s *stubLifecycle) UpdateStatus(ctx context.Context, id int64, status domain.TaskStatus) (*service.StatusAck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, status)
	if s.err != nil {
		return nil, s.err
	}
	return &service.StatusAck{TaskID: id, Status: status}, nil
}

func TestRunner_FailedStepAbortsRun(t *testing.T) {
	lifecycle := &stubLifecycle{err: service.ErrTaskNotFound}
	runner, err := NewRunner(lifecycle, RunnerConfig{ProcessingDelay: time.Millisecond}, nil)
	require.NoError(t, err)

	failures := make(chan error, 1)
	runner.SetErrorHandler(func(taskID int64, err error) {
		assert.Equal(t, int64(3), taskID)
		failures <- err
	})

	require.NoError(t, runner.Trigger(context.Background(), 3))

	select {
	case err := <-failures:
		assert.ErrorIs(t, err, service.ErrTaskNotFound)
		assert.ErrorContains(t, err, "in progress")
	case <-time.After(time.Second):
		t.Fatal("error handler was not called")
	}

	require.NoError(t, runner.Stop(context.Background()))
	lifecycle.mu.Lock()
	defer lifecycle.mu.Unlock()
	assert.Equal(t, []domain.TaskStatus{domain.TaskStatusInProgress}, lifecycle.updates)
}

func TestRunner_StopTimeout(t *testing.T) {
	block := make(chan struct{})
	lifecycle := &blockingLifecycle{release: block}
	runner, err := NewRunner(lifecycle, RunnerConfig{}, nil)
	require.NoError(t, err)

	require.NoError(t, runner.RunAsync(1))
	<-lifecycle.entered()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = runner.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(block)
	require.NoError(t, runner.Stop(context.Background()))
}

// blockingLifecycle blocks the first UpdateStatus until release is closed.
type blockingLifecycle struct {
	release chan struct{}
	once    sync.Once
	ch      chan struct{}
	mu      sync.Mutex
}

func (b *blockingLifecycle) entered() chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ch == nil {
		b.ch = make(chan struct{})
	}
	return b.ch
}

func (b *blockingLifecycle) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	return nil, errors.New("not used")
}

func (b *blockingLifecycle) UpdateStatus(ctx context.Context, id int64, status domain.TaskStatus) (*service.StatusAck, error) {
	b.once.Do(func() { close(b.entered()) })
	<-b.release
	return &service.StatusAck{TaskID: id, Status: status}, nil
}
