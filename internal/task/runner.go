package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/service"
	"golang.org/x/sync/singleflight"
)

// ErrRunnerStopped is returned when a run is requested after Stop.
var ErrRunnerStopped = errors.New("task runner is stopped")

// DefaultProcessingDelay is how long a background run keeps a task in_progress.
const DefaultProcessingDelay = 5 * time.Second

// Lifecycle is the part of the lifecycle engine the runner drives.
type Lifecycle interface {
	GetTask(ctx context.Context, id int64) (*domain.Task, error)
	UpdateStatus(ctx context.Context, id int64, status domain.TaskStatus) (*service.StatusAck, error)
}

// RunnerConfig holds configuration for the task runner
type RunnerConfig struct {
	// ProcessingDelay is the simulated work time between in_progress and completed
	ProcessingDelay time.Duration

	// DedupeRuns coalesces concurrent runs of the same task into one.
	// When false, every trigger performs its own run.
	DedupeRuns bool
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		ProcessingDelay: DefaultProcessingDelay,
	}
}

// Runner manages background task processing
type Runner struct {
	lifecycle  Lifecycle
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	stopped    bool
	group      singleflight.Group
	config     RunnerConfig
	logger     *slog.Logger
	errHandler func(taskID int64, err error)
}

// NewRunner creates a new Runner
func NewRunner(lifecycle Lifecycle, config RunnerConfig, logger *slog.Logger) (*Runner, error) {
	if lifecycle == nil {
		return nil, fmt.Errorf("lifecycle cannot be nil")
	}
	if config.ProcessingDelay < 0 {
		return nil, fmt.Errorf("processing delay cannot be negative: %s", config.ProcessingDelay)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "task_runner"))

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		lifecycle:  lifecycle,
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger,
		errHandler: func(taskID int64, err error) {
			// Default error handler just logs the error
			logger.Error("background run failed",
				"task_id", taskID,
				"error", err)
		},
	}, nil
}

// SetErrorHandler allows setting a custom error handler function
func (r *Runner) SetErrorHandler(handler func(taskID int64, err error)) {
	r.errHandler = handler
}

// Trigger starts a background run for an existing task. It fails with
// service.ErrTaskNotFound before any state change when the task is absent.
func (r *Runner) Trigger(ctx context.Context, id int64) error {
	if _, err := r.lifecycle.GetTask(ctx, id); err != nil {
		return err
	}
	if err := r.RunAsync(id); err != nil {
		return err
	}

	logger.FromContextOrDefault(ctx, r.logger).Info("background run scheduled",
		slog.Int64("task_id", id))
	return nil
}

// RunAsync starts a background run for id and returns immediately.
func (r *Runner) RunAsync(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrRunnerStopped
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if r.config.DedupeRuns {
			_, _, shared := r.group.Do(strconv.FormatInt(id, 10), func() (interface{}, error) {
				r.run(id)
				return nil, nil
			})
			if shared {
				r.logger.Debug("background run coalesced", slog.Int64("task_id", id))
			}
			return
		}
		r.run(id)
	}()
	return nil
}

// run performs one in_progress -> delay -> completed cycle.
func (r *Runner) run(id int64) {
	log := r.logger.With(slog.Int64("task_id", id))

	// Status writes must not be cut short by shutdown; only the delay is.
	ctx := logger.WithLogger(context.WithoutCancel(r.ctx), log)

	log.Info("background run started")
	if _, err := r.lifecycle.UpdateStatus(ctx, id, domain.TaskStatusInProgress); err != nil {
		r.errHandler(id, fmt.Errorf("failed to mark task in progress: %w", err))
		return
	}

	timer := time.NewTimer(r.config.ProcessingDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-r.ctx.Done():
		log.Warn("background run interrupted by shutdown, task left in progress")
		return
	}

	if _, err := r.lifecycle.UpdateStatus(ctx, id, domain.TaskStatusCompleted); err != nil {
		r.errHandler(id, fmt.Errorf("failed to mark task completed: %w", err))
		return
	}
	log.Info("background run completed")
}

// Stop refuses new runs, interrupts the processing delay of in-flight runs
// and waits for them to return, bounded by ctx.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()

	r.cancelFunc()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("task runner stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for background runs: %w", ctx.Err())
	}
}
