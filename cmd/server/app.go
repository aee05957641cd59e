package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/phrazzld/taskflow-api/internal/config"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/events"
	"github.com/phrazzld/taskflow-api/internal/notify"
	"github.com/phrazzld/taskflow-api/internal/platform/postgres"
	"github.com/phrazzld/taskflow-api/internal/service"
	"github.com/phrazzld/taskflow-api/internal/store"
	"github.com/phrazzld/taskflow-api/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	taskStore  store.TaskStore
	transactor store.Transactor

	// Notification fan-out: dispatcher queue -> emitter -> sinks
	emitter    *events.InMemoryEventEmitter
	dispatcher *notify.Dispatcher
	natsConn   *nats.Conn

	taskService service.TaskService
	runner      *task.Runner
	server      *http.Server

	shutdownOnce sync.Once
	shutdownErr  error
}

// newApplication creates a new application instance with all dependencies
// initialized on top of the given connection pool.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app, err := buildApplication(cfg, logger, postgres.NewPostgresTaskStore(db, logger), store.SQLTransactor{DB: db})
	if err != nil {
		return nil, err
	}
	app.db = db
	return app, nil
}

// buildApplication wires the application around explicit storage dependencies.
func buildApplication(
	cfg *config.Config,
	logger *slog.Logger,
	taskStore store.TaskStore,
	transactor store.Transactor,
) (*application, error) {
	app := &application{
		config:     cfg,
		logger:     logger,
		taskStore:  taskStore,
		transactor: transactor,
	}

	if err := app.setupNotifications(); err != nil {
		return nil, err
	}

	if err := app.setupLifecycle(); err != nil {
		app.closeNATS()
		return nil, err
	}

	logger.Info("application initialized successfully")
	return app, nil
}

// setupNotifications registers every configured sink on the emitter and puts
// the dispatcher queue in front of it.
func (app *application) setupNotifications() error {
	cfg := app.config.Notify
	app.emitter = events.NewInMemoryEventEmitter(app.logger)
	app.emitter.RegisterHandler("log", notify.NewLogHandler(app.logger))

	if cfg.WebhookURL != "" {
		webhook, err := notify.NewWebhookHandler(cfg.WebhookURL, cfg.WebhookTimeout(), app.logger)
		if err != nil {
			return fmt.Errorf("failed to create webhook handler: %w", err)
		}
		app.emitter.RegisterHandler("webhook", webhook)
	}

	if cfg.NATSURL != "" {
		conn, err := notify.ConnectNATS(cfg.NATSURL, app.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		publisher, err := notify.NewNATSHandler(conn, cfg.NATSSubject, app.logger)
		if err != nil {
			conn.Close()
			return fmt.Errorf("failed to create NATS handler: %w", err)
		}
		app.natsConn = conn
		app.emitter.RegisterHandler("nats", publisher)
	}

	dispatcher, err := notify.NewDispatcher(app.emitter, app.logger)
	if err != nil {
		app.closeNATS()
		return fmt.Errorf("failed to create notification dispatcher: %w", err)
	}
	app.dispatcher = dispatcher

	app.logger.Info("notification sinks registered", "count", app.emitter.HandlerCount())
	return nil
}

// setupLifecycle builds the task service and the background runner.
func (app *application) setupLifecycle() error {
	policy, err := domain.ParseTransitionPolicy(app.config.Task.TransitionPolicy)
	if err != nil {
		return fmt.Errorf("invalid transition policy: %w", err)
	}

	app.taskService, err = service.NewTaskService(app.taskStore, app.transactor, app.dispatcher, policy, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create task service: %w", err)
	}

	app.runner, err = task.NewRunner(app.taskService, task.RunnerConfig{
		ProcessingDelay: app.config.Task.ProcessingDelay(),
		DedupeRuns:      app.config.Task.DedupeRuns,
	}, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create task runner: %w", err)
	}

	return nil
}

// start launches the background workers.
func (app *application) start() {
	app.dispatcher.Start()
}

// shutdown stops components in dependency order: the runner first so no new
// transitions are produced, then the dispatcher so queued notifications
// drain, then external connections. It is safe to call more than once.
func (app *application) shutdown(ctx context.Context) error {
	app.shutdownOnce.Do(func() {
		var errs []error

		if err := app.runner.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("task runner: %w", err))
		}

		if err := app.dispatcher.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("notification dispatcher: %w", err))
		}
		stats := app.dispatcher.Stats()
		app.logger.Info("notification dispatcher stopped",
			"processed", stats.Processed,
			"failed", stats.Failed,
			"dropped", stats.Dropped)

		app.closeNATS()

		if app.db != nil {
			if err := app.db.Close(); err != nil {
				errs = append(errs, fmt.Errorf("database: %w", err))
			}
		}

		app.shutdownErr = errors.Join(errs...)
		if app.shutdownErr != nil {
			app.logger.Error("application shutdown completed with errors", "error", app.shutdownErr)
			return
		}
		app.logger.Info("application shutdown completed")
	})
	return app.shutdownErr
}

func (app *application) closeNATS() {
	if app.natsConn == nil {
		return
	}
	if err := app.natsConn.Drain(); err != nil {
		app.logger.Warn("failed to drain NATS connection", "error", err)
		app.natsConn.Close()
	}
	app.natsConn = nil
}
