// Package main implements the entry point for the taskflow API server,
// which tracks tasks through their lifecycle and fans out status change
// notifications.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/phrazzld/taskflow-api/internal/config"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/redact"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := newRootCommand().Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// newRootCommand returns the top-level CLI command.
func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "taskflow",
		Usage: "Task lifecycle API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (default: ./config.yaml if present)",
			},
		},
		Commands: []*cli.Command{
			newServeCommand(),
			newMigrateCommand(),
		},
		DefaultCommand: "serve",
	}
}

// newServeCommand returns the serve subcommand.
func newServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API, background runner and notification dispatcher",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "port",
				Usage: "Override server.port",
			},
			&cli.BoolFlag{
				Name:  "migrate",
				Usage: "Apply pending migrations before serving",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, log, err := initializeApp(cmd.String("config"))
			if err != nil {
				return err
			}
			if cmd.IsSet("port") {
				cfg.Server.Port = cmd.Int("port")
			}

			db, err := setupAppDatabase(ctx, cfg, log)
			if err != nil {
				return err
			}

			if cmd.Bool("migrate") {
				if err := runMigrations(ctx, db, log, "up"); err != nil {
					_ = db.Close()
					return err
				}
			}

			app, err := newApplication(cfg, log, db)
			if err != nil {
				_ = db.Close()
				return fmt.Errorf("failed to initialize application: %w", err)
			}

			return app.Run(ctx)
		},
	}
}

// newMigrateCommand returns the migrate subcommand.
func newMigrateCommand() *cli.Command {
	return &cli.Command{
		Name:      "migrate",
		Usage:     "Run a goose migration command (up, down, status, version, redo, reset)",
		ArgsUsage: "<command> [args...]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() == 0 {
				return fmt.Errorf("migration command is required")
			}
			command := cmd.Args().First()
			if !isAllowedMigrationCommand(command) {
				return fmt.Errorf("unsupported migration command %q", command)
			}

			cfg, log, err := initializeApp(cmd.String("config"))
			if err != nil {
				return err
			}

			db, err := setupAppDatabase(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := db.Close(); err != nil {
					log.Error("error closing database connection", "error", err)
				}
			}()

			return runMigrations(ctx, db, log, command, cmd.Args().Tail()...)
		},
	}
}

// initializeApp loads configuration and sets up structured logging.
func initializeApp(configPath string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"transition_policy", cfg.Task.TransitionPolicy,
		"database_url", redact.String(cfg.Database.URL),
		"webhook_url", redact.String(cfg.Notify.WebhookURL),
		"nats_url", redact.String(cfg.Notify.NATSURL))

	return cfg, log, nil
}
