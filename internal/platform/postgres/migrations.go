package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
)

// MigrationsDir is the directory inside Migrations holding the goose files.
const MigrationsDir = "migrations"

// MigrationsTable is the goose version table.
const MigrationsTable = "schema_migrations"

// Migrations holds the SQL migrations for the task schema.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// goose keeps its configuration in package globals.
var gooseMu sync.Mutex

// SlogGooseLogger adapts goose's logger interface to slog.
type SlogGooseLogger struct {
	Logger *slog.Logger
}

// Printf implements goose.Logger.
func (l SlogGooseLogger) Printf(format string, v ...interface{}) {
	l.logger().Info(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("source", "goose"))
}

// Fatalf implements goose.Logger. It logs at error level instead of exiting;
// goose reports the failure through its return value as well.
func (l SlogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger().Error(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("source", "goose"))
}

func (l SlogGooseLogger) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// RunMigrations executes a goose command ("up", "down", "status", "version",
// "reset", "redo") against db using the embedded migrations.
func RunMigrations(ctx context.Context, db *sql.DB, log *slog.Logger, command string, args ...string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(Migrations)
	goose.SetTableName(MigrationsTable)
	goose.SetLogger(SlogGooseLogger{Logger: log})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.RunContext(ctx, command, db, MigrationsDir, args...); err != nil {
		return fmt.Errorf("goose %s failed: %w", command, err)
	}
	return nil
}
