package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"

	"github.com/phrazzld/taskflow-api/internal/platform/postgres"
)

// allowedMigrationCommands are the goose commands exposed by the migrate subcommand.
var allowedMigrationCommands = []string{"up", "up-by-one", "up-to", "down", "down-to", "redo", "reset", "status", "version"}

func isAllowedMigrationCommand(command string) bool {
	return slices.Contains(allowedMigrationCommands, command)
}

// runMigrations executes a goose command against the embedded migrations.
func runMigrations(ctx context.Context, db *sql.DB, log *slog.Logger, command string, args ...string) error {
	log.Info("executing migrations", "command", command, "args", args)

	if err := postgres.RunMigrations(ctx, db, log, command, args...); err != nil {
		return fmt.Errorf("migration %s failed: %w", command, err)
	}

	log.Info("migrations finished", "command", command)
	return nil
}
