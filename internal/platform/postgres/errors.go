package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// PostgreSQL error codes
const (
	// uniqueViolationCode is the PostgreSQL error code for unique constraint violations
	uniqueViolationCode = "23505"

	// foreignKeyViolationCode is the PostgreSQL error code for foreign key violations
	foreignKeyViolationCode = "23503"

	// checkViolationCode is the PostgreSQL error code for check constraint violations
	checkViolationCode = "23514"

	// notNullViolationCode is the PostgreSQL error code for not null violations
	notNullViolationCode = "23502"

	// stringTooLongCode is raised when a value exceeds a VARCHAR limit
	stringTooLongCode = "22001"

	// connectionExceptionClass prefixes every connection failure code (08xxx)
	connectionExceptionClass = "08"

	// operatorInterventionClass covers admin shutdown and query cancellation (57xxx)
	operatorInterventionClass = "57"
)

// MapError maps a database error to a store sentinel, wrapping the original.
// Constraint violations become store.ErrInvalidEntity and a missing row
// becomes store.ErrNotFound. Everything else, including lost connections,
// is store.ErrStorage.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}

	if IsConnectionError(err) {
		return fmt.Errorf("%w: connection unavailable: %w", store.ErrStorage, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("%w: %w", store.ErrStorage, err)
	}

	switch {
	case IsUniqueViolation(err):
		return fmt.Errorf("%w: unique violation (%s): %w",
			store.ErrInvalidEntity, pgErr.ConstraintName, err)
	case IsForeignKeyViolation(err):
		return fmt.Errorf("%w: foreign key violation (%s): %w",
			store.ErrInvalidEntity, pgErr.ConstraintName, err)
	case IsCheckConstraintViolation(err):
		return fmt.Errorf("%w: check constraint violation (%s): %w",
			store.ErrInvalidEntity, pgErr.ConstraintName, err)
	case pgErr.Code == notNullViolationCode:
		return fmt.Errorf("%w: not null violation (%s): %w",
			store.ErrInvalidEntity, pgErr.ColumnName, err)
	case pgErr.Code == stringTooLongCode:
		return fmt.Errorf("%w: value too long: %w", store.ErrInvalidEntity, err)
	case strings.HasPrefix(pgErr.Code, operatorInterventionClass):
		return fmt.Errorf("%w: operator intervention: %w", store.ErrStorage, err)
	}

	return fmt.Errorf("%w: %w", store.ErrStorage, err)
}

// IsConnectionError reports whether err means the database could not be
// reached or the connection was lost.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, connectionExceptionClass)
}

// IsUniqueViolation checks if the given error is a PostgreSQL unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// IsForeignKeyViolation checks if the given error is a PostgreSQL foreign key constraint violation.
// This occurs when an operation would violate referential integrity constraints.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolationCode
}

// IsCheckConstraintViolation checks if the given error is a PostgreSQL check constraint violation.
func IsCheckConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == checkViolationCode
}

// CheckRowsAffected examines the number of rows affected by a database operation.
// If no rows were affected, it returns notFound (store.ErrNotFound when nil).
// UPDATE and DELETE use it to detect that the target record doesn't exist.
func CheckRowsAffected(result sql.Result, notFound error) error {
	if result == nil {
		return fmt.Errorf("nil result provided to CheckRowsAffected")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to get rows affected: %w", store.ErrStorage, err)
	}

	if rowsAffected == 0 {
		if notFound == nil {
			return store.ErrNotFound
		}
		return notFound
	}

	return nil
}
