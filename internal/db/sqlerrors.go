package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// ErrRetriesExceeded is returned when a transaction kept failing with a
// retryable error.
var ErrRetriesExceeded = errors.New("db tx retries exceeded")

// MapSQLError translates a sqlite3 error into one of the typed errors of
// this package. Other errors are returned unchanged.
func MapSQLError(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}

	switch sqliteErr.Code {
	case sqlite3.ErrConstraint:
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique,
			sqlite3.ErrConstraintPrimaryKey:

			return &ErrSQLUniqueConstraintViolation{
				DBError: sqliteErr,
			}
		}

		return fmt.Errorf("sqlite constraint error: %w", sqliteErr)

	// Another connection holds the write lock.
	case sqlite3.ErrBusy:
		return &ErrSerializationError{DBError: sqliteErr}

	// A conflict inside the same connection.
	case sqlite3.ErrLocked:
		return &ErrDeadlockError{DBError: sqliteErr}

	case sqlite3.ErrError:
		if strings.Contains(sqliteErr.Error(), "no such table") {
			return &ErrSchemaError{DBError: sqliteErr}
		}

		return fmt.Errorf("unknown sqlite error: %w", sqliteErr)

	default:
		return fmt.Errorf("unknown sqlite error: %w", sqliteErr)
	}
}

// ErrSQLUniqueConstraintViolation is a unique or primary key violation.
type ErrSQLUniqueConstraintViolation struct {
	DBError error
}

// Unwrap returns the wrapped error.
func (e *ErrSQLUniqueConstraintViolation) Unwrap() error {
	return e.DBError
}

// Error returns the error message.
func (e *ErrSQLUniqueConstraintViolation) Error() string {
	return fmt.Sprintf("sql unique constraint violation: %v", e.DBError)
}

// ErrSerializationError means the transaction lost a race for the write
// lock and may be retried.
type ErrSerializationError struct {
	DBError error
}

// Unwrap returns the wrapped error.
func (e *ErrSerializationError) Unwrap() error {
	return e.DBError
}

// Error returns the error message.
func (e *ErrSerializationError) Error() string {
	return e.DBError.Error()
}

// ErrDeadlockError means the table was locked by the same connection.
type ErrDeadlockError struct {
	DBError error
}

// Unwrap returns the wrapped error.
func (e *ErrDeadlockError) Unwrap() error {
	return e.DBError
}

// Error returns the error message.
func (e *ErrDeadlockError) Error() string {
	return e.DBError.Error()
}

// ErrSchemaError means the query referenced a table that does not exist.
type ErrSchemaError struct {
	DBError error
}

// Unwrap returns the wrapped error.
func (e *ErrSchemaError) Unwrap() error {
	return e.DBError
}

// Error returns the error message.
func (e *ErrSchemaError) Error() string {
	return e.DBError.Error()
}

// IsUniqueConstraintViolation returns true if err is a unique or primary
// key violation.
func IsUniqueConstraintViolation(err error) bool {
	var uniqueErr *ErrSQLUniqueConstraintViolation
	return errors.As(MapSQLError(err), &uniqueErr)
}

// IsSerializationError returns true if err is a busy database error.
func IsSerializationError(err error) bool {
	var serializationError *ErrSerializationError
	return errors.As(err, &serializationError)
}

// IsDeadlockError returns true if err is a locked table error.
func IsDeadlockError(err error) bool {
	var deadlockError *ErrDeadlockError
	return errors.As(err, &deadlockError)
}

// IsSerializationOrDeadlockError returns true for either retryable kind.
func IsSerializationOrDeadlockError(err error) bool {
	return IsDeadlockError(err) || IsSerializationError(err)
}

// IsSchemaError returns true if err is a missing table error.
func IsSchemaError(err error) bool {
	var schemaError *ErrSchemaError
	return errors.As(err, &schemaError)
}
