package dberr

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/vietddude/docsite/internal/infra/storage"
)

// SQLSTATE codes with a dedicated mapping.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeSerialization       = "40001"
	codeDeadlock            = "40P01"
)

// Classify maps a raw driver error into the taxonomy using structured driver
// signals (SQLSTATE codes, sqlite extended codes, connection error types).
// Already classified errors pass through unchanged; nil stays nil.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fromSQLState(pgErr.Code, pgErr.ConstraintName, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fromSQLState(string(pqErr.Code), pqErr.Constraint, err)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return fromSQLite(liteErr, err)
	}

	var constraintErr *storage.ConstraintError
	if errors.As(err, &constraintErr) {
		if constraintErr.Kind == storage.ForeignKeyViolation {
			return &Error{
				Kind:       KindValidation,
				Code:       codeForeignKeyViolation,
				Constraint: constraintErr.Constraint,
				Message:    "referenced row does not exist",
				Err:        err,
			}
		}
		return &Error{
			Kind:       KindConflict,
			Code:       codeUniqueViolation,
			Constraint: constraintErr.Constraint,
			Message:    "unique constraint violated",
			Err:        err,
		}
	}

	// Cancellation is the caller's decision, never a reason to retry.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Query("query interrupted", err)
	}

	if isConnectionFailure(err) {
		return Connection("database connection failed", err)
	}

	return Query("query failed", err)
}

func fromSQLState(code, constraint string, err error) *Error {
	switch {
	case strings.HasPrefix(code, "08"):
		e := Connection("database connection failed", err)
		e.Code = code
		return e
	case code == codeSerialization || code == codeDeadlock:
		return Transaction("transaction aborted", code, err)
	case code == codeUniqueViolation:
		return &Error{
			Kind:       KindConflict,
			Code:       code,
			Constraint: constraint,
			Message:    "unique constraint violated",
			Err:        err,
		}
	case code == codeForeignKeyViolation:
		return &Error{
			Kind:       KindValidation,
			Code:       code,
			Constraint: constraint,
			Message:    "referenced row does not exist",
			Err:        err,
		}
	default:
		e := Query("query failed", err)
		e.Code = code
		return e
	}
}

func fromSQLite(liteErr sqlite3.Error, err error) *Error {
	switch {
	case liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked:
		// Lock contention is the embedded equivalent of a serialization failure.
		return Transaction("database is busy", codeSerialization, err)
	case liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
		return &Error{
			Kind:       KindConflict,
			Code:       codeUniqueViolation,
			Constraint: sqliteConstraintColumn(liteErr.Error()),
			Message:    "unique constraint violated",
			Err:        err,
		}
	case liteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey:
		return &Error{
			Kind:       KindValidation,
			Code:       codeForeignKeyViolation,
			Message:    "referenced row does not exist",
			Err:        err,
		}
	case liteErr.Code == sqlite3.ErrCantOpen || liteErr.Code == sqlite3.ErrIoErr:
		return Connection("database unavailable", err)
	default:
		return Query("query failed", err)
	}
}

// sqliteConstraintColumn extracts "table.column" from messages such as
// "UNIQUE constraint failed: users.email".
func sqliteConstraintColumn(msg string) string {
	_, cols, ok := strings.Cut(msg, "failed: ")
	if !ok {
		return ""
	}
	first, _, _ := strings.Cut(cols, ",")
	return strings.TrimSpace(first)
}

func isConnectionFailure(err error) bool {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return pgconn.SafeToRetry(err)
}
