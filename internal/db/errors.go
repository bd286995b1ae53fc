package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a requested outcome does not exist.
var ErrNotFound = errors.New("outcome not found")

// Write error codes.
const (
	CodeInvalid     = "invalid"
	CodeConflict    = "conflict"
	CodeConstraint  = "constraint"
	CodePermission  = "permission"
	CodeUnavailable = "unavailable"
	CodeTimeout     = "timeout"
	CodeCanceled    = "canceled"
	CodeNotFound    = "not_found"
	CodeInternal    = "internal"
)

// WriteError describes a failed storage operation.
type WriteError struct {
	Op      string
	Code    string
	Message string
	Cause   error
}

func (e *WriteError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *WriteError) Unwrap() error {
	return e.Cause
}

// Temporary reports whether retrying the operation later could succeed.
func (e *WriteError) Temporary() bool {
	switch e.Code {
	case CodeUnavailable, CodeTimeout:
		return true
	}
	return false
}

// classify wraps err in a *WriteError with a code derived from the
// PostgreSQL error class.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var we *WriteError
	if errors.As(err, &we) {
		return err
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &WriteError{Op: op, Code: CodeTimeout, Message: "database timed out", Cause: err}
	case errors.Is(err, context.Canceled):
		return &WriteError{Op: op, Code: CodeCanceled, Message: "request was canceled", Cause: err}
	case errors.Is(err, pgx.ErrNoRows):
		return &WriteError{Op: op, Code: CodeNotFound, Message: "no such outcome", Cause: ErrNotFound}
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		if pgconn.SafeToRetry(err) {
			return &WriteError{Op: op, Code: CodeUnavailable, Message: "database unavailable", Cause: err}
		}
		return &WriteError{Op: op, Code: CodeInternal, Message: "database error", Cause: err}
	}

	switch {
	case pgErr.Code == pgerrcode.UniqueViolation:
		return &WriteError{Op: op, Code: CodeConflict, Message: "outcome already exists", Cause: err}
	case pgErr.Code == pgerrcode.InsufficientPrivilege:
		return &WriteError{Op: op, Code: CodePermission, Message: "permission denied", Cause: err}
	case pgerrcode.IsIntegrityConstraintViolation(pgErr.Code), pgerrcode.IsDataException(pgErr.Code):
		return &WriteError{Op: op, Code: CodeConstraint, Message: "outcome rejected by database", Cause: err}
	case pgErr.Code == pgerrcode.QueryCanceled:
		return &WriteError{Op: op, Code: CodeTimeout, Message: "statement timed out", Cause: err}
	case pgerrcode.IsConnectionException(pgErr.Code),
		pgerrcode.IsInsufficientResources(pgErr.Code),
		pgerrcode.IsOperatorIntervention(pgErr.Code):
		return &WriteError{Op: op, Code: CodeUnavailable, Message: "database unavailable", Cause: err}
	default:
		return &WriteError{Op: op, Code: CodeInternal, Message: "database error", Cause: err}
	}
}
