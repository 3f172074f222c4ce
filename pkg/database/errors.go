package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes this package classifies on.
const (
	sqlstateQueryCanceled        = "57014"
	sqlstateSerializationFailure = "40001"
	sqlstateDeadlockDetected     = "40P01"
)

// ExecutionError wraps a statement failure. The underlying engine error is
// never shown to callers; the correlation ID allows server-side log lookup.
type ExecutionError struct {
	CorrelationID uuid.UUID
	Err           error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query execution failed (correlation_id=%s)", e.CorrelationID)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// TimeoutError indicates the statement exceeded its deadline. Surfaced as a
// distinct type so callers can decide whether to retry with a smaller
// result set.
type TimeoutError struct {
	CorrelationID uuid.UUID
	Timeout       time.Duration
	Err           error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("query exceeded %s statement timeout (correlation_id=%s)", e.Timeout, e.CorrelationID)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// TransactionError indicates a transaction was rolled back; it wraps the
// underlying cause.
type TransactionError struct {
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction rolled back: %v", e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// isTimeout reports whether err is a statement-timeout cancellation or a
// caller deadline expiry.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlstateQueryCanceled
}

// isSerializationFailure reports whether err is in the narrow class of
// conflicts worth re-running a transaction for.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlstateSerializationFailure || pgErr.Code == sqlstateDeadlockDetected
}
