package dbutil

import (
	"context"
	"strings"

	"github.com/Aidin1998/accountmanager/common/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	DuplicateKeyErrorCode         = "23505"
	ForeignKeyViolationErrorCode  = "23503"
	SerializationFailureErrorCode = "40001"
	DeadlockDetectedErrorCode     = "40P01"
	LockNotAvailableErrorCode     = "55P03"
	QueryCanceledErrorCode        = "57014"
	NumericOutOfRangeErrorCode    = "22003"
)

// Error kinds produced by WrapError that callers are expected to retry or
// surface as timeouts.
var (
	ErrConcurrencyConflict = errors.Conflict.Reason("ConcurrencyConflict")
	ErrTimeout             = errors.GatewayTimeout.Reason("Timeout")
	// ErrValueOutOfRange is a value the column cannot represent. Retrying
	// the same statement fails the same way.
	ErrValueOutOfRange = errors.Invalid.Reason("ValueOutOfRange")
)

// WrapError wraps a gorm error.
func WrapError(err error) error {
	var pgErr *pgconn.PgError

	if err == nil {
		return nil
	} else if _, ok := err.(*errors.Error); ok {
		return err
	} else if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.NotFound
	} else if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrTimeout.Explain("operation did not complete in time").Wrap(err)
	} else if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case DuplicateKeyErrorCode:
			return errors.Conflict.
				Explain("duplication of key").
				Wrap(err)
		case ForeignKeyViolationErrorCode:
			return errors.Unprocessable.
				Explain("referenced row does not exist").
				Wrap(err)
		case SerializationFailureErrorCode, DeadlockDetectedErrorCode, LockNotAvailableErrorCode:
			return ErrConcurrencyConflict.
				Explain("concurrent update, transaction can be retried").
				Wrap(err)
		case QueryCanceledErrorCode:
			return ErrTimeout.Explain("statement canceled").Wrap(err)
		case NumericOutOfRangeErrorCode:
			return ErrValueOutOfRange.Explain("numeric value out of range").Wrap(err)
		}
	} else if isBusyError(err) {
		return ErrConcurrencyConflict.
			Explain("database is busy, transaction can be retried").
			Wrap(err)
	}

	return err
}

// isBusyError matches the messages drivers without typed errors report
// for lock contention.
func isBusyError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "could not serialize access")
}

// IsRetryable reports whether a wrapped error describes a transient conflict.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
