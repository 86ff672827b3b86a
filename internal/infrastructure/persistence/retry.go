package persistence

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	retryAttempts    = 3
	retryBaseBackoff = 50 * time.Millisecond
)

// WithRetry runs fn up to three times, doubling the backoff between
// attempts, as long as the failure looks transient (connection loss,
// serialization failure, deadlock). Non-transient errors and the final
// attempt's error are returned as-is so domain errors keep their type.
func WithRetry(ctx context.Context, fn func() error) error {
	var err error
	backoff := retryBaseBackoff
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		if err = fn(); err == nil {
			return nil
		}
		if !IsTransientError(err) {
			return err
		}
	}
	return err
}

// IsTransientError reports whether an error is worth retrying. Postgres
// serialization failures (40001) and deadlocks (40P01) are safe to retry
// because the aborted transaction had no effect; connection-class errors
// are retried on the assumption the pool hands out a fresh connection.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return true
		}
		// Class 08 covers connection exceptions
		return strings.HasPrefix(pgErr.Code, "08")
	}
	return false
}
