package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrPoolExhausted means no connection became free within the acquire timeout.
	ErrPoolExhausted = errors.New("database connection pool exhausted, try again shortly")
	// ErrConnectivity wraps faults where the connection itself broke.
	ErrConnectivity = errors.New("database connectivity fault")
	// ErrPoolClosed is returned after Drain.
	ErrPoolClosed = errors.New("database pool is closed")
	// ErrNestedTransaction is returned when a transaction scope is opened inside another.
	ErrNestedTransaction = errors.New("nested transaction scopes are not allowed")
)

// IsUnavailable reports whether err is an infrastructure error the caller should retry.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrPoolExhausted) ||
		errors.Is(err, ErrConnectivity) ||
		errors.Is(err, ErrPoolClosed)
}

// IsConnectivityFault reports whether err means the underlying connection can no
// longer be trusted and must not go back to the pool.
func IsConnectivityFault(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnectivity) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	// context errors are the caller's doing, not the socket's
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	return pgconn.SafeToRetry(err)
}

func connectivityError(err error) error {
	if errors.Is(err, ErrConnectivity) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrConnectivity, err)
}
