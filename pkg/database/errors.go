package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// ErrAcquireTimeout is returned when no connection became free within the
// transaction manager's acquire budget.
var ErrAcquireTimeout = errors.New("database: timed out acquiring connection")

const (
	pgLockNotAvailable = "55P03"
	pgDeadlockDetected = "40P01"
)

// IsLockTimeout reports whether err means the caller gave up waiting on a
// lock held by someone else. Such errors are safe to retry.
func IsLockTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAcquireTimeout) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgLockNotAvailable || pgErr.Code == pgDeadlockDetected
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}
