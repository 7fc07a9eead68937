package database

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// NewSQLite opens (or creates) a SQLite database file.
//
// The connection is configured with:
//   - WAL journal so readers don't block the writer
//   - BEGIN IMMEDIATE transactions, taking the write lock up front
//   - a busy timeout bounding how long a writer waits on another process
//   - foreign key enforcement
//
// SQLite allows a single writer, so the pool is capped at one connection.
// Concurrent callers queue on the pool, which TxManager bounds with its
// acquire timeout.
func NewSQLite(path string, busyTimeout time.Duration) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_txlock=immediate&_foreign_keys=on&_busy_timeout=%d",
		path, busyTimeout.Milliseconds())

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}
	return db, nil
}
