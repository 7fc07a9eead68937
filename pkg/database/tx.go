package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Executor is the query surface shared by *sqlx.DB and *sqlx.Tx.
type Executor interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

type txKey struct{}

type txState struct {
	tx          *sqlx.Tx
	afterCommit []func()
}

// TxManager runs units of work inside a single database transaction.
//
// The transaction travels in the context. A WithinTransaction call made
// with a context that already carries one joins it instead of starting a
// new one, so a caller can compose several repository or use case calls
// and have them commit or roll back together.
type TxManager struct {
	db             *sqlx.DB
	acquireTimeout time.Duration
}

func NewTxManager(db *sqlx.DB, acquireTimeout time.Duration) *TxManager {
	return &TxManager{db: db, acquireTimeout: acquireTimeout}
}

func (m *TxManager) DB() *sqlx.DB {
	return m.db
}

func (m *TxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx)
	}

	conn, err := m.acquire(ctx)
	if err != nil {
		return err
	}

	released := false
	defer func() {
		if !released {
			_ = conn.Close()
		}
	}()

	state, err := m.run(ctx, conn, fn)
	// Hooks may block on the network; the connection goes back to the
	// pool before they run.
	released = true
	if closeErr := conn.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("failed to release connection: %w", closeErr)
	}
	if err != nil {
		return err
	}

	for _, hook := range state.afterCommit {
		hook()
	}
	return nil
}

func (m *TxManager) run(ctx context.Context, conn *sqlx.Conn, fn func(ctx context.Context) error) (*txState, error) {
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	state := &txState{tx: tx}
	txCtx := context.WithValue(ctx, txKey{}, state)

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := m.begin(txCtx, tx); err != nil {
		return nil, err
	}
	if err := fn(txCtx); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return state, nil
}

// begin bounds row lock waits on PostgreSQL by the same budget used for
// acquiring a connection. SQLite relies on its busy timeout.
func (m *TxManager) begin(ctx context.Context, tx *sqlx.Tx) error {
	stmt := LockTimeoutStatement(DialectOf(m.db.DriverName()), m.acquireTimeout)
	if stmt == "" {
		return nil
	}
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to set lock timeout: %w", err)
	}
	return nil
}

// LockTimeoutStatement returns the statement that limits lock waits for the
// rest of the current transaction, or "" when the dialect has none.
func LockTimeoutStatement(dialect Dialect, timeout time.Duration) string {
	if dialect != DialectPostgres || timeout <= 0 {
		return ""
	}
	// SET does not take bind parameters.
	return fmt.Sprintf("SET LOCAL lock_timeout = %d", timeout.Milliseconds())
}

// acquire takes a dedicated connection, waiting at most acquireTimeout.
// The deadline applies only to the wait, not to the work done afterwards.
func (m *TxManager) acquire(ctx context.Context) (*sqlx.Conn, error) {
	acquireCtx := ctx
	if m.acquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, m.acquireTimeout)
		defer cancel()
	}

	conn, err := m.db.Connx(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s", ErrAcquireTimeout, m.acquireTimeout)
		}
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return conn, nil
}

// AfterCommit schedules fn to run once the outermost transaction carried
// by ctx commits. Without a transaction fn runs immediately. Hooks are
// dropped on rollback.
func AfterCommit(ctx context.Context, fn func()) {
	if state, ok := ctx.Value(txKey{}).(*txState); ok {
		state.afterCommit = append(state.afterCommit, fn)
		return
	}
	fn()
}

func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*txState)
	return ok
}

// GetExecutor returns the transaction carried by ctx, or db when there is none.
func GetExecutor(ctx context.Context, db *sqlx.DB) Executor {
	if state, ok := ctx.Value(txKey{}).(*txState); ok {
		return state.tx
	}
	return db
}
