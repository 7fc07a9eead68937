package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE counters (name TEXT PRIMARY KEY, value INTEGER NOT NULL)`)
	require.NoError(t, err)
	return db
}

func insertCounter(ctx context.Context, db *sqlx.DB, name string, value int) error {
	_, err := GetExecutor(ctx, db).ExecContext(ctx,
		`INSERT INTO counters (name, value) VALUES (?, ?)`, name, value)
	return err
}

func countRows(t *testing.T, db *sqlx.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, `SELECT count(*) FROM counters`))
	return n
}

func TestWithinTransaction_Commit(t *testing.T) {
	db := openTestDB(t)
	m := NewTxManager(db, time.Second)

	err := m.WithinTransaction(context.Background(), func(ctx context.Context) error {
		assert.True(t, InTransaction(ctx))
		return insertCounter(ctx, db, "a", 1)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countRows(t, db))
}

func TestWithinTransaction_RollbackOnError(t *testing.T) {
	db := openTestDB(t)
	m := NewTxManager(db, time.Second)
	boom := errors.New("boom")

	err := m.WithinTransaction(context.Background(), func(ctx context.Context) error {
		require.NoError(t, insertCounter(ctx, db, "a", 1))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countRows(t, db))
}

func TestWithinTransaction_NestedJoinsOuter(t *testing.T) {
	db := openTestDB(t)
	m := NewTxManager(db, time.Second)
	boom := errors.New("outer failed")

	err := m.WithinTransaction(context.Background(), func(ctx context.Context) error {
		inner := m.WithinTransaction(ctx, func(ctx context.Context) error {
			return insertCounter(ctx, db, "inner", 1)
		})
		require.NoError(t, inner)
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countRows(t, db), "inner work must roll back with the outer transaction")
}

func TestAfterCommit(t *testing.T) {
	db := openTestDB(t)
	m := NewTxManager(db, time.Second)

	t.Run("runs after commit", func(t *testing.T) {
		ran := false
		err := m.WithinTransaction(context.Background(), func(ctx context.Context) error {
			AfterCommit(ctx, func() { ran = true })
			assert.False(t, ran)
			return nil
		})
		require.NoError(t, err)
		assert.True(t, ran)
	})

	t.Run("dropped on rollback", func(t *testing.T) {
		ran := false
		_ = m.WithinTransaction(context.Background(), func(ctx context.Context) error {
			AfterCommit(ctx, func() { ran = true })
			return errors.New("abort")
		})
		assert.False(t, ran)
	})

	t.Run("immediate without transaction", func(t *testing.T) {
		ran := false
		AfterCommit(context.Background(), func() { ran = true })
		assert.True(t, ran)
	})
}

func TestAfterCommit_ConnectionReleasedBeforeHooks(t *testing.T) {
	db := openTestDB(t)
	m := NewTxManager(db, 100*time.Millisecond)
	ctx := context.Background()

	var hookErr error
	err := m.WithinTransaction(ctx, func(ctx context.Context) error {
		AfterCommit(ctx, func() {
			// The test database has a single connection.
			hookErr = m.WithinTransaction(context.Background(), func(ctx context.Context) error {
				return insertCounter(ctx, db, "from-hook", 2)
			})
		})
		return insertCounter(ctx, db, "a", 1)
	})
	require.NoError(t, err)
	require.NoError(t, hookErr)
	assert.Equal(t, 2, countRows(t, db))
}

func TestWithinTransaction_AcquireTimeout(t *testing.T) {
	db := openTestDB(t)
	m := NewTxManager(db, 50*time.Millisecond)

	holding := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- m.WithinTransaction(context.Background(), func(ctx context.Context) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	err := m.WithinTransaction(context.Background(), func(ctx context.Context) error {
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAcquireTimeout)
	assert.True(t, IsLockTimeout(err))

	close(release)
	require.NoError(t, <-done)
}

func TestLockTimeoutStatement(t *testing.T) {
	assert.Equal(t, "SET LOCAL lock_timeout = 250", LockTimeoutStatement(DialectPostgres, 250*time.Millisecond))
	assert.Empty(t, LockTimeoutStatement(DialectPostgres, 0))
	assert.Empty(t, LockTimeoutStatement(DialectSQLite, time.Second))
}

func TestDialectOf(t *testing.T) {
	assert.Equal(t, DialectSQLite, DialectOf("sqlite3"))
	assert.Equal(t, DialectPostgres, DialectOf("pgx"))
	assert.Equal(t, DialectPostgres, DialectOf("postgres"))
}
