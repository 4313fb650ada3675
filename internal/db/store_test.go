package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/roasbeef/clinbox/internal/build"
	"github.com/stretchr/testify/require"
)

// newTestStore opens a migrated store in a temporary directory.
func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()

	store, err := NewSqliteStore(&SqliteConfig{
		DatabaseFileName: filepath.Join(t.TempDir(), "test.db"),
	}, build.DiscardLogger())
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return store
}

// TestNewSqliteStoreMigrates verifies that both tables exist after opening
// a fresh database.
func TestNewSqliteStoreMigrates(t *testing.T) {
	store := newTestStore(t)

	for _, table := range []string{"tasks", "checkpoints",
		"checkpoint_items"} {

		var name string
		err := store.DB().Get(&name, `
			SELECT name FROM sqlite_master
			WHERE type = 'table' AND name = ?`, table)
		require.NoError(t, err, table)
		require.Equal(t, table, name)
	}
}

// TestNewSqliteStoreReopen verifies that reopening an up to date database
// is a no-op for the migrator.
func TestNewSqliteStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	cfg := &SqliteConfig{DatabaseFileName: path}

	store, err := NewSqliteStore(cfg, build.DiscardLogger())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = NewSqliteStore(cfg, build.DiscardLogger())
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

// TestWithTxCommit verifies that a successful body is committed.
func TestWithTxCommit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(ctx context.Context, q Querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO tasks (id, title, source_message_id,
				created_at)
			VALUES ('t1', 'Pay invoice', 'm1', 1)`)
		return err
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, store.DB().Get(&count,
		"SELECT COUNT(*) FROM tasks"))
	require.Equal(t, 1, count)
}

// TestWithTxRollback verifies that an error from the body leaves no trace.
func TestWithTxRollback(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	errAbort := errors.New("abort")
	err := store.WithTx(ctx, func(ctx context.Context, q Querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO tasks (id, title, source_message_id,
				created_at)
			VALUES ('t1', 'Pay invoice', 'm1', 1)`)
		if err != nil {
			return err
		}

		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	var count int
	require.NoError(t, store.DB().Get(&count,
		"SELECT COUNT(*) FROM tasks"))
	require.Zero(t, count)
}

// TestUniqueViolationMapped verifies that a duplicate source message id is
// reported as a unique constraint violation.
func TestUniqueViolationMapped(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	insert := func(id string) error {
		return store.WithTx(ctx, func(ctx context.Context,
			q Querier) error {

			_, err := q.ExecContext(ctx, `
				INSERT INTO tasks (id, title,
					source_message_id, created_at)
				VALUES (?, 'Title', 'm1', 1)`, id)
			return err
		})
	}

	require.NoError(t, insert("t1"))

	err := insert("t2")
	require.Error(t, err)
	require.True(t, IsUniqueConstraintViolation(err))
	require.False(t, IsSerializationOrDeadlockError(err))
}
