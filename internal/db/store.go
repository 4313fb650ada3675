package db

import (
	"context"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// Store is the shared handle the task and checkpoint stores build on. It
// exposes the raw sqlx handle for single statements and a retrying
// executor for multi-statement transactions.
type Store struct {
	db *sqlx.DB

	exec *TransactionExecutor[Querier]
}

// NewStore wraps db. Transactions are retried on busy errors.
func NewStore(db *sqlx.DB, log *slog.Logger,
	opts ...TxExecutorOption) *Store {

	createQuery := func(tx *sqlx.Tx) Querier {
		return tx
	}

	return &Store{
		db: db,
		exec: NewTransactionExecutor(
			&BaseDB{DB: db}, createQuery, log, opts...,
		),
	}
}

// DB returns the underlying handle.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// TxFunc is the body of a transaction.
type TxFunc func(ctx context.Context, q Querier) error

// WithTx runs fn inside a write transaction. An error from fn rolls the
// transaction back.
func (s *Store) WithTx(ctx context.Context, fn TxFunc) error {
	return s.exec.ExecTx(ctx, WriteTxOption(), func(q Querier) error {
		return fn(ctx, q)
	})
}

// WithReadTx runs fn inside a read-only transaction.
func (s *Store) WithReadTx(ctx context.Context, fn TxFunc) error {
	return s.exec.ExecTx(ctx, ReadTxOption(), func(q Querier) error {
		return fn(ctx, q)
	})
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
