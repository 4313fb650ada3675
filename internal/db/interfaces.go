package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
)

// DefaultStoreTimeout bounds any single interaction with the database.
var DefaultStoreTimeout = 10 * time.Second

const (
	// DefaultNumTxRetries is the number of attempts made for a
	// transaction that fails with a busy or locked database.
	DefaultNumTxRetries = 10

	// DefaultInitialRetryDelay is the base delay between attempts. The
	// first wait is drawn between 20 and 60 milliseconds and doubles from
	// there, so concurrent writers do not retry in lockstep.
	DefaultInitialRetryDelay = 40 * time.Millisecond

	// DefaultMaxRetryDelay caps the delay between attempts.
	DefaultMaxRetryDelay = 3 * time.Second
)

// TxOptions controls the kind of transaction that is opened.
type TxOptions interface {
	// ReadOnly returns true if the transaction should be read-only.
	ReadOnly() bool
}

// BaseTxOptions is the TxOptions implementation the store understands.
type BaseTxOptions struct {
	readOnly bool
}

// ReadOnly returns true if the transaction should be read only.
//
// NOTE: This implements the TxOptions interface.
func (a *BaseTxOptions) ReadOnly() bool {
	return a.readOnly
}

// ReadTxOption returns options for a read-only transaction.
func ReadTxOption() *BaseTxOptions {
	return &BaseTxOptions{readOnly: true}
}

// WriteTxOption returns options for a read-write transaction.
func WriteTxOption() *BaseTxOptions {
	return &BaseTxOptions{}
}

// Querier is the query surface shared by *sqlx.DB and *sqlx.Tx. Stores
// write their queries against it so the same code runs inside or outside a
// transaction.
type Querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string,
		args ...any) error
	SelectContext(ctx context.Context, dest any, query string,
		args ...any) error
	NamedExecContext(ctx context.Context, query string,
		arg any) (sql.Result, error)
}

var (
	_ Querier = (*sqlx.DB)(nil)
	_ Querier = (*sqlx.Tx)(nil)
)

// QueryCreator builds a typed query object bound to a transaction.
type QueryCreator[Q any] func(*sqlx.Tx) Q

// BatchedQuerier opens transactions from TxOptions.
type BatchedQuerier interface {
	// BeginTx creates a new database transaction given the set of
	// transaction options.
	BeginTx(ctx context.Context, options TxOptions) (*sqlx.Tx, error)
}

// BaseDB wraps a sqlx handle with TxOptions aware transactions.
type BaseDB struct {
	*sqlx.DB
}

// BeginTx maps TxOptions onto sql.TxOptions and opens a transaction.
func (s *BaseDB) BeginTx(ctx context.Context, opts TxOptions) (*sqlx.Tx,
	error) {

	return s.DB.BeginTxx(ctx, &sql.TxOptions{
		ReadOnly: opts.ReadOnly(),
	})
}
