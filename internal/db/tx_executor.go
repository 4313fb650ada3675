package db

import (
	"context"
	"log/slog"
	"time"

	"github.com/roasbeef/clinbox/internal/backoff"
)

// txExecutorOptions holds the retry policy for the transaction executor.
type txExecutorOptions struct {
	numRetries int
	backoff    backoff.Policy
}

// defaultTxExecutorOptions returns the default executor options.
func defaultTxExecutorOptions() *txExecutorOptions {
	return &txExecutorOptions{
		numRetries: DefaultNumTxRetries,
		backoff: backoff.Policy{
			Initial: DefaultInitialRetryDelay,
			Max:     DefaultMaxRetryDelay,
		},
	}
}

// TxExecutorOption is a functional option for NewTransactionExecutor.
type TxExecutorOption func(*txExecutorOptions)

// WithTxRetries sets how many attempts a transaction gets when it fails
// with a busy or locked database.
func WithTxRetries(numRetries int) TxExecutorOption {
	return func(o *txExecutorOptions) {
		o.numRetries = numRetries
	}
}

// WithTxRetryDelay sets the base delay between attempts.
func WithTxRetryDelay(delay time.Duration) TxExecutorOption {
	return func(o *txExecutorOptions) {
		o.backoff.Initial = delay
	}
}

// TransactionExecutor runs a transaction body against a typed query object,
// retrying the whole body when SQLite reports a busy or locked database.
type TransactionExecutor[Query any] struct {
	BatchedQuerier

	createQuery QueryCreator[Query]

	opts *txExecutorOptions

	log *slog.Logger
}

// NewTransactionExecutor creates an executor over db that hands txBody a
// query object built by createQuery.
func NewTransactionExecutor[Querier any](db BatchedQuerier,
	createQuery QueryCreator[Querier], log *slog.Logger,
	opts ...TxExecutorOption) *TransactionExecutor[Querier] {

	txOpts := defaultTxExecutorOptions()
	for _, optFunc := range opts {
		optFunc(txOpts)
	}

	return &TransactionExecutor[Querier]{
		BatchedQuerier: db,
		createQuery:    createQuery,
		opts:           txOpts,
		log:            log,
	}
}

// ExecTx opens a transaction, runs txBody and commits. Retryable failures
// at any of the three steps roll back and start over after a backoff.
func (t *TransactionExecutor[Q]) ExecTx(ctx context.Context,
	txOptions TxOptions, txBody func(Q) error) error {

	waitBeforeRetry := func(attempt int) error {
		t.log.DebugContext(
			ctx, "Retrying transaction on busy database",
			"attempt", attempt,
		)

		return t.opts.backoff.Wait(ctx, attempt)
	}

	for i := 0; i < t.opts.numRetries; i++ {
		retry, err := t.attempt(ctx, txOptions, txBody)
		if !retry {
			return err
		}

		if err := waitBeforeRetry(i); err != nil {
			return err
		}
	}

	return ErrRetriesExceeded
}

// attempt runs one transaction. It reports whether the failure, if any, is
// worth retrying.
func (t *TransactionExecutor[Q]) attempt(ctx context.Context,
	txOptions TxOptions, txBody func(Q) error) (bool, error) {

	tx, err := t.BeginTx(ctx, txOptions)
	if err != nil {
		dbErr := MapSQLError(err)
		return IsSerializationOrDeadlockError(dbErr), dbErr
	}

	// Rollback after a successful commit is a no-op.
	defer func() {
		_ = tx.Rollback()
	}()

	if err := txBody(t.createQuery(tx)); err != nil {
		dbErr := MapSQLError(err)
		return IsSerializationOrDeadlockError(dbErr), dbErr
	}

	if err := tx.Commit(); err != nil {
		dbErr := MapSQLError(err)
		return IsSerializationOrDeadlockError(dbErr), dbErr
	}

	return false, nil
}
