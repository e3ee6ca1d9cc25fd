package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

// DefaultTxAttempts bounds automatic retries of serialization failures.
const DefaultTxAttempts = 3

// WithTx executes fn inside a serializable transaction, retrying the whole
// function on serialization failures up to DefaultTxAttempts before
// surfacing shared.ErrTransactionFailed. Engine operations retry as a unit,
// never individual sub-steps.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	return WithTxAttempts(ctx, pool, DefaultTxAttempts, fn)
}

// WithTxAttempts is WithTx with an explicit retry bound.
func WithTxAttempts(ctx context.Context, pool *pgxpool.Pool, attempts int, fn func(pgx.Tx) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var last error
	for i := 0; i < attempts; i++ {
		err := runTx(ctx, pool, fn)
		if err == nil {
			return nil
		}
		if !IsSerializationFailure(err) {
			return err
		}
		last = fmt.Errorf("%w: %v", shared.ErrConflict, err)
	}
	return fmt.Errorf("platform/db: %w after %d attempts: %v", shared.ErrTransactionFailed, attempts, last)
}

func runTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// IsSerializationFailure reports whether err is a PostgreSQL serialization or
// deadlock failure worth retrying.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
