package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const defaultTxRetries = 3

// runInTx runs fn in a transaction, committing when fn returns nil.
func runInTx[T any](ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) (T, error)) (T, error) {
	var zero T

	tx, err := pool.Begin(ctx)
	if err != nil {
		return zero, errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			zctx.From(ctx).Warn("Rollback failed", zap.Error(err))
		}
	}()

	result, err := fn(tx)
	if err != nil {
		return zero, err
	}
	if err := tx.Commit(ctx); err != nil {
		return zero, errors.Wrap(err, "commit transaction")
	}
	return result, nil
}

// runInTxWithRetry retries runInTx on serialization failures and deadlocks
// with linear backoff.
func runInTxWithRetry[T any](ctx context.Context, pool *pgxpool.Pool, maxRetries int, fn func(tx pgx.Tx) (T, error)) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		result, err := runInTx(ctx, pool, fn)
		if err == nil {
			return result, nil
		}
		if !isRetryable(err) {
			return zero, err
		}
		if attempt == maxRetries {
			return zero, errors.Wrapf(err, "transaction failed after %d attempts", attempt+1)
		}

		wait := time.Duration(attempt+1) * 100 * time.Millisecond
		zctx.From(ctx).Warn("Retrying transaction",
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// isRetryable reports serialization_failure (40001) and
// deadlock_detected (40P01).
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01":
		return true
	default:
		return false
	}
}
