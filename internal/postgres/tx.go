package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/burdemar/orderflow/internal/domain"
)

type txKey struct{}

// Lock waits inside serializable transactions are bounded so a stuck holder
// cannot stall callers indefinitely; a timed-out wait is retried like any
// other transient conflict.
const (
	lockTimeout     = 5 * time.Second
	maxTxRetries    = 3
	retryBackoff    = 50 * time.Millisecond
	retryBackoffCap = 400 * time.Millisecond
)

// WithTx runs fn inside a read-committed transaction. Nested calls join the
// transaction already carried by the context.
func (d *DB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return d.runTx(ctx, pgx.TxOptions{}, fn)
}

// WithSerializableTx runs fn at SERIALIZABLE isolation with a per-transaction
// lock_timeout. Serialization failures, deadlocks and lock-wait timeouts are
// retried with jittered backoff; once retries are exhausted the caller sees
// domain.ErrTxConflict, never a raw driver error.
func (d *DB) WithSerializableTx(ctx context.Context, fn func(ctx context.Context) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	var err error
	for attempt := 0; attempt <= maxTxRetries; attempt++ {
		if attempt > 0 {
			backoff := retryBackoff << (attempt - 1)
			if backoff > retryBackoffCap {
				backoff = retryBackoffCap
			}
			backoff += time.Duration(rand.Int63n(int64(retryBackoff)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err = d.runTx(ctx, opts, fn)
		if !isRetriable(err) {
			return err
		}
	}
	return domain.ErrTxConflict
}

func (d *DB) runTx(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := d.Pool.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	if opts.IsoLevel == pgx.Serializable {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func txFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

// SQLSTATE 40001 serialization_failure, 40P01 deadlock_detected,
// 55P03 lock_not_available (lock_timeout fired).
func isRetriable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "55P03":
		return true
	}
	return false
}
