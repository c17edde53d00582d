package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dukerupert/chorepoints/internal/metrics"
)

// WithTx runs fn inside a transaction, committing if fn returns nil and
// rolling back otherwise. If the transaction fails with a busy or
// serialization error the whole of fn is run again in a fresh transaction,
// so fn must not have side effects outside tx.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	backoff := retry.WithMaxRetries(db.MaxRetries, retry.WithJitter(5*time.Millisecond, retry.NewExponential(10*time.Millisecond)))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := db.runTx(ctx, fn)
		if db.Dialect.Retryable(err) {
			metrics.TxRetries.Inc()
			return retry.RetryableError(err)
		}
		return err
	})
}

func (db *DB) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}
