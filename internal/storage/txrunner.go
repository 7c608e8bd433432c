package storage

import (
	"context"
	"database/sql"
	"fmt"

	txcontext "yeto/pkg/platform/tx"
)

// SQLTxRunner runs a function inside one database transaction. The
// transaction rides in ctx so every store call inside fn joins it.
type SQLTxRunner struct {
	db *sql.DB
}

func NewSQLTxRunner(db *sql.DB) *SQLTxRunner {
	return &SQLTxRunner{db: db}
}

func (r *SQLTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// Already inside a transaction: join it rather than nesting.
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// NoopTxRunner backs the in-memory stores, which apply writes immediately.
type NoopTxRunner struct{}

func NewNoopTxRunner() *NoopTxRunner { return &NoopTxRunner{} }

func (NoopTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
