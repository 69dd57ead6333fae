package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rollsheet/internal/domain"
	"rollsheet/internal/domain/repositories"
)

// TransactionManager runs mutation pipelines inside bounded transactions.
// Every transaction gets a statement and lock timeout so a stalled client
// cannot hold a row lock indefinitely; hitting either bound rolls the
// transaction back and surfaces domain.ErrTimeout to the caller.
type TransactionManager struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	logger  *slog.Logger
}

// NewTransactionManager creates a transaction manager with the given
// transaction bound (typically around one second).
func NewTransactionManager(pool *pgxpool.Pool, timeout time.Duration, logger *slog.Logger) repositories.TransactionManager {
	return &TransactionManager{pool: pool, timeout: timeout, logger: logger}
}

// ExecTx executes fn within a transaction.
func (tm *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	tx, err := tm.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	// Safe even after a successful commit.
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			tm.logger.Warn("rollback failed", "error", err)
		}
	}()

	// SET LOCAL scopes both bounds to this transaction. lock_timeout
	// caps the wait on the per-row lock, statement_timeout caps each
	// statement once the lock is held.
	ms := tm.timeout.Milliseconds()
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ms)); err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", ms)); err != nil {
		return fmt.Errorf("set statement timeout: %w", err)
	}

	txCtx := repositories.SetTx(ctx, tx)

	if err := fn(txCtx); err != nil {
		if IsPgTimeoutError(err) {
			return fmt.Errorf("%v: %w", err, domain.ErrTimeout)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if IsPgTimeoutError(err) {
			return fmt.Errorf("commit: %v: %w", err, domain.ErrTimeout)
		}
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
