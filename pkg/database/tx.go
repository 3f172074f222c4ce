package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/agencydesk/report-engine/pkg/apperrors"
	"github.com/agencydesk/report-engine/pkg/logging"
	"github.com/agencydesk/report-engine/pkg/reportquery"
)

// Tx exposes compiled-statement execution inside an open transaction.
// Callers never see the underlying pgx transaction; commit and rollback are
// owned by WithTransaction.
type Tx struct {
	tx pgx.Tx
}

// Query runs a compiled statement inside the transaction and collects rows.
func (t *Tx) Query(ctx context.Context, stmt *reportquery.CompiledStatement) (*Result, error) {
	return queryInto(ctx, t.tx, stmt)
}

// Exec runs a compiled statement inside the transaction, discarding rows.
func (t *Tx) Exec(ctx context.Context, stmt *reportquery.CompiledStatement) (int64, error) {
	tag, err := t.tx.Exec(ctx, stmt.SQL, stmt.Params...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func queryInto(ctx context.Context, q querier, stmt *reportquery.CompiledStatement) (*Result, error) {
	rows, err := q.Query(ctx, stmt.SQL, stmt.Params...)
	if err != nil {
		return nil, err
	}
	return collectRows(rows)
}

// WithTransaction runs fn inside a single tenant transaction. Any error from
// fn rolls the transaction back unconditionally; only a clean return commits.
func (e *Executor) WithTransaction(ctx context.Context, tenantID uuid.UUID, fn func(tx *Tx) error) error {
	pool, err := e.pools.Pool(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("get tenant pool: %w", err)
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire tenant connection: %w", err)
	}
	defer conn.Release()

	pgtx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&Tx{tx: pgtx}); err != nil {
		if rbErr := pgtx.Rollback(ctx); rbErr != nil {
			e.logger.Warn("transaction rollback failed",
				zap.String("tenant_id", tenantID.String()),
				zap.String("error", logging.SanitizeError(rbErr)),
			)
		}
		return &TransactionError{Err: err}
	}

	if err := pgtx.Commit(ctx); err != nil {
		return &TransactionError{Err: err}
	}
	return nil
}

// WithTransactionRetry runs fn via WithTransaction, re-running it only when
// the failure is a serialization conflict or deadlock. Each attempt gets a
// fresh transaction. Other errors return immediately.
func (e *Executor) WithTransactionRetry(ctx context.Context, tenantID uuid.UUID, maxAttempts int, fn func(tx *Tx) error) error {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = e.WithTransaction(ctx, tenantID, fn)
		if lastErr == nil {
			return nil
		}
		if !isSerializationFailure(lastErr) {
			return lastErr
		}

		e.logger.Info("retrying transaction after serialization conflict",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", apperrors.ErrSerializationRetry, maxAttempts, lastErr)
}
