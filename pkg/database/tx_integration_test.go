//go:build integration

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/agencydesk/report-engine/pkg/apperrors"
	"github.com/agencydesk/report-engine/pkg/reportquery"
)

func TestWithTransactionCommits(t *testing.T) {
	executor, tenantID := newTestExecutor(t, 30*time.Second)
	ctx := context.Background()

	err := executor.WithTransaction(ctx, tenantID, func(tx *Tx) error {
		affected, err := tx.Exec(ctx, &reportquery.CompiledStatement{
			SQL:    "INSERT INTO clients (id, name, region) VALUES ($1, $2, $3)",
			Params: []any{100, "Westgate", "west"},
		})
		if err != nil {
			return err
		}
		if affected != 1 {
			t.Errorf("affected = %d, want 1", affected)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTransaction returned error: %v", err)
	}

	result, err := executor.Execute(ctx, tenantID, &reportquery.CompiledStatement{
		SQL:    `SELECT "name" FROM "clients" WHERE "id" = $1`,
		Params: []any{100},
	})
	if err != nil {
		t.Fatalf("verify query failed: %v", err)
	}
	if result.RowCount != 1 {
		t.Errorf("committed row not visible, got %d rows", result.RowCount)
	}
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	executor, tenantID := newTestExecutor(t, 30*time.Second)
	ctx := context.Background()

	boom := errors.New("boom")
	err := executor.WithTransaction(ctx, tenantID, func(tx *Tx) error {
		if _, err := tx.Exec(ctx, &reportquery.CompiledStatement{
			SQL:    "INSERT INTO clients (id, name, region) VALUES ($1, $2, $3)",
			Params: []any{200, "Ghost", "nowhere"},
		}); err != nil {
			return err
		}
		return boom
	})

	var txErr *TransactionError
	if !errors.As(err, &txErr) {
		t.Fatalf("error is %T, want *TransactionError: %v", err, err)
	}
	if !errors.Is(err, boom) {
		t.Error("transaction error does not unwrap to the cause")
	}

	result, err := executor.Execute(ctx, tenantID, &reportquery.CompiledStatement{
		SQL:    `SELECT "id" FROM "clients" WHERE "id" = $1`,
		Params: []any{200},
	})
	if err != nil {
		t.Fatalf("verify query failed: %v", err)
	}
	if result.RowCount != 0 {
		t.Errorf("rolled back row is visible, got %d rows", result.RowCount)
	}
}

func TestWithTransactionQueryReadsOwnWrites(t *testing.T) {
	executor, tenantID := newTestExecutor(t, 30*time.Second)
	ctx := context.Background()

	err := executor.WithTransaction(ctx, tenantID, func(tx *Tx) error {
		if _, err := tx.Exec(ctx, &reportquery.CompiledStatement{
			SQL:    "INSERT INTO clients (id, name, region) VALUES ($1, $2, $3)",
			Params: []any{300, "Inflight", "north"},
		}); err != nil {
			return err
		}

		result, err := tx.Query(ctx, &reportquery.CompiledStatement{
			SQL:    `SELECT "name" FROM "clients" WHERE "id" = $1`,
			Params: []any{300},
		})
		if err != nil {
			return err
		}
		if result.RowCount != 1 {
			t.Errorf("uncommitted write not visible inside tx, got %d rows", result.RowCount)
		}
		return errors.New("discard")
	})
	if err == nil {
		t.Fatal("expected rollback error")
	}
}

func TestWithTransactionRetryRerunsOnSerializationFailure(t *testing.T) {
	executor, tenantID := newTestExecutor(t, 30*time.Second)
	ctx := context.Background()

	attempts := 0
	err := executor.WithTransactionRetry(ctx, tenantID, 3, func(tx *Tx) error {
		attempts++
		if attempts < 3 {
			return &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
		}
		if _, err := tx.Exec(ctx, &reportquery.CompiledStatement{
			SQL:    "INSERT INTO clients (id, name, region) VALUES ($1, $2, $3)",
			Params: []any{400, "Retried", "east"},
		}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTransactionRetry returned error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("fn ran %d times, want 3", attempts)
	}

	result, err := executor.Execute(ctx, tenantID, &reportquery.CompiledStatement{
		SQL:    `SELECT "id" FROM "clients" WHERE "id" = $1`,
		Params: []any{400},
	})
	if err != nil {
		t.Fatalf("verify query failed: %v", err)
	}
	if result.RowCount != 1 {
		t.Errorf("committed row from final attempt not visible, got %d rows", result.RowCount)
	}
}

func TestWithTransactionRetryExhaustsAttempts(t *testing.T) {
	executor, tenantID := newTestExecutor(t, 30*time.Second)
	ctx := context.Background()

	attempts := 0
	err := executor.WithTransactionRetry(ctx, tenantID, 2, func(tx *Tx) error {
		attempts++
		return &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if !errors.Is(err, apperrors.ErrSerializationRetry) {
		t.Errorf("error %v does not wrap ErrSerializationRetry", err)
	}
	if attempts != 2 {
		t.Errorf("fn ran %d times, want 2", attempts)
	}
}

func TestWithTransactionRetryGivesUpOnPlainErrors(t *testing.T) {
	executor, tenantID := newTestExecutor(t, 30*time.Second)
	ctx := context.Background()

	attempts := 0
	err := executor.WithTransactionRetry(ctx, tenantID, 3, func(tx *Tx) error {
		attempts++
		return errors.New("not retryable")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("fn ran %d times, want 1", attempts)
	}
}
