package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/agencydesk/report-engine/pkg/logging"
	"github.com/agencydesk/report-engine/pkg/reportquery"
)

// DefaultStatementTimeout bounds every report statement server-side.
const DefaultStatementTimeout = 30 * time.Second

// Result holds one statement's rows in request order.
type Result struct {
	Columns  []string
	Rows     []map[string]any
	RowCount int
}

// querier is satisfied by pooled connections and transactions alike.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Executor runs compiled statements against tenant databases. One connection
// is checked out per call and released on every exit path; compilation has
// already finished by the time a statement reaches this layer, so no partial
// SQL is ever sent.
type Executor struct {
	pools   *TenantPools
	timeout time.Duration
	logger  *zap.Logger
}

// NewExecutor creates an executor. timeout values <= 0 fall back to
// DefaultStatementTimeout.
func NewExecutor(pools *TenantPools, timeout time.Duration, logger *zap.Logger) *Executor {
	if timeout <= 0 {
		timeout = DefaultStatementTimeout
	}
	return &Executor{
		pools:   pools,
		timeout: timeout,
		logger:  logger,
	}
}

// Execute runs a compiled statement with its bound parameter vector and
// returns all rows. The connection is released back to the tenant pool on
// success, query error and timeout alike.
func (e *Executor) Execute(ctx context.Context, tenantID uuid.UUID, stmt *reportquery.CompiledStatement) (*Result, error) {
	return e.run(ctx, tenantID, stmt.SQL, stmt.Params)
}

// ExecutePage runs a compiled statement wrapped in a LIMIT/OFFSET envelope
// for one page of results. limit and offset come from the pagination helper,
// never from raw caller input.
func (e *Executor) ExecutePage(ctx context.Context, tenantID uuid.UUID, stmt *reportquery.CompiledStatement, limit, offset int) (*Result, error) {
	paged := fmt.Sprintf("SELECT * FROM (%s) AS _page LIMIT %d OFFSET %d", stmt.SQL, limit, offset)
	return e.run(ctx, tenantID, paged, stmt.Params)
}

// Count runs the compiled statement wrapped in COUNT(*) to size the full
// result set for pagination metadata.
func (e *Executor) Count(ctx context.Context, tenantID uuid.UUID, stmt *reportquery.CompiledStatement) (int, error) {
	counted := fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS _total", stmt.SQL)
	result, err := e.run(ctx, tenantID, counted, stmt.Params)
	if err != nil {
		return 0, err
	}
	if result.RowCount != 1 || len(result.Columns) != 1 {
		return 0, fmt.Errorf("unexpected count result shape: %d rows", result.RowCount)
	}
	switch v := result.Rows[0][result.Columns[0]].(type) {
	case int64:
		return int(v), nil
	case int32:
		return int(v), nil
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}

// run acquires a tenant connection, applies the statement timeout, executes
// and collects rows. The timeout is reset before the connection returns to
// the pool so it cannot leak into the next request.
func (e *Executor) run(ctx context.Context, tenantID uuid.UUID, sql string, params []any) (*Result, error) {
	correlationID := uuid.New()

	pool, err := e.pools.Pool(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("get tenant pool: %w", err)
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire tenant connection: %w", err)
	}
	defer func() {
		// Reset the session timeout before returning the connection to the
		// pool. Background context: the request context may already be done.
		_, _ = conn.Exec(context.Background(), "RESET statement_timeout")
		conn.Release()
	}()

	timeoutMs := e.timeout.Milliseconds()
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET statement_timeout = %d", timeoutMs)); err != nil {
		return nil, fmt.Errorf("set statement timeout: %w", err)
	}

	rows, err := conn.Query(ctx, sql, params...)
	if err != nil {
		return nil, e.classify(correlationID, sql, err)
	}

	result, err := collectRows(rows)
	if err != nil {
		return nil, e.classify(correlationID, sql, err)
	}
	return result, nil
}

// classify logs the sanitized engine error under the correlation ID and
// returns the typed error callers see. Raw engine error text never leaves
// this method.
func (e *Executor) classify(correlationID uuid.UUID, sql string, err error) error {
	e.logger.Error("report query failed",
		zap.String("correlation_id", correlationID.String()),
		zap.String("query", logging.SanitizeQuery(sql)),
		zap.String("error", logging.SanitizeError(err)),
	)
	if isTimeout(err) {
		return &TimeoutError{CorrelationID: correlationID, Timeout: e.timeout, Err: err}
	}
	return &ExecutionError{CorrelationID: correlationID, Err: err}
}

// collectRows drains rows into maps keyed by output column name. Always
// closes the row set.
func collectRows(rows pgx.Rows) (*Result, error) {
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = string(fd.Name)
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col] = values[i]
		}
		resultRows = append(resultRows, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &Result{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}
