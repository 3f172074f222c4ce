package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agencydesk/report-engine/pkg/audit"
	"github.com/agencydesk/report-engine/pkg/database"
	"github.com/agencydesk/report-engine/pkg/pagination"
	"github.com/agencydesk/report-engine/pkg/reportquery"
	"github.com/agencydesk/report-engine/pkg/schema"
)

// fakeExecutor records the statements it receives and serves canned results.
type fakeExecutor struct {
	pageResult *database.Result
	total      int
	err        error

	executed   []*reportquery.CompiledStatement
	lastLimit  int
	lastOffset int
}

func (f *fakeExecutor) ExecutePage(_ context.Context, _ uuid.UUID, stmt *reportquery.CompiledStatement, limit, offset int) (*database.Result, error) {
	f.executed = append(f.executed, stmt)
	f.lastLimit = limit
	f.lastOffset = offset
	if f.err != nil {
		return nil, f.err
	}
	return f.pageResult, nil
}

func (f *fakeExecutor) Count(_ context.Context, _ uuid.UUID, stmt *reportquery.CompiledStatement) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.total, nil
}

func testSchema() schema.Provider {
	return schema.NewStaticProvider(map[string][]string{
		"invoices":   {"id", "client_id", "status", "total", "paid_at"},
		"clients":    {"id", "name", "region"},
		"line_items": {"id", "invoice_id", "amount"},
	})
}

func newTestService(exec StatementExecutor) *ReportService {
	logger := zap.NewNop()
	builder := reportquery.NewBuilder(reportquery.NewRegistry(logger), 0, logger)
	return NewReportService(builder, exec, testSchema(), audit.NewSecurityAuditor(logger), logger)
}

func validConfig() reportquery.ReportConfig {
	return reportquery.ReportConfig{
		Tables: []reportquery.TableRef{{Name: "invoices"}},
		Columns: []reportquery.ColumnSpec{
			{Table: "invoices", Column: "id"},
			{Table: "invoices", Column: "status"},
		},
		Filters: []reportquery.FilterSpec{
			{Table: "invoices", Column: "status", Operator: "=", Value: "paid"},
		},
	}
}

func TestRunHappyPath(t *testing.T) {
	exec := &fakeExecutor{
		total: 45,
		pageResult: &database.Result{
			Columns:  []string{"id", "status"},
			Rows:     []map[string]any{{"id": int64(1), "status": "paid"}},
			RowCount: 1,
		},
	}
	svc := newTestService(exec)

	page, err := svc.Run(context.Background(), uuid.New(), validConfig(),
		pagination.Request{Page: 3, PageSize: 20}, "10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "status"}, page.Columns)
	assert.Len(t, page.Rows, 1)
	assert.Equal(t, 45, page.Pagination.TotalItems)
	assert.Equal(t, 3, page.Pagination.TotalPages)
	assert.False(t, page.Pagination.HasNext)
	assert.True(t, page.Pagination.HasPrevious)

	require.Len(t, exec.executed, 1)
	assert.Equal(t, 20, exec.lastLimit)
	assert.Equal(t, 40, exec.lastOffset)
	assert.Contains(t, exec.executed[0].SQL, `"invoices"."status" = $1`)
	assert.Equal(t, []any{"paid"}, exec.executed[0].Params)
}

func TestRunRejectsDisallowedTable(t *testing.T) {
	exec := &fakeExecutor{}
	svc := newTestService(exec)

	cfg := validConfig()
	cfg.Tables = []reportquery.TableRef{{Name: "pg_shadow"}}
	cfg.Columns = []reportquery.ColumnSpec{{Table: "pg_shadow", Column: "passwd"}}
	cfg.Filters = nil

	_, err := svc.Run(context.Background(), uuid.New(), cfg,
		pagination.Request{Page: 1, PageSize: 20}, "10.0.0.1")

	var verrs *reportquery.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Empty(t, exec.executed, "disallowed config must never execute")

	found := false
	for _, fe := range verrs.Errors {
		if fe.Path == "tables[0].name" {
			found = true
		}
	}
	assert.True(t, found, "expected error at tables[0].name, got %v", verrs.Errors)
}

func TestRunRejectsDisallowedColumn(t *testing.T) {
	exec := &fakeExecutor{}
	svc := newTestService(exec)

	cfg := validConfig()
	cfg.Columns = append(cfg.Columns, reportquery.ColumnSpec{Table: "invoices", Column: "internal_margin"})

	_, err := svc.Run(context.Background(), uuid.New(), cfg,
		pagination.Request{Page: 1, PageSize: 20}, "10.0.0.1")

	var verrs *reportquery.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Empty(t, exec.executed)
	assert.Contains(t, verrs.Error(), "internal_margin")
}

func TestRunRejectsDisallowedJoinConditionReference(t *testing.T) {
	exec := &fakeExecutor{}
	svc := newTestService(exec)

	cfg := validConfig()
	cfg.Joins = []reportquery.JoinSpec{
		{Type: "INNER", Table: "line_items", Condition: "invoices.id = ledger.invoice_id"},
	}

	_, err := svc.Run(context.Background(), uuid.New(), cfg,
		pagination.Request{Page: 1, PageSize: 20}, "10.0.0.1")

	var verrs *reportquery.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Empty(t, exec.executed, "disallowed config must never execute")

	found := false
	for _, fe := range verrs.Errors {
		if fe.Path == "joins[0].condition" {
			found = true
		}
	}
	assert.True(t, found, "expected error at joins[0].condition, got %v", verrs.Errors)
}

func TestRunRejectsDisallowedJoinConditionColumn(t *testing.T) {
	exec := &fakeExecutor{}
	svc := newTestService(exec)

	cfg := validConfig()
	cfg.Joins = []reportquery.JoinSpec{
		{Type: "INNER", Table: "line_items", Condition: "invoices.id = line_items.unit_cost"},
	}

	_, err := svc.Run(context.Background(), uuid.New(), cfg,
		pagination.Request{Page: 1, PageSize: 20}, "10.0.0.1")

	var verrs *reportquery.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Empty(t, exec.executed)
	assert.Contains(t, verrs.Error(), "unit_cost")
}

func TestRunRejectsEmptyShape(t *testing.T) {
	exec := &fakeExecutor{}
	svc := newTestService(exec)

	_, err := svc.Run(context.Background(), uuid.New(), reportquery.ReportConfig{},
		pagination.Request{Page: 1, PageSize: 20}, "10.0.0.1")

	var verrs *reportquery.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Empty(t, exec.executed)
}

func TestRunProceedsDespiteInjectionFinding(t *testing.T) {
	exec := &fakeExecutor{
		total:      0,
		pageResult: &database.Result{Columns: []string{"id"}, Rows: []map[string]any{}},
	}
	svc := newTestService(exec)

	cfg := validConfig()
	cfg.Filters = []reportquery.FilterSpec{
		{Table: "invoices", Column: "status", Operator: "=", Value: "' OR '1'='1"},
	}

	_, err := svc.Run(context.Background(), uuid.New(), cfg,
		pagination.Request{Page: 1, PageSize: 20}, "10.0.0.1")
	require.NoError(t, err)

	// The suspicious value still travels as a bound parameter.
	require.Len(t, exec.executed, 1)
	assert.Equal(t, []any{"' OR '1'='1"}, exec.executed[0].Params)
	assert.NotContains(t, exec.executed[0].SQL, "OR '1'")
}

func TestRunPropagatesCompileErrors(t *testing.T) {
	exec := &fakeExecutor{}
	svc := newTestService(exec)

	cfg := validConfig()
	cfg.Filters = []reportquery.FilterSpec{
		{Table: "invoices", Column: "status", Operator: "="},
	}

	_, err := svc.Run(context.Background(), uuid.New(), cfg,
		pagination.Request{Page: 1, PageSize: 20}, "10.0.0.1")

	var verrs *reportquery.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Empty(t, exec.executed)
}

func TestRunPropagatesExecutionErrors(t *testing.T) {
	execErr := &database.ExecutionError{CorrelationID: uuid.New(), Err: errors.New("boom")}
	exec := &fakeExecutor{err: execErr}
	svc := newTestService(exec)

	_, err := svc.Run(context.Background(), uuid.New(), validConfig(),
		pagination.Request{Page: 1, PageSize: 20}, "10.0.0.1")

	var got *database.ExecutionError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, execErr.CorrelationID, got.CorrelationID)
}
