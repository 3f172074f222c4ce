// Package services holds the business logic between HTTP handlers and the
// compilation/execution layers.
package services

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agencydesk/report-engine/pkg/apperrors"
	"github.com/agencydesk/report-engine/pkg/audit"
	"github.com/agencydesk/report-engine/pkg/database"
	"github.com/agencydesk/report-engine/pkg/pagination"
	"github.com/agencydesk/report-engine/pkg/reportquery"
	"github.com/agencydesk/report-engine/pkg/schema"
)

// StatementExecutor runs compiled statements against tenant databases.
// Implemented by the database package's Executor; narrowed to an interface so
// the service can be tested without a live database.
type StatementExecutor interface {
	ExecutePage(ctx context.Context, tenantID uuid.UUID, stmt *reportquery.CompiledStatement, limit, offset int) (*database.Result, error)
	Count(ctx context.Context, tenantID uuid.UUID, stmt *reportquery.CompiledStatement) (int, error)
}

// ReportPage is one page of report results with pagination metadata.
type ReportPage struct {
	Columns    []string            `json:"columns"`
	Rows       []map[string]any    `json:"data"`
	Pagination pagination.Response `json:"pagination"`
}

// ReportService compiles and runs ad-hoc report queries. The pipeline is
// strict: shape validation, allow-list checks and injection screening all
// complete before any SQL is compiled, and compilation completes before any
// statement is sent.
type ReportService struct {
	builder  *reportquery.Builder
	executor StatementExecutor
	schema   schema.Provider
	auditor  *audit.SecurityAuditor
	validate *validator.Validate
	logger   *zap.Logger
}

// NewReportService wires the report pipeline.
func NewReportService(
	builder *reportquery.Builder,
	executor StatementExecutor,
	schemaProvider schema.Provider,
	auditor *audit.SecurityAuditor,
	logger *zap.Logger,
) *ReportService {
	return &ReportService{
		builder:  builder,
		executor: executor,
		schema:   schemaProvider,
		auditor:  auditor,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Run validates, compiles and executes a report config for one tenant,
// returning the requested page of results. Validation failures come back as
// *reportquery.ValidationErrors; execution failures as the database package's
// typed errors.
func (s *ReportService) Run(
	ctx context.Context,
	tenantID uuid.UUID,
	cfg reportquery.ReportConfig,
	page pagination.Request,
	clientIP string,
) (*ReportPage, error) {
	if err := s.validate.Struct(cfg); err != nil {
		verrs := shapeErrors(err)
		s.auditor.LogValidationFailure(tenantID, verrs.Error(), clientIP)
		return nil, verrs
	}

	if err := s.checkAllowList(ctx, tenantID, cfg); err != nil {
		if verrs, ok := err.(*reportquery.ValidationErrors); ok {
			s.auditor.LogValidationFailure(tenantID, verrs.Error(), clientIP)
		}
		return nil, err
	}

	correlationID := uuid.New()
	if findings := reportquery.ScreenFilters(cfg.Filters); len(findings) > 0 {
		// Values still travel as bound parameters; the request proceeds.
		s.auditor.LogInjectionAttempt(tenantID, correlationID, findings, clientIP)
	}

	stmt, err := s.builder.Build(cfg)
	if err != nil {
		if verrs, ok := err.(*reportquery.ValidationErrors); ok {
			s.auditor.LogValidationFailure(tenantID, verrs.Error(), clientIP)
		}
		return nil, err
	}

	total, err := s.executor.Count(ctx, tenantID, stmt)
	if err != nil {
		return nil, err
	}

	result, err := s.executor.ExecutePage(ctx, tenantID, stmt, page.PageSize, page.Offset())
	if err != nil {
		return nil, err
	}

	s.auditor.LogReportExecution(tenantID, correlationID, result.RowCount, clientIP)

	return &ReportPage{
		Columns:    result.Columns,
		Rows:       result.Rows,
		Pagination: pagination.BuildResponse(total, page),
	}, nil
}

// checkAllowList verifies every table and column reference against the
// tenant's allowed schema. All offending references are collected before
// returning, matching the compiler's aggregated error shape.
func (s *ReportService) checkAllowList(ctx context.Context, tenantID uuid.UUID, cfg reportquery.ReportConfig) error {
	allowedTables, err := s.schema.ListAllowedTables(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("list allowed tables: %w", err)
	}

	verrs := &reportquery.ValidationErrors{}
	columnSets := make(map[string]map[string]bool)

	tableAllowed := func(path, name string) bool {
		if name == "" {
			return false
		}
		if !allowedTables[name] {
			verrs.Errors = append(verrs.Errors, reportquery.FieldError{
				Path:    path,
				Message: fmt.Sprintf("table %q: %s", name, apperrors.ErrTableNotAllowed),
			})
			return false
		}
		return true
	}

	columnsOf := func(table string) (map[string]bool, error) {
		if cols, ok := columnSets[table]; ok {
			return cols, nil
		}
		cols, err := s.schema.ListAllowedColumns(ctx, tenantID, table)
		if err != nil {
			return nil, fmt.Errorf("list allowed columns for %q: %w", table, err)
		}
		columnSets[table] = cols
		return cols, nil
	}

	columnAllowed := func(path, table, column string) error {
		cols, err := columnsOf(table)
		if err != nil {
			return err
		}
		if !cols[column] {
			verrs.Errors = append(verrs.Errors, reportquery.FieldError{
				Path:    path,
				Message: fmt.Sprintf("column %q on table %q: %s", column, table, apperrors.ErrColumnNotAllowed),
			})
		}
		return nil
	}

	for i, t := range cfg.Tables {
		tableAllowed(fmt.Sprintf("tables[%d].name", i), t.Name)
	}
	for i, j := range cfg.Joins {
		path := fmt.Sprintf("joins[%d]", i)
		tableAllowed(path+".table", j.Table)
		// The condition's table.column pairs go through the same allow-list
		// as every other reference; shape errors are left to the compiler.
		refs, ok := reportquery.JoinConditionRefs(j.Condition)
		if !ok {
			continue
		}
		for _, ref := range refs {
			if !tableAllowed(path+".condition", ref.Table) {
				continue
			}
			if err := columnAllowed(path+".condition", ref.Table, ref.Column); err != nil {
				return err
			}
		}
	}
	for i, c := range cfg.Columns {
		path := fmt.Sprintf("columns[%d]", i)
		if !tableAllowed(path+".table", c.Table) {
			continue
		}
		if err := columnAllowed(path+".column", c.Table, c.Column); err != nil {
			return err
		}
	}
	for i, f := range cfg.Filters {
		path := fmt.Sprintf("filters[%d]", i)
		if !tableAllowed(path+".table", f.Table) {
			continue
		}
		if err := columnAllowed(path+".column", f.Table, f.Column); err != nil {
			return err
		}
	}
	for i, g := range cfg.GroupBy {
		if g.Table == "" {
			continue
		}
		path := fmt.Sprintf("group_by[%d]", i)
		if !tableAllowed(path+".table", g.Table) {
			continue
		}
		if err := columnAllowed(path+".column", g.Table, g.Column); err != nil {
			return err
		}
	}
	for i, o := range cfg.OrderBy {
		if o.Table == "" {
			continue
		}
		path := fmt.Sprintf("order_by[%d]", i)
		if !tableAllowed(path+".table", o.Table) {
			continue
		}
		if err := columnAllowed(path+".column", o.Table, o.Column); err != nil {
			return err
		}
	}

	if len(verrs.Errors) > 0 {
		return verrs
	}
	return nil
}

// shapeErrors converts validator tag failures into the aggregated field-path
// error shape the rest of the pipeline uses.
func shapeErrors(err error) *reportquery.ValidationErrors {
	verrs := &reportquery.ValidationErrors{}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		verrs.Errors = append(verrs.Errors, reportquery.FieldError{
			Path:    "request",
			Message: err.Error(),
		})
		return verrs
	}

	for _, fe := range fieldErrs {
		verrs.Errors = append(verrs.Errors, reportquery.FieldError{
			Path:    fe.Namespace(),
			Message: fmt.Sprintf("failed %q validation", fe.Tag()),
		})
	}
	return verrs
}
