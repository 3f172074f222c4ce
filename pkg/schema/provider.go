// Package schema supplies the table/column allow-list consulted during
// report compilation. Which tables a tenant may query is decided upstream;
// this package only answers "does this name exist in the tenant's allowed
// schema" so the compiler can reject references to anything else.
package schema

import (
	"context"

	"github.com/google/uuid"
)

// Provider lists the tables and columns a tenant is allowed to reference.
type Provider interface {
	// ListAllowedTables returns the set of table names the tenant may query.
	ListAllowedTables(ctx context.Context, tenantID uuid.UUID) (map[string]bool, error)
	// ListAllowedColumns returns the set of column names the tenant may
	// reference on the given table.
	ListAllowedColumns(ctx context.Context, tenantID uuid.UUID, table string) (map[string]bool, error)
}

// StaticProvider serves a fixed allow-list. Used in tests and for callers
// that supply the schema map directly with the request.
type StaticProvider struct {
	// Tables maps table name to its allowed column set.
	Tables map[string]map[string]bool
}

// NewStaticProvider builds a StaticProvider from table -> columns.
func NewStaticProvider(tables map[string][]string) *StaticProvider {
	p := &StaticProvider{Tables: make(map[string]map[string]bool, len(tables))}
	for table, columns := range tables {
		cols := make(map[string]bool, len(columns))
		for _, c := range columns {
			cols[c] = true
		}
		p.Tables[table] = cols
	}
	return p
}

func (p *StaticProvider) ListAllowedTables(_ context.Context, _ uuid.UUID) (map[string]bool, error) {
	tables := make(map[string]bool, len(p.Tables))
	for t := range p.Tables {
		tables[t] = true
	}
	return tables, nil
}

func (p *StaticProvider) ListAllowedColumns(_ context.Context, _ uuid.UUID, table string) (map[string]bool, error) {
	cols, ok := p.Tables[table]
	if !ok {
		return map[string]bool{}, nil
	}
	out := make(map[string]bool, len(cols))
	for c := range cols {
		out[c] = true
	}
	return out, nil
}
