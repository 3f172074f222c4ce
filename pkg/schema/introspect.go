package schema

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PoolGetter hands out the tenant's connection pool. Implemented by the
// database package's tenant pool manager.
type PoolGetter interface {
	Pool(ctx context.Context, tenantID uuid.UUID) (*pgxpool.Pool, error)
}

// IntrospectingProvider answers allow-list queries from the live tenant
// schema via information_schema. System schemas are never exposed.
type IntrospectingProvider struct {
	pools  PoolGetter
	logger *zap.Logger
}

// NewIntrospectingProvider creates a provider backed by the tenant's own
// database catalog.
func NewIntrospectingProvider(pools PoolGetter, logger *zap.Logger) *IntrospectingProvider {
	return &IntrospectingProvider{pools: pools, logger: logger}
}

// ListAllowedTables returns all user tables in the tenant database.
func (p *IntrospectingProvider) ListAllowedTables(ctx context.Context, tenantID uuid.UUID) (map[string]bool, error) {
	const query = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		  AND table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY table_name
	`

	pool, err := p.pools.Pool(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("get tenant pool: %w", err)
	}

	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	tables := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	return tables, nil
}

// ListAllowedColumns returns the columns of one table in the tenant database.
func (p *IntrospectingProvider) ListAllowedColumns(ctx context.Context, tenantID uuid.UUID, table string) (map[string]bool, error) {
	const query = `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_name = $1
		  AND table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY ordinal_position
	`

	pool, err := p.pools.Pool(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("get tenant pool: %w", err)
	}

	rows, err := pool.Query(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column name: %w", err)
		}
		columns[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	return columns, nil
}

// Verify both providers satisfy the interface at compile time.
var (
	_ Provider = (*StaticProvider)(nil)
	_ Provider = (*IntrospectingProvider)(nil)
)
