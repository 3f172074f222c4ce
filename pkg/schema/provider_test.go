package schema

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider(map[string][]string{
		"invoices": {"id", "status"},
		"clients":  {"id", "name"},
	})
	ctx := context.Background()
	tenantID := uuid.New()

	tables, err := p.ListAllowedTables(ctx, tenantID)
	if err != nil {
		t.Fatalf("ListAllowedTables returned error: %v", err)
	}
	if len(tables) != 2 || !tables["invoices"] || !tables["clients"] {
		t.Errorf("tables = %v", tables)
	}

	cols, err := p.ListAllowedColumns(ctx, tenantID, "invoices")
	if err != nil {
		t.Fatalf("ListAllowedColumns returned error: %v", err)
	}
	if !cols["id"] || !cols["status"] || cols["name"] {
		t.Errorf("invoices columns = %v", cols)
	}

	none, err := p.ListAllowedColumns(ctx, tenantID, "missing")
	if err != nil {
		t.Fatalf("ListAllowedColumns for unknown table returned error: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("unknown table returned columns %v", none)
	}
}
