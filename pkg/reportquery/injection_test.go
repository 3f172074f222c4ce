package reportquery

import "testing"

func TestScreenFiltersFlagsInjectionPatterns(t *testing.T) {
	filters := []FilterSpec{
		{Table: "invoices", Column: "status", Operator: "=", Value: "paid"},
		{Table: "invoices", Column: "ref", Operator: "=", Value: "' OR '1'='1"},
		{Table: "invoices", Column: "region", Operator: "IN", Value: []any{"north", "'; DROP TABLE invoices--"}},
	}

	findings := ScreenFilters(filters)
	if len(findings) != 2 {
		t.Fatalf("ScreenFilters returned %d findings, want 2: %+v", len(findings), findings)
	}

	if findings[0].Path != "filters[1].value" {
		t.Errorf("first finding path = %q, want filters[1].value", findings[0].Path)
	}
	if findings[1].Path != "filters[2].value[1]" {
		t.Errorf("second finding path = %q, want filters[2].value[1]", findings[1].Path)
	}
	for _, f := range findings {
		if f.Fingerprint == "" {
			t.Errorf("finding %q has empty fingerprint", f.Path)
		}
	}
}

func TestScreenFiltersIgnoresCleanAndNonStringValues(t *testing.T) {
	filters := []FilterSpec{
		{Table: "invoices", Column: "total", Operator: ">", Value: 100},
		{Table: "invoices", Column: "open", Operator: "=", Value: true},
		{Table: "invoices", Column: "paid_at", Operator: "IS NULL"},
		{Table: "invoices", Column: "client", Operator: "=", Value: "Northwind Traders"},
		{Table: "invoices", Column: "ids", Operator: "IN", Value: []any{1, 2, 3}},
	}

	if findings := ScreenFilters(filters); len(findings) != 0 {
		t.Errorf("ScreenFilters flagged clean values: %+v", findings)
	}
}
