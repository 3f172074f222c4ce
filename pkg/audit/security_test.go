package audit

import (
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/agencydesk/report-engine/pkg/reportquery"
)

func newObservedAuditor() (*SecurityAuditor, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.InfoLevel)
	return NewSecurityAuditor(zap.New(core)), logs
}

func TestLogInjectionAttempt(t *testing.T) {
	auditor, logs := newObservedAuditor()
	tenantID := uuid.New()
	correlationID := uuid.New()

	auditor.LogInjectionAttempt(tenantID, correlationID, []reportquery.InjectionFinding{
		{Path: "filters[0].value", Value: "' OR '1'='1", Fingerprint: "s&1c"},
		{Path: "filters[2].value[1]", Value: "'; DROP TABLE x--", Fingerprint: "s;T"},
	}, "10.0.0.1")

	entries := logs.FilterMessage("SQL injection attempt detected").All()
	if len(entries) != 2 {
		t.Fatalf("logged %d entries, want 2", len(entries))
	}

	first := entries[0].ContextMap()
	if first["tenant_id"] != tenantID.String() {
		t.Errorf("tenant_id = %v", first["tenant_id"])
	}
	if first["field_path"] != "filters[0].value" {
		t.Errorf("field_path = %v", first["field_path"])
	}
	if first["fingerprint"] != "s&1c" {
		t.Errorf("fingerprint = %v", first["fingerprint"])
	}
	if first["severity"] != "critical" {
		t.Errorf("severity = %v", first["severity"])
	}
	if entries[0].Level != zapcore.ErrorLevel {
		t.Errorf("level = %v, want error", entries[0].Level)
	}
	if entries[0].LoggerName != "security_audit" {
		t.Errorf("logger name = %q, want security_audit", entries[0].LoggerName)
	}
}

func TestLogValidationFailure(t *testing.T) {
	auditor, logs := newObservedAuditor()
	tenantID := uuid.New()

	auditor.LogValidationFailure(tenantID, "validation failed: tables[0].name: identifier must not be empty", "10.0.0.1")

	entries := logs.FilterMessage("Report validation failed").All()
	if len(entries) != 1 {
		t.Fatalf("logged %d entries, want 1", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Errorf("level = %v, want warn", entries[0].Level)
	}
	if entries[0].ContextMap()["severity"] != "warning" {
		t.Errorf("severity = %v", entries[0].ContextMap()["severity"])
	}
}

func TestLogReportExecution(t *testing.T) {
	auditor, logs := newObservedAuditor()

	auditor.LogReportExecution(uuid.New(), uuid.New(), 17, "10.0.0.1")

	entries := logs.FilterMessage("Report executed").All()
	if len(entries) != 1 {
		t.Fatalf("logged %d entries, want 1", len(entries))
	}
	if entries[0].ContextMap()["row_count"] != int64(17) {
		t.Errorf("row_count = %v", entries[0].ContextMap()["row_count"])
	}
}
