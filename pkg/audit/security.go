// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agencydesk/report-engine/pkg/logging"
	"github.com/agencydesk/report-engine/pkg/reportquery"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection detects SQL injection patterns.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventValidationFailure is logged when a report definition fails validation.
	EventValidationFailure SecurityEventType = "report_validation_failure"
	// EventReportExecution is logged for successful report execution (optional, can be high volume).
	EventReportExecution SecurityEventType = "report_execution"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp     time.Time         `json:"timestamp"`
	EventType     SecurityEventType `json:"event_type"`
	TenantID      uuid.UUID         `json:"tenant_id"`
	CorrelationID uuid.UUID         `json:"correlation_id,omitempty"`
	ClientIP      string            `json:"client_ip,omitempty"`
	Details       any               `json:"details"`
	Severity      string            `json:"severity"` // info, warning, critical
}

// SQLInjectionDetails contains specifics of a detected SQL injection attempt.
type SQLInjectionDetails struct {
	FieldPath   string `json:"field_path"`
	Value       string `json:"value"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
}

// SecurityAuditor logs security events for SIEM consumption.
// Events are logged in structured JSON format with appropriate severity levels.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger
// namespace. The "security_audit" name makes the events easy to filter in
// SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogInjectionAttempt records injection patterns found in filter values.
// Logged at ERROR level with "critical" severity for immediate alerting. The
// findings never changed the compiled statement (values are always bound as
// parameters); the event exists for detection, not blocking.
func (a *SecurityAuditor) LogInjectionAttempt(
	tenantID, correlationID uuid.UUID,
	findings []reportquery.InjectionFinding,
	clientIP string,
) {
	for _, f := range findings {
		details := SQLInjectionDetails{
			FieldPath:   f.Path,
			Value:       logging.TruncateString(f.Value, 256),
			Fingerprint: f.Fingerprint,
		}

		event := SecurityEvent{
			Timestamp:     time.Now().UTC(),
			EventType:     EventSQLInjectionAttempt,
			TenantID:      tenantID,
			CorrelationID: correlationID,
			ClientIP:      clientIP,
			Details:       details,
			Severity:      "critical",
		}

		// Marshaling known types should never fail.
		eventJSON, _ := json.Marshal(event)

		a.logger.Error("SQL injection attempt detected",
			zap.String("event_json", string(eventJSON)),
			zap.String("tenant_id", tenantID.String()),
			zap.String("correlation_id", correlationID.String()),
			zap.String("field_path", f.Path),
			zap.String("fingerprint", f.Fingerprint),
			zap.String("client_ip", clientIP),
			zap.String("severity", "critical"),
		)
	}
}

// LogValidationFailure records a rejected report definition.
// Logged at WARN level as these are typically user errors, not attacks.
func (a *SecurityAuditor) LogValidationFailure(
	tenantID uuid.UUID,
	errorMessage string,
	clientIP string,
) {
	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventValidationFailure,
		TenantID:  tenantID,
		ClientIP:  clientIP,
		Details: map[string]string{
			"error": errorMessage,
		},
		Severity: "warning",
	}

	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("Report validation failed",
		zap.String("event_json", string(eventJSON)),
		zap.String("tenant_id", tenantID.String()),
		zap.String("error", errorMessage),
		zap.String("client_ip", clientIP),
		zap.String("severity", "warning"),
	)
}

// LogReportExecution records a successful report execution for audit trail.
// Logged at INFO level. Note: this can generate high log volume in production.
func (a *SecurityAuditor) LogReportExecution(
	tenantID, correlationID uuid.UUID,
	rowCount int,
	clientIP string,
) {
	event := SecurityEvent{
		Timestamp:     time.Now().UTC(),
		EventType:     EventReportExecution,
		TenantID:      tenantID,
		CorrelationID: correlationID,
		ClientIP:      clientIP,
		Details: map[string]int{
			"row_count": rowCount,
		},
		Severity: "info",
	}

	eventJSON, _ := json.Marshal(event)

	a.logger.Info("Report executed",
		zap.String("event_json", string(eventJSON)),
		zap.String("tenant_id", tenantID.String()),
		zap.String("correlation_id", correlationID.String()),
		zap.Int("row_count", rowCount),
		zap.String("client_ip", clientIP),
		zap.String("severity", "info"),
	)
}
