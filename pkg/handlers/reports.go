// Package handlers contains the HTTP surface of the report engine. Handlers
// parse and reply; all decisions live in the service layer.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agencydesk/report-engine/pkg/apperrors"
	"github.com/agencydesk/report-engine/pkg/config"
	"github.com/agencydesk/report-engine/pkg/database"
	"github.com/agencydesk/report-engine/pkg/pagination"
	"github.com/agencydesk/report-engine/pkg/reportquery"
	"github.com/agencydesk/report-engine/pkg/services"
)

// ReportRunner is the service surface the handler needs.
type ReportRunner interface {
	Run(ctx context.Context, tenantID uuid.UUID, cfg reportquery.ReportConfig, page pagination.Request, clientIP string) (*services.ReportPage, error)
}

// ValidationFailedResponse is the 400 payload listing every offending field.
type ValidationFailedResponse struct {
	Error   string                   `json:"error"`
	Message string                   `json:"message"`
	Details []reportquery.FieldError `json:"details"`
}

// ReportsHandler serves ad-hoc report queries.
type ReportsHandler struct {
	service     ReportRunner
	maxPageSize int
	logger      *zap.Logger
}

// NewReportsHandler creates a reports handler.
func NewReportsHandler(service ReportRunner, cfg *config.Config, logger *zap.Logger) *ReportsHandler {
	return &ReportsHandler{
		service:     service,
		maxPageSize: cfg.Reports.MaxPageSize,
		logger:      logger,
	}
}

// RegisterRoutes registers the reports routes on the given mux.
func (h *ReportsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/reports/query", h.Query)
}

// Query handles POST /api/reports/query requests. The body is a report
// config; page and pageSize come from query parameters and the tenant from
// the X-Tenant-ID header.
func (h *ReportsHandler) Query(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := ParseTenantID(w, r, h.logger)
	if !ok {
		return
	}

	var cfg reportquery.ReportConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request_body", "Request body must be a JSON report definition")
		return
	}

	rawPage, rawPageSize := ParsePageParams(r)
	page := pagination.Parse(rawPage, rawPageSize, h.maxPageSize)

	result, err := h.service.Run(r.Context(), tenantID, cfg, page, r.RemoteAddr)
	if err != nil {
		h.writeRunError(w, tenantID, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode report response", zap.Error(err))
	}
}

// writeRunError maps pipeline errors onto HTTP statuses. Validation failures
// carry their field details; execution failures expose only the correlation
// ID, never engine error text.
func (h *ReportsHandler) writeRunError(w http.ResponseWriter, tenantID uuid.UUID, err error) {
	var verrs *reportquery.ValidationErrors
	if errors.As(err, &verrs) {
		resp := ValidationFailedResponse{
			Error:   "validation_failed",
			Message: "Report definition failed validation",
			Details: verrs.Errors,
		}
		if werr := WriteJSON(w, http.StatusBadRequest, resp); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	var timeoutErr *database.TimeoutError
	if errors.As(err, &timeoutErr) {
		h.writeExecutionError(w, http.StatusGatewayTimeout, "timeout",
			"Report query exceeded the statement timeout", timeoutErr.CorrelationID)
		return
	}

	var execErr *database.ExecutionError
	if errors.As(err, &execErr) {
		h.writeExecutionError(w, http.StatusBadGateway, "execution_failed",
			"Report query failed", execErr.CorrelationID)
		return
	}

	if errors.Is(err, apperrors.ErrPoolLimitReached) {
		h.writeError(w, http.StatusServiceUnavailable, "tenant_pool_limit", "Too many tenant databases in use, try again shortly")
		return
	}

	h.logger.Error("report request failed",
		zap.String("tenant_id", tenantID.String()),
		zap.Error(err),
	)
	h.writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
}

func (h *ReportsHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

// writeExecutionError adds the correlation ID for server-side log lookup.
// The message stays generic; raw engine error text never reaches the caller.
func (h *ReportsHandler) writeExecutionError(w http.ResponseWriter, status int, code, message string, correlationID uuid.UUID) {
	body := map[string]string{
		"error":          code,
		"message":        message,
		"correlation_id": correlationID.String(),
	}
	if err := WriteJSON(w, status, body); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
