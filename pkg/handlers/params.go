package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenantHeader carries the tenant identity resolved by the upstream gateway.
const TenantHeader = "X-Tenant-ID"

// ParseTenantID extracts and validates the tenant ID from the request header.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
func ParseTenantID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	raw := r.Header.Get(TenantHeader)
	if raw == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_tenant_id", "X-Tenant-ID header is required"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_tenant_id", "Invalid tenant ID format"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}

// ParsePageParams reads the page and pageSize query parameters. Absent or
// malformed values come back as 0 and are normalized downstream; negative
// numbers are treated the same way.
func ParsePageParams(r *http.Request) (page, pageSize int) {
	if raw := r.URL.Query().Get("page"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			page = v
		}
	}
	if raw := r.URL.Query().Get("pageSize"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			pageSize = v
		}
	}
	return page, pageSize
}
