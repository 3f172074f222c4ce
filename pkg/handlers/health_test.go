package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agencydesk/report-engine/pkg/database"
)

type fakePoolStats struct {
	stats database.PoolStats
}

func (f fakePoolStats) Stats() database.PoolStats { return f.stats }

func TestHealth(t *testing.T) {
	h := NewHealthHandler(testHandlerConfig(), fakePoolStats{}, zap.NewNop())

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestPing(t *testing.T) {
	pools := fakePoolStats{stats: database.PoolStats{OpenPools: 2, MaxPools: 50, TTLMinutes: 5}}
	h := NewHealthHandler(testHandlerConfig(), pools, zap.NewNop())

	rec := httptest.NewRecorder()
	h.Ping(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp PingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "report-engine", resp.Service)
	assert.Equal(t, 2, resp.Pools.OpenPools)
}
