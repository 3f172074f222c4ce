package database

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func TestConnStringSubstitutesTenant(t *testing.T) {
	m := NewTenantPools(PoolsConfig{
		DSNTemplate: "host=db user=reports dbname=tenant_{tenant} sslmode=disable",
		Password:    "s3cret",
	}, zap.NewNop())
	defer func() { _ = m.Close() }()

	tenantID := uuid.New()
	dsn := m.connString(tenantID)

	if !strings.Contains(dsn, "dbname=tenant_"+tenantID.String()) {
		t.Errorf("tenant not substituted: %s", dsn)
	}
	if strings.Contains(dsn, "{tenant}") {
		t.Errorf("template token left in DSN: %s", dsn)
	}
	if !strings.HasSuffix(dsn, " password=s3cret") {
		t.Errorf("password not appended: %s", dsn)
	}
}

func TestConnStringWithoutPassword(t *testing.T) {
	m := NewTenantPools(PoolsConfig{
		DSNTemplate: "host=db dbname={tenant}",
	}, zap.NewNop())
	defer func() { _ = m.Close() }()

	if dsn := m.connString(uuid.New()); strings.Contains(dsn, "password") {
		t.Errorf("unexpected password in DSN: %s", dsn)
	}
}

func TestNewTenantPoolsAppliesDefaults(t *testing.T) {
	m := NewTenantPools(PoolsConfig{DSNTemplate: "host=db dbname={tenant}"}, zap.NewNop())
	defer func() { _ = m.Close() }()

	stats := m.Stats()
	if stats.MaxPools != DefaultMaxPools {
		t.Errorf("MaxPools = %d, want %d", stats.MaxPools, DefaultMaxPools)
	}
	if stats.TTLMinutes != DefaultPoolTTLMinutes {
		t.Errorf("TTLMinutes = %d, want %d", stats.TTLMinutes, DefaultPoolTTLMinutes)
	}
	if stats.OpenPools != 0 {
		t.Errorf("OpenPools = %d, want 0", stats.OpenPools)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	m := NewTenantPools(PoolsConfig{DSNTemplate: "host=db dbname={tenant}"}, zap.NewNop())

	if err := m.Close(); err != nil {
		t.Fatalf("first Close returned error: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close returned error: %v", err)
	}
}
