package database

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/agencydesk/report-engine/pkg/apperrors"
	"github.com/agencydesk/report-engine/pkg/logging"
	"github.com/agencydesk/report-engine/pkg/retry"
)

const (
	DefaultPoolTTLMinutes  = 5
	DefaultCleanupInterval = 1 * time.Minute
	DefaultMaxPools        = 50
	DefaultPoolMaxConns    = 10
	DefaultPoolMinConns    = 1
)

// PoolsConfig holds configuration for the tenant pool manager.
type PoolsConfig struct {
	// DSNTemplate is the tenant connection string with a {tenant} token.
	DSNTemplate string
	// Password is appended to the DSN when non-empty.
	Password string
	// TTLMinutes is how long idle tenant pools are kept alive.
	TTLMinutes int
	// MaxPools caps the number of distinct tenant pools held open.
	MaxPools     int
	PoolMaxConns int32
	PoolMinConns int32
}

// TenantPools manages one connection pool per tenant with TTL-based reuse
// and automatic cleanup of idle pools. Each tenant's data lives in its own
// logical database; this is the only shared mutable resource in the request
// path and it does its own locking.
type TenantPools struct {
	mu       sync.RWMutex
	pools    map[uuid.UUID]*managedPool
	ttl      time.Duration
	maxPools int
	maxConns int32
	minConns int32
	dsnTmpl  string
	password string
	stopped  bool
	stopChan chan struct{}
	logger   *zap.Logger
}

// managedPool is a tenant pool with its last-use timestamp.
type managedPool struct {
	pool     *pgxpool.Pool
	lastUsed time.Time
	mu       sync.Mutex
}

// NewTenantPools creates a tenant pool manager and starts a background
// cleanup goroutine that runs until Close() is called.
func NewTenantPools(cfg PoolsConfig, logger *zap.Logger) *TenantPools {
	if cfg.TTLMinutes <= 0 {
		cfg.TTLMinutes = DefaultPoolTTLMinutes
	}
	if cfg.MaxPools <= 0 {
		cfg.MaxPools = DefaultMaxPools
	}
	if cfg.PoolMaxConns <= 0 {
		cfg.PoolMaxConns = DefaultPoolMaxConns
	}
	if cfg.PoolMinConns <= 0 {
		cfg.PoolMinConns = DefaultPoolMinConns
	}

	manager := &TenantPools{
		pools:    make(map[uuid.UUID]*managedPool),
		ttl:      time.Duration(cfg.TTLMinutes) * time.Minute,
		maxPools: cfg.MaxPools,
		maxConns: cfg.PoolMaxConns,
		minConns: cfg.PoolMinConns,
		dsnTmpl:  cfg.DSNTemplate,
		password: cfg.Password,
		stopChan: make(chan struct{}),
		logger:   logger,
	}

	go manager.cleanupExpiredPools()
	return manager
}

// connString renders the tenant's connection string from the template.
func (m *TenantPools) connString(tenantID uuid.UUID) string {
	dsn := strings.ReplaceAll(m.dsnTmpl, "{tenant}", tenantID.String())
	if m.password != "" {
		dsn += " password=" + m.password
	}
	return dsn
}

// Pool returns the tenant's connection pool, creating it on first use.
// Existing pools are health-checked before reuse and recreated if unhealthy.
func (m *TenantPools) Pool(ctx context.Context, tenantID uuid.UUID) (*pgxpool.Pool, error) {
	m.mu.RLock()
	managed, exists := m.pools[tenantID]
	m.mu.RUnlock()

	if exists {
		managed.mu.Lock()

		healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		err := retry.Do(healthCtx, retry.DefaultConfig(), func() error {
			return managed.pool.Ping(healthCtx)
		})
		if err != nil {
			m.logger.Warn("tenant pool unhealthy, recreating",
				zap.String("tenant_id", tenantID.String()),
				zap.String("error", logging.SanitizeError(err)),
			)
			managed.mu.Unlock()
			m.removePool(tenantID)
			return m.createPool(ctx, tenantID)
		}

		managed.lastUsed = time.Now()
		managed.mu.Unlock()
		return managed.pool, nil
	}

	return m.createPool(ctx, tenantID)
}

// createPool creates a new tenant pool with retry on transient failures.
// Caller must NOT hold any locks.
func (m *TenantPools) createPool(ctx context.Context, tenantID uuid.UUID) (*pgxpool.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring the write lock.
	if managed, exists := m.pools[tenantID]; exists && managed != nil {
		managed.mu.Lock()
		defer managed.mu.Unlock()
		managed.lastUsed = time.Now()
		return managed.pool, nil
	}

	if len(m.pools) >= m.maxPools {
		m.logger.Warn("tenant pool limit reached",
			zap.Int("current", len(m.pools)),
			zap.Int("max", m.maxPools),
		)
		return nil, fmt.Errorf("%w: %d pools open", apperrors.ErrPoolLimitReached, len(m.pools))
	}

	poolConfig, err := pgxpool.ParseConfig(m.connString(tenantID))
	if err != nil {
		m.logger.Error("failed to parse tenant connection string",
			zap.String("tenant_id", tenantID.String()),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, fmt.Errorf("failed to parse tenant connection string: %w", err)
	}
	poolConfig.MaxConns = m.maxConns
	poolConfig.MinConns = m.minConns
	poolConfig.MaxConnIdleTime = m.ttl

	pool, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*pgxpool.Pool, error) {
		return pgxpool.NewWithConfig(ctx, poolConfig)
	})
	if err != nil {
		m.logger.Error("failed to create tenant pool after retries",
			zap.String("tenant_id", tenantID.String()),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, fmt.Errorf("failed to create pool for tenant %s: %w", tenantID, err)
	}

	m.pools[tenantID] = &managedPool{
		pool:     pool,
		lastUsed: time.Now(),
	}

	m.logger.Info("created tenant connection pool",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("open_pools", len(m.pools)),
	)

	return pool, nil
}

// removePool closes and forgets a tenant's pool.
// Caller must NOT hold m.mu.
func (m *TenantPools) removePool(tenantID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if managed, exists := m.pools[tenantID]; exists && managed != nil {
		if managed.pool != nil {
			managed.pool.Close()
		}
		delete(m.pools, tenantID)
		m.logger.Debug("removed tenant pool",
			zap.String("tenant_id", tenantID.String()),
		)
	}
}

// cleanupExpiredPools runs periodically until stopChan is closed.
func (m *TenantPools) cleanupExpiredPools() {
	ticker := time.NewTicker(DefaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.performCleanup()
		case <-m.stopChan:
			return
		}
	}
}

// performCleanup closes pools idle longer than the TTL.
func (m *TenantPools) performCleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}

	now := time.Now()
	var expired []uuid.UUID

	for tenantID, managed := range m.pools {
		if managed == nil {
			continue
		}
		managed.mu.Lock()
		idle := now.Sub(managed.lastUsed)
		managed.mu.Unlock()

		if idle > m.ttl {
			expired = append(expired, tenantID)
			m.logger.Debug("marking tenant pool for cleanup",
				zap.String("tenant_id", tenantID.String()),
				zap.Duration("idle", idle),
				zap.Duration("ttl", m.ttl),
			)
		}
	}

	for _, tenantID := range expired {
		if managed, exists := m.pools[tenantID]; exists && managed != nil {
			if managed.pool != nil {
				managed.pool.Close()
			}
			delete(m.pools, tenantID)
		}
	}

	if len(expired) > 0 {
		m.logger.Info("cleaned up idle tenant pools",
			zap.Int("count", len(expired)),
			zap.Int("remaining", len(m.pools)),
		)
	}
}

// Close closes all tenant pools and stops the cleanup goroutine.
// Idempotent and safe to call multiple times.
func (m *TenantPools) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil
	}

	m.stopped = true
	close(m.stopChan)

	for _, managed := range m.pools {
		if managed != nil && managed.pool != nil {
			managed.pool.Close()
		}
	}

	m.pools = make(map[uuid.UUID]*managedPool)
	m.logger.Info("tenant pool manager closed")
	return nil
}

// Stats returns a snapshot of the pool manager state.
func (m *TenantPools) Stats() PoolStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	stats := PoolStats{
		OpenPools:  len(m.pools),
		MaxPools:   m.maxPools,
		TTLMinutes: int(m.ttl.Minutes()),
	}

	for _, managed := range m.pools {
		if managed == nil {
			continue
		}
		managed.mu.Lock()
		idleSeconds := int(now.Sub(managed.lastUsed).Seconds())
		managed.mu.Unlock()
		if idleSeconds > stats.OldestIdleSeconds {
			stats.OldestIdleSeconds = idleSeconds
		}
	}

	return stats
}

// PoolStats is a snapshot of the tenant pool manager.
type PoolStats struct {
	OpenPools         int `json:"open_pools"`
	MaxPools          int `json:"max_pools"`
	TTLMinutes        int `json:"ttl_minutes"`
	OldestIdleSeconds int `json:"oldest_idle_seconds"`
}
